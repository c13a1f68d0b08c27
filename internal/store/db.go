package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Open connects to MySQL and migrates the business tables.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the business tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Tenant{}, &Customer{}, &Order{}, &Review{}); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}
