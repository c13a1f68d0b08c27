package convo

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestActiveConversationGetOrCreate(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c1, err := repo.ActiveConversation(ctx, "t-active", 1, "be helpful")
	require.NoError(t, err)
	require.True(t, c1.Active)
	require.NotEmpty(t, c1.ConversationID)

	// Same pair resolves to the same conversation.
	c2, err := repo.ActiveConversation(ctx, "t-active", 1, "ignored")
	require.NoError(t, err)
	require.Equal(t, c1.ConversationID, c2.ConversationID)

	// Deactivating it makes the next lookup start fresh.
	require.NoError(t, repo.Deactivate(ctx, c1.ConversationID))
	c3, err := repo.ActiveConversation(ctx, "t-active", 1, "be helpful")
	require.NoError(t, err)
	require.NotEqual(t, c1.ConversationID, c3.ConversationID)
}

func TestAppendAssignsSeqAndBumpsTokenCount(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.ActiveConversation(ctx, "t-append", 7, "")
	require.NoError(t, err)

	for i, tok := range []int{10, 20, 30} {
		m := &Message{Role: RoleUser, Content: fmt.Sprintf("msg %d", i), TokenCount: tok}
		require.NoError(t, repo.Append(ctx, c.ConversationID, m))
		require.Equal(t, i+1, m.Seq)
	}

	got, err := repo.ByConversationID(ctx, c.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 60, got.TokenCount)

	msgs, err := repo.Messages(ctx, c.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		require.Equal(t, i+1, m.Seq)
	}
}

func TestReplaceRangeCollapsesIntoSummary(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.ActiveConversation(ctx, "t-replace", 9, "")
	require.NoError(t, err)

	for i := 1; i <= 6; i++ {
		require.NoError(t, repo.Append(ctx, c.ConversationID, &Message{
			Role: RoleUser, Content: fmt.Sprintf("msg %d", i), TokenCount: 100,
		}))
	}

	summary := &Message{Role: RoleSystem, Content: "summary of msgs 1-4", TokenCount: 50}
	require.NoError(t, repo.ReplaceRange(ctx, c.ConversationID, 1, 4, summary, 250))

	msgs, err := repo.Messages(ctx, c.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.True(t, msgs[0].Summary)
	require.Equal(t, 1, msgs[0].Seq)
	require.Equal(t, "summary of msgs 1-4", msgs[0].Content)
	require.Equal(t, "msg 5", msgs[1].Content)
	require.Equal(t, "msg 6", msgs[2].Content)

	got, err := repo.ByConversationID(ctx, c.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 250, got.TokenCount)

	// Appending after compression continues past the highest surviving seq.
	next := &Message{Role: RoleUser, Content: "msg 7", TokenCount: 10}
	require.NoError(t, repo.Append(ctx, c.ConversationID, next))
	require.Equal(t, 7, next.Seq)
}

func TestReplaceRangeRejectsInvertedRange(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	err := repo.ReplaceRange(context.Background(), "whatever", 5, 2, &Message{}, 0)
	require.Error(t, err)
}

func TestMessagesBeforePagesBackwards(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, err := repo.ActiveConversation(ctx, "t-paging", 11, "")
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		require.NoError(t, repo.Append(ctx, c.ConversationID, &Message{
			Role: RoleUser, Content: fmt.Sprintf("msg %d", i),
		}))
	}

	page, err := repo.MessagesBefore(ctx, c.ConversationID, 4, 0)
	require.NoError(t, err)
	require.Len(t, page, 4)
	require.Equal(t, 10, page[0].Seq)
	require.Equal(t, 7, page[3].Seq)

	page, err = repo.MessagesBefore(ctx, c.ConversationID, 4, 7)
	require.NoError(t, err)
	require.Len(t, page, 4)
	require.Equal(t, 6, page[0].Seq)
	require.Equal(t, 3, page[3].Seq)
}
