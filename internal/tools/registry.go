// Package tools implements the closed tool table the conversation loop
// exposes to the model: a fixed set of named operations with JSON-schema
// catalogs, validated arguments, and server-side tenant/customer identity.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/completion"
	"github.com/chatorder/platform/internal/store"
)

// Invocation carries the server-side identity for a tool call. The model
// never supplies these; trusting model-provided identifiers would let one
// conversation act on another tenant's data.
type Invocation struct {
	TenantID       string
	CustomerID     uint64
	ConversationID string
}

// handler decodes already-validated arguments and performs the operation.
// The returned value is JSON-marshaled into the tool result.
type handler func(ctx context.Context, inv Invocation, raw json.RawMessage) (any, error)

type tool struct {
	name        string
	description string
	parameters  map[string]any
	run         handler
}

// Deps are the collaborators tool handlers act through.
type Deps struct {
	Catalog Catalog
	Store   *store.Repo
	Log     *zap.Logger
}

// Registry is the closed lookup table. Tools are registered at construction;
// there is no dynamic dispatch.
type Registry struct {
	tools    map[string]tool
	validate *validator.Validate
	deps     Deps
}

func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		tools:    make(map[string]tool),
		validate: validator.New(),
		deps:     deps,
	}
	r.registerCatalogTools()
	r.registerOrderTools()
	r.registerCustomerTools()
	r.registerReviewTools()
	return r
}

func (r *Registry) add(t tool) {
	r.tools[t.name] = t
}

// Schemas returns the tool catalog for the completion request.
func (r *Registry) Schemas() []completion.ToolSchema {
	out := make([]completion.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, completion.ToolSchema{
			Name:        t.name,
			Description: t.description,
			Parameters:  t.parameters,
		})
	}
	return out
}

// Execute runs one tool call and always returns result text. Failures of any
// kind become a structured {"error": ...} result so the model can react
// conversationally; nothing here is allowed to crash the loop.
func (r *Registry) Execute(ctx context.Context, inv Invocation, name string, raw json.RawMessage) string {
	t, ok := r.tools[name]
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool %q", name))
	}

	out, err := t.run(ctx, inv, raw)
	if err != nil {
		r.deps.Log.Warn("tools: call failed",
			zap.String("tool", name),
			zap.String("tenant_id", inv.TenantID),
			zap.Error(err))
		return errorResult(err.Error())
	}

	b, err := json.Marshal(out)
	if err != nil {
		return errorResult("internal error encoding tool result")
	}
	return string(b)
}

// decode unmarshals and schema-validates arguments into a typed params
// struct. Malformed JSON from the model is an expected condition.
func (r *Registry) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	if err := r.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	return nil
}

func errorResult(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
