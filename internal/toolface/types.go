// Package toolface exposes docmind's eight tool operations behind a single
// dispatch table shared by both transports (MCP stdio and streamable
// HTTP, see internal/mcpserver). Grounded on the teacher's
// internal/tools/types.go Registry and internal/tools/rag/tool.go handler
// shape.
package toolface

import (
	"context"
	"encoding/json"
)

// Operation is a single named tool: its JSON Schema and its handler.
type Operation interface {
	Name() string
	Description() string
	JSONSchema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (any, error)
}

// Registry holds every registered Operation and dispatches by name.
type Registry interface {
	Operations() []Operation
	Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error)
	Register(op Operation)
}

type registry struct {
	byName map[string]Operation
	order  []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() Registry {
	return &registry{byName: make(map[string]Operation)}
}

func (r *registry) Register(op Operation) {
	if _, exists := r.byName[op.Name()]; !exists {
		r.order = append(r.order, op.Name())
	}
	r.byName[op.Name()] = op
}

func (r *registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Dispatch calls the named operation and marshals its result, returning a
// {"ok": false, "error": ...} payload rather than propagating raw errors —
// nothing below the tool façade should raise through to a transport.
func (r *registry) Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error) {
	op, ok := r.byName[name]
	if !ok {
		return json.Marshal(map[string]any{"ok": false, "error": "unknown operation: " + name})
	}
	result, err := op.Call(ctx, raw)
	if err != nil {
		return json.Marshal(map[string]any{"ok": false, "error": err.Error()})
	}
	return json.Marshal(map[string]any{"ok": true, "result": result})
}
