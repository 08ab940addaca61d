package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

var (
	ErrToolNameEmpty  = errors.New("tool name is empty")
	ErrNilHandler     = errors.New("tool handler is nil")
	ErrDuplicateTool  = errors.New("tool is already registered")
	ErrToolNotFound   = errors.New("tool is not registered")
	ErrToolPanicked   = errors.New("tool panicked")
	ErrInvalidPayload = errors.New("tool arguments are not a JSON object")
)

const emptyResultText = "[tool execution completed]"

// Handler executes one tool call. Arguments are the raw JSON object sent by the model;
// the handler validates them itself.
type Handler func(ctx context.Context, arguments json.RawMessage) (string, error)

// Definition advertises a tool to the completion service.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is the text fed back to the model for one call. Err is kept for logs and metrics only.
type Result struct {
	CallID  string
	Name    string
	Content string
	Err     error
}

// Failed reports whether the call produced an error result.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Registry maps tool names to handlers and their schemas, in registration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler
	defs     map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		defs:     make(map[string]Definition),
	}
}

func (r *Registry) Register(def Definition, handler Handler) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return ErrToolNameEmpty
	}
	if handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, name)
	}
	if def.Parameters == nil {
		def.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	def.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	r.order = append(r.order, name)
	r.handlers[name] = handler
	r.defs[name] = def
	return nil
}

func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Definitions returns the registered schemas in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Invoke runs a call and never fails: unknown tools, bad arguments, handler errors
// and panics all become error text the model can read.
func (r *Registry) Invoke(ctx context.Context, call conversation.ToolCall) (result Result) {
	result = Result{CallID: call.ID, Name: call.Name}

	handler, ok := r.Resolve(call.Name)
	if !ok {
		return withError(result, fmt.Errorf("%w: %q", ErrToolNotFound, call.Name))
	}

	args, err := normalizeArguments(call.Arguments)
	if err != nil {
		return withError(result, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = withError(result, fmt.Errorf("%w: %v", ErrToolPanicked, rec))
		}
	}()

	content, err := handler(ctx, args)
	if err != nil {
		return withError(result, err)
	}
	if strings.TrimSpace(content) == "" {
		content = emptyResultText
	}
	result.Content = content
	return result
}

// ErrorText renders an error the way tool results report failures.
func ErrorText(err error) string {
	return "Error: " + err.Error()
}

func withError(result Result, err error) Result {
	result.Err = err
	result.Content = ErrorText(err)
	return result
}

func normalizeArguments(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}"), nil
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &object); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return json.RawMessage(trimmed), nil
}
