// Package tools adapts retrieval capabilities into callables the model can
// request by name.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"courserag/internal/llm"
	"courserag/internal/models"
)

// Result is the outcome of one tool execution. Text is what the model sees;
// Sources are the citations collected for the final answer. Errors are
// rendered into Text so a failing tool call never aborts the conversation.
type Result struct {
	Text    string
	Sources []models.Source
	IsError bool
}

// Tool is a single capability the model can invoke.
type Tool interface {
	Describe() llm.ToolSpec
	Execute(ctx context.Context, args map[string]any) Result
}

// Registry holds the available tools in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry registers the given tools. Registration order is preserved in
// Specs so the model sees a stable tool list.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		name := t.Describe().Name
		if _, exists := r.tools[name]; !exists {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

// Specs returns the tool specifications for the model request.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Describe())
	}
	return specs
}

// Execute runs the named tool. An unknown name yields an error-tagged result,
// not a failure: the model may hallucinate tool names and the conversation
// must continue.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	tool, ok := r.tools[name]
	if !ok {
		slog.Warn("unknown tool requested", "tool", name)
		return Result{Text: fmt.Sprintf("Tool '%s' not found", name), IsError: true}
	}
	return tool.Execute(ctx, args)
}

// stringArg extracts an optional string argument.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg extracts an optional integer argument. JSON decoding delivers
// numbers as float64, so both forms are accepted.
func intArg(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	}
	return nil
}
