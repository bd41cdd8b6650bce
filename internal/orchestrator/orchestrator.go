// Package orchestrator drives the bounded multi-round tool-use conversation
// between the user, the model, and the retrieval tools.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"courserag/internal/llm"
	"courserag/internal/models"
	"courserag/internal/session"
	"courserag/internal/tools"
)

// systemPrompt instructs the model when to search and how to answer.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to search tools for course information.

Available Tools:
1. **search_course_content**: Search for specific content within course materials
   - Use for detailed questions about course topics, concepts, or specific lessons

2. **get_course_outline**: Retrieve complete course structure with all lessons
   - Use for questions about course structure, lesson lists, or what's covered in a course
   - Always returns: course title, course link, and complete list of lessons with numbers and titles

Tool Usage Guidelines:
- Use tools **only** for questions about specific course content or course structure
- **Multi-round capability**: You can make sequential tool calls; after receiving tool results, evaluate whether an additional search is needed
- Synthesize tool results into accurate, fact-based responses
- If a tool yields no results, state this clearly without offering alternatives

Response Protocol:
- **General knowledge questions**: Answer using existing knowledge without searching
- **Course-specific questions**: Use the appropriate tool first, then answer
- **No meta-commentary**: Provide direct answers only. Do not mention "based on the search results" or tool names.

All responses must be brief, educational, clear, and example-supported where that aids understanding. Provide only the direct answer to what was asked.`

const (
	// fallbackAnswer substitutes for a final model message with no text block.
	fallbackAnswer = "I apologize, but I couldn't generate a proper response."
	// errorAnswer is the fixed user-facing message for transport/API failures.
	// The raw cause is logged, never shown.
	errorAnswer = "I apologize, but I encountered an error while processing your request. Please try rephrasing your question or ask something else."
)

// Answer is the final result of one query: the text plus the sources cited
// by the searches that informed it.
type Answer struct {
	Text    string          `json:"answer"`
	Sources []models.Source `json:"sources"`
}

// Orchestrator runs the tool-use loop. Safe for concurrent use; per-query
// state lives on the stack, and the session store serializes same-session
// appends itself.
type Orchestrator struct {
	client    llm.Client
	registry  *tools.Registry
	sessions  *session.Store
	maxRounds int
	timeout   time.Duration
}

// New creates an orchestrator. maxRounds bounds the number of tool-bearing
// model calls per query; the configuration layer guarantees it is positive.
func New(client llm.Client, registry *tools.Registry, sessions *session.Store, maxRounds int, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		client:    client,
		registry:  registry,
		sessions:  sessions,
		maxRounds: maxRounds,
		timeout:   timeout,
	}
}

// Respond answers one user query, searching when the model asks for it. Every
// per-query failure is contained: the return value is always a presentable
// answer, never an error or a stack trace.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, query string) Answer {
	system := systemPrompt
	if history := o.sessions.Get(sessionID); len(history) > 0 {
		system += "\n\nPrevious conversation:\n" + renderHistory(history)
	}

	messages := []llm.Message{{Role: llm.RoleUser, Text: query}}
	specs := o.registry.Specs()

	resp, err := o.complete(ctx, system, messages, specs)
	if err != nil {
		return o.fail(sessionID, query, "initial model call failed", err)
	}

	var sources []models.Source

	for round := 1; resp.StopReason == llm.StopToolUse && round <= o.maxRounds; round++ {
		slog.Debug("executing tool round", "round", round, "calls", len(resp.ToolCalls))

		// The model's tool-request message and the combined results go into
		// history in the order the model asked for them.
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			res := o.registry.Execute(ctx, call.Name, call.Args)
			if res.IsError {
				slog.Warn("tool call failed", "tool", call.Name, "round", round)
			}
			results = append(results, llm.ToolResult{
				ID:      call.ID,
				Name:    call.Name,
				Content: res.Text,
				IsError: res.IsError,
			})
			sources = append(sources, res.Sources...)
		}
		messages = append(messages, llm.Message{Role: llm.RoleTool, ToolResults: results})

		if round == o.maxRounds {
			// Budget exhausted: one last call with tools disabled forces a
			// plain-text answer whatever the model would have preferred.
			slog.Debug("max tool rounds reached, forcing final response")
			resp, err = o.complete(ctx, system, messages, nil)
		} else {
			resp, err = o.complete(ctx, system, messages, specs)
		}
		if err != nil {
			return o.fail(sessionID, query, "model call failed mid-conversation", err)
		}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		slog.Warn("no text content in final model response")
		text = fallbackAnswer
	}

	o.sessions.Append(sessionID, query, text)
	return Answer{Text: text, Sources: sources}
}

// complete makes one model call under the per-call timeout.
func (o *Orchestrator) complete(ctx context.Context, system string, messages []llm.Message, specs []llm.ToolSpec) (*llm.Completion, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.client.Complete(cctx, llm.Request{
		System:   system,
		Messages: messages,
		Tools:    specs,
	})
}

// fail ends the conversation with the fixed apology. The round is not
// retried; the exchange is still recorded so a follow-up query has context.
func (o *Orchestrator) fail(sessionID, query, msg string, err error) Answer {
	slog.Error(msg, "error", err)
	o.sessions.Append(sessionID, query, errorAnswer)
	return Answer{Text: errorAnswer}
}

func renderHistory(turns []session.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case session.RoleUser:
			b.WriteString("User: ")
		case session.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
