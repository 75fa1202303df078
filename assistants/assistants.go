package assistants

import (
	"context"

	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpclient", "assistants")

// IAssistant answers user queries.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Run answers the query, returning the error as is.
	Run(ctx context.Context, query string) (*Answer, error)
	// ProcessQuery answers the query, any failure is described in the returned text.
	ProcessQuery(ctx context.Context, query string) string
}

// Callback receives notifications about the query processing.
// The events are delivered synchronously, in order.
type Callback interface {
	tools.Callback
	OnQueryStart(ctx context.Context, a IAssistant, query string)
	OnQueryEnd(ctx context.Context, a IAssistant, query string, answer *Answer)
	OnQueryError(ctx context.Context, a IAssistant, query string, err error)
	OnLLMCallStart(ctx context.Context, a IAssistant, llm llms.Model, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, a IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnStateChange(ctx context.Context, a IAssistant, from, to State)
}

// State of the query processing
type State string

const (
	// StateIdle is the state before and after the query
	StateIdle State = "idle"
	// StateAwaitingCompletion is the state of waiting for the LLM response
	StateAwaitingCompletion State = "awaiting_completion"
	// StateInspectingBlocks is the state of walking the blocks of the response
	StateInspectingBlocks State = "inspecting_blocks"
	// StateDispatchingTool is the state of waiting for the tool result
	StateDispatchingTool State = "dispatching_tool"
)

func (s State) String() string {
	return string(s)
}
