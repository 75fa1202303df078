package assistants

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/pkg/llmutils"
	"github.com/effective-security/mcpclient/pkg/metricskey"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/xlog"
)

// Answer is the result of the query
type Answer struct {
	// Text is the Output joined by new line
	Text string
	// Output is the list of the text blocks and tool call traces, in order
	Output []string
	// Transcript is the messages exchanged with the LLM during the query
	Transcript []llms.Message
	// ToolCalls are the tools executed during the query, in order
	ToolCalls []ToolCall
}

// ToolCall is the record of a tool executed during the query
type ToolCall struct {
	ID     string
	Name   string
	Args   json.RawMessage
	Result *tools.Result
}

// Assistant answers the queries using the LLM and the tools of the registry.
//
// Every query starts with a fresh transcript and a fresh tool catalog,
// nothing is kept between queries.
type Assistant struct {
	LLM      llms.Model
	Registry tools.Registry

	cfg *Config
	// lock serializes queries
	lock sync.Mutex
}

var _ IAssistant = (*Assistant)(nil)

// NewAssistant returns the Assistant
func NewAssistant(llmModel llms.Model, registry tools.Registry, options ...Option) *Assistant {
	return &Assistant{
		LLM:      llmModel,
		Registry: registry,
		cfg:      NewConfig(options...),
	}
}

// Name returns the name of the Assistant.
func (a *Assistant) Name() string {
	return a.cfg.Name
}

// Config returns the Assistant config
func (a *Assistant) Config() *Config {
	return a.cfg
}

// ProcessQuery answers the query.
// Errors do not cross this boundary: a failure is returned as
// a single line describing it, and the next query is not affected.
func (a *Assistant) ProcessQuery(ctx context.Context, query string) string {
	answer, err := a.Run(ctx, query)
	if err != nil {
		return chatmodel.Describe(err)
	}
	return answer.Text
}

// Run answers the query.
// The returned error is one of ErrInputValidation, ErrProviderUnavailable,
// *ToolExecutionError or *CompletionError, see chatmodel.Kind.
func (a *Assistant) Run(ctx context.Context, query string) (*Answer, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	started := time.Now()
	defer metricskey.PerfQuery.MeasureSince(started, a.Name())

	if chatCtx := chatmodel.GetChatContext(ctx); chatCtx != nil {
		chatCtx.NextQuery()
	}

	callback := a.cfg.CallbackHandler
	if callback != nil {
		callback.OnQueryStart(ctx, a, query)
	}

	r := &queryRun{
		a:        a,
		cfg:      a.cfg,
		callback: callback,
		state:    StateIdle,
	}
	answer, err := r.run(ctx, query)
	if err != nil {
		kind := chatmodel.Kind(err)
		metricskey.StatsQueriesFailed.IncrCounter(1, a.Name(), string(kind))
		logger.ContextKV(ctx, xlog.ERROR,
			"assistant", a.Name(),
			"chat_id", chatmodel.GetChatID(ctx),
			"query_id", chatmodel.GetQueryID(ctx),
			"kind", kind,
			"err", err.Error(),
		)
		if callback != nil {
			callback.OnQueryError(ctx, a, query, err)
		}
		return nil, err
	}

	metricskey.StatsQueriesSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnQueryEnd(ctx, a, query, answer)
	}
	return answer, nil
}

// queryRun is the state of a single query
type queryRun struct {
	a        *Assistant
	cfg      *Config
	callback Callback

	state      State
	transcript llms.Transcript
	catalog    []llms.Tool
	output     []string
	toolCalls  []ToolCall
}

func (r *queryRun) setState(ctx context.Context, to State) {
	if r.state == to {
		return
	}
	from := r.state
	r.state = to
	if r.callback != nil {
		r.callback.OnStateChange(ctx, r.a, from, to)
	}
}

func (r *queryRun) run(ctx context.Context, query string) (*Answer, error) {
	// the run always ends idle, on success or failure
	defer r.setState(ctx, StateIdle)

	if strings.TrimSpace(query) == "" {
		return nil, errors.WithMessage(chatmodel.ErrInputValidation, "query is empty")
	}

	r.transcript.Append(llms.MessageFromTextParts(llms.RoleUser, query))

	descriptors, err := r.a.Registry.ListTools(ctx)
	if err != nil {
		err = errors.WithMessage(err, "failed to list tools")
		if ctx.Err() == nil && !errors.Is(err, chatmodel.ErrProviderUnavailable) {
			err = errors.Mark(err, chatmodel.ErrProviderUnavailable)
		}
		return nil, err
	}
	// the catalog does not change for the rest of the query
	r.catalog = tools.ToLLMTools(descriptors)

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", r.a.Name(),
		"query_id", chatmodel.GetQueryID(ctx),
		"query", llmutils.Preview(query, 64),
		"tools", tools.Names(descriptors),
	)

	resp, err := r.complete(ctx, r.catalog)
	if err != nil {
		return nil, err
	}

	r.setState(ctx, StateInspectingBlocks)
	for _, block := range resp.Blocks {
		switch block.Type {
		case llms.BlockText:
			r.output = append(r.output, block.Text)
		case llms.BlockToolUse:
			if block.ToolUse == nil {
				continue
			}
			if err = r.dispatch(ctx, block); err != nil {
				return nil, err
			}
			r.setState(ctx, StateInspectingBlocks)
		default:
			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", r.a.Name(),
				"status", "skipped_block",
				"type", block.Type,
			)
		}
	}

	return &Answer{
		Text:       strings.Join(r.output, "\n"),
		Output:     r.output,
		Transcript: r.transcript.Messages(),
		ToolCalls:  r.toolCalls,
	}, nil
}

// dispatch invokes the tool requested by the block, feeds the result back
// to the LLM and adds the first text of the follow-up to the output.
func (r *queryRun) dispatch(ctx context.Context, block llms.ContentBlock) error {
	r.setState(ctx, StateDispatchingTool)

	tu := block.ToolUse
	args := tu.Input
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if r.callback != nil {
		r.callback.OnToolStart(ctx, tu.Name, args)
	}

	result, err := r.a.Registry.Invoke(ctx, tu.Name, args)
	if err != nil {
		if r.callback != nil {
			r.callback.OnToolError(ctx, tu.Name, args, err)
		}
		var toolErr *chatmodel.ToolExecutionError
		if !errors.As(err, &toolErr) && !errors.Is(err, chatmodel.ErrProviderUnavailable) {
			err = chatmodel.NewToolExecutionError(tu.Name, err)
		}
		return err
	}
	if result == nil {
		result = &tools.Result{ToolName: tu.Name}
	}

	if r.callback != nil {
		r.callback.OnToolEnd(ctx, tu.Name, args, result)
	}

	r.toolCalls = append(r.toolCalls, ToolCall{
		ID:     tu.ID,
		Name:   tu.Name,
		Args:   args,
		Result: result,
	})
	r.output = append(r.output, fmt.Sprintf("[Called tool %s with args %s]", tu.Name, llmutils.CompactJSON(args)))

	if block.Text != "" {
		r.transcript.Append(llms.MessageFromTextParts(llms.RoleAssistant, block.Text))
	}
	r.transcript.Append(result.Message())

	// the follow-up is not offered the tools
	followUp, err := r.complete(ctx, nil)
	if err != nil {
		return err
	}

	if text, ok := followUp.FirstText(); ok {
		r.output = append(r.output, text)
	} else {
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", r.a.Name(),
			"status", "no_text_in_follow_up",
			"tool", tu.Name,
		)
	}

	// only one level of tool use is performed per block
	for _, skipped := range followUp.ToolUses() {
		metricskey.StatsToolCallsSkipped.IncrCounter(1, skipped.Name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", r.a.Name(),
			"status", "skipped_tool_use",
			"tool", skipped.Name,
			"after", tu.Name,
		)
	}
	return nil
}

// complete calls the LLM with the current transcript
func (r *queryRun) complete(ctx context.Context, catalog []llms.Tool) (*llms.ContentResponse, error) {
	r.setState(ctx, StateAwaitingCompletion)

	llm := r.a.LLM
	assistantName := r.a.Name()
	modelName := llm.GetName()
	messages := r.transcript.Messages()

	if r.callback != nil {
		r.callback.OnLLMCallStart(ctx, r.a, llm, messages)
	}

	bytesSent := llmutils.CountMessagesContentSize(messages)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), assistantName, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

	started := time.Now()
	resp, err := llm.GenerateContent(ctx, messages, r.cfg.GetCallOptions(catalog)...)
	metricskey.PerfLLMCall.MeasureSince(started, assistantName, modelName)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, assistantName, modelName)
		return nil, chatmodel.NewCompletionError(err)
	}

	if r.callback != nil {
		r.callback.OnLLMCallEnd(ctx, r.a, llm, resp)
	}

	bytesReceived := llmutils.CountResponseContentSize(resp)
	metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), assistantName, modelName)

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), assistantName, modelName)

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"model", modelName,
		"messages", len(messages),
		"tools", len(catalog),
		"blocks", len(resp.Blocks),
		"stop_reason", resp.StopReason,
	)
	return resp, nil
}
