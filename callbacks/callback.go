package callbacks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/pkg/llmutils"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ assistants.Callback = (*Noop)(nil)
	_ tools.Callback      = (*Noop)(nil)
	_ assistants.Callback = (*Printer)(nil)
	_ tools.Callback      = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ tools.Callback      = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ tools.Callback      = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnQueryStart(ctx context.Context, a assistants.IAssistant, query string) {
	for _, callback := range l.callbacks {
		callback.OnQueryStart(ctx, a, query)
	}
}

func (l *Fanout) OnQueryEnd(ctx context.Context, a assistants.IAssistant, query string, answer *assistants.Answer) {
	for _, callback := range l.callbacks {
		callback.OnQueryEnd(ctx, a, query, answer)
	}
}

func (l *Fanout) OnQueryError(ctx context.Context, a assistants.IAssistant, query string, err error) {
	for _, callback := range l.callbacks {
		callback.OnQueryError(ctx, a, query, err)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, a, llm, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, a, llm, resp)
	}
}

func (l *Fanout) OnStateChange(ctx context.Context, a assistants.IAssistant, from, to assistants.State) {
	for _, callback := range l.callbacks {
		callback.OnStateChange(ctx, a, from, to)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, name string, args json.RawMessage) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, name, args)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *tools.Result) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, name, args, result)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, name string, args json.RawMessage, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, name, args, err)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnQueryStart(ctx context.Context, a assistants.IAssistant, query string) {}
func (l *Noop) OnQueryEnd(ctx context.Context, a assistants.IAssistant, query string, answer *assistants.Answer) {
}
func (l *Noop) OnQueryError(ctx context.Context, a assistants.IAssistant, query string, err error) {}
func (l *Noop) OnLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
}
func (l *Noop) OnLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
}
func (l *Noop) OnStateChange(ctx context.Context, a assistants.IAssistant, from, to assistants.State) {
}
func (l *Noop) OnToolStart(ctx context.Context, name string, args json.RawMessage) {}
func (l *Noop) OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *tools.Result) {
}
func (l *Noop) OnToolError(ctx context.Context, name string, args json.RawMessage, err error) {}

// Printer is a callback handler that prints to the Writer.
//
// In the default mode only the tool calls are printed,
// the verbose mode adds the LLM calls and the tool results.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnQueryStart(ctx context.Context, a assistants.IAssistant, query string) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query Start: %s\n", a.Name())
}

func (l *Printer) OnQueryEnd(ctx context.Context, a assistants.IAssistant, query string, answer *assistants.Answer) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query End: %s: %d tool calls\n", a.Name(), len(answer.ToolCalls))
}

func (l *Printer) OnQueryError(ctx context.Context, a assistants.IAssistant, query string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Query Error: %s: %s\n", a.Name(), err.Error())
}

func (l *Printer) OnLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s: %s model, %d messages\n", a.Name(), llm.GetName(), len(messages))
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	_, _, total := llmutils.CountTokens(resp)
	fmt.Fprintf(l.Out, "LLM Call End: %s: %s model, %d blocks, %d tokens\n", a.Name(), llm.GetName(), len(resp.Blocks), total)
}

func (l *Printer) OnStateChange(ctx context.Context, a assistants.IAssistant, from, to assistants.State) {}

func (l *Printer) OnToolStart(ctx context.Context, name string, args json.RawMessage) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool name: %s\n", name)
	fmt.Fprintf(l.Out, "Tool args: %s\n", llmutils.CompactJSON(args))
}

func (l *Printer) OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *tools.Result) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool result: %s\n", llmutils.Preview(result.Text(), 256))
}

func (l *Printer) OnToolError(ctx context.Context, name string, args json.RawMessage, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool error: %s: %s\n", name, err.Error())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnQueryStart(ctx context.Context, a assistants.IAssistant, query string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_start",
		"assistant", a.Name(),
		"query", query,
	)
}

func (l *PackageLogger) OnQueryEnd(ctx context.Context, a assistants.IAssistant, query string, answer *assistants.Answer) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_end",
		"assistant", a.Name(),
		"tool_calls", len(answer.ToolCalls),
		"output", len(answer.Output),
	)
}

func (l *PackageLogger) OnQueryError(ctx context.Context, a assistants.IAssistant, query string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "query_error",
		"assistant", a.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"blocks", len(resp.Blocks),
		"stop_reason", resp.StopReason,
	)
}

func (l *PackageLogger) OnStateChange(ctx context.Context, a assistants.IAssistant, from, to assistants.State) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "state_change",
		"assistant", a.Name(),
		"from", from,
		"to", to,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, name string, args json.RawMessage) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", name,
		"args", llmutils.CompactJSON(args),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *tools.Result) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", name,
		"output", llmutils.Preview(result.Text(), 256),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, name string, args json.RawMessage, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", name,
		"err", err.Error(),
	)
}
