package callbacks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/pkg/llmutils"
	"github.com/effective-security/mcpclient/tools"
)

// ensure Scratchpad implements assistants.Callback
var _ assistants.Callback = (*Scratchpad)(nil)

var TimeNowFn = time.Now

// QueryStats is the summary of a single query
type QueryStats struct {
	ChatID  string
	QueryID string

	Duration            time.Duration
	TotalMessages       uint32
	LLMCalls            uint32
	LLMCallsFailed      uint32
	LLMBytesOut         uint64
	LLMBytesIn          uint64
	LLMInputTokens      uint64
	LLMOutputTokens     uint64
	LLMTotalTokens      uint64
	ToolCalls           uint32
	ToolCallsSucceeded  uint32
	ToolCallsFailed     uint32
	StateTransitions    uint32
	QueryFailed         bool
	QueryFailureKind    chatmodel.ErrorKind
	AnswerOutputEntries int
}

// Scratchpad records the events of the queries in flight, per chat.
// The query is recorded between StartQuery and EndQuery,
// events of the chats that were not started are ignored.
type Scratchpad struct {
	queries map[string]*query
	mode    Mode
	lock    sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		queries: make(map[string]*query),
		mode:    mode,
	}
}

// StartQuery starts recording for the chat in the context
func (l *Scratchpad) StartQuery(ctx context.Context) {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	q := &query{
		stats: QueryStats{
			ChatID: chatCtx.GetChatID(),
		},
		chatCtx: chatCtx,
		started: TimeNowFn(),
	}
	l.queries[chatCtx.GetChatID()] = q
}

// EndQuery stops recording for the chat in the context,
// and returns the stats and the recorded log.
func (l *Scratchpad) EndQuery(ctx context.Context) (*QueryStats, []byte) {
	q := l.getQuery(ctx)
	if q == nil {
		return nil, nil
	}

	stats := q.stats
	stats.QueryID = q.chatCtx.GetQueryID()
	stats.Duration = TimeNowFn().Sub(q.started)
	stats.LLMCallsFailed = stats.LLMCalls - atomic.LoadUint32(&q.llmCallsEnded)

	q.print(fmt.Sprintf("Tool calls: %d, Succeeded: %d, Failed: %d",
		stats.ToolCalls,
		stats.ToolCallsSucceeded,
		stats.ToolCallsFailed,
	))
	q.print(fmt.Sprintf("LLM calls: %d, Failed: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.LLMCalls,
		stats.LLMCallsFailed,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	q.print(fmt.Sprintf("*** Query Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.queries, q.chatCtx.GetChatID())
	l.lock.Unlock()

	return &stats, q.w.Bytes()
}

func (l *Scratchpad) getQuery(ctx context.Context) *query {
	chatCtx := chatmodel.GetChatContext(ctx)
	if chatCtx == nil {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.queries[chatCtx.GetChatID()]
}

func (l *Scratchpad) OnQueryStart(ctx context.Context, a assistants.IAssistant, input string) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	q.print(a.Name(), "Query:", llmutils.Preview(input, 256))
}

func (l *Scratchpad) OnQueryEnd(ctx context.Context, a assistants.IAssistant, input string, answer *assistants.Answer) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	q.lock.Lock()
	q.stats.AnswerOutputEntries = len(answer.Output)
	q.lock.Unlock()

	if l.mode == ModeVerbose {
		q.print(a.Name(), "Answer:", answer.Text)
		var transcript strings.Builder
		llmutils.PrintMessages(&transcript, answer.Transcript)
		q.print(a.Name(), "Transcript:\n"+transcript.String())
	}
	q.print(a.Name(), "*** Query Succeeded ***")
}

func (l *Scratchpad) OnQueryError(ctx context.Context, a assistants.IAssistant, input string, err error) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	kind := chatmodel.Kind(err)
	q.lock.Lock()
	q.stats.QueryFailed = true
	q.stats.QueryFailureKind = kind
	q.lock.Unlock()

	q.print(a.Name(), "*** Error ***", string(kind), err.Error())
}

func (l *Scratchpad) OnLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}

	count := uint32(len(messages))
	atomic.AddUint64(&q.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	atomic.AddUint32(&q.stats.LLMCalls, 1)
	atomic.AddUint32(&q.stats.TotalMessages, count)

	q.print(a.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		q.print(a.Name(), printMessages(messages))
	}
}

func (l *Scratchpad) OnLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}

	atomic.AddUint32(&q.llmCallsEnded, 1)
	atomic.AddUint64(&q.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&q.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&q.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&q.stats.LLMTotalTokens, uint64(tokensTotal))

	q.print(a.Name(), "*** LLM Call End ***", fmt.Sprintf("%s model, %d blocks, %d input tokens, %d output tokens, %d total tokens",
		llm.GetName(), len(resp.Blocks), tokensIn, tokensOut, tokensTotal))
	if l.mode == ModeVerbose {
		for _, block := range resp.Blocks {
			switch block.Type {
			case llms.BlockText:
				q.print(a.Name(), "Text:", block.Text)
			case llms.BlockToolUse:
				if block.ToolUse != nil {
					q.print(a.Name(), "Tool use:", block.ToolUse.String())
				}
			}
		}
	}
}

func (l *Scratchpad) OnStateChange(ctx context.Context, a assistants.IAssistant, from, to assistants.State) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	atomic.AddUint32(&q.stats.StateTransitions, 1)
	if l.mode == ModeVerbose {
		q.print(a.Name(), "State:", from.String(), "->", to.String())
	}
}

func (l *Scratchpad) OnToolStart(ctx context.Context, name string, args json.RawMessage) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	atomic.AddUint32(&q.stats.ToolCalls, 1)
	q.print(name, "*** Tool Start ***")
	q.print(name, "Args:", llmutils.CompactJSON(args))
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *tools.Result) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	atomic.AddUint32(&q.stats.ToolCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		q.print(name, "Output:", result.Text())
	}
	q.print(name, "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, name string, args json.RawMessage, err error) {
	q := l.getQuery(ctx)
	if q == nil {
		return
	}
	atomic.AddUint32(&q.stats.ToolCallsFailed, 1)
	q.print(name, "*** Tool Error ***", err.Error())
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		binaryParts := 0
		toolResultParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.BinaryContent:
				binaryParts++
			case llms.ToolResultContent:
				toolResultParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d binaries, %d tool results\n", textParts, binaryParts, toolResultParts)
	}
	return buf.String()
}

type query struct {
	chatCtx chatmodel.ChatContext
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   QueryStats
	// opened is set once the header line is written
	opened bool

	llmCallsEnded uint32
}

// print writes the entries to the query's output.
// The entries are written in the following format:
// [timestamp chatID.queryID] entry entry\n
// The first entry of the query is preceded by the header line,
// by then the assistant has started the query ID.
func (q *query) print(entries ...string) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if !q.opened {
		q.opened = true
		q.writeLine(q.started, "*** Query Started ***")
	}
	q.writeLine(TimeNowFn(), entries...)
}

func (q *query) writeLine(at time.Time, entries ...string) {
	_, _ = q.w.WriteString(at.Format("2006-01-02 15:04:05"))
	_, _ = q.w.WriteString(" ")
	_, _ = q.w.WriteString(q.chatCtx.GetChatID())
	_, _ = q.w.WriteString(".")
	_, _ = q.w.WriteString(q.chatCtx.GetQueryID())
	_, _ = q.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = q.w.WriteString(" ")
		}
		_, _ = q.w.WriteString(entry)
	}
	_, _ = q.w.WriteString("\n")
}
