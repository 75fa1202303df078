package callbacks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatContext() (context.Context, chatmodel.ChatContext) {
	chatCtx := chatmodel.NewChatContext("chatid")
	ctx := chatmodel.WithChatContext(context.Background(), chatCtx)
	return ctx, chatCtx
}

func TestScratchpad_StartQuery_EndQuery(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	ctx, cctx := newTestChatContext()
	sp.StartQuery(ctx)
	cctx.NextQuery()

	q := sp.queries[cctx.GetChatID()]
	require.NotNil(t, q)
	q.stats.ToolCalls = 3
	q.stats.ToolCallsSucceeded = 2
	q.stats.ToolCallsFailed = 1
	q.stats.LLMCalls = 2
	q.llmCallsEnded = 1

	stats, buf := sp.EndQuery(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, "chatid", stats.ChatID)
	assert.Equal(t, cctx.GetQueryID(), stats.QueryID)
	assert.Equal(t, uint32(1), stats.LLMCallsFailed)

	out := string(buf)
	assert.Contains(t, out, "Query Started")
	assert.Contains(t, out, "Query Ended")
	assert.Contains(t, out, "Tool calls: 3, Succeeded: 2, Failed: 1")
	assert.Contains(t, out, "LLM calls: 2, Failed: 1")

	_, ok := sp.queries[cctx.GetChatID()]
	assert.False(t, ok)

	// already ended
	s2, _ := sp.EndQuery(ctx)
	assert.Nil(t, s2)
}

func TestScratchpad_QueryIDOnEveryLine(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	ctx, cctx := newTestChatContext()
	previous := cctx.NextQuery()

	// the assistant starts the query ID after the session starts recording
	sp.StartQuery(ctx)
	current := cctx.NextQuery()
	require.NotEqual(t, previous, current)
	sp.OnQueryStart(ctx, &fakeAssistant{name: "A1"}, "List files")

	_, buf := sp.EndQuery(ctx)
	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "*** Query Started ***")
	assert.Contains(t, lines[1], "A1 Query: List files")
	for _, line := range lines {
		assert.Contains(t, line, " chatid."+current+" ")
		assert.NotContains(t, line, previous)
	}
}

func TestScratchpad_getQuery_nil(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getQuery(context.Background()))

	ctx, _ := newTestChatContext()
	assert.Nil(t, sp.getQuery(ctx))

	// no chat context, nothing is started
	sp.StartQuery(context.Background())
	assert.Empty(t, sp.queries)
}

func TestScratchpad_OnCallbacks(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeVerbose)
	ctx, cctx := newTestChatContext()
	sp.StartQuery(ctx)
	cctx.NextQuery()

	a := &fakeAssistant{name: "A1"}
	m := &fakeModel{name: "M1"}

	sp.OnQueryStart(ctx, a, "List files")
	sp.OnStateChange(ctx, a, assistants.StateIdle, assistants.StateAwaitingCompletion)
	sp.OnLLMCallStart(ctx, a, m, testMessages)
	sp.OnLLMCallEnd(ctx, a, m, testResp)
	sp.OnToolStart(ctx, "list_dir", testArgs)
	sp.OnToolEnd(ctx, "list_dir", testArgs, testResult)
	sp.OnToolStart(ctx, "fail", testArgs)
	sp.OnToolError(ctx, "fail", testArgs, chatmodel.NewToolExecutionError("fail", errors.New("disk is full")))
	sp.OnLLMCallStart(ctx, a, m, testMessages)
	sp.OnQueryError(ctx, a, "List files", chatmodel.NewCompletionError(errors.New("overloaded")))
	sp.OnQueryEnd(ctx, a, "List files", &assistants.Answer{
		Text:       "Found 2 files",
		Output:     []string{"[Called tool list_dir with args {}]", "Found 2 files"},
		Transcript: testMessages,
	})

	stats, output := sp.EndQuery(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(2), stats.LLMCalls)
	assert.Equal(t, uint32(1), stats.LLMCallsFailed)
	assert.Equal(t, uint32(2), stats.TotalMessages)
	assert.Equal(t, uint64(10), stats.LLMInputTokens)
	assert.Equal(t, uint64(5), stats.LLMOutputTokens)
	assert.Equal(t, uint64(15), stats.LLMTotalTokens)
	assert.Equal(t, uint32(2), stats.ToolCalls)
	assert.Equal(t, uint32(1), stats.ToolCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolCallsFailed)
	assert.Equal(t, uint32(1), stats.StateTransitions)
	assert.True(t, stats.QueryFailed)
	assert.Equal(t, chatmodel.KindCompletion, stats.QueryFailureKind)
	assert.Equal(t, 2, stats.AnswerOutputEntries)
	assert.NotZero(t, stats.LLMBytesOut)
	assert.NotZero(t, stats.LLMBytesIn)

	out := string(output)
	assert.Contains(t, out, "A1 Query: List files")
	assert.Contains(t, out, "State: idle -> awaiting_completion")
	assert.Contains(t, out, "LLM Call End")
	assert.Contains(t, out, "Tool use: ToolUse: t1 (list_dir)")
	assert.Contains(t, out, "list_dir *** Tool Start ***")
	assert.Contains(t, out, `list_dir Args: {"path":"/tmp"}`)
	assert.Contains(t, out, "list_dir Output: Found 2 files")
	assert.Contains(t, out, "fail *** Tool Error ***")
	assert.Contains(t, out, "Answer: Found 2 files")
	assert.Contains(t, out, "[0] user:")
	assert.Contains(t, out, "Transcript:\nUSER: List files")

	// events after the end are ignored
	assert.NotPanics(t, func() {
		fireAll(sp)
	})
}

func Test_query_print_format(t *testing.T) {
	_, chatCtx := newTestChatContext()
	chatCtx.NextQuery()
	q := &query{chatCtx: chatCtx}
	oldTimeFn := TimeNowFn
	TimeNowFn = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { TimeNowFn = oldTimeFn }()

	q.print("hello", "again")
	lines := strings.Split(q.w.String(), "\n")
	require.NotEmpty(t, lines[0])
	assert.Equal(t, "2024-01-01 12:00:00 "+chatCtx.GetChatID()+"."+chatCtx.GetQueryID()+" hello again", lines[0])
}
