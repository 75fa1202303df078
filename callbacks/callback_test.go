package callbacks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
)

type fakeAssistant struct{ name string }

func (a *fakeAssistant) Name() string { return a.name }
func (a *fakeAssistant) Run(context.Context, string) (*assistants.Answer, error) {
	return &assistants.Answer{}, nil
}
func (a *fakeAssistant) ProcessQuery(context.Context, string) string { return "" }

type fakeModel struct{ name string }

func (m *fakeModel) GetName() string                    { return m.name }
func (m *fakeModel) GetProviderType() llms.ProviderType { return llms.ProviderAnthropic }
func (m *fakeModel) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

var (
	testArgs   = json.RawMessage(`{ "path": "/tmp" }`)
	testResult = &tools.Result{
		ToolName: "list_dir",
		Content:  []tools.Content{tools.TextContent("Found 2 files")},
	}
	testResp = &llms.ContentResponse{
		Blocks: []llms.ContentBlock{
			llms.TextBlock("Listing"),
			llms.ToolUseBlock("t1", "list_dir", testArgs),
		},
		Usage: llms.Usage{InputTokens: 10, OutputTokens: 5},
	}
	testMessages = []llms.Message{
		llms.MessageFromTextParts(llms.RoleUser, "List files"),
	}
)

func fireAll(cb assistants.Callback) {
	ctx := context.Background()
	a := &fakeAssistant{name: "A1"}
	m := &fakeModel{name: "M1"}

	cb.OnQueryStart(ctx, a, "List files")
	cb.OnStateChange(ctx, a, assistants.StateIdle, assistants.StateAwaitingCompletion)
	cb.OnLLMCallStart(ctx, a, m, testMessages)
	cb.OnLLMCallEnd(ctx, a, m, testResp)
	cb.OnToolStart(ctx, "list_dir", testArgs)
	cb.OnToolEnd(ctx, "list_dir", testArgs, testResult)
	cb.OnToolError(ctx, "fail", testArgs, errors.New("disk is full"))
	cb.OnQueryError(ctx, a, "List files", errors.New("boom"))
	cb.OnQueryEnd(ctx, a, "List files", &assistants.Answer{
		Text:      "Found 2 files",
		Output:    []string{"Found 2 files"},
		ToolCalls: []assistants.ToolCall{{Name: "list_dir"}},
	})
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fireAll(NewPrinter(&buf, ModeDefault))

	out := buf.String()
	assert.Equal(t,
		"Tool name: list_dir\n"+
			"Tool args: {\"path\":\"/tmp\"}\n"+
			"Tool error: fail: disk is full\n"+
			"Query Error: A1: boom\n",
		out)

	buf.Reset()
	fireAll(NewPrinter(&buf, ModeVerbose))
	out = buf.String()
	assert.Contains(t, out, "Query Start: A1")
	assert.Contains(t, out, "LLM Call: A1: M1 model, 1 messages")
	assert.Contains(t, out, "LLM Call End: A1: M1 model, 2 blocks, 15 tokens")
	assert.Contains(t, out, "Tool name: list_dir")
	assert.Contains(t, out, "Tool result: Found 2 files")
	assert.Contains(t, out, "Query End: A1: 1 tool calls")
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var buf1, buf2 bytes.Buffer
	f := NewFanout(NewPrinter(&buf1, ModeDefault))
	f.Add(NewPrinter(&buf2, ModeDefault))
	f.Add(NewNoop())
	f.Add(NewPackageLogger(xlog.NewPackageLogger("github.com/effective-security/mcpclient", "callbacks_test")))

	fireAll(f)

	assert.NotEmpty(t, buf1.String())
	assert.Equal(t, buf1.String(), buf2.String())
}

func TestNoop(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		fireAll(NewNoop())
	})
}

func TestPackageLogger(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		fireAll(NewPackageLogger(xlog.NewPackageLogger("github.com/effective-security/mcpclient", "callbacks_test")))
	})
}
