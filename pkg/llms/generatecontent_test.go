package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/stretchr/testify/assert"
)

func TestTextParts(t *testing.T) {
	t.Parallel()
	type args struct {
		role  llms.Role
		parts []string
	}
	tests := []struct {
		name string
		args args
		want llms.Message
	}{
		{
			"basics",
			args{
				llms.RoleUser,
				[]string{"a", "b", "c"},
			},
			llms.MessageFromParts(llms.RoleUser, llms.TextPart("a"), llms.TextPart("b"), llms.TextPart("c")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mc := llms.MessageFromTextParts(tt.args.role, tt.args.parts...)
			assert.Equal(t, tt.want, mc)
		})
	}
}

func TestMessage_GetContent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     llms.Message
		content string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleUser, "a", "b", "c"),
			"a\nb\nc\n",
		},
		{
			"binary",
			llms.MessageFromParts(llms.RoleUser, llms.BinaryPart("image/png", []byte{0x00, 0x01, 0x02})),
			"Binary: image/png\nAAEC\n",
		},
		{
			"tool result",
			llms.MessageFromToolResult("list_dir", llms.TextPart("a.txt"), llms.TextPart("b.txt")),
			"Tool Result: list_dir\na.txt\nb.txt\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.content, tt.msg.GetContent())
		})
	}
}

func TestContentResponse(t *testing.T) {
	t.Parallel()

	var nilResp *llms.ContentResponse
	_, ok := nilResp.FirstText()
	assert.False(t, ok)
	assert.Empty(t, nilResp.ToolUses())

	resp := &llms.ContentResponse{
		Blocks: []llms.ContentBlock{
			llms.ToolUseBlock("t1", "add", json.RawMessage(`{"a":2,"b":3}`)),
			llms.TextBlock("first"),
			llms.TextBlock("second"),
			llms.ToolUseBlock("t2", "list_dir", json.RawMessage(`{}`)),
		},
	}
	text, ok := resp.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	uses := resp.ToolUses()
	if assert.Len(t, uses, 2) {
		assert.Equal(t, "add", uses[0].Name)
		assert.Equal(t, "list_dir", uses[1].Name)
		assert.Equal(t, `ToolUse: t1 (add), input: {"a":2,"b":3}`, uses[0].String())
	}

	empty := &llms.ContentResponse{Blocks: []llms.ContentBlock{llms.ToolUseBlock("t1", "add", nil)}}
	_, ok = empty.FirstText()
	assert.False(t, ok)
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	var tr llms.Transcript
	tr.Append(llms.MessageFromTextParts(llms.RoleUser, "hi"))
	tr.Append(llms.MessageFromTextParts(llms.RoleAssistant, "hello"))
	assert.Len(t, tr, 2)

	msgs := tr.Messages()
	msgs[0] = llms.MessageFromTextParts(llms.RoleUser, "changed")
	assert.Equal(t, "hi\n", tr[0].GetContent())
	assert.Equal(t, llms.RoleAssistant, tr[1].Role)
}
