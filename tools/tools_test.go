package tools_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/tools"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptors(t *testing.T) {
	t.Parallel()

	list := []tools.Descriptor{
		{Name: "list_dir", Description: "List files", InputSchema: &jsonschema.Schema{Type: "object"}},
		{Name: "add", Description: "Add numbers"},
	}

	assert.Equal(t, []string{"list_dir", "add"}, tools.Names(list))
	assert.Empty(t, tools.Names(nil))
	assert.Nil(t, tools.ToLLMTools(nil))

	llmTools := tools.ToLLMTools(list)
	require.Len(t, llmTools, 2)
	assert.Equal(t, "function", llmTools[0].Type)
	assert.Equal(t, "list_dir", llmTools[0].Function.Name)
	assert.Equal(t, "List files", llmTools[0].Function.Description)
	assert.Same(t, list[0].InputSchema, llmTools[0].Function.Parameters)
	assert.Nil(t, llmTools[1].Function.Parameters)
	assert.Nil(t, llmTools[1].Function.RawParameters)

	exp := `Tools:
    - Name: list_dir
      Description: List files
    - Name: add
      Description: Add numbers
`
	assert.Equal(t, exp, tools.GetDescriptions(list...))
}

func TestDescriptor_SchemaPassThrough(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{"type":"object","properties":{"path":{"type":["string","null"]}},"$defs":{"Item":{"type":"string"}}}`)
	d := tools.Descriptor{Name: "list_dir", Schema: raw}

	tool := d.ToLLMTool()
	require.NotNil(t, tool.Function)
	assert.Nil(t, tool.Function.Parameters)
	js, err := tool.Function.ParametersJSON()
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(js))
}

func TestResult(t *testing.T) {
	t.Parallel()

	var nilResult *tools.Result
	assert.Empty(t, nilResult.Text())
	assert.Empty(t, nilResult.Parts())
	assert.Equal(t, llms.RoleUser, nilResult.Message().Role)

	r := &tools.Result{
		ToolName: "list_dir",
		Content: []tools.Content{
			tools.TextContent("Found 2 files"),
			{Type: tools.ContentImage, MIMEType: "image/png", Data: []byte{1, 2}},
			{Type: tools.ContentResourceLink, URI: "file:///tmp/a.txt"},
			{Type: tools.ContentText},
			tools.TextContent("a.txt\nb.txt"),
		},
	}
	assert.Equal(t, "Found 2 files\na.txt\nb.txt", r.Text())

	parts := r.Parts()
	require.Len(t, parts, 4)
	assert.Equal(t, llms.TextPart("Found 2 files"), parts[0])
	assert.Equal(t, llms.BinaryPart("image/png", []byte{1, 2}), parts[1])
	assert.Equal(t, llms.TextPart("file:///tmp/a.txt"), parts[2])

	msg := r.Message()
	assert.Equal(t, llms.RoleUser, msg.Role)
	require.Len(t, msg.Parts, 1)
	tr, ok := msg.Parts[0].(llms.ToolResultContent)
	require.True(t, ok)
	assert.Equal(t, "list_dir", tr.ToolName)
	assert.Len(t, tr.Parts, 4)
}
