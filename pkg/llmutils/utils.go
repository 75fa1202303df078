package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/x/slices"
	"gopkg.in/yaml.v3"
)

// ToYAML returns the YAML representation of the value
func ToYAML(val any) string {
	js, _ := yaml.Marshal(val)
	return string(js)
}

// CompactJSON returns the single-line form of the JSON document,
// or the input as is if it is not a valid JSON.
func CompactJSON(js []byte) string {
	if len(js) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, js); err != nil {
		return string(js)
	}
	return buf.String()
}

// Preview returns the text limited to max characters, for logging.
func Preview(s string, max int) string {
	return slices.StringUpto(strings.ReplaceAll(s, "\n", " "), max)
}

// PrintMessages is a debugging helper for the transcript.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, mc := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(mc.Role)))
		printParts(w, mc.Parts)
	}
}

func printParts(w io.Writer, parts []llms.ContentPart) {
	for _, p := range parts {
		switch pp := p.(type) {
		case llms.TextContent:
			fmt.Fprintln(w, pp.Text)
		case llms.BinaryContent:
			fmt.Fprintf(w, "BinaryContent MIME=%q, size=%d\n", pp.MIMEType, len(pp.Data))
		case llms.ToolResultContent:
			fmt.Fprintf(w, "ToolResult Name=%s\n", pp.ToolName)
			printParts(w, pp.Parts)
		}
	}
}

// CountMessagesContentSize counts the size of the content in the messages
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, mc := range msgs {
		size += uint64(len(mc.Role))
		size += countPartsSize(mc.Parts)
	}
	return size
}

func countPartsSize(parts []llms.ContentPart) uint64 {
	var size uint64
	for _, p := range parts {
		switch pp := p.(type) {
		case llms.TextContent:
			size += uint64(len(pp.Text))
		case llms.BinaryContent:
			size += uint64(len(pp.MIMEType))
			size += uint64(len(pp.Data))
		case llms.ToolResultContent:
			size += uint64(len(pp.ToolName))
			size += countPartsSize(pp.Parts)
		}
	}
	return size
}

// CountResponseContentSize counts the size of the content in the content response
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	if resp == nil {
		return 0
	}
	var size uint64
	for _, block := range resp.Blocks {
		size += uint64(len(block.Text))
		if block.ToolUse != nil {
			size += uint64(len(block.ToolUse.ID))
			size += uint64(len(block.ToolUse.Name))
			size += uint64(len(block.ToolUse.Input))
		}
	}
	return size
}

// CountTokens returns token usage of the response,
// total is computed when the provider did not report it.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	if resp == nil {
		return
	}
	in = resp.Usage.InputTokens
	out = resp.Usage.OutputTokens
	total = resp.Usage.TotalTokens
	if total == 0 {
		total = in + out
	}
	return
}
