package llms

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnexpectedRole is returned when a message role is of an unexpected type.
var ErrUnexpectedRole = errors.New("unexpected role")

// Role is the type of chat message.
type Role string

const (
	// RoleUser is a message sent by the user, or on the user's behalf.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is the message sent to a LLM. It has a role and a
// sequence of parts. For example, it can represent one message in a chat
// session sent by the user, in which case Role will be
// RoleUser and Parts will be the sequence of items sent in
// this specific message.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// TextPart creates TextContent from a given string.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// BinaryPart creates a new BinaryContent from the given MIME type (e.g.
// "image/png" and binary data).
func BinaryPart(mime string, data []byte) BinaryContent {
	return BinaryContent{
		MIMEType: mime,
		Data:     data,
	}
}

// ToolResultPart creates a new ToolResultContent for the named tool.
func ToolResultPart(toolName string, parts ...ContentPart) ToolResultContent {
	return ToolResultContent{
		ToolName: toolName,
		Parts:    parts,
	}
}

// ContentPart is an interface all parts of content have to implement.
type ContentPart interface {
	isPart()
}

// TextContent is content with some text.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

// BinaryContent is content holding some binary data with a MIME type.
type BinaryContent struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (bc BinaryContent) String() string {
	base64Encoded := base64.StdEncoding.EncodeToString(bc.Data)
	return "data:" + bc.MIMEType + ";base64," + base64Encoded
}

func (BinaryContent) isPart() {}

// ToolResultContent is the payload returned by a tool invocation,
// fed back to the model as user content.
type ToolResultContent struct {
	// ToolName is the name of the tool that produced the result.
	ToolName string `json:"tool_name"`
	// Parts is the content returned by the tool, in order.
	Parts []ContentPart `json:"parts"`
}

func (tr ToolResultContent) String() string {
	return fmt.Sprintf("ToolResult: %s, parts: %d", tr.ToolName, len(tr.Parts))
}

func (ToolResultContent) isPart() {}

// ContentBlockType is the type of a response block
type ContentBlockType string

const (
	// BlockText is a block of generated text
	BlockText ContentBlockType = "text"
	// BlockToolUse is a request from the model to invoke a tool
	BlockToolUse ContentBlockType = "tool_use"
)

// ToolUse is a request from the model to invoke a tool.
type ToolUse struct {
	// ID is the identifier assigned to the request by the provider.
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Input is the JSON object of the arguments.
	Input json.RawMessage `json:"input"`
}

func (tu ToolUse) String() string {
	return fmt.Sprintf("ToolUse: %s (%s), input: %s", tu.ID, tu.Name, string(tu.Input))
}

// ContentBlock is one of the ordered blocks returned by GenerateContent.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`
	// Text is the generated text for BlockText,
	// and optional accompanying text for BlockToolUse.
	Text string `json:"text,omitempty"`
	// ToolUse is set for BlockToolUse
	ToolUse *ToolUse `json:"tool_use,omitempty"`
}

// TextBlock returns a new text block
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock returns a new tool_use block
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Type: BlockToolUse,
		ToolUse: &ToolUse{
			ID:    id,
			Name:  name,
			Input: input,
		},
	}
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// ContentResponse is the response returned by a GenerateContent call.
type ContentResponse struct {
	// ID is the provider's identifier of the response.
	ID string `json:"id,omitempty"`
	// Blocks are the content blocks in the order produced by the model.
	Blocks []ContentBlock `json:"blocks"`
	// StopReason is the reason the model stopped generating output.
	StopReason string `json:"stop_reason,omitempty"`
	// Usage is the token usage of the call.
	Usage Usage `json:"usage"`
}

// FirstText returns the text of the first text block.
func (r *ContentResponse) FirstText() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, b := range r.Blocks {
		if b.Type == BlockText {
			return b.Text, true
		}
	}
	return "", false
}

// ToolUses returns the tool_use requests in order.
func (r *ContentResponse) ToolUses() []*ToolUse {
	if r == nil {
		return nil
	}
	var res []*ToolUse
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse && b.ToolUse != nil {
			res = append(res, b.ToolUse)
		}
	}
	return res
}

// MessageFromParts is a helper function to create a Message with a role and a
// list of parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	result := Message{
		Role:  role,
		Parts: parts,
	}
	return result
}

// MessageFromTextParts is a helper function to create a Message with a role and a
// list of text parts.
func MessageFromTextParts(role Role, parts ...string) Message {
	result := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, TextPart(part))
	}
	return result
}

// MessageFromToolResult is a helper function to create a user Message
// carrying a tool result.
func MessageFromToolResult(toolName string, parts ...ContentPart) Message {
	return MessageFromParts(RoleUser, ToolResultPart(toolName, parts...))
}

func (m Message) GetContent() string {
	var buf strings.Builder
	writeParts(&buf, m.Parts)
	return buf.String()
}

func writeParts(buf *strings.Builder, parts []ContentPart) {
	lastNewLine := true
	for _, p := range parts {
		if !lastNewLine {
			buf.WriteString("\n")
		}
		switch typ := p.(type) {
		case TextContent:
			buf.WriteString(typ.Text)
			lastNewLine = strings.HasSuffix(typ.Text, "\n")
		case BinaryContent:
			buf.WriteString("Binary: ")
			buf.WriteString(typ.MIMEType)
			buf.WriteString("\n")
			buf.WriteString(base64.StdEncoding.EncodeToString(typ.Data))
			lastNewLine = false
		case ToolResultContent:
			buf.WriteString("Tool Result: ")
			buf.WriteString(typ.ToolName)
			buf.WriteString("\n")
			writeParts(buf, typ.Parts)
			lastNewLine = true
		}
	}
	if !lastNewLine {
		buf.WriteString("\n")
	}
}

// Transcript is the ordered list of messages exchanged during a single query.
// It only grows.
type Transcript []Message

// Append adds a message to the transcript.
func (t *Transcript) Append(msg Message) {
	*t = append(*t, msg)
}

// Messages returns a copy of the messages, safe to hand to a model.
func (t Transcript) Messages() []Message {
	res := make([]Message, len(t))
	copy(res, t)
	return res
}
