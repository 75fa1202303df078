package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/pkg/llmutils"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go  -package mocktools

// Registry is the catalog of tools offered by a tool provider,
// and the way to invoke them.
type Registry interface {
	// ListTools returns the tools currently advertised by the provider.
	// It returns ErrProviderUnavailable if the session is not established.
	ListTools(ctx context.Context) ([]Descriptor, error)
	// Invoke executes the named tool with the JSON object of arguments.
	// Arguments are passed through without validation,
	// a failure is returned as *ToolExecutionError.
	Invoke(ctx context.Context, name string, args json.RawMessage) (*Result, error)
}

// Callback receives notifications about tool invocations.
type Callback interface {
	OnToolStart(ctx context.Context, name string, args json.RawMessage)
	OnToolEnd(ctx context.Context, name string, args json.RawMessage, result *Result)
	OnToolError(ctx context.Context, name string, args json.RawMessage, err error)
}

// Descriptor describes a tool advertised by the provider.
type Descriptor struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
	// Schema is the input schema exactly as advertised by the provider
	Schema json.RawMessage `json:"Schema,omitempty" yaml:"-"`
	// InputSchema is the typed view of Schema,
	// nil when the schema uses constructs the typed view does not support,
	// such as a list of types.
	InputSchema *jsonschema.Schema `json:"-" yaml:"-"`
}

// ToLLMTool returns the function tool definition for the model,
// the provider schema is passed through unmodified.
func (d Descriptor) ToLLMTool() llms.Tool {
	tool := llms.NewFunctionTool(d.Name, d.Description, d.InputSchema)
	tool.Function.RawParameters = d.Schema
	return tool
}

// ToLLMTools converts descriptors to the function tools, preserving the order.
func ToLLMTools(list []Descriptor) []llms.Tool {
	if len(list) == 0 {
		return nil
	}
	res := make([]llms.Tool, 0, len(list))
	for _, d := range list {
		res = append(res, d.ToLLMTool())
	}
	return res
}

// Names returns the names of the tools
func Names(list []Descriptor) []string {
	res := make([]string, 0, len(list))
	for _, d := range list {
		res = append(res, d.Name)
	}
	return res
}

type toolsDescription struct {
	Tools []Descriptor `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns YAML document with names and descriptions of the tools
func GetDescriptions(list ...Descriptor) string {
	return llmutils.ToYAML(toolsDescription{Tools: list})
}

// ContentType is the type of an item in the tool result
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentImage        ContentType = "image"
	ContentAudio        ContentType = "audio"
	ContentResource     ContentType = "resource"
	ContentResourceLink ContentType = "resource_link"
)

// Content is an item of the tool result
type Content struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	MIMEType string      `json:"mime_type,omitempty"`
	URI      string      `json:"uri,omitempty"`
	Data     []byte      `json:"data,omitempty"`
}

// TextContent returns a text content item
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// Result is the outcome of a successful tool invocation
type Result struct {
	ToolName string    `json:"tool_name"`
	Content  []Content `json:"content"`
}

// Text returns the text items of the result joined by new line
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var texts []string
	for _, c := range r.Content {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Parts converts the result to message parts, preserving the order.
func (r *Result) Parts() []llms.ContentPart {
	if r == nil {
		return nil
	}
	parts := make([]llms.ContentPart, 0, len(r.Content))
	for _, c := range r.Content {
		switch {
		case len(c.Data) > 0:
			parts = append(parts, llms.BinaryPart(c.MIMEType, c.Data))
		case c.Text != "":
			parts = append(parts, llms.TextPart(c.Text))
		case c.URI != "":
			parts = append(parts, llms.TextPart(c.URI))
		}
	}
	return parts
}

// Message returns the user message carrying the result to the model.
func (r *Result) Message() llms.Message {
	if r == nil {
		return llms.MessageFromToolResult("")
	}
	return llms.MessageFromToolResult(r.ToolName, r.Parts()...)
}
