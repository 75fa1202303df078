package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ToolTypeFunction is the only tool type the adapters send
const ToolTypeFunction = "function"

// CallOption configures a single GenerateContent call
type CallOption func(*CallOptions)

// CallOptions are the parameters of a single GenerateContent call.
type CallOptions struct {
	// Model overrides the model of the adapter, when set.
	Model string
	// MaxTokens caps the output tokens of the call.
	MaxTokens int
	// Temperature for sampling, zero leaves the provider default.
	Temperature float64
	// StopWords end the generation, Anthropic only.
	StopWords []string
	// SystemPrompt is sent before the transcript, when set.
	SystemPrompt string
	// Tools is the catalog offered to the model for this call,
	// the model may answer with tool_use blocks only when it is set.
	Tools []Tool
}

// Tool is the tool definition offered to the model
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a tool by name, purpose and input schema
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Parameters is the JSON schema of the tool input
	Parameters *jsonschema.Schema `json:"parameters,omitempty"`
	// RawParameters is the JSON schema of the tool input as advertised
	// by the tool provider, it takes precedence over Parameters.
	RawParameters json.RawMessage `json:"-"`
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ParametersJSON returns the JSON schema of the tool input,
// a tool without parameters has an empty object schema.
func (f *FunctionDefinition) ParametersJSON() (json.RawMessage, error) {
	if len(f.RawParameters) > 0 && string(f.RawParameters) != "null" {
		return f.RawParameters, nil
	}
	if f.Parameters == nil {
		return emptyObjectSchema, nil
	}
	js, err := json.Marshal(f.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal parameters of %s", f.Name)
	}
	return js, nil
}

// NewFunctionTool returns a function tool
func NewFunctionTool(name, description string, params *jsonschema.Schema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: &FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// WithModel overrides the model for the call.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens sets the cap of output tokens.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithStopWords sets the stop sequences.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithSystemPrompt sets the system instruction.
func WithSystemPrompt(prompt string) CallOption {
	return func(o *CallOptions) {
		o.SystemPrompt = prompt
	}
}

// WithTools offers the tools to the model.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// NewCallOptions applies the options over the defaults.
func NewCallOptions(defaults CallOptions, options ...CallOption) *CallOptions {
	opts := defaults
	for _, opt := range options {
		opt(&opts)
	}
	return &opts
}
