package llms

import (
	"context"
)

// ProviderType identifies the LLM provider behind a Model
type ProviderType string

const (
	// ProviderAnthropic is the Anthropic Messages API
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderOpenAI is the OpenAI Chat Completions API
	ProviderOpenAI ProviderType = "OPENAI"
)

//go:generate mockgen -source=llms.go -destination=../../mocks/mockllms/llms_mock.gen.go -package mockllms

// Model is the completion client of a single LLM provider.
type Model interface {
	// GetName returns the model name sent to the provider.
	GetName() string
	// GetProviderType returns the provider.
	GetProviderType() ProviderType
	// GenerateContent sends the transcript and returns the content blocks
	// in the order produced by the model.
	// The tools are offered only when set by WithTools.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}
