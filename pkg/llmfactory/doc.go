// Package llmfactory provides configuration and construction of the LLM models,
// supporting the Anthropic and OpenAI providers and model selection by name or type.
package llmfactory
