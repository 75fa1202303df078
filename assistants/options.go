package assistants

import (
	"github.com/effective-security/mcpclient/pkg/llms"
)

const (
	// DefaultName is the name of the Assistant used in logs and metrics
	DefaultName = "mcpclient"
	// DefaultMaxTokens is the cap of output tokens for every LLM call
	DefaultMaxTokens = 1000
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

type Config struct {
	// Name of the Assistant
	Name string
	// Model is the model to use in an LLM call,
	// if empty the default model of the LLM is used.
	Model string
	// MaxTokens is the maximum number of tokens to generate in every LLM call.
	MaxTokens int
	// Temperature is the temperature for sampling, between 0 and 1.
	// Zero means the provider's default.
	Temperature float64
	// CallbackHandler is the callback handler for the query processing
	CallbackHandler Callback
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Name:      DefaultName,
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName sets the name of the Assistant.
func WithName(name string) Option {
	return func(o *Config) {
		if name != "" {
			o.Name = name
		}
	}
}

// WithModel sets the model name for every LLM call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
	}
}

// WithMaxTokens sets the cap of output tokens for every LLM call.
// Values less or equal to zero are ignored.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}

// WithTemperature sets the temperature for every LLM call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// GetCallOptions returns the options for the LLM call,
// the tools are attached only when given.
func (c *Config) GetCallOptions(tools []llms.Tool) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithMaxTokens(c.MaxTokens),
	}
	if c.Model != "" {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.Temperature))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	return opts
}
