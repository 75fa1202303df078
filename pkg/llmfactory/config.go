package llmfactory

import (
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/pkg/llms/anthropic"
	"github.com/effective-security/mcpclient/pkg/llms/openai"
	"github.com/effective-security/mcpclient/pkg/llmutils"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxTokens is the cap of output tokens for every completion call
	DefaultMaxTokens = 1000
	// DefaultAnthropicModel is used when the provider does not specify a model
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	// DefaultOpenAIModel is used when the provider does not specify a model
	DefaultOpenAIModel = "gpt-4o-mini"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
	// DefaultProvider specifies the name of the default provider to use
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`
	// MaxTokens specifies the cap of output tokens for every completion call
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	// AssistantModels specifies the mapping of assistants to models.
	// key is the assistant name, value is the list of preferred models.
	// Use `default: <model_name>` as the default model for assistants.
	AssistantModels map[string][]string `json:"assistant_models,omitempty" yaml:"assistant_models,omitempty"`
}

// ProviderConfig for the LLM provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Type specifies the provider: ANTHROPIC|OPENAI
	Type string `json:"type" yaml:"type" validate:"required,oneof=ANTHROPIC OPENAI"`
	// Token is the API key, if not set the provider's environment variable is used
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// OrgID specifies which organization's quota and billing should be used, OpenAI only.
	OrgID      string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"gte=0"`
}

func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// String returns the YAML representation of the config with tokens masked
func (c *Config) String() string {
	masked := *c
	masked.Providers = make([]*ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		cp := *p
		if cp.Token != "" {
			cp.Token = "****"
		}
		masked.Providers = append(masked.Providers, &cp)
	}
	return llmutils.ToYAML(&masked)
}

// Validate normalizes the provider types and validates the config
func (c *Config) Validate() error {
	for _, p := range c.Providers {
		if p == nil {
			return errors.New("invalid configuration: empty provider")
		}
		p.Type = normalizeType(p.Type)
	}
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// DefaultConfig returns the configuration with Anthropic and OpenAI providers,
// the API keys are taken from the environment.
// Anthropic is the default provider, unless only OPENAI_API_KEY is set.
func DefaultConfig() *Config {
	anthropicProvider := &ProviderConfig{
		Name:         string(llms.ProviderAnthropic),
		Type:         string(llms.ProviderAnthropic),
		DefaultModel: DefaultAnthropicModel,
	}
	openaiProvider := &ProviderConfig{
		Name:         string(llms.ProviderOpenAI),
		Type:         string(llms.ProviderOpenAI),
		DefaultModel: DefaultOpenAIModel,
	}

	if os.Getenv(anthropic.TokenEnvVarName) == "" && os.Getenv(openai.TokenEnvVarName) != "" {
		return &Config{
			DefaultProvider: openaiProvider.Name,
			MaxTokens:       DefaultMaxTokens,
			Providers:       []*ProviderConfig{openaiProvider, anthropicProvider},
		}
	}
	return &Config{
		DefaultProvider: anthropicProvider.Name,
		MaxTokens:       DefaultMaxTokens,
		Providers:       []*ProviderConfig{anthropicProvider, openaiProvider},
	}
}

// LoadConfig from file, if the file is not specified the DefaultConfig is returned.
// Environment variables in the file are expanded.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		return DefaultConfig(), nil
	}

	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "OPEN_AI" {
		return string(llms.ProviderOpenAI)
	}
	return t
}
