package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/x/values"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrEmptyResponse          = errors.New("anthropic: no response")
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultMaxTokens = 4096
	DefaultBaseURL   = "https://api.anthropic.com"

	DefaultMaxRetries     = 2
	DefaultRequestTimeout = 5 * time.Minute
)

type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic LLM client using the official Anthropic SDK.
//
// If no token is provided via options, it will attempt to read the API key
// from the ANTHROPIC_API_KEY environment variable.
//
// Required configuration:
//   - API token (via WithToken option or ANTHROPIC_API_KEY env var)
//   - Model (via WithModel option)
//
// Example usage:
//
//	llm, err := anthropic.New(
//	    anthropic.WithToken("your-api-key"),
//	    anthropic.WithModel("claude-3-5-sonnet-20241022"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := llm.GenerateContent(ctx, messages)
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token:          os.Getenv(TokenEnvVarName),
		BaseURL:        DefaultBaseURL,
		HttpClient:     http.DefaultClient,
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: DefaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.Token) == 0 {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	c, err := newClient(options)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create client")
	}
	return &LLM{
		Client:  c,
		Options: options,
	}, nil
}

func newClient(options *Options) (*anthropic.Client, error) {
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(options.MaxRetries),
	}

	if options.RequestTimeout > 0 {
		sdkOpts = append(sdkOpts, option.WithRequestTimeout(options.RequestTimeout))
	}

	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}

	if options.HttpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HttpClient))
	}

	if options.AnthropicBetaHeader != "" {
		sdkOpts = append(sdkOpts, option.WithHeader("anthropic-beta", options.AnthropicBetaHeader))
	}

	client := anthropic.NewClient(sdkOpts...)

	return &client, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
//
// Tools are attached to the request only when provided in options,
// the returned blocks preserve the order of the Anthropic response.
//
// Example usage:
//
//	messages := []llms.Message{
//	    llms.MessageFromTextParts(llms.RoleUser, "What is 2+3?"),
//	}
//
//	resp, err := llm.GenerateContent(ctx, messages,
//	    llms.WithMaxTokens(1000),
//	)
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{
		Model: o.Options.Model,
	}, options...)
	return GenerateMessagesContent(ctx, o, messages, opts)
}

// GenerateMessagesContent generates content using the Anthropic API.
func GenerateMessagesContent(ctx context.Context, o *LLM, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	params, err := BuildParams(messages, opts)
	if err != nil {
		return nil, err
	}

	result, err := o.Client.Messages.New(ctx, *params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}

	return ToContentResponse(result)
}

// BuildParams converts messages and options to the Anthropic request.
func BuildParams(messages []llms.Message, opts *llms.CallOptions) (*anthropic.MessageNewParams, error) {
	sdkMessages, err := ProcessMessages(messages)
	if err != nil {
		return nil, errors.WithMessage(err, "anthropic: failed to process messages")
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  sdkMessages,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
	}

	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: opts.SystemPrompt,
			},
		}
	}

	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}

	tools, err := ToTools(opts.Tools)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

// ToContentResponse converts the Anthropic message to ordered content blocks.
func ToContentResponse(result *anthropic.Message) (*llms.ContentResponse, error) {
	if result == nil {
		return nil, ErrEmptyResponse
	}

	resp := &llms.ContentResponse{
		ID:         result.ID,
		StopReason: string(result.StopReason),
		Blocks:     make([]llms.ContentBlock, 0, len(result.Content)),
		Usage: llms.Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.InputTokens + result.Usage.OutputTokens,
		},
	}

	for _, contentBlock := range result.Content {
		switch content := contentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Blocks = append(resp.Blocks, llms.TextBlock(content.Text))
		case anthropic.ToolUseBlock:
			argumentsJSON, err := json.Marshal(content.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			resp.Blocks = append(resp.Blocks, llms.ToolUseBlock(content.ID, content.Name, argumentsJSON))
		case anthropic.ThinkingBlock, anthropic.RedactedThinkingBlock:
			// not surfaced
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: %T", content)
		}
	}

	return resp, nil
}

// ToTools converts LLM tool definitions to Anthropic SDK tool parameters.
//
// The input schema is sent as defined: properties keep their order,
// and keywords other than type, properties and required are passed as extra fields.
// A tool without parameters is advertised with an empty object schema.
func ToTools(tools []llms.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		inputSchema, err := toInputSchema(tool.Function)
		if err != nil {
			return nil, err
		}
		sdkTools = append(sdkTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return sdkTools, nil
}

func toInputSchema(fn *llms.FunctionDefinition) (anthropic.ToolInputSchemaParam, error) {
	var inputSchema anthropic.ToolInputSchemaParam

	js, err := fn.ParametersJSON()
	if err != nil {
		return inputSchema, errors.WithMessage(err, "anthropic")
	}

	var fields map[string]json.RawMessage
	if err = json.Unmarshal(js, &fields); err != nil {
		return inputSchema, errors.Wrapf(err, "anthropic: invalid input schema of %s", fn.Name)
	}

	inputSchema.Type = "object"
	properties := orderedmap.New[string, json.RawMessage]()
	if raw, ok := fields["properties"]; ok && string(raw) != "null" {
		if err = json.Unmarshal(raw, properties); err != nil {
			return inputSchema, errors.Wrapf(err, "anthropic: invalid properties of %s", fn.Name)
		}
	}
	inputSchema.Properties = properties

	if raw, ok := fields["required"]; ok && string(raw) != "null" {
		if err = json.Unmarshal(raw, &inputSchema.Required); err != nil {
			return inputSchema, errors.Wrapf(err, "anthropic: invalid required list of %s", fn.Name)
		}
	}

	for key, raw := range fields {
		switch key {
		case "type", "properties", "required":
			continue
		}
		if inputSchema.ExtraFields == nil {
			inputSchema.ExtraFields = make(map[string]any)
		}
		inputSchema.ExtraFields[key] = raw
	}
	return inputSchema, nil
}

// ProcessMessages converts generic message content to Anthropic SDK message parameters.
//
// User messages may carry text, images and tool results,
// assistant messages may carry text only.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, error) {
	chatMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleUser:
			chatMessage, err := HandleUserMessage(msg)
			if err != nil {
				return nil, errors.WithMessage(err, "anthropic: failed to handle user message")
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleAssistant:
			chatMessage, err := HandleAssistantMessage(msg)
			if err != nil {
				return nil, errors.WithMessage(err, "anthropic: failed to handle assistant message")
			}
			chatMessages = append(chatMessages, chatMessage)
		default:
			return nil, errors.WithMessagef(ErrUnsupportedMessageType, "anthropic: %v", msg.Role)
		}
	}
	return chatMessages, nil
}

// HandleUserMessage converts user messages to Anthropic user message format.
//
// Images are base64-encoded, tool results are flattened into their content,
// other binary content is described as text.
func HandleUserMessage(msg llms.Message) (anthropic.MessageParam, error) {
	contents, err := userBlocks(msg.Parts)
	if err != nil {
		return anthropic.MessageParam{}, err
	}
	if len(contents) == 0 {
		return anthropic.MessageParam{}, errors.New("anthropic: no valid content in user message")
	}

	return anthropic.NewUserMessage(contents...), nil
}

func userBlocks(parts []llms.ContentPart) ([]anthropic.ContentBlockParamUnion, error) {
	var contents []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			if p.Text != "" {
				contents = append(contents, anthropic.NewTextBlock(p.Text))
			}
		case llms.BinaryContent:
			if strings.HasPrefix(p.MIMEType, "image/") {
				encodedData := base64.StdEncoding.EncodeToString(p.Data)
				contents = append(contents, anthropic.NewImageBlockBase64(p.MIMEType, encodedData))
			} else {
				contents = append(contents, anthropic.NewTextBlock(fmt.Sprintf("[binary content %s, %d bytes]", p.MIMEType, len(p.Data))))
			}
		case llms.ToolResultContent:
			nested, err := userBlocks(p.Parts)
			if err != nil {
				return nil, err
			}
			if len(nested) == 0 {
				nested = append(nested, anthropic.NewTextBlock(fmt.Sprintf("[tool %s returned no content]", p.ToolName)))
			}
			contents = append(contents, nested...)
		default:
			return nil, errors.WithMessagef(ErrInvalidContentType, "anthropic: user message part type: %T", part)
		}
	}
	return contents, nil
}

// HandleAssistantMessage converts assistant messages to Anthropic assistant message format.
func HandleAssistantMessage(msg llms.Message) (anthropic.MessageParam, error) {
	var contents []anthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			if p.Text != "" {
				contents = append(contents, anthropic.NewTextBlock(p.Text))
			}
		default:
			return anthropic.MessageParam{}, errors.WithMessagef(ErrInvalidContentType, "anthropic: assistant message part type: %T", part)
		}
	}

	if len(contents) == 0 {
		return anthropic.MessageParam{}, errors.New("anthropic: no valid content in assistant message")
	}

	return anthropic.NewAssistantMessage(contents...), nil
}
