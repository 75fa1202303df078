package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpclient", "openai")

var (
	// ErrEmptyResponse is returned when the OpenAI API returns an empty response.
	ErrEmptyResponse = errors.New("openai: empty response")
	// ErrMissingToken is returned when the API key is not provided.
	ErrMissingToken = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
	// ErrUnsupportedContentType is returned for parts the adapter can not send.
	ErrUnsupportedContentType = errors.New("openai: unsupported content type")
)

type LLM struct {
	client *openai.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM backed by the Chat Completions API.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:        os.Getenv(TokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		maxRetries:   DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.token == "" {
		return nil, ErrMissingToken
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(values.StringsCoalesce(o.baseURL, DefaultBaseURL)),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	client := openai.NewClient(sdkOpts...)
	return &LLM{
		client: &client,
		model:  values.StringsCoalesce(o.model, DefaultChatModel),
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
//
// The text of the returned message comes first, followed by the tool calls
// in the order requested by the model.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: o.model}, options...)

	params, err := BuildParams(messages, opts)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", opts.Model,
		"messages", len(params.Messages),
		"tools", len(params.Tools),
	)

	completion, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	return ToContentResponse(completion)
}

// BuildParams converts messages and options to the Chat Completions request.
func BuildParams(messages []llms.Message, opts *llms.CallOptions) (*openai.ChatCompletionNewParams, error) {
	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if opts.SystemPrompt != "" {
		chatMsgs = append(chatMsgs, openai.SystemMessage(opts.SystemPrompt))
	}

	for _, mc := range messages {
		if len(mc.Parts) == 0 {
			continue
		}
		switch mc.Role {
		case llms.RoleUser:
			parts, err := userParts(mc.Parts)
			if err != nil {
				return nil, err
			}
			if len(parts) == 0 {
				continue
			}
			chatMsgs = append(chatMsgs, openai.UserMessage(parts))
		case llms.RoleAssistant:
			text := strings.TrimSuffix(mc.GetContent(), "\n")
			chatMsgs = append(chatMsgs, openai.AssistantMessage(text))
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "openai: %v", mc.Role)
		}
	}

	params := &openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	for _, t := range opts.Tools {
		tool, err := toolFromTool(t)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, tool)
	}
	return params, nil
}

func userParts(parts []llms.ContentPart) ([]openai.ChatCompletionContentPartUnionParam, error) {
	var res []openai.ChatCompletionContentPartUnionParam
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			if p.Text != "" {
				res = append(res, openai.TextContentPart(p.Text))
			}
		case llms.BinaryContent:
			if strings.HasPrefix(p.MIMEType, "image/") {
				res = append(res, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: p.String(),
				}))
			} else {
				res = append(res, openai.TextContentPart(fmt.Sprintf("[binary content %s, %d bytes]", p.MIMEType, len(p.Data))))
			}
		case llms.ToolResultContent:
			nested, err := userParts(p.Parts)
			if err != nil {
				return nil, err
			}
			if len(nested) == 0 {
				nested = append(nested, openai.TextContentPart(fmt.Sprintf("[tool %s returned no content]", p.ToolName)))
			}
			res = append(res, nested...)
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "openai: %T", part)
		}
	}
	return res, nil
}

func toolFromTool(t llms.Tool) (openai.ChatCompletionToolUnionParam, error) {
	if t.Function == nil {
		return openai.ChatCompletionToolUnionParam{}, errors.Errorf("openai: tool type %q has no function definition", t.Type)
	}

	js, err := t.Function.ParametersJSON()
	if err != nil {
		return openai.ChatCompletionToolUnionParam{}, errors.WithMessage(err, "openai")
	}
	params := openai.FunctionParameters{}
	if err = json.Unmarshal(js, &params); err != nil {
		return openai.ChatCompletionToolUnionParam{}, errors.Wrapf(err, "openai: failed to convert parameters of %s", t.Function.Name)
	}

	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Function.Name,
		Description: openai.String(t.Function.Description),
		Parameters:  params,
	}), nil
}

// ToContentResponse converts the chat completion to ordered content blocks.
func ToContentResponse(completion *openai.ChatCompletion) (*llms.ContentResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := completion.Choices[0]
	resp := &llms.ContentResponse{
		ID:         completion.ID,
		StopReason: choice.FinishReason,
		Usage: llms.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			TotalTokens:  completion.Usage.TotalTokens,
		},
	}

	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, llms.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(values.StringsCoalesce(tc.Function.Arguments, "{}"))
		if !json.Valid(args) {
			return nil, errors.Errorf("openai: invalid arguments for tool call %s", tc.Function.Name)
		}
		resp.Blocks = append(resp.Blocks, llms.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}
	return resp, nil
}
