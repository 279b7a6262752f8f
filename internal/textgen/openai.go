package textgen

// #region imports
import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// #endregion

// #region settings

// DefaultBaseURL is the OpenAI-compatible endpoint used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenAISettings configures an OpenAI-compatible chat completion provider.
type OpenAISettings struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// #endregion

// #region service

// OpenAIService implements Service with the official openai-go SDK.
type OpenAIService struct {
	model       string
	temperature float64
	maxTokens   int
	opts        []option.RequestOption
}

// NewOpenAIService validates settings and prepares request options.
func NewOpenAIService(cfg OpenAISettings) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
		option.WithHeader("X-Title", "idea-forge"),
		// retries belong to the orchestrator's bounded policy
		option.WithMaxRetries(0),
	}
	return &OpenAIService{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		opts:        opts,
	}, nil
}

// Generate sends the rendered prompt as a chat completion.
func (o *OpenAIService) Generate(ctx context.Context, req Request) (Response, error) {
	client := openai.NewClient(o.opts...)
	prompt := BuildPrompt(req)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if o.temperature > 0 {
		params.Temperature = openai.Float(o.temperature)
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{OK: false}, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	return Response{Output: content, OK: content != ""}, nil
}

// #endregion
