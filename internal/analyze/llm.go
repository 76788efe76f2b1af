package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ChatRequest is the provider-neutral request shape: one system message, one
// user message, and the sampling knobs the pipeline tunes per stage.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	ForceJSON   bool
}

type ChatCaller interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// jsonModeModels lists model families known to accept response_format. The
// parameter is rejected by servers that do not know it, so it is only sent
// for allow-listed models (substring match covers dated snapshots).
var jsonModeModels = []string{"gpt-4o", "gpt-4.1", "gpt-4-turbo", "gpt-3.5-turbo"}

func supportsJSONMode(model string) bool {
	for _, m := range jsonModeModels {
		if strings.Contains(model, m) {
			return true
		}
	}
	return false
}

type ChatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAICaller struct {
	completions ChatCompleter
}

type OpenAIClientCreator func(apiKey string) ChatCompleter

func defaultOpenAICreator(apiKey string) ChatCompleter {
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &c.Chat.Completions
}

var newOpenAIClient OpenAIClientCreator = defaultOpenAICreator

func NewOpenAICaller(apiKey string) (*OpenAICaller, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OpenAI API key not configured")
	}
	return &OpenAICaller{completions: newOpenAIClient(apiKey)}, nil
}

func NewOpenAICallerFromEnv() (*OpenAICaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not configured")
	}
	return NewOpenAICaller(apiKey)
}

func (c *OpenAICaller) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}
	if req.ForceJSON && supportsJSONMode(req.Model) {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
