package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"mailassist/pkg/logger"
)

var errNoChoices = errors.New("model returned no choices")

// OpenAIRuntime talks to any OpenAI-compatible chat completions endpoint.
type OpenAIRuntime struct {
	client openai.Client
	logger *zap.Logger
}

func NewOpenAIRuntime(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *OpenAIRuntime {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	// 重试交给熔断器和调用方
	opts = append(opts, option.WithMaxRetries(0))

	return &OpenAIRuntime{
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

func (r *OpenAIRuntime) Invoke(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Params.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Params.Temperature),
	}
	if req.Params.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Params.MaxTokens))
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.Definition,
				},
			},
		}
	}

	completion, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errNoChoices
	}

	logger.WithTrace(ctx, r.logger).Debug("Model call completed",
		zap.String("operation", req.Operation),
		zap.String("model", req.Params.Model),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
	)
	return completion.Choices[0].Message.Content, nil
}
