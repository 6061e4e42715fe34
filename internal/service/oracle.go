package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"simbot/internal/domain"
)

var ErrEmptyCompletion = errors.New("oracle returned no choices")

// OracleRequest is one round trip: the system prompt, the kept history and
// the new user payload.
type OracleRequest struct {
	System  string
	History []domain.Turn
	Message string
}

// Oracle produces the assistant reply for a conversation turn.
type Oracle interface {
	Complete(ctx context.Context, req OracleRequest) (string, error)
}

// OpenAIOracle talks to any OpenAI compatible chat completion endpoint.
type OpenAIOracle struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

func NewOpenAIOracle(apiKey, baseURL, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *OpenAIOracle {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIOracle{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: 0.3,
		timeout:     timeout,
		logger:      logger,
	}
}

func (o *OpenAIOracle) Complete(ctx context.Context, req OracleRequest) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		if t.Role == openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	o.logger.Debug("oracle reply",
		zap.String("model", o.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
