package ai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const classifierTemperature = 0.2

type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client chatCompleter
	model  string
	log    *zap.Logger
}

func NewOpenAIClient(cfg Config, log *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key not set")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return newClient(openai.NewClientWithConfig(oc), cfg.Model, log), nil
}

func newClient(c chatCompleter, model string, log *zap.Logger) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIClient{client: c, model: model, log: log}
}

// GetReply continues a conversation. The history is sent as is.
func (c *OpenAIClient) GetReply(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: empty choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ask sends a fixed system prompt plus a JSON input document and returns the raw reply.
func (c *OpenAIClient) ask(ctx context.Context, systemPrompt, inputJSON string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: inputJSON},
		},
		Temperature: classifierTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug("raw model response", zap.String("response", short(raw)))
	return raw, nil
}
