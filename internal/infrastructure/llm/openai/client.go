package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/infrastructure/resilience"
)

const (
	operationComplete = "inference.complete"
	operationProbe    = "inference.probe"

	probeMaxTokens = 5
)

type Config struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
	Timeout     time.Duration
}

func (c Config) normalize() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = openai.GPT3Dot5Turbo
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client talks to an OpenAI-compatible chat completion API. Each call carries
// the caller's key, so a go-openai client is built per request over a shared
// HTTP client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(cfg Config) *Client {
	cfg = cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) WithResilience(exec *resilience.Executor) *Client {
	c.exec = exec
	return c
}

// CompleteJSON returns the raw content of the first choice.
func (c *Client) CompleteJSON(ctx context.Context, req domain.InferenceRequest) (string, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return "", domain.ErrInferenceNotConfigured
	}
	if len(req.Messages) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, operationComplete, errors.New("messages are required"))
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(req.Messages),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	content, err := c.complete(ctx, apiKey, operationComplete, chatReq)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: empty completion content", operationComplete)
	}
	return content, nil
}

// ProbeKey sends a minimal completion to check that the key is accepted.
func (c *Client) ProbeKey(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return domain.ErrInferenceNotConfigured
	}
	_, err := c.complete(ctx, apiKey, operationProbe, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: probeMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "test"},
		},
	})
	return err
}

func (c *Client) complete(ctx context.Context, apiKey, operation string, chatReq openai.ChatCompletionRequest) (string, error) {
	client := c.newAPIClient(apiKey)
	content, err := resilience.Do(ctx, c.exec, operation, func(callCtx context.Context) (string, error) {
		resp, err := client.CreateChatCompletion(callCtx, chatReq)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s: empty choices", operation)
		}
		return resp.Choices[0].Message.Content, nil
	}, classifyInferenceError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, describeAPIError(operation, err))
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) newAPIClient(apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = c.cfg.BaseURL
	clientCfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(clientCfg)
}

func toChatMessages(messages []domain.InferenceMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}
