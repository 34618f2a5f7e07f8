package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/prompt"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4o-mini"
	schemaName   = "insight_response"
)

// Mode selects how JSON output is requested from the model.
type Mode string

const (
	// ModeJSONSchema sends the caller's schema as a json_schema response format.
	ModeJSONSchema Mode = "json_schema"
	// ModeJSONObject only asks for a JSON object; the schema travels in the prompt.
	ModeJSONObject Mode = "json_object"
)

type Client struct {
	*openai.Client
	Model string
	Mode  Mode
}

// NewClient builds a client. baseURL is optional and points at an
// OpenAI-compatible endpoint.
func NewClient(apiKey, model, baseURL string, mode Mode) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = defaultModel
	}
	if mode == "" {
		mode = ModeJSONSchema
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, Mode: mode}
}

func (c *Client) Name() string { return "openai:" + c.Model }

func (c *Client) Complete(ctx context.Context, in domain.Completion) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt(in.Schema)},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(in.Prompt)},
		},
	}
	switch {
	case c.Mode == ModeJSONSchema && in.Schema != nil:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: in.Schema,
			},
		}
	default:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("failed to create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, domain.InvalidResponse(nil, errors.New("completion returned no choices"))
	}

	choice := resp.Choices[0]
	content := []byte(choice.Message.Content)
	if choice.Message.Refusal != "" {
		return nil, domain.InvalidResponse(content, fmt.Errorf("model refused: %s", choice.Message.Refusal))
	}
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, domain.InvalidResponse(content, errors.New("completion truncated at max tokens"))
	}
	return content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// classify maps go-openai errors onto the insight error kinds. 429 stays
// retryable, other 4xx are permanent.
func classify(ctx context.Context, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.Transport(fmt.Errorf("%w: %w", domain.ErrQuotaExceeded, err))
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		return domain.PermanentTransport(err)
	}
	return domain.Classify(ctx, err)
}
