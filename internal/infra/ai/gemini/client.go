package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/prompt"
)

const defaultModel = "gemini-2.5-flash"

// Client is a thin wrapper around the official genai client. The schema
// travels in the prompt; the API is only asked for application/json.
type Client struct {
	cli   *genai.Client
	model string
}

// NewClient creates a Gemini API client. An empty apiKey lets genai read
// GEMINI_API_KEY or GOOGLE_API_KEY from the environment. baseURL is only set
// when talking to a proxy.
func NewClient(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{cli: cli, model: model}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

func (c *Client) Complete(ctx context.Context, in domain.Completion) ([]byte, error) {
	full := prompt.Combined(in.Schema, in.Prompt)

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("generate content: %w", err))
	}
	return firstText(resp)
}

// classify maps genai API errors the same way the OpenAI adapter maps its
// status codes: 429 is quota, other 4xx except 408 are permanent.
func classify(ctx context.Context, err error) error {
	code, status := 0, ""
	var apiErr genai.APIError
	var apiPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiPtr) && apiPtr != nil:
		code, status = apiPtr.Code, apiPtr.Status
	}

	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return domain.Transport(fmt.Errorf("%w: %w", domain.ErrQuotaExceeded, err))
	case code >= 400 && code < 500 && code != http.StatusRequestTimeout:
		return domain.PermanentTransport(err)
	}
	return domain.Classify(ctx, err)
}

// firstText returns the text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil {
		return nil, domain.InvalidResponse(nil, errors.New("empty generate content response"))
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, domain.InvalidResponse(nil, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, domain.InvalidResponse(nil, errors.New("no candidates returned"))
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return nil, domain.InvalidResponse(nil, fmt.Errorf("candidate has no text (finish reason %q)", resp.Candidates[0].FinishReason))
	}
	return []byte(b.String()), nil
}
