// Package openai implements the NEXUS generation capability against the
// OpenAI chat completions API using the official SDK.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"nexus/internal/llm"
	"nexus/internal/llm/retry"
	"nexus/internal/nexuserr"
)

const defaultModel = "gpt-4o-mini"

// Client is the OpenAI-backed llm.Provider. The SDK handle is built
// lazily on first use.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	sdk *sdk.Client
}

func New(apiKey, baseURL, model string, httpClient *http.Client) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nexuserr.New(nexuserr.Unconfigured, "OPENAI_API_KEY is required for provider %q", "openai")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimSpace(baseURL), model: model, httpClient: httpClient}, nil
}

func (c *Client) client() sdk.Client {
	if c.sdk == nil {
		opts := []option.RequestOption{
			option.WithAPIKey(c.apiKey),
			option.WithHTTPClient(c.httpClient),
		}
		if c.baseURL != "" {
			opts = append(opts, option.WithBaseURL(strings.TrimSuffix(c.baseURL, "/")))
		}
		s := sdk.NewClient(opts...)
		c.sdk = &s
	}
	return *c.sdk
}

func (c *Client) Model() string      { return c.model }
func (c *Client) BackendTag() string { return "openai" }

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.client().Models.Get(ctx, c.model)
	return err == nil
}

func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	params := c.buildParams(req)
	var text string
	err := retry.Do(ctx, func() error {
		resp, err := c.client().Chat.Completions.New(ctx, params)
		if err != nil {
			return classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return nexuserr.New(nexuserr.Unrecoverable, "openai returned no choices")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) buildParams(req llm.GenerateRequest) sdk.ChatCompletionNewParams {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.AsMessages()))
	for _, m := range req.AsMessages() {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, sdk.SystemMessage(m.Content))
		case llm.RoleAssistant:
			messages = append(messages, sdk.AssistantMessage(m.Content))
		default:
			messages = append(messages, sdk.UserMessage(m.Content))
		}
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	return params
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return nexuserr.Wrap(nexuserr.RateLimit, err, "openai rate limited")
		case apiErr.StatusCode >= 500:
			return nexuserr.Wrap(nexuserr.ServerFault, err, "openai server fault")
		}
	}
	return nexuserr.Wrap(nexuserr.Unrecoverable, err, "openai generate failed")
}
