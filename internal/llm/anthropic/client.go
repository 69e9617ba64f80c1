// Package anthropic implements the NEXUS generation capability against
// Anthropic's Messages API using the official SDK.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"nexus/internal/llm"
	"nexus/internal/llm/retry"
	"nexus/internal/nexuserr"
)

const defaultModel = "claude-3-7-sonnet-latest"
const defaultMaxTokens int64 = 1024

// Client is the Anthropic-backed llm.Provider. The underlying SDK client
// is constructed lazily, on first use, so building a Client is free of
// network or credential side effects beyond validating presence of an
// API key.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	sdk *anthropicsdk.Client
}

// New validates that apiKey is non-empty and returns a Client whose SDK
// handle is not created until the first Generate or IsAvailable call.
func New(apiKey, baseURL, model string, httpClient *http.Client) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nexuserr.New(nexuserr.Unconfigured, "ANTHROPIC_API_KEY is required for provider %q", "anthropic")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimSpace(baseURL), model: model, httpClient: httpClient}, nil
}

func (c *Client) client() anthropicsdk.Client {
	if c.sdk == nil {
		opts := []option.RequestOption{
			option.WithAPIKey(c.apiKey),
			option.WithHTTPClient(c.httpClient),
		}
		if c.baseURL != "" {
			opts = append(opts, option.WithBaseURL(strings.TrimSuffix(c.baseURL, "/")))
		}
		sdk := anthropicsdk.NewClient(opts...)
		c.sdk = &sdk
	}
	return *c.sdk
}

func (c *Client) Model() string      { return c.model }
func (c *Client) BackendTag() string { return "anthropic" }

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.client().Models.Get(ctx, c.model)
	return err == nil
}

// Generate sends req as a single Messages API call, retrying transient
// failures per internal/llm/retry.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	params := c.buildParams(req)
	var text string
	err := retry.Do(ctx, func() error {
		resp, err := c.client().Messages.New(ctx, params)
		if err != nil {
			return classifyError(err)
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
				sb.WriteString(tb.Text)
			}
		}
		text = sb.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) buildParams(req llm.GenerateRequest) anthropicsdk.MessageNewParams {
	var system []anthropicsdk.TextBlockParam
	var messages []anthropicsdk.MessageParam
	for _, m := range req.AsMessages() {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, anthropicsdk.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

// classifyError maps the SDK's status-carrying error into a NEXUS error
// kind: 429 is rate_limit, 5xx is server_fault (both retryable), anything
// else is unrecoverable.
func classifyError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return nexuserr.Wrap(nexuserr.RateLimit, err, "anthropic rate limited")
		case apiErr.StatusCode >= 500:
			return nexuserr.Wrap(nexuserr.ServerFault, err, "anthropic server fault")
		}
	}
	return nexuserr.Wrap(nexuserr.Unrecoverable, err, "anthropic generate failed")
}
