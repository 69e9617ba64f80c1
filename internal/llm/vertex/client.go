// Package vertex implements the NEXUS generation capability against
// Vertex AI's Gemini models using google.golang.org/genai configured for
// the Vertex backend.
package vertex

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"nexus/internal/llm"
	"nexus/internal/llm/retry"
	"nexus/internal/nexuserr"
)

const defaultModel = "gemini-1.5-flash"

// Client is the Vertex-backed llm.Provider. Unlike the teacher client
// this package is grounded on, the genai.Client is not constructed in
// New: it is built on first use so that Client construction carries no
// network or auth side effects.
type Client struct {
	project  string
	location string
	model    string

	sdk *genai.Client
}

func New(project, location, model string) (*Client, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, nexuserr.New(nexuserr.Unconfigured, "GOOGLE_CLOUD_PROJECT is required for provider %q", "vertex")
	}
	if location = strings.TrimSpace(location); location == "" {
		location = "us-central1"
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Client{project: project, location: location, model: model}, nil
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	if c.sdk == nil {
		sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  c.project,
			Location: c.location,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, nexuserr.Wrap(nexuserr.Unconfigured, err, "init vertex client")
		}
		c.sdk = sdk
	}
	return c.sdk, nil
}

func (c *Client) Model() string      { return c.model }
func (c *Client) BackendTag() string { return "vertex" }

func (c *Client) IsAvailable(ctx context.Context) bool {
	sdk, err := c.client(ctx)
	if err != nil {
		return false
	}
	_, err = sdk.Models.Get(ctx, c.model, nil)
	return err == nil
}

func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	sdk, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	var system *genai.Content
	var contents []*genai.Content
	for _, m := range req.AsMessages() {
		switch m.Role {
		case llm.RoleSystem:
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if system != nil {
		cfg.SystemInstruction = system
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}

	var text string
	err = retry.Do(ctx, func() error {
		resp, genErr := sdk.Models.GenerateContent(ctx, c.model, contents, cfg)
		if genErr != nil {
			return classifyError(genErr)
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// classifyError has no stable status-code type to inspect in genai's
// error surface, so it treats the message for the two retryable
// conditions the specification requires and otherwise reports
// unrecoverable.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate"):
		return nexuserr.Wrap(nexuserr.RateLimit, err, "vertex rate limited")
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "unavailable"):
		return nexuserr.Wrap(nexuserr.ServerFault, err, "vertex server fault")
	default:
		return nexuserr.Wrap(nexuserr.Unrecoverable, err, "vertex generate failed")
	}
}
