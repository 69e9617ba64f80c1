// Package vertex implements the NEXUS embedding capability against
// Vertex AI's embedding models via google.golang.org/genai, sub-batching
// at 250 items per the specification.
package vertex

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"nexus/internal/embed"
	"nexus/internal/llm/retry"
	"nexus/internal/nexuserr"
)

const defaultModel = "text-embedding-004"
const subBatchSize = 250

type Client struct {
	project   string
	location  string
	model     string
	dimension int

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

func (c *Client) BackendTag() string { return "vertex" }
func (c *Client) Dimension() int     { return c.dimension }

func (c *Client) IsAvailable(ctx context.Context) bool {
	sdk, err := c.client(ctx)
	if err != nil {
		return false
	}
	_, err = sdk.Models.Get(ctx, c.model, nil)
	return err == nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embed.EmbedQueryViaDocuments(ctx, c, text)
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nexuserr.New(nexuserr.BadRequest, "no texts to embed")
	}
	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range embed.Batches(texts, subBatchSize) {
		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}
		var vecs [][]float32
		retryErr := retry.Do(ctx, func() error {
			resp, genErr := sdk.Models.EmbedContent(ctx, c.model, contents, nil)
			if genErr != nil {
				return classifyError(genErr)
			}
			vecs = make([][]float32, len(resp.Embeddings))
			for i, e := range resp.Embeddings {
				vecs[i] = e.Values
			}
			return nil
		})
		if retryErr != nil {
			return nil, retryErr
		}
		out = append(out, vecs...)
	}
	if len(out) > 0 {
		c.dimension = len(out[0])
	}
	return out, nil
}

func classifyError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate"):
		return nexuserr.Wrap(nexuserr.RateLimit, err, "vertex rate limited")
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "unavailable"):
		return nexuserr.Wrap(nexuserr.ServerFault, err, "vertex server fault")
	default:
		return nexuserr.Wrap(nexuserr.Unrecoverable, err, "vertex embed failed")
	}
}
