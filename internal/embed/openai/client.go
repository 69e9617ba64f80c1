// Package openai implements the NEXUS embedding capability against the
// OpenAI embeddings endpoint using the official SDK, sub-batching at
// 100 items per the specification.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"nexus/internal/embed"
	"nexus/internal/llm/retry"
	"nexus/internal/nexuserr"
)

const defaultModel = "text-embedding-3-small"
const subBatchSize = 100

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	dimension  int

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

func (c *Client) BackendTag() string { return "openai" }
func (c *Client) Dimension() int     { return c.dimension }

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.client().Models.Get(ctx, c.model)
	return err == nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embed.EmbedQueryViaDocuments(ctx, c, text)
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nexuserr.New(nexuserr.BadRequest, "no texts to embed")
	}
	out := make([][]float32, 0, len(texts))
	for _, batch := range embed.Batches(texts, subBatchSize) {
		var vecs [][]float32
		err := retry.Do(ctx, func() error {
			resp, err := c.client().Embeddings.New(ctx, sdk.EmbeddingNewParams{
				Model: sdk.EmbeddingModel(c.model),
				Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			})
			if err != nil {
				return classifyError(err)
			}
			vecs = make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vec := make([]float32, len(d.Embedding))
				for j, v := range d.Embedding {
					vec[j] = float32(v)
				}
				vecs[i] = vec
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if len(out) > 0 {
		c.dimension = len(out[0])
	}
	return out, nil
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
	return nexuserr.Wrap(nexuserr.Unrecoverable, err, "openai embed failed")
}
