// Package ollama implements the NEXUS embedding capability against a
// local Ollama server, grounded on manifold's internal/embedding.client.go
// hand-rolled JSON HTTP client (Ollama has no official Go SDK in the
// retrieved pack).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus/internal/embed"
	"nexus/internal/nexuserr"
)

const defaultHost = "http://localhost:11434"
const defaultModel = "nomic-embed-text"

type Client struct {
	host       string
	model      string
	dimension  int
	httpClient *http.Client
}

func New(host, model string, httpClient *http.Client) *Client {
	if host = strings.TrimSuffix(strings.TrimSpace(host), "/"); host == "" {
		host = defaultHost
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{host: host, model: model, httpClient: httpClient}
}

func (c *Client) BackendTag() string { return "ollama" }
func (c *Client) Dimension() int     { return c.dimension }

func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode/100 == 2
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embed.EmbedQueryViaDocuments(ctx, c, text)
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedDocuments sends a single Ollama /api/embeddings request per
// batch. Ollama has no documented sub-batch limit, so the whole slice
// goes in one request.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nexuserr.New(nexuserr.BadRequest, "no texts to embed")
	}
	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "encode ollama embeddings request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "build ollama embeddings request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.ServerFault, err, "ollama unreachable at %s", c.host)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "read ollama embeddings response")
	}
	if resp.StatusCode/100 == 5 {
		return nil, nexuserr.New(nexuserr.ServerFault, "ollama server fault: %s", resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		return nil, nexuserr.New(nexuserr.Unrecoverable, "ollama embeddings error: %s: %s", resp.Status, string(respBody))
	}

	var er embeddingsResponse
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "parse ollama embeddings response")
	}
	if len(er.Embeddings) != len(texts) {
		return nil, nexuserr.New(nexuserr.Unrecoverable, "unexpected embedding count: got %d, want %d", len(er.Embeddings), len(texts))
	}
	if len(er.Embeddings) > 0 {
		c.dimension = len(er.Embeddings[0])
	}
	return er.Embeddings, nil
}
