// Package ollama implements the NEXUS generation capability against a
// local Ollama server via its raw HTTP chat API, grounded on the
// request/response shape manifold's internal/embedding.client.go uses
// for its own local HTTP round trip.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus/internal/llm"
	"nexus/internal/nexuserr"
)

const defaultHost = "http://localhost:11434"
const defaultModel = "llama3.1"

// Client is the Ollama-backed llm.Provider. There is no credential to
// validate and no SDK handle to build, so New has no lazy-construction
// concern beyond not probing the host eagerly.
type Client struct {
	host       string
	model      string
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
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{host: host, model: model, httpClient: httpClient}
}

func (c *Client) Model() string      { return c.model }
func (c *Client) BackendTag() string { return "ollama" }

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

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Generate is not retried: Ollama runs locally, so a failure is returned
// to the caller at once. A connection error or a 5xx status is reported
// as server_fault, a 429 as rate_limit, and anything else as
// unrecoverable.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.AsMessages()))
	for _, m := range req.AsMessages() {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "encode ollama request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "build ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.ServerFault, err, "ollama unreachable at %s", c.host)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "read ollama response")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", nexuserr.New(nexuserr.RateLimit, "ollama rate limited")
	}
	if resp.StatusCode/100 == 5 {
		return "", nexuserr.New(nexuserr.ServerFault, "ollama server fault: %s", resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		return "", nexuserr.New(nexuserr.Unrecoverable, "ollama chat error: %s: %s", resp.Status, string(respBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", nexuserr.Wrap(nexuserr.Unrecoverable, err, "parse ollama response: %s", string(respBody[:min(200, len(respBody))]))
	}
	return cr.Message.Content, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
