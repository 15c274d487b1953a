// Package ollama speaks the HTTP API of an Ollama-compatible generative
// backend. Generation traffic flows through a resilient Sender; cheap
// maintenance calls (tags, pull) use a plain HTTP client.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leafwise/budtender/internal/retry"
)

// Schema describes the expected JSON output structure for structured
// generate responses.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Options are the sampling options passed through to generate calls.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
}

// Sender executes one outbound call, retrying per its own policy.
type Sender interface {
	Send(ctx context.Context, req retry.Request) ([]byte, error)
}

// Client communicates with an Ollama-compatible backend. The base URL is
// supplied per call so endpoint failover is picked up mid-session.
type Client struct {
	host       func() string
	sender     Sender
	httpClient *http.Client
}

// New creates a Client. host returns the current backend base URL; sender
// carries the generate traffic.
func New(host func() string, sender Sender) *Client {
	return &Client{
		host:   host,
		sender: sender,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// FixedHost adapts a static base URL to the host func New expects.
func FixedHost(baseURL string) func() string {
	base := strings.TrimRight(baseURL, "/")
	return func() string { return base }
}

func (c *Client) base() string {
	return strings.TrimRight(c.host(), "/")
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Format  any      `json:"format,omitempty"`
	Options *Options `json:"options,omitempty"`
}

// generateResponse is the JSON returned by POST /api/generate (non-streaming).
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate asks model to complete prompt and returns the generated text.
// An empty completion counts as a failure so callers can fall back.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts *Options) (string, error) {
	return c.generate(ctx, model, prompt, nil, opts)
}

// GenerateStructured constrains the completion to the given JSON schema
// and returns the raw JSON text.
func (c *Client) GenerateStructured(ctx context.Context, model, prompt string, schema *Schema, opts *Options) (string, error) {
	return c.generate(ctx, model, prompt, schema, opts)
}

func (c *Client) generate(ctx context.Context, model, prompt string, schema *Schema, opts *Options) (string, error) {
	gr := generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts,
	}
	if schema != nil {
		gr.Format = schema
	}

	body, err := json.Marshal(gr)
	if err != nil {
		return "", err
	}

	data, err := c.sender.Send(ctx, retry.Request{
		Method:      http.MethodPost,
		URL:         c.base() + "/api/generate",
		ContentType: "application/json",
		Body:        body,
		Idempotent:  true,
		ExpectJSON:  true,
	})
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}

	var result generateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}
	if result.Response == "" {
		return "", fmt.Errorf("generate: empty completion")
	}
	return result.Response, nil
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name string `json:"name"`
}

// IsRunning returns true if the backend responds to GET /api/tags with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of all models available on the backend.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether the given model name is present on the backend.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		// The backend may return "llama3.1:latest"; match without tag suffix.
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// pullRequest is the JSON body for POST /api/pull.
type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// PullModel downloads a model, reading the streamed progress to completion.
// The optional progress callback receives each progress line; pass nil to ignore.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(pullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull %s: unexpected status %d", name, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}

	return nil
}
