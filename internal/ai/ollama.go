package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Default Ollama settings
// ---------------------------------------------------------------------------

const (
	defaultOllamaModel = "llama3"
	ollamaTimeout      = 120 * time.Second
)

// ---------------------------------------------------------------------------
// OllamaProvider
// ---------------------------------------------------------------------------

// ollamaProvider implements Provider by calling the local Ollama HTTP API.
type ollamaProvider struct {
	baseURL      string
	httpClient   *http.Client
	defaultModel string
	credential   func() string
}

// newOllamaProvider creates an Ollama-backed provider.
func newOllamaProvider(cfg ProviderConfig) (*ollamaProvider, error) {
	base := strings.TrimRight(cfg.OllamaURL, "/")
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	return &ollamaProvider{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: ollamaTimeout,
		},
		defaultModel: model,
		credential:   cfg.Credential,
	}, nil
}

// Name implements Provider.
func (o *ollamaProvider) Name() string { return "ollama" }

// Close implements Provider.
func (o *ollamaProvider) Close() error { return nil }

// ---------------------------------------------------------------------------
// Generate  — POST /api/chat  (non-streaming)
// ---------------------------------------------------------------------------

// ollamaChatRequest is the JSON body for /api/chat.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the JSON response from /api/chat (stream=false).
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// Generate implements Provider.
func (o *ollamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: o.defaultModel,
		Messages: []ollamaChatMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	var resp ollamaChatResponse
	if err := o.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", fmt.Errorf("ai/ollama: chat: %w", err)
	}
	return resp.Message.Content, nil
}

// doJSON POSTs reqBody as JSON to path and decodes the response into out.
func (o *ollamaProvider) doJSON(ctx context.Context, path string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.credential != nil {
		if key := o.credential(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
