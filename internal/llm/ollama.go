package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaBackend uses a local Ollama instance for completions and embeddings.
type OllamaBackend struct {
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaBackend creates a backend. Default models: llama3.2 for chat,
// nomic-embed-text for embeddings.
func NewOllamaBackend(baseURL, chatModel, embedModel string) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if chatModel == "" {
		chatModel = "llama3.2"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	return &OllamaBackend{
		baseURL:    baseURL,
		chatModel:  chatModel,
		embedModel: embedModel,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *OllamaBackend) Complete(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateRequest{
		Model:  b.chatModel,
		Prompt: req.Prompt,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	var out ollamaGenerateResponse
	if err := b.post(ctx, "/api/generate", body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	var out ollamaEmbedResponse
	if err := b.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: b.embedModel, Prompt: text}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

func (b *OllamaBackend) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
