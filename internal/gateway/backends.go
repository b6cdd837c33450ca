package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaBackend calls a local Ollama-compatible completion endpoint.
type OllamaBackend struct {
	endpoint string
	client   *http.Client
}

func NewOllamaBackend(endpoint string) *OllamaBackend {
	return &OllamaBackend{endpoint: endpoint, client: &http.Client{Timeout: 60 * time.Second}}
}

type ollamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type ollamaResponse struct {
	Response       string `json:"response"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
}

func (b *OllamaBackend) Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, int, int, error) {
	body, err := json.Marshal(ollamaRequest{Model: "devstral-small-2", Prompt: prompt, System: system, Temperature: temperature, Stream: false})
	if err != nil {
		return "", 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("local backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("local backend returned status %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, err
	}
	return out.Response, out.PromptEvalCount, out.EvalCount, nil
}

// MistralCloudBackend calls a hosted Mistral-compatible chat completion
// endpoint for the cloud sanity-check model.
type MistralCloudBackend struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewMistralCloudBackend(endpoint, apiKey string) *MistralCloudBackend {
	return &MistralCloudBackend{endpoint: endpoint, apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
}

func (b *MistralCloudBackend) Name() string { return "mistral-cloud" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (b *MistralCloudBackend) Generate(ctx context.Context, prompt, model string) (string, int, int, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("cloud backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("cloud backend returned status %d", resp.StatusCode)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, err
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("cloud backend returned no choices")
	}
	return out.Choices[0].Message.Content, out.Usage.PromptTokens, out.Usage.CompletionTokens, nil
}
