package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoice-collector-be/pkg/llm"
	"invoice-collector-be/pkg/resilience"
)

const dependencyName = "huggingface"

// HuggingFaceProvider is the hosted backup model behind the primary
// local one. Failures come back as typed dependency errors; a 429
// from the router must read as rate-limit, not as a generic failure.
type HuggingFaceProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ llm.LLMProvider = &HuggingFaceProvider{}

// Request payload structure (OpenAI compatible).
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewHuggingFaceProvider(apiKey, baseURL, model string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1"
	}
	return &HuggingFaceProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			// Kept under Telegram's ~60s webhook delivery window.
			Timeout: 45 * time.Second,
		},
	}
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := &llm.Options{
		Model:     p.model,
		MaxTokens: 500,
	}
	for _, o := range options {
		o(opts)
	}

	reqBody := chatRequest{
		Model:     opts.Model,
		Messages:  history,
		MaxTokens: opts.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", resilience.NewDependencyError(dependencyName, resilience.KindBadRequest, 0, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		kind := resilience.KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = resilience.KindTimeout
		}
		return "", resilience.NewDependencyError(dependencyName, kind, 0, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		// Kind left unknown; the classifier derives it from the code
		// (429 rate-limit, 401 auth, 5xx transient).
		return "", resilience.NewDependencyError(dependencyName, resilience.KindUnknown, resp.StatusCode,
			fmt.Errorf("huggingface api error (status %d): %s", resp.StatusCode, string(bodyBytes)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return "", resilience.NewDependencyError(dependencyName, resilience.KindUnknown, 0,
			fmt.Errorf("failed to decode response: %w", err))
	}

	if chatResp.Error != nil {
		return "", resilience.NewDependencyError(dependencyName, resilience.KindUnknown, 0,
			fmt.Errorf("huggingface api returned error: %s", chatResp.Error.Message))
	}

	if len(chatResp.Choices) == 0 {
		return "", resilience.NewDependencyError(dependencyName, resilience.KindUnknown, 0,
			errors.New("empty choices from huggingface api"))
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	messages := []llm.Message{
		{Role: "user", Content: prompt},
	}
	return p.Chat(ctx, messages, options...)
}
