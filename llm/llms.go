package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// LLM is the interface generation runs against. Generate blocks until the
// full completion is available.
type LLM interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// OpenAILLM implements LLM against the OpenAI API, or any endpoint speaking
// the same protocol when BaseURL is set.
type OpenAILLM struct {
	client *openai.Client
}

func NewOpenAILLM(config Config) *OpenAILLM {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}
	return &OpenAILLM{client: openai.NewClientWithConfig(clientConfig)}
}

func (l *OpenAILLM) Generate(ctx context.Context, req *Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Seed:        req.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("error creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// LocalLLM implements LLM against a llama-server style endpoint serving the
// base or adapter-merged model on this machine's GPU.
type LocalLLM struct {
	config Config
}

func NewLocalLLM(config Config) (*LocalLLM, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base url required for local llm")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = DefaultHTTPClient()
	}

	endpoint, err := url.JoinPath(config.BaseURL, "v1/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("error creating API URL: %w", err)
	}
	config.BaseURL = endpoint

	return &LocalLLM{config: config}, nil
}

func (l *LocalLLM) Generate(ctx context.Context, req *Request) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]interface{}{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
		"stream":      false,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.config.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.config.APIKey)
	}

	resp, err := l.config.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// This pattern helps in easily mocking the LLM provider in tests
// NewLLMFunc is the type for the provider factory function
type NewLLMFunc func(provider string, config Config) (LLM, error)

// NewLLM creates a new LLM provider based on the specified type
var NewLLM NewLLMFunc = func(provider string, config Config) (LLM, error) {
	if config.HTTPClient == nil {
		config.HTTPClient = DefaultHTTPClient()
	}

	switch strings.ToLower(provider) {
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("API key required for OpenAI")
		}
		return NewOpenAILLM(config), nil
	case "local":
		return NewLocalLLM(config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
