package llm

import (
	"net/http"
	"time"
)

// Request is one generation request. SystemPrompt and Prompt are fully
// rendered by the caller; providers never alter the text.
type Request struct {
	Model string `json:"model"`

	SystemPrompt string `json:"system_prompt,omitempty"`
	Prompt       string `json:"prompt"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature"`

	// Sampling seed, forwarded to backends that support it.
	Seed *int `json:"seed,omitempty"`
}

// Config holds configuration for an LLM provider
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultHTTPClient returns an http.Client with sensible defaults. The
// timeout is generous since a single completion on a local 8B model can take
// minutes.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
