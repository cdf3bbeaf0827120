package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidocbench/llm"
)

// stubInferenceServer mimics the OpenAI-compatible surface of a local
// llama-server. It echoes the last user message so tests can check that
// prompts arrive intact.
func stubInferenceServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()

	r.Post("/v1/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.NotEmpty(t, body.Messages)

		last := body.Messages[len(body.Messages)-1]
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "echo: " + last.Content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Post("/v1/embeddings", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		data := make([]map[string]interface{}, len(body.Input))
		for i, text := range body.Input {
			vec := []float32{float32(len(text)), 1, 0}
			data[i] = map[string]interface{}{"index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestLocalLLMGenerate(t *testing.T) {
	server := stubInferenceServer(t)

	model, err := llm.NewLLM("local", llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	out, err := model.Generate(context.Background(), &llm.Request{
		Model:        "llama3-qlora",
		SystemPrompt: "You are an API documentation expert.",
		Prompt:       "Method: GET | Path: /users | Summary: List users | Tags: users",
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: Method: GET | Path: /users | Summary: List users | Tags: users", out)
}

func TestOpenAILLMAgainstCompatibleEndpoint(t *testing.T) {
	server := stubInferenceServer(t)

	model, err := llm.NewLLM("openai", llm.Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	out, err := model.Generate(context.Background(), &llm.Request{
		Model:  "gpt-4o-mini",
		Prompt: "Describe this endpoint.",
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: Describe this endpoint.", out)
}

func TestLocalLLMServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	model, err := llm.NewLocalLLM(llm.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), &llm.Request{Model: "llama3-qlora", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewLLMUnknownProvider(t *testing.T) {
	_, err := llm.NewLLM("bedrock", llm.Config{})
	assert.Error(t, err)

	_, err = llm.NewLLM("openai", llm.Config{})
	assert.Error(t, err)
}

func TestEmbedderPreservesOrder(t *testing.T) {
	server := stubInferenceServer(t)

	embedder := llm.NewOpenAIEmbedder(llm.Config{APIKey: "test-key", BaseURL: server.URL + "/v1"}, "")

	vectors, err := embedder.Embed(context.Background(), []string{"short", "a longer sentence"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(len("short")), vectors[0][0])
	assert.Equal(t, float32(len("a longer sentence")), vectors[1][0])
}

func TestEmbedderEmptyInput(t *testing.T) {
	embedder := llm.NewOpenAIEmbedder(llm.Config{APIKey: "test-key"}, "")
	vectors, err := embedder.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
