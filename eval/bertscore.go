package eval

import (
	"context"
	"fmt"
	"math"

	"apidocbench/llm"
)

// BertScores computes semantic similarity for each candidate/reference pair
// as the cosine similarity of their embeddings. Pairs with an empty candidate
// score 0 and are never sent to the embedder. Scores are in [0, 1]; negative
// cosines are clamped.
func BertScores(ctx context.Context, embedder llm.Embedder, candidates, references []string) ([]float64, error) {
	if len(candidates) != len(references) {
		return nil, fmt.Errorf("got %d candidates for %d references", len(candidates), len(references))
	}

	scores := make([]float64, len(candidates))

	var texts []string
	var indices []int
	for i, candidate := range candidates {
		if len(Tokenize(candidate)) == 0 || len(Tokenize(references[i])) == 0 {
			continue
		}
		texts = append(texts, candidate, references[i])
		indices = append(indices, i)
	}
	if len(texts) == 0 {
		return scores, nil
	}

	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("error embedding texts: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	for j, i := range indices {
		similarity := cosine(embeddings[2*j], embeddings[2*j+1])
		scores[i] = math.Max(similarity, 0)
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
