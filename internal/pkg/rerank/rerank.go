package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const embeddingModel = openai.EmbeddingModelTextEmbedding3Small

// ErrMissingAPIKey is returned when OPENAI_API_KEY was not configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// Reranker scores candidate texts against a question by embedding cosine
// similarity.
type Reranker struct {
	client *openai.Client
}

func New(apiKey string) *Reranker {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Reranker{client: &client}
}

// NewFromEnv builds a Reranker using the OPENAI_API_KEY env var.
func NewFromEnv() (*Reranker, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	return New(apiKey), nil
}

// Rank returns one relevance score per candidate, in input order. Question
// and candidates are embedded in a single batch call.
func (r *Reranker) Rank(ctx context.Context, question string, candidates []string) ([]float64, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("Reranker is not initialized")
	}

	if len(candidates) == 0 {
		return nil, errors.New("no candidates to rank")
	}

	inputs := append([]string{question}, candidates...)

	resp, err := r.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("call OpenAI: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	// The API may return embeddings out of order; index them explicitly.
	vectors := make([][]float64, len(inputs))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(inputs) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = CosineSimilarity(vectors[0], vectors[i+1])
	}

	return scores, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors, or
// zero when either has no magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ranked pairs a candidate index with its score.
type Ranked struct {
	Index int
	Score float64
}

// Top returns the indices of the n best-scoring candidates, highest first.
func Top(scores []float64, n int) []Ranked {
	ranked := make([]Ranked, len(scores))
	for i, score := range scores {
		ranked[i] = Ranked{Index: i, Score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}

	return ranked
}
