package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/harun/agentengine/internal/observability"
)

// Chunk is a scored snippet of retrieved context
type Chunk struct {
	ID     string  `json:"id" yaml:"id"`
	Text   string  `json:"text" yaml:"text"`
	Source string  `json:"source" yaml:"source"`
	Score  float64 `json:"score" yaml:"-"`
}

// Retriever returns up to k chunks relevant to query
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}

// KeywordRetriever scores a static corpus by word overlap with the query
type KeywordRetriever struct {
	corpus []Chunk
}

// NewKeywordRetriever creates a retriever over corpus. A nil corpus uses SampleCorpus.
func NewKeywordRetriever(corpus []Chunk) *KeywordRetriever {
	if corpus == nil {
		corpus = SampleCorpus()
	}
	copied := make([]Chunk, len(corpus))
	copy(copied, corpus)
	return &KeywordRetriever{corpus: copied}
}

// Retrieve implements Retriever.
// Score is the share of distinct query words present in the chunk, rounded to 4 places.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	queryWords := wordSet(query)
	scored := []Chunk{}
	if len(queryWords) > 0 && k > 0 {
		for _, chunk := range r.corpus {
			textWords := wordSet(chunk.Text)
			overlap := 0
			for w := range queryWords {
				if _, ok := textWords[w]; ok {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			chunk.Score = math.Round(float64(overlap)/float64(len(queryWords))*10000) / 10000
			scored = append(scored, chunk)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}

	observability.RecordRetrieval(time.Since(start), len(scored))
	return scored, nil
}

// Len returns the corpus size
func (r *KeywordRetriever) Len() int {
	return len(r.corpus)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
