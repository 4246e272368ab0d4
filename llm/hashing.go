package llm

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/brunobiangulo/qoyllur/graph"
)

const defaultHashingDim = 384

// hashingProvider is an offline embedder based on signed feature hashing of
// words and character trigrams. It needs no model download, which makes it
// the default for tests and air-gapped deployments. Similar spellings
// ("Qoyllur"/"Qoyllor") land close together; synonyms do not.
type hashingProvider struct {
	cfg Config
}

// NewHashing creates a local feature-hashing embedder.
func NewHashing(cfg Config) Embedder {
	if cfg.Dim <= 0 {
		cfg.Dim = defaultHashingDim
	}
	if cfg.Model == "" {
		cfg.Model = "word-trigram"
	}
	return &hashingProvider{cfg: cfg}
}

func (p *hashingProvider) Identity() string {
	return identity(p.cfg) + "@" + strconv.Itoa(p.cfg.Dim)
}

func (p *hashingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *hashingProvider) vector(text string) []float32 {
	v := make([]float32, p.cfg.Dim)
	for _, w := range hashingWords(text) {
		p.add(v, "w:"+w, 1.0)
		padded := "^" + w + "$"
		r := []rune(padded)
		for i := 0; i+3 <= len(r); i++ {
			p.add(v, "t:"+string(r[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func (p *hashingProvider) add(v []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := int(h % uint64(len(v)))
	if h&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// hashingWords folds text the same way the entity index does, so query and
// entity vectors agree on accents.
func hashingWords(text string) []string {
	return strings.FieldsFunc(graph.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
