package backend

import (
	"crypto/md5"
	"encoding/binary"
	"strings"
	"unicode"
)

// DefaultEmbeddingDim is the vector size used when none is configured.
const DefaultEmbeddingDim = 128

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Dim() int
	Embed(text string) []float32
}

// HashEmbedder is a deterministic bag-of-words embedder: every token is
// hashed into a signed bucket. Texts sharing words score as similar, which
// is enough for keyword-style semantic lookup without a model server.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dim() int { return e.dim }

func (e *HashEmbedder) Embed(text string) []float32 {
	v := make([]float32, e.dim)
	tokens := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		sum := md5.Sum([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(e.dim)
		if sum[4]&1 == 0 {
			v[idx]++
		} else {
			v[idx]--
		}
	}
	return normalize(v)
}
