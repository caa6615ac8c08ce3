package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

const defaultHashDimensions = 256

// NewHashEmbedder returns an offline embedding function that hashes word
// tokens into a fixed-size bag-of-words vector. Texts sharing words end up
// close to each other, which is enough for preference recall without a model
// server.
func NewHashEmbedder(dimensions int) chromem.EmbeddingFunc {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return func(_ context.Context, text string) ([]float32, error) {
		return hashEmbed(text, dimensions), nil
	}
}

func hashEmbed(text string, dimensions int) []float32 {
	vec := make([]float32, dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(dimensions))
		// high bit picks the sign so collisions partly cancel out
		if sum>>63 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	return normalize(vec)
}

// normalize scales vec to unit length. A zero vector maps to the first axis
// so that empty texts still have a valid direction.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
