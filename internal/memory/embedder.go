package memory

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDims = 256

// HashingEmbedder maps text to a fixed-size, L2-normalized bag-of-words
// vector using FNV-1a over lower-cased tokens.
type HashingEmbedder struct {
	Dims int
}

func NewHashingEmbedder() HashingEmbedder {
	return HashingEmbedder{Dims: DefaultDims}
}

func (e HashingEmbedder) Embed(text string) []float64 {
	dims := e.Dims
	if dims <= 0 {
		dims = DefaultDims
	}
	vec := make([]float64, dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)]++
	}
	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
