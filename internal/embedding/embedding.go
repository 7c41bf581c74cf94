// Package embedding holds embedding vectors and the similarity measure used to
// compare them.
package embedding

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// Vector is a float32 embedding vector. A nil Vector means "no embedding".
type Vector = []float32

// CosineSimilarity computes cosine similarity between two vectors. It is 0 when
// either vector is empty, their lengths differ, or either has zero norm.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	fa, fb := widen(a), widen(b)
	na, nb := floats.Norm(fa, 2), floats.Norm(fb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(fa, fb) / (na * nb)
}

func widen(v Vector) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// FromFloat64 narrows a float64 embedding (as returned by most HTTP APIs).
func FromFloat64(v []float64) Vector {
	if len(v) == 0 {
		return nil
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Encode packs a vector as little-endian float32 bytes for storage.
func Encode(v Vector) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

// Decode is the inverse of Encode. Malformed input yields nil.
func Decode(b []byte) Vector {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// Hashed builds a deterministic bag-of-words vector by hashing each lowercase
// word into one of dims buckets. Texts sharing words get positive similarity.
func Hashed(text string, dims int) Vector {
	if dims <= 0 {
		dims = 64
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	v := make(Vector, dims)
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}
