package vector

import (
	"encoding/binary"
	"math"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// Vectors of different length are infinitely far apart.
func SquaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// InnerProduct returns the inner product of two vectors (cosine similarity when normalized).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// EncodeVector packs x as little-endian float32 bytes for storage.
func EncodeVector(x []float32) []byte {
	const size = 4
	out := make([]byte, len(x)*size)
	for i, v := range x {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// DecodeVector is the inverse of EncodeVector. Trailing bytes that do not form a full float are ignored.
func DecodeVector(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
