package store

import (
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
)

// encodeEmbedding serializes a unit-norm f32 vector to the little-endian
// BLOB layout §6.2 requires, reusing sqlite-vec's own serializer so the
// on-disk bytes stay compatible with the vec0 extension registered by the
// blank import in sqlite_store.go.
func encodeEmbedding(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(v)
}

// decodeEmbedding is the inverse of encodeEmbedding: little-endian f32
// blob -> vector. Returns nil for an empty/nil blob (no embedding stored).
func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
