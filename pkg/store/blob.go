// Package store is SEFS's metadata layer: a GlobalStore holding
// provider/credential settings shared across roots, and a RootStore
// per managed root holding its files, clusters, and event log
// (spec.md §4.3). Both are thin SQL wrappers around the stdlib
// database/sql handles pkg/sqliteutil opens.
package store

import (
	"encoding/binary"
	"math"
)

// encodeEmbedding serializes a float32 vector as a little-endian blob
// (spec.md §4.3: "embeddings are stored as little-endian float32
// blobs"). A nil/empty vector encodes to an empty blob.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding reverses encodeEmbedding. A blob whose length is not
// a multiple of 4 is treated as empty rather than panicking — metadata
// rows should never fail to load over a corrupt embedding column.
func decodeEmbedding(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
