package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scrypster/intentgap/pkg/types"
)

// SerializeVector converts a vector to its binary representation.
// Uses little-endian float32, 4 bytes per component.
func SerializeVector(vec types.Vector) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DeserializeVector converts a binary representation back to a vector.
// dimension is used to validate the buffer size.
func DeserializeVector(buf []byte, dimension int) (types.Vector, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}

	expectedSize := dimension * 4
	if len(buf) != expectedSize {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}

	vec := make(types.Vector, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
