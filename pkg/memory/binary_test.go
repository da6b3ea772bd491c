package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorBytesRoundTrip(t *testing.T) {
	v := []float32{0, 1, -1, 3.14159, -273.15, 1e30, -1e-30}

	b := VectorToBytes(v)
	assert.Len(t, b, 4*len(v))

	got := BytesToVector(b)
	assert.Equal(t, v, got)
}

func TestVectorToBytesIsLittleEndian(t *testing.T) {
	b := VectorToBytes([]float32{1})
	// float32(1) = 0x3F800000, little-endian bytes: 00 00 80 3F
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, b)
}

func TestBytesToVectorEmpty(t *testing.T) {
	assert.Empty(t, BytesToVector(nil))
	assert.Empty(t, VectorToBytes(nil))
}
