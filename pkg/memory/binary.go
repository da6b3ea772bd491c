// Package memory implements the long-term memory store's hybrid search:
// reciprocal rank fusion over a vector lane and a lexical lane (spec.md
// §4.2), plus the packed embedding binary format and soft-delete
// semantics.
package memory

import (
	"encoding/binary"
	"math"
)

// VectorToBytes packs a float32 vector as a densely packed little-endian
// IEEE-754 sequence of length 4*len(v) bytes. This is an on-disk wire
// format — spec.md §9 is explicit that migrating endianness would break
// existing reads, so this encoding must never change.
func VectorToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToVector unpacks a byte slice produced by VectorToBytes. Readers
// decode by dividing byte length by 4, so a truncated or misaligned
// buffer yields a truncated vector rather than an error.
func BytesToVector(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
