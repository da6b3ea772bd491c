package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseOrdersByReciprocalRankSum(t *testing.T) {
	// spec.md §8 S5: vector lane ranks [A, B], lexical lane ranks [A, C].
	// A appears first in both lanes: score = 1/61 + 1/61.
	// B appears only in vector at rank 2: score = 1/62.
	// C appears only in lexical at rank 2: score = 1/62.
	vector := []Ranked[string]{{ID: "A", Payload: "a"}, {ID: "B", Payload: "b"}}
	lexical := []Ranked[string]{{ID: "A", Payload: "a"}, {ID: "C", Payload: "c"}}

	got := Fuse(vector, lexical, 0)

	assert.Equal(t, "A", got[0].ID)
	assert.Len(t, got, 3)
	// B was first-seen before C (vector lane processed first), so ties break B before C.
	assert.Equal(t, "B", got[1].ID)
	assert.Equal(t, "C", got[2].ID)
}

func TestFuseDegradesToSingleLane(t *testing.T) {
	vector := []Ranked[string]{{ID: "A"}, {ID: "B"}}
	got := Fuse(vector, nil, 0)
	assert.Equal(t, []string{"A", "B"}, idsOf(got))
}

func TestFuseRespectsLimit(t *testing.T) {
	vector := []Ranked[string]{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	got := Fuse(vector, nil, 2)
	assert.Len(t, got, 2)
}

func TestFuseEmptyBothLanes(t *testing.T) {
	assert.Empty(t, Fuse[string](nil, nil, 10))
}

func idsOf(rs []Ranked[string]) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
