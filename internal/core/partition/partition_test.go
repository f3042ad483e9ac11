package partition

import (
	"strconv"
	"testing"
)

func TestFor_Determinism(t *testing.T) {
	// Same input must always produce the same partition.
	id := For("player-abc", 8)
	for i := 0; i < 100; i++ {
		if got := For("player-abc", 8); got != id {
			t.Fatalf("For(\"player-abc\", 8) = %d on iteration %d, want %d", got, i, id)
		}
	}
}

func TestFor_Range(t *testing.T) {
	inputs := []string{"", "a", "player-1", "player-2", "2537169e-2619-11e7-b8b8-0667b0c5ccfd"}
	for _, count := range []int{2, 3, 16} {
		for _, s := range inputs {
			p := For(s, count)
			if p < 0 || p >= count {
				t.Errorf("For(%q, %d) = %d, want [0, %d)", s, count, p, count)
			}
		}
	}
}

func TestFor_SinglePartition(t *testing.T) {
	for _, count := range []int{-1, 0, 1} {
		if got := For("player-1", count); got != 0 {
			t.Errorf("For(\"player-1\", %d) = %d, want 0", count, got)
		}
	}
}

func TestFor_Distribution(t *testing.T) {
	// 1 000 players over 16 partitions should touch every partition.
	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		seen[For("player-"+strconv.Itoa(i), 16)] = struct{}{}
	}
	if len(seen) != 16 {
		t.Errorf("only %d distinct partitions from 1000 inputs, want 16", len(seen))
	}
}
