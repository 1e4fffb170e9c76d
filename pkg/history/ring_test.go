package history

import (
	"fmt"
	"testing"
)

func TestRingBelowCapacity(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	if got := r.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	got := r.Snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Snapshot = %v, want [a b]", got)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[string](2)
	r.Push("m1")
	r.Push("m2")
	r.Push("m3")

	if got := r.Snapshot(); len(got) != 2 || got[0] != "m2" || got[1] != "m3" {
		t.Fatalf("Snapshot after m3 = %v, want [m2 m3]", got)
	}

	r.Push("m4")
	if got := r.Snapshot(); len(got) != 2 || got[0] != "m3" || got[1] != "m4" {
		t.Fatalf("Snapshot after m4 = %v, want [m3 m4]", got)
	}
}

func TestRingWindowProperty(t *testing.T) {
	// For any N pushes into capacity C, the snapshot is the last min(N,C)
	// entries oldest to newest and Len never exceeds C.
	const capacity = 5
	for n := 0; n <= 13; n++ {
		r := NewRing[int](capacity)
		for i := 0; i < n; i++ {
			r.Push(i)
		}
		want := n
		if want > capacity {
			want = capacity
		}
		got := r.Snapshot()
		if len(got) != want || r.Len() != want {
			t.Fatalf("n=%d: len = %d (Len %d), want %d", n, len(got), r.Len(), want)
		}
		for i, v := range got {
			if v != n-want+i {
				t.Fatalf("n=%d: Snapshot = %v, not the trailing window", n, got)
			}
		}
	}
}

func TestRingCapacityClamped(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	if got := r.Snapshot(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("Snapshot = %v, want [2]", got)
	}
}

func BenchmarkRingPush(b *testing.B) {
	r := NewRing[string](100)
	for i := 0; i < b.N; i++ {
		r.Push(fmt.Sprintf("msg-%d", i))
	}
}
