package engine

import (
	"math/rand"
	"sort"
	"testing"
)

func TestShuffleIsPermutation(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 5, 50} {
		in := make([]int, n)
		for i := range in {
			in[i] = i * 3
		}
		out := Shuffle(r, in)
		if len(out) != len(in) {
			t.Fatalf("n=%d: length changed: %d", n, len(out))
		}
		a := append([]int(nil), in...)
		b := append([]int(nil), out...)
		sort.Ints(a)
		sort.Ints(b)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("n=%d: not a permutation: %v vs %v", n, in, out)
			}
		}
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	in := []string{"a", "b", "c", "d", "e"}
	want := append([]string(nil), in...)
	for i := 0; i < 20; i++ {
		Shuffle(r, in)
	}
	for i := range in {
		if in[i] != want[i] {
			t.Fatalf("input mutated: %v", in)
		}
	}
}

func TestShuffleEmpty(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	out := Shuffle(r, []int{})
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", out)
	}
}

func TestChooseOneMembership(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	in := []string{"x", "y", "z"}
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		v := ChooseOne(r, in)
		if v != "x" && v != "y" && v != "z" {
			t.Fatalf("picked element outside the set: %q", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected every element eventually picked, saw %v", seen)
	}
}
