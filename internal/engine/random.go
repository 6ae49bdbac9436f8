package engine

import "math/rand"

// Shuffle returns a Fisher-Yates permutation of in as a new slice. The input is
// never mutated; an empty input yields an empty (non-nil) result.
func Shuffle[T any](r *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ChooseOne picks a uniformly random element. Callers must guard non-empty input.
func ChooseOne[T any](r *rand.Rand, in []T) T {
	return in[r.Intn(len(in))]
}
