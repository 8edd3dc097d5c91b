// Package streamutil provides generic lazy iterator combinators that work
// without materializing intermediate slices. Adapted from the iterutil
// helpers of the telemetry global-monitor service: Map, Collect and
// FromSlice use the error-carrying Seq2 shape streams need, while MapFilter
// and CollectSet keep the plain iter.Seq shape.
package streamutil

import "iter"

// Map returns a new iter.Seq2 whose elements are produced by applying f to
// each element of in. The returned sequence is lazy and respects early
// termination: if the downstream yield function returns false, iteration
// stops immediately.
func Map[A, B, E any](in iter.Seq2[A, E], f func(A) B) iter.Seq2[B, E] {
	return func(yield func(B, E) bool) {
		in(func(a A, e E) bool {
			return yield(f(a), e)
		})
	}
}

// MapFilter applies f to each element of in, yielding only the values for
// which f reports ok == true. The sequence is lazy and performs no
// intermediate allocation.
func MapFilter[A, B any](in iter.Seq[A], f func(A) (B, bool)) iter.Seq[B] {
	return func(yield func(B) bool) {
		in(func(a A) bool {
			if b, ok := f(a); ok {
				return yield(b)
			}
			return true
		})
	}
}

// Collect fully consumes in, returning every yielded value and the first
// error encountered (after which iteration stops). A nil error means every
// element was consumed.
func Collect[A any](in iter.Seq2[A, error]) ([]A, error) {
	var out []A
	var firstErr error
	in(func(a A, err error) bool {
		if err != nil {
			firstErr = err
			return false
		}
		out = append(out, a)
		return true
	})
	return out, firstErr
}

// CollectSet consumes the input sequence and returns a set represented as
// map[A]struct{}. Duplicate elements naturally collapse since map keys are
// unique.
func CollectSet[A comparable](in iter.Seq[A]) map[A]struct{} {
	m := make(map[A]struct{})
	in(func(a A) bool {
		m[a] = struct{}{}
		return true
	})
	return m
}

// FromSlice adapts a plain slice into an error-free iter.Seq2, for sources
// that have already fully materialized (e.g. a cached stream replaying its
// memoized records).
func FromSlice[A any](items []A) iter.Seq2[A, error] {
	return func(yield func(A, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}
