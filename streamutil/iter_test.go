package streamutil_test

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/streamutil"
)

func TestMapAppliesFunctionLazily(t *testing.T) {
	in := streamutil.FromSlice([]int{1, 2, 3})
	mapped := streamutil.Map(in, func(a int) int { return a * 2 })

	got, err := streamutil.Collect(mapped)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6}, got)
}

func TestMapStopsOnDownstreamEarlyTermination(t *testing.T) {
	in := streamutil.FromSlice([]int{1, 2, 3, 4})
	mapped := streamutil.Map(in, func(a int) int { return a })

	var seen []int
	mapped(func(v int, _ error) bool {
		seen = append(seen, v)
		return len(seen) < 2
	})
	require.Equal(t, []int{1, 2}, seen)
}

func TestMapFilterKeepsOnlyMatchedValues(t *testing.T) {
	in := func(yield func(int) bool) {
		for _, v := range []int{1, 2, 3, 4, 5} {
			if !yield(v) {
				return
			}
		}
	}
	var evens iter.Seq[int] = streamutil.MapFilter[int, int](in, func(a int) (int, bool) {
		if a%2 == 0 {
			return a, true
		}
		return 0, false
	})

	var got []int
	evens(func(v int) bool {
		got = append(got, v)
		return true
	})
	require.Equal(t, []int{2, 4}, got)
}

func TestCollectReturnsFirstErrorAndStops(t *testing.T) {
	boom := errors.New("boom")
	in := func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		if !yield(0, boom) {
			return
		}
		yield(2, nil)
	}

	got, err := streamutil.Collect(in)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1}, got)
}

func TestCollectSetDeduplicates(t *testing.T) {
	in := func(yield func(int) bool) {
		for _, v := range []int{1, 1, 2, 3, 3, 3} {
			if !yield(v) {
				return
			}
		}
	}
	set := streamutil.CollectSet(in)
	require.Equal(t, map[int]struct{}{1: {}, 2: {}, 3: {}}, set)
}

func TestFromSliceYieldsNilErrorForEveryElement(t *testing.T) {
	got, err := streamutil.Collect(streamutil.FromSlice([]string{"a", "b"}))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}
