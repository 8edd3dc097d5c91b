package hash_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/types"
)

func TestScalarIsDeterministicForEqualValues(t *testing.T) {
	a, err := hash.Scalar(types.Int64, int64(42))
	require.NoError(t, err)
	b, err := hash.Scalar(types.Int64, int64(42))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestScalarDistinguishesKindDespiteEqualBitPattern(t *testing.T) {
	asInt, err := hash.Scalar(types.Int64, int64(0))
	require.NoError(t, err)
	asFloat, err := hash.Scalar(types.Float64, float64(0))
	require.NoError(t, err)
	require.NotEqual(t, asInt, asFloat)
}

func TestScalarCanonicalizesNegativeZero(t *testing.T) {
	positive, err := hash.Scalar(types.Float64, 0.0)
	require.NoError(t, err)
	negative, err := hash.Scalar(types.Float64, math.Copysign(0, -1))
	require.NoError(t, err)
	require.Equal(t, positive, negative)
}

func TestScalarCanonicalizesEveryNaNBitPattern(t *testing.T) {
	nan1, err := hash.Scalar(types.Float64, math.NaN())
	require.NoError(t, err)
	// A different NaN bit pattern than math.NaN()'s own.
	otherNaN := math.Float64frombits(0x7ff0000000000001)
	nan2, err := hash.Scalar(types.Float64, otherNaN)
	require.NoError(t, err)
	require.Equal(t, nan1, nan2)
}

func TestScalarTimestampNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, loc)
	utc := local.UTC()

	a, err := hash.Scalar(types.Timestamp, local)
	require.NoError(t, err)
	b, err := hash.Scalar(types.Timestamp, utc)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestRecordHashIsInsensitiveToFieldInsertionOrder(t *testing.T) {
	spec, err := types.NewTypeSpec(
		types.Field{Name: "a", Kind: types.Int64},
		types.Field{Name: "b", Kind: types.String},
	)
	require.NoError(t, err)

	h1, err := hash.Record(map[string]any{"a": int64(1), "b": "x"}, spec)
	require.NoError(t, err)
	h2, err := hash.Record(map[string]any{"b": "x", "a": int64(1)}, spec)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestRecordHashChangesWithValue(t *testing.T) {
	spec, err := types.NewTypeSpec(types.Field{Name: "a", Kind: types.Int64})
	require.NoError(t, err)

	h1, err := hash.Record(map[string]any{"a": int64(1)}, spec)
	require.NoError(t, err)
	h2, err := hash.Record(map[string]any{"a": int64(2)}, spec)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestSchemaHashIsInsensitiveToFieldOrder(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "x", Kind: types.Int64}, types.Field{Name: "y", Kind: types.String})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "y", Kind: types.String}, types.Field{Name: "x", Kind: types.Int64})
	require.NoError(t, err)

	require.Equal(t, hash.Schema(a), hash.Schema(b))
}

func TestConcatIsOrderSensitive(t *testing.T) {
	a := hash.HashBytes([]byte("a"))
	b := hash.HashBytes([]byte("b"))
	require.NotEqual(t, hash.Concat(a, b), hash.Concat(b, a))
}

func TestParseRoundTripsString(t *testing.T) {
	d := hash.HashBytes([]byte("round trip me"))
	got, err := hash.Parse(d.String())
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := hash.Parse("not-hex!!")
	require.Error(t, err)
}
