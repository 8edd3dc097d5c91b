package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/types"
)

func TestNewTypeSpecRejectsDuplicateFieldNames(t *testing.T) {
	_, err := types.NewTypeSpec(
		types.Field{Name: "id", Kind: types.Int64},
		types.Field{Name: "id", Kind: types.String},
	)
	require.Error(t, err)
}

func TestKeysPreservesDeclarationOrder(t *testing.T) {
	ts, err := types.NewTypeSpec(
		types.Field{Name: "b", Kind: types.Int64},
		types.Field{Name: "a", Kind: types.String},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, ts.Keys())
}

func TestSameFieldsIgnoresOrder(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "x", Kind: types.Int64}, types.Field{Name: "y", Kind: types.String})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "y", Kind: types.String}, types.Field{Name: "x", Kind: types.Int64})
	require.NoError(t, err)

	require.True(t, a.SameFields(b))
	require.False(t, a.Equal(b))
}

func TestUnionRejectsOverlappingNames(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "x", Kind: types.Int64})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "x", Kind: types.String})
	require.NoError(t, err)

	_, err = types.Union(a, b)
	require.Error(t, err)
}

func TestUnionConcatenatesDisjointFields(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "x", Kind: types.Int64})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "y", Kind: types.String})
	require.NoError(t, err)

	u, err := types.Union(a, b)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, u.Keys())
}

func TestReconcileRejectsKindMismatchOnSharedKey(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.Int64})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.String})
	require.NoError(t, err)

	_, err = types.Reconcile(a, b, []string{"id"})
	require.Error(t, err)
}

func TestReconcileCountsSharedKeysOnce(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.Int64}, types.Field{Name: "left_only", Kind: types.String})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.Int64}, types.Field{Name: "right_only", Kind: types.Float64})
	require.NoError(t, err)

	merged, err := types.Reconcile(a, b, []string{"id"})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "left_only", "right_only"}, merged.Keys())
}

func TestReconcileRejectsNonSharedNameCollision(t *testing.T) {
	a, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.Int64}, types.Field{Name: "dup", Kind: types.String})
	require.NoError(t, err)
	b, err := types.NewTypeSpec(types.Field{Name: "id", Kind: types.Int64}, types.Field{Name: "dup", Kind: types.String})
	require.NoError(t, err)

	_, err = types.Reconcile(a, b, []string{"id"})
	require.Error(t, err)
}
