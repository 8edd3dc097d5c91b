package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/types"
)

func TestToJSONSchemaDeclaresObjectWithOnePropertyPerField(t *testing.T) {
	spec, err := types.NewTypeSpec(
		types.Field{Name: "count", Kind: types.Int64},
		types.Field{Name: "ratio", Kind: types.Float64},
		types.Field{Name: "label", Kind: types.String},
	)
	require.NoError(t, err)

	schema, err := types.ToJSONSchema(spec)
	require.NoError(t, err)
	require.Equal(t, "object", schema.Type)
	require.ElementsMatch(t, []string{"count", "ratio", "label"}, schema.Required)

	require.Equal(t, "integer", schema.Properties["count"].Type)
	require.Equal(t, "number", schema.Properties["ratio"].Type)
	require.Equal(t, "string", schema.Properties["label"].Type)
}

func TestToJSONSchemaMarksTimestampAndBinaryWithFormat(t *testing.T) {
	spec, err := types.NewTypeSpec(
		types.Field{Name: "created_at", Kind: types.Timestamp},
		types.Field{Name: "blob", Kind: types.Binary},
	)
	require.NoError(t, err)

	schema, err := types.ToJSONSchema(spec)
	require.NoError(t, err)
	require.Equal(t, "date-time", schema.Properties["created_at"].Format)
	require.Equal(t, "byte", schema.Properties["blob"].Format)
}
