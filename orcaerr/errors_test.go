package orcaerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/orcaerr"
)

func TestIsKindMatchesDirectError(t *testing.T) {
	err := orcaerr.SchemaMismatch("op", "bad schema", nil)
	require.True(t, orcaerr.IsKind(err, orcaerr.KindSchemaMismatch))
	require.False(t, orcaerr.IsKind(err, orcaerr.KindNameCollision))
}

func TestIsKindMatchesThroughWrapping(t *testing.T) {
	inner := orcaerr.MissingField("op", "missing x", nil)
	wrapped := fmt.Errorf("context: %w", inner)
	require.True(t, orcaerr.IsKind(wrapped, orcaerr.KindMissingField))
}

func TestIsKindReturnsFalseForUnrelatedError(t *testing.T) {
	require.False(t, orcaerr.IsKind(errors.New("plain"), orcaerr.KindMissingField))
	require.False(t, orcaerr.IsKind(nil, orcaerr.KindMissingField))
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := orcaerr.UnsupportedType("op", "bad type", cause)
	require.ErrorIs(t, err, cause)
}

func TestErrorMessageIncludesKindOperationAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := orcaerr.FingerprintCollision("store.PutTable", "content mismatch", cause)
	msg := err.Error()
	require.Contains(t, msg, string(orcaerr.KindFingerprintCollision))
	require.Contains(t, msg, "store.PutTable")
	require.Contains(t, msg, "content mismatch")
	require.Contains(t, msg, "disk full")
}

func TestWithFieldDoesNotMutateReceiver(t *testing.T) {
	base := orcaerr.PipelineStateError("pipeline.Run", "already exited")
	withField := base.WithField("node_label", "n1")

	require.Empty(t, base.Fields())
	require.Equal(t, map[string]any{"node_label": "n1"}, withField.Fields())
}

func TestWithFieldAccumulatesAcrossCalls(t *testing.T) {
	err := orcaerr.PipelineStateError("pipeline.Run", "bad state").
		WithField("a", 1).
		WithField("b", 2)

	require.Equal(t, map[string]any{"a": 1, "b": 2}, err.Fields())
}

func TestPodRuntimeErrorCarriesNodeLabelAndTag(t *testing.T) {
	cause := errors.New("boom")
	tag := map[string]any{"sample": "s1"}
	err := orcaerr.PodRuntimeError("n1", tag, cause)

	require.True(t, orcaerr.IsKind(err, orcaerr.KindPodRuntimeError))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "n1", err.Fields()["node_label"])
	require.Equal(t, tag, err.Fields()["input_tag"])
}
