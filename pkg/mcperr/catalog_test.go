package mcperr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextNormalizesKnownCode(t *testing.T) {
	out := Text(UnknownColumn, "column 'Wage' not found")
	require.Contains(t, out, "UNKNOWN_COLUMN: column 'Wage' not found")
	require.Contains(t, out, "nextSteps: Call get_column_names")
}

func TestTextFallsBackToCatalogMessage(t *testing.T) {
	out := Text(NotGrouped, "")
	require.Contains(t, out, "NOT_GROUPED: aggregation requires grouped data")
}

func TestTextfFormats(t *testing.T) {
	out := Textf(RepeatedError, "this exact input has already failed %d times", 3)
	require.Contains(t, out, "REPEATED_ERROR: this exact input has already failed 3 times")
}

func TestTextUnknownCodePassesThrough(t *testing.T) {
	out := Text(Code("MYSTERY"), "detail")
	require.Equal(t, "MYSTERY: detail", out)
}

func TestNewBuildsErrorResult(t *testing.T) {
	res := New(Validation, "bad input")
	require.True(t, res.IsError)
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(Validation))
	require.False(t, Retryable(RepeatedError))
	require.False(t, Retryable(Code("MYSTERY")))
}

func TestTransient(t *testing.T) {
	require.True(t, Transient(RateFetchFailed))
	require.True(t, Transient(BusyResource))
	require.True(t, Transient(Timeout))

	// Deterministic input failures stay non-transient so the repeated-failure
	// guard counts them.
	require.False(t, Transient(ParseFailed))
	require.False(t, Transient(UnknownColumn))
	require.False(t, Transient(Validation))
	require.False(t, Transient(Code("MYSTERY")))
}
