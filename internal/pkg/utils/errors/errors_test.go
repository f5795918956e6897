package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiError_Empty(t *testing.T) {
	t.Parallel()
	e := NewMultiError()
	assert.Equal(t, 0, e.Len())
	require.NoError(t, e.ErrorOrNil())
}

func TestMultiError_AppendNil(t *testing.T) {
	t.Parallel()
	e := NewMultiError()
	e.Append(nil)
	require.NoError(t, e.ErrorOrNil())
}

func TestMultiError_Single(t *testing.T) {
	t.Parallel()
	e := NewMultiError()
	e.Append(New("some error"))
	require.Error(t, e.ErrorOrNil())
	assert.Equal(t, "some error", e.Error())
}

func TestMultiError_Multiple(t *testing.T) {
	t.Parallel()
	e := NewMultiError()
	e.Append(New("first"))
	e.AppendWithPrefixf(New("second"), `step "%s"`, "stop-runtime")
	assert.Equal(t, 2, e.Len())
	assert.Equal(t, "2 errors occurred:\n  first\n  step \"stop-runtime\": second", e.Error())
}

func TestMultiError_Flatten(t *testing.T) {
	t.Parallel()
	inner := NewMultiError()
	inner.Append(New("a"), New("b"))
	outer := NewMultiError()
	outer.Append(inner)
	assert.Equal(t, 2, outer.Len())
}

func TestMultiError_Is(t *testing.T) {
	t.Parallel()
	sentinel := New("sentinel")
	e := NewMultiError()
	e.Append(Errorf("wrapped: %w", sentinel))
	assert.True(t, Is(e.ErrorOrNil(), sentinel))
}

func TestPrefixError(t *testing.T) {
	t.Parallel()
	sentinel := New("sentinel")
	err := PrefixErrorf(sentinel, `cannot process "%s"`, "value")
	assert.Equal(t, `cannot process "value": sentinel`, err.Error())
	assert.True(t, Is(err, sentinel))
}
