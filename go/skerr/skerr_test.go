package skerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("my sentinel error")

func TestWrap_PlainError_RecordsStack(t *testing.T) {
	err := Wrap(errSentinel)
	withContext, ok := err.(*ErrorWithContext)
	require.True(t, ok)
	assert.Equal(t, errSentinel, withContext.Wrapped)
	require.NotEmpty(t, withContext.CallStack)
	assert.Equal(t, "skerr_test.go", withContext.CallStack[0].File)
	assert.Contains(t, err.Error(), "my sentinel error At skerr_test.go:")
}

func TestWrap_NilError_ReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(nil))
	require.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrap_AlreadyWrapped_KeepsOriginalStack(t *testing.T) {
	inner := Wrap(errSentinel)
	outer := Wrap(inner)
	assert.Same(t, inner, outer)
}

func TestWrapf_AddsContextOutermostFirst(t *testing.T) {
	err := Wrapf(errSentinel, "reading %q", "file.txt")
	err = Wrapf(err, "loading config")
	assert.Contains(t, err.Error(), "loading config: reading \"file.txt\": my sentinel error")
}

func TestWrapf_IsCompatibleWithErrorsIs(t *testing.T) {
	err := Wrapf(errSentinel, "some context")
	assert.True(t, errors.Is(err, errSentinel))
}

func TestFmt_FormatsMessage(t *testing.T) {
	err := Fmt("bad value %d", 42)
	assert.Contains(t, err.Error(), "bad value 42 At skerr_test.go:")
}

func TestUnwrap_ReturnsOriginal(t *testing.T) {
	assert.Equal(t, errSentinel, Unwrap(Wrap(errSentinel)))
	plain := fmt.Errorf("unwrapped")
	assert.Equal(t, plain, Unwrap(plain))
}
