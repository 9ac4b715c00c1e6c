package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	closed bool
	err    error
}

func (c *recordingCloser) Close() error {
	c.closed = true
	return c.err
}

func TestClose_CallsCloseAndSwallowsError(t *testing.T) {
	ok := &recordingCloser{}
	Close(ok)
	assert.True(t, ok.closed)

	failing := &recordingCloser{err: errors.New("already closed")}
	assert.NotPanics(t, func() { Close(failing) })
	assert.True(t, failing.closed)
}

func TestLogErr_NilAndNonNil_NeverPanics(t *testing.T) {
	assert.NotPanics(t, func() { LogErr(nil) })
	assert.NotPanics(t, func() { LogErr(errors.New("unexpected")) })
}
