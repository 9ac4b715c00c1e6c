// Package util contains small helpers shared across the repository.
package util

import (
	"io"

	"github.com/probviz/probviz/go/sklog"
)

// Close wraps an io.Closer and logs an error if one is returned.
func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		sklog.Errorf("Failed to Close(): %v", err)
	}
}

// LogErr logs err if it's not nil. This is intended to be used for calls
// where generally a returned error is unexpected.
func LogErr(err error) {
	if err != nil {
		sklog.Errorf("Unexpected error: %s", err)
	}
}
