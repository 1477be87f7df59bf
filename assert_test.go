package clogger

import (
	"fmt"
	"testing"
)

// newAsserter returns a small assert(cond, format, args...) closure bound
// to t and a context label, used throughout this package's tests in
// place of a table of testify-style matchers.
func newAsserter(t *testing.T, ctx string) func(cond bool, format string, args ...interface{}) {
	t.Helper()
	return func(cond bool, format string, args ...interface{}) {
		if !cond {
			t.Helper()
			t.Fatalf("%s: %s", ctx, fmt.Sprintf(format, args...))
		}
	}
}
