// Package require provides a minimal, dependency-free set of test
// assertions used across this module's internal packages: internal
// packages keep zero third-party test dependencies, while the
// root-facing package tests with testify/require instead.
package require

import (
	"fmt"
	"reflect"
	"strings"
)

// TestingT is the subset of *testing.T this package needs, so it can
// also be used from table-driven helpers that receive a narrower
// interface.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

func Equal(t TestingT, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %#v, got %#v", expected, actual)
	}
}

func NotEqual(t TestingT, expected, actual interface{}) {
	t.Helper()
	if reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected values to differ, both were %#v", actual)
	}
}

func True(t TestingT, v bool, msgAndArgs ...interface{}) {
	t.Helper()
	if !v {
		t.Fatalf("expected true: %s", fmt.Sprint(msgAndArgs...))
	}
}

func False(t TestingT, v bool, msgAndArgs ...interface{}) {
	t.Helper()
	if v {
		t.Fatalf("expected false: %s", fmt.Sprint(msgAndArgs...))
	}
}

func Nil(t TestingT, v interface{}) {
	t.Helper()
	if v != nil && !reflect.ValueOf(v).IsZero() {
		t.Fatalf("expected nil, got %#v", v)
	}
}

func NotNil(t TestingT, v interface{}) {
	t.Helper()
	if v == nil {
		t.Fatalf("expected non-nil value")
	}
}

func NoError(t TestingT, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func Error(t TestingT, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
}

func EqualError(t TestingT, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", msg)
		return
	}
	if err.Error() != msg {
		t.Fatalf("expected error %q, got %q", msg, err.Error())
	}
}

func Len(t TestingT, v interface{}, n int) {
	t.Helper()
	rv := reflect.ValueOf(v)
	if rv.Len() != n {
		t.Fatalf("expected length %d, got %d (%#v)", n, rv.Len(), v)
	}
}

func Contains(t TestingT, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

// CapturePanic runs fn and returns the recovered panic value, or nil if
// fn did not panic. Used to assert on the internal "BUG:" panics this
// module's encoder and builder raise for malformed input.
func CapturePanic(fn func()) (recovered interface{}) {
	defer func() {
		recovered = recover()
	}()
	fn()
	return nil
}
