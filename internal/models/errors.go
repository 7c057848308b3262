package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotAuthenticated means there is no active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrPermissionDenied means the session lacks a required data scope.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUpstreamRead means a remote read failed or timed out.
	ErrUpstreamRead = errors.New("upstream read failure")
	// ErrMalformedSample marks a single reading that could not be used.
	ErrMalformedSample = errors.New("malformed sample")
	// ErrInvalidArgument means the caller passed bad input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ReadError reports a failed Raw Sample Reader call. It matches both
// ErrUpstreamRead and the underlying cause under errors.Is.
type ReadError struct {
	Kinds []MetricKind
	Err   error
}

func (e *ReadError) Error() string {
	names := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		names[i] = k.String()
	}
	return fmt.Sprintf("reading %s: %v", strings.Join(names, ","), e.Err)
}

func (e *ReadError) Unwrap() []error {
	return []error{ErrUpstreamRead, e.Err}
}
