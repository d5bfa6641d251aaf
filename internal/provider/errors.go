package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNoProvider is raised when every tier of the cascade has failed. It is
// the only unrecoverable error in the turn loop.
var ErrNoProvider = errors.New("no provider available")

// Class categorizes a provider failure for fallback accounting
type Class string

const (
	ClassQuota      Class = "quota"
	ClassAuth       Class = "auth"
	ClassTransport  Class = "transport"
	ClassUnexpected Class = "unexpected"
)

// apiError carries the failure class alongside the underlying error
type apiError struct {
	class Class
	err   error
}

func (e *apiError) Error() string { return fmt.Sprintf("%s: %v", e.class, e.err) }
func (e *apiError) Unwrap() error { return e.err }

func classified(class Class, err error) error {
	return &apiError{class: class, err: err}
}

// statusError classifies an HTTP status into a failure class
func statusError(status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return classified(ClassQuota, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return classified(ClassAuth, err)
	case status >= 500:
		return classified(ClassTransport, err)
	default:
		return classified(ClassUnexpected, err)
	}
}

// Classify returns the failure class of a provider error
func Classify(err error) Class {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.class
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransport
	}
	return ClassUnexpected
}
