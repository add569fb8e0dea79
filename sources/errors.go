package sources

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderError marks a body that carried an explicit "error" field.
	ErrProviderError = errors.New("provider reported error")
	// ErrUnexpectedShape marks a body that parsed but had none of the expected shapes.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// EndpointError records why a single endpoint call failed.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// FetchError is returned when every attempt of one fetch cycle failed.
// Attempts are kept in the order they were made.
type FetchError struct {
	Attempts []*EndpointError
}

func (e *FetchError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msgs = append(msgs, a.Error())
	}
	return "all log endpoints failed: " + strings.Join(msgs, "; ")
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a)
	}
	return errs
}

func newFetchError(attempts ...*EndpointError) *FetchError {
	return &FetchError{Attempts: attempts}
}

func newProviderError(msg string) error {
	return fmt.Errorf("%w: %s", ErrProviderError, msg)
}

func newShapeError(kind string) error {
	return fmt.Errorf("%w: got %s, want array", ErrUnexpectedShape, kind)
}
