// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrFetch is the sentinel wrapped by every FetchError.
	ErrFetch = errors.New("fetching remote document failed")

	// ErrTooLarge is returned when a response exceeds the size cap.
	ErrTooLarge = errors.New("response too large")
)

type (
	// FetchError reports a failed HTTP exchange with a remote host.
	FetchError struct {
		// URL is redacted: query and fragment are removed.
		URL string
		// Status is the last HTTP status seen, 0 when no response arrived.
		Status   int
		Attempts int
		Err      error
	}

	statusError struct {
		code int
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching %s", e.URL)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (%d attempts)", e.Attempts)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// newFetchError builds a FetchError, lifting the HTTP status out of err.
func newFetchError(rawURL string, attempts int, err error) *FetchError {
	fe := &FetchError{URL: redactURL(rawURL), Attempts: attempts, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		fe.Status = se.code
	}
	return fe
}

// redactURL strips query parameters, fragments and credentials from a URL
// for inclusion in errors and logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
