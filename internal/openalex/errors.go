// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import "fmt"

// TransportError reports a failed page request: a network error or a
// non-200 HTTP status. It aborts the enclosing fetch sequence; there is no
// automatic retry because upsert-based persistence makes a whole-run
// restart safe.
type TransportError struct {
	// URL is the request URL that failed.
	URL string
	// Status is the HTTP status code, zero when the request never
	// received a response.
	Status int
	// Err is the underlying network error, nil for status failures.
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("openalex request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("openalex request %s: HTTP %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a malformed API response body.
type DecodeError struct {
	// URL is the request URL whose response failed to decode.
	URL string
	// Err is the underlying decode error.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("parsing openalex response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
