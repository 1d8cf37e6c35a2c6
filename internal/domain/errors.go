package domain

import "fmt"

// APIError reports a non-200 response or a transport failure while extracting.
// StatusCode is zero when no response was received.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api request failed: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("api error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// ParseError reports a response body that is not a JSON array of coin objects.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError reports a datastore failure for a single operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
