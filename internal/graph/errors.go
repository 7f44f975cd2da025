// internal/graph/errors.go
package graph

import "fmt"

// RequestError is a terminal (non-transient) Graph failure. It carries the
// status and response body for diagnosis and is never retried.
type RequestError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("graph request failed with status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// RetryExhaustedError reports that every attempt in the budget came back with
// a transient status. It is a reportable failure, not a silent return of the
// last throttled response.
type RetryExhaustedError struct {
	Attempts   int
	LastStatus int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("maximum retry attempts exceeded for graph request: %d attempts, last status %d", e.Attempts, e.LastStatus)
}
