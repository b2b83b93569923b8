package netrequest

import (
	"errors"
	"net/http"
)

// Result is the single terminal outcome of a fetch.
type Result[T any] struct {
	Success bool
	// StatusCode is 0 when no response was received.
	StatusCode int
	// Payload is the zero value unless Success is true.
	Payload T
	Message string
	// Location is set when a redirect was not followed.
	Location string
	Header   http.Header
	// Hops counts the redirects followed before this result.
	Hops int
}

// HasStatus reports whether the transport produced a response status.
func (r Result[T]) HasStatus() bool {
	return r.StatusCode != 0
}

// Err returns nil for a successful result and an error carrying Message
// otherwise.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.Message == "" {
		return errors.New("request failed")
	}
	return errors.New(r.Message)
}

// outcome is what a transaction resolves to before it is typed for the
// caller.
type outcome struct {
	state    State
	status   int
	message  string
	location string
	header   http.Header
	value    any
	received int64
	hops     int
	err      error
}

func failure(err error) outcome {
	return outcome{state: StateFailed, message: err.Error(), err: err}
}

func toResult[T any](o outcome) Result[T] {
	r := Result[T]{
		Success:    o.state == StateSucceeded,
		StatusCode: o.status,
		Message:    o.message,
		Location:   o.location,
		Header:     o.header,
		Hops:       o.hops,
	}
	if r.Success {
		if v, ok := o.value.(T); ok {
			r.Payload = v
		}
	}
	return r
}
