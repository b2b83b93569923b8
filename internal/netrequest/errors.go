package netrequest

import (
	"errors"
	"net/http"
)

var (
	ErrAborted          = errors.New("request aborted")
	ErrTimeout          = errors.New("request timed out")
	ErrPrematureClose   = errors.New("connection closed before response completed")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrBadRedirect      = errors.New("bad redirect")
	ErrInvalidTarget    = errors.New("invalid request target")

	// errTeardown is the cancellation cause used when a transaction tears
	// down its own connection after resolving.
	errTeardown = errors.New("transaction finished")
)

const (
	// MaxRedirectHops is the longest redirect chain FetchBinary follows.
	MaxRedirectHops = 5

	// Synthetic statuses for redirect failures.
	StatusBadRedirect      = http.StatusNotFound
	StatusTooManyRedirects = http.StatusBadRequest
)
