package netrequest

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when a spec carries no User-Agent header.
const DefaultUserAgent = "toolfetch/1.0"

// Observer is notified about finished transactions and followed redirects.
type Observer interface {
	TransactionFinished(kind Kind, state State, status int, bytes int64, duration time.Duration)
	RedirectFollowed(kind Kind)
}

type nopObserver struct{}

func (nopObserver) TransactionFinished(Kind, State, int, int64, time.Duration) {}
func (nopObserver) RedirectFollowed(Kind)                                      {}

// Option configures an Engine.
type Option func(*Engine)

// WithUserAgent sets the User-Agent substituted into specs that have none.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		e.userAgent = ua
	}
}

// WithTimeout sets the timeout for specs that do not carry their own.
// Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithRateLimit caps how fast transactions may open connections. A
// non-positive rps means unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Engine) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithErrorHandler installs the diagnostics side channel for transport
// errors, including those seen after a result was produced.
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Engine) {
		e.onError = h
	}
}

// WithTransport replaces the base round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Engine) {
		e.transport = rt
	}
}

// WithProxy routes every connection through the given proxy.
func WithProxy(proxy *url.URL) Option {
	return func(e *Engine) {
		e.proxy = proxy
	}
}

// WithCompression toggles transparent gzip/zstd response decoding.
func WithCompression(enabled bool) Option {
	return func(e *Engine) {
		e.compression = enabled
	}
}
