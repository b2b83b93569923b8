package netrequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Engine issues fetches. It is safe for concurrent use; every fetch owns
// its transactions and connections exclusively.
type Engine struct {
	client   *resty.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer Observer
	onError  ErrorHandler

	userAgent   string
	timeout     time.Duration
	transport   http.RoundTripper
	proxy       *url.URL
	compression bool
}

// New creates an engine. Defaults: DefaultUserAgent, no timeout, no rate
// limit, compression on, no logging.
func New(opts ...Option) *Engine {
	e := &Engine{
		limiter:     rate.NewLimiter(rate.Inf, 0),
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		userAgent:   DefaultUserAgent,
		compression: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.client = newRestyClient(e.transport, e.proxy, e.compression, e.logger)
	return e
}

// FetchJSON fetches and parses a JSON document. Redirects are reported, not
// followed.
func (e *Engine) FetchJSON(ctx context.Context, spec RequestSpec) Result[any] {
	return toResult[any](e.fetch(ctx, spec, 0, jsonPlan()))
}

// FetchJSONAs is FetchJSON decoding into T.
func FetchJSONAs[T any](ctx context.Context, e *Engine, spec RequestSpec) Result[T] {
	return toResult[T](e.fetch(ctx, spec, 0, typedJSONPlan[T]()))
}

// FetchText fetches a body as text. Redirects are reported, not followed.
func (e *Engine) FetchText(ctx context.Context, spec RequestSpec) Result[string] {
	return toResult[string](e.fetch(ctx, spec, 0, textPlan()))
}

// FetchBinary fetches a body as bytes, following up to MaxRedirectHops
// redirects.
func (e *Engine) FetchBinary(ctx context.Context, spec RequestSpec) Result[[]byte] {
	return toResult[[]byte](e.fetch(ctx, spec, 0, binaryPlan()))
}

// Download streams a body into w, following redirects like FetchBinary.
// Only the final response's body is written. The payload is the number of
// bytes written.
func (e *Engine) Download(ctx context.Context, spec RequestSpec, w io.Writer) Result[int64] {
	return toResult[int64](e.fetch(ctx, spec, 0, downloadPlan(w)))
}

// fetch runs the transaction for hop and, when it redirects, recurses into
// the next hop. The deepest hop's outcome is the fetch's outcome.
func (e *Engine) fetch(ctx context.Context, spec RequestSpec, hop int, p plan) outcome {
	out := e.transact(ctx, spec, hop, p)
	if out.state != StateRedirecting {
		out.hops = hop
		return out
	}

	e.observer.RedirectFollowed(p.kind)
	e.logger.Debug("following redirect",
		zap.String("kind", string(p.kind)),
		zap.Int("status", out.status),
		zap.String("location", out.location),
		zap.Int("hop", hop+1))
	return e.fetch(ctx, spec.redirect(out.location), hop+1, p)
}

// transact runs exactly one transaction to its resolution.
func (e *Engine) transact(ctx context.Context, spec RequestSpec, hop int, p plan) outcome {
	start := time.Now()

	u, err := spec.URL()
	if err != nil {
		return failure(err)
	}
	body, err := encodeBody(spec.Body)
	if err != nil {
		return failure(err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return failure(ErrAborted)
	}

	t := newTransaction(ctx, uuid.NewString(), u, hop, p, spec.Progress, e.logger, e.onError)
	defer t.destroy(errTeardown)

	e.logger.Debug("transaction started",
		zap.String("tx", t.id),
		zap.String("kind", string(p.kind)),
		zap.String("method", spec.method()),
		zap.String("url", u.Redacted()),
		zap.Int("hop", hop))

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	if timeout > 0 {
		// The timer only tears the connection down; the resulting transport
		// error is what resolves the transaction.
		timer := time.AfterFunc(timeout, func() {
			t.destroy(fmt.Errorf("%w after %s", ErrTimeout, timeout))
		})
		defer timer.Stop()
	}

	events := make(chan event)
	go t.pump(e.roundTrip(spec, u, body, p.identity), events)
	out := t.run(ctx, events)

	duration := time.Since(start)
	e.observer.TransactionFinished(p.kind, out.state, out.status, out.received, duration)
	e.logger.Debug("transaction finished",
		zap.String("tx", t.id),
		zap.String("outcome", out.state.String()),
		zap.Int("status", out.status),
		zap.Int64("bytes", out.received),
		zap.Duration("duration", duration),
		zap.String("message", out.message))
	return out
}
