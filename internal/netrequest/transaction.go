package netrequest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is a transaction's lifecycle state.
type State int32

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
	StateRedirecting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateRedirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	eventResponse eventKind = iota
	eventData
	eventEnd
	eventClose
	eventError
)

// event is one input to the transaction state machine.
type event struct {
	kind  eventKind
	resp  *http.Response
	chunk []byte
	err   error
}

// ErrorHandler receives transport errors for diagnostics. It never
// influences the result.
type ErrorHandler func(txID string, err error)

// transaction is one attempt of a fetch: one connection, at most one
// response, one resolution. Only the driver goroutine (run) touches its
// fields; the pump goroutine talks to it through events.
type transaction struct {
	id       string
	url      *url.URL
	hop      int
	plan     plan
	progress ProgressFunc
	logger   *zap.Logger
	onError  ErrorHandler

	// ctx scopes the connection. destroy tears it down; the cause says why.
	ctx     context.Context
	destroy context.CancelCauseFunc

	state atomic.Int32
	done  chan struct{}

	resp     *http.Response
	sink     io.Writer
	buf      *bytes.Buffer
	received int64
	total    int64
	out      outcome
}

func newTransaction(parent context.Context, id string, u *url.URL, hop int, p plan, progress ProgressFunc, logger *zap.Logger, onError ErrorHandler) *transaction {
	ctx, destroy := context.WithCancelCause(context.WithoutCancel(parent))
	sink, buf := p.sink()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transaction{
		id:       id,
		url:      u,
		hop:      hop,
		plan:     p,
		progress: progress,
		logger:   logger,
		onError:  onError,
		ctx:      ctx,
		destroy:  destroy,
		done:     make(chan struct{}),
		sink:     sink,
		buf:      buf,
		total:    -1,
	}
}

// State returns the current lifecycle state.
func (t *transaction) State() State {
	return State(t.state.Load())
}

func (t *transaction) resolved() bool {
	return t.State() != StatePending
}

// resolve moves the transaction into a terminal state exactly once. It
// reports whether this call won.
func (t *transaction) resolve(state State, o outcome) bool {
	if !t.state.CompareAndSwap(int32(StatePending), int32(state)) {
		return false
	}
	o.state = state
	o.received = t.received
	t.out = o
	close(t.done)
	return true
}

// run drives the state machine until it resolves. Cancelling ctx aborts.
func (t *transaction) run(ctx context.Context, events <-chan event) outcome {
	for !t.resolved() {
		select {
		case <-ctx.Done():
			t.abort()
		case ev := <-events:
			t.handle(ev)
		}
	}
	return t.out
}

// abort destroys the connection and resolves as failed. After resolution it
// only repeats the teardown.
func (t *transaction) abort() {
	t.destroy(ErrAborted)
	t.resolve(StateFailed, failure(ErrAborted))
}

func (t *transaction) handle(ev event) {
	if t.resolved() {
		return
	}
	switch ev.kind {
	case eventResponse:
		t.onResponse(ev.resp)
	case eventData:
		t.onData(ev.chunk)
	case eventEnd:
		t.onEnd()
	case eventClose:
		t.onClose()
	case eventError:
		t.onTransportError(ev.err)
	}
}

func (t *transaction) onResponse(resp *http.Response) {
	t.resp = resp
	t.total = resp.ContentLength

	if resp.StatusCode != http.StatusMovedPermanently && resp.StatusCode != http.StatusFound {
		return
	}

	location := resp.Header.Get("Location")
	if !t.plan.follow {
		t.finish(StateFailed, outcome{
			status:   resp.StatusCode,
			message:  statusMessage(resp),
			location: location,
			header:   resp.Header,
		})
		return
	}

	if location == "" {
		err := fmt.Errorf("%w: %d response from %s has no Location header", ErrBadRedirect, resp.StatusCode, t.url)
		t.finish(StateFailed, outcome{status: StatusBadRedirect, message: err.Error(), header: resp.Header, err: err})
		return
	}
	next, err := t.url.Parse(location)
	if err != nil {
		err = fmt.Errorf("%w: unparseable Location %q: %v", ErrBadRedirect, location, err)
		t.finish(StateFailed, outcome{status: StatusBadRedirect, message: err.Error(), header: resp.Header, err: err})
		return
	}
	if t.hop+1 > MaxRedirectHops {
		err := fmt.Errorf("%w: %s", ErrTooManyRedirects, next)
		t.finish(StateFailed, outcome{
			status:   StatusTooManyRedirects,
			message:  err.Error(),
			location: next.String(),
			header:   resp.Header,
			err:      err,
		})
		return
	}

	t.finish(StateRedirecting, outcome{status: resp.StatusCode, location: next.String(), header: resp.Header})
}

func (t *transaction) onData(chunk []byte) {
	// Bodies of error responses are drained, not delivered.
	if t.resp == nil || t.resp.StatusCode >= http.StatusMultipleChoices {
		return
	}
	n, err := t.sink.Write(chunk)
	t.received += int64(n)
	if err != nil {
		err = fmt.Errorf("failed to write response body: %w", err)
		t.finish(StateFailed, outcome{status: t.resp.StatusCode, message: err.Error(), header: t.resp.Header, err: err})
		return
	}
	if t.progress != nil {
		t.progress(newProgress(n, t.received, t.total))
	}
}

func (t *transaction) onEnd() {
	if t.resp == nil {
		t.resolve(StateFailed, failure(ErrPrematureClose))
		return
	}
	resp := t.resp
	if resp.StatusCode >= http.StatusMultipleChoices {
		t.resolve(StateFailed, outcome{status: resp.StatusCode, message: statusMessage(resp), header: resp.Header})
		return
	}

	var body []byte
	if t.buf != nil {
		body = t.buf.Bytes()
	}
	value, err := t.plan.decode(body, t.received)
	if err != nil {
		err = fmt.Errorf("failed to decode response body: %w", err)
		t.resolve(StateFailed, outcome{status: resp.StatusCode, message: err.Error(), header: resp.Header, err: err})
		return
	}
	t.resolve(StateSucceeded, outcome{status: resp.StatusCode, message: statusMessage(resp), header: resp.Header, value: value})
}

func (t *transaction) onClose() {
	o := failure(ErrPrematureClose)
	if cause := t.timeoutCause(); cause != nil {
		o = failure(cause)
	}
	if t.resp != nil {
		o.status = t.resp.StatusCode
		o.header = t.resp.Header
	}
	t.resolve(StateFailed, o)
}

func (t *transaction) onTransportError(err error) {
	// A timeout shows up here as whatever the transport reports for a
	// cancelled connection; the cause carries the real reason.
	if cause := t.timeoutCause(); cause != nil {
		err = cause
	}
	t.resolve(StateFailed, outcome{message: err.Error(), err: err})
}

// timeoutCause returns the teardown cause if the per-request timer fired.
func (t *transaction) timeoutCause() error {
	if cause := context.Cause(t.ctx); errors.Is(cause, ErrTimeout) {
		return cause
	}
	return nil
}

// finish resolves and releases the connection right away, for outcomes
// decided before the body has been read.
func (t *transaction) finish(state State, o outcome) {
	if t.resolve(state, o) {
		t.destroy(errTeardown)
	}
}

// selfInflicted reports whether the connection was torn down by the
// transaction itself rather than failing on its own.
func (t *transaction) selfInflicted() bool {
	cause := context.Cause(t.ctx)
	return errors.Is(cause, errTeardown) || errors.Is(cause, ErrAborted)
}

func (t *transaction) reportError(err error) {
	if err == nil || t.selfInflicted() {
		return
	}
	if t.resolved() {
		t.logger.Debug("transport error after resolution",
			zap.String("tx", t.id),
			zap.Error(err))
	}
	if t.onError != nil {
		t.onError(t.id, err)
	}
}

// statusMessage returns the reason phrase of a response, e.g. "Found".
func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}
