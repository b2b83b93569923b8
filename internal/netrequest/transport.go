package netrequest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
)

// chunkSize bounds a single body read; the transport may deliver less.
const chunkSize = 32 * 1024

// bareBodyKey marks a request whose Content-Type the caller left unset.
type bareBodyKey struct{}

// roundTripFunc opens the connection and returns once headers arrive.
type roundTripFunc func(ctx context.Context) (*http.Response, error)

// newRestyClient builds the shared client every transaction issues its
// request through. Automatic redirects are off: 301/302 come back to the
// state machine. Retries are off: retrying is the caller's decision.
func newRestyClient(base http.RoundTripper, proxy *url.URL, compression bool, logger *zap.Logger) *resty.Client {
	if base == nil {
		// Reuse the pooled transport retryablehttp configures; its retry
		// loop is never used.
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 0
		retryClient.Logger = nil
		base = retryClient.HTTPClient.Transport
	}
	if proxy != nil {
		if tr, ok := base.(*http.Transport); ok {
			tr = tr.Clone()
			tr.Proxy = http.ProxyURL(proxy)
			base = tr
		} else {
			logger.Warn("proxy ignored: custom transport is not *http.Transport",
				zap.String("proxy", proxy.Redacted()))
		}
	}
	if compression {
		base = gzhttp.Transport(base)
	}

	return resty.New().
		SetTransport(base).
		SetCookieJar(nil).
		SetRetryCount(0).
		SetLogger(logger.Sugar()).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetPreRequestHook(func(_ *resty.Client, r *http.Request) error {
			// resty sniffs a Content-Type for every body; only the caller's
			// header may go out.
			if r.Context().Value(bareBodyKey{}) != nil {
				r.Header.Del("Content-Type")
			}
			return nil
		})
}

// roundTrip prepares the request for one transaction.
// With identity the body is requested unencoded and returned exactly as
// received.
func (e *Engine) roundTrip(spec RequestSpec, u *url.URL, body []byte, identity bool) roundTripFunc {
	method := spec.method()
	header := spec.header(e.userAgent)
	if identity && header.Get("Accept-Encoding") == "" {
		header.Set("Accept-Encoding", "identity")
	}
	bare := body != nil && header.Get("Content-Type") == ""
	target := u.String()

	return func(ctx context.Context) (*http.Response, error) {
		if bare {
			ctx = context.WithValue(ctx, bareBodyKey{}, true)
		}
		req := e.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			SetHeaderMultiValues(header)
		if body != nil {
			req.SetBody(body)
		}

		resp, err := req.Execute(method, target)
		if err != nil {
			if resp != nil && resp.RawResponse != nil {
				resp.RawResponse.Body.Close()
			}
			return nil, err
		}
		return resp.RawResponse, nil
	}
}

// pump runs the transport side of a transaction: it opens the connection,
// then turns the response into events until the body is exhausted or the
// transaction resolves.
func (t *transaction) pump(rt roundTripFunc, events chan<- event) {
	resp, err := rt(t.ctx)
	if err != nil {
		t.emit(events, event{kind: eventError, err: err})
		return
	}
	defer resp.Body.Close()

	if !t.emit(events, event{kind: eventResponse, resp: resp}) {
		return
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !t.emit(events, event{kind: eventData, chunk: chunk}) {
				return
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			t.emit(events, event{kind: eventEnd})
		case errors.Is(err, io.ErrUnexpectedEOF):
			t.emit(events, event{kind: eventClose, err: err})
		default:
			t.emit(events, event{kind: eventError, err: err})
		}
		return
	}
}

// emit hands an event to the driver. It returns false once the transaction
// has resolved, so the pump never blocks on a driver that stopped listening.
func (t *transaction) emit(events chan<- event, ev event) bool {
	if ev.kind == eventError || ev.kind == eventClose {
		t.reportError(ev.err)
	}
	select {
	case events <- ev:
		return true
	case <-t.done:
		return false
	}
}
