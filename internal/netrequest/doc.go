// Package netrequest fetches remote resources over HTTP/HTTPS for the
// toolchain manager: JSON API payloads, plain text and binary downloads.
//
// Every fetch runs one or more transactions. A transaction owns exactly one
// outbound connection and reconciles the signals a streaming transfer can
// produce into a single terminal Result:
//   - response: headers received (may start a redirect)
//   - data: a body chunk, delivered in stream order
//   - end: end of stream
//   - close: the peer closed the connection before end of stream
//   - error: transport failure (DNS, connect, reset, timeout teardown)
//   - abort: the caller's context was cancelled
//
// The first terminal signal wins; everything after it is discarded.
//
// Redirects:
//   - FetchBinary and Download follow 301/302 up to MaxRedirectHops hops,
//     each hop on a fresh transaction and connection
//   - FetchJSON and FetchText never follow; they report the Location instead
//
// Failures never escape as Go errors. Transport, decoding, status, redirect,
// cancellation and timeout failures are all folded into Result.
//
// Example Usage:
//
//	engine := netrequest.New(netrequest.WithLogger(logger))
//	res := engine.FetchJSON(ctx, netrequest.RequestSpec{
//		Target: netrequest.URL("https://nodejs.org/dist/index.json"),
//	})
//	if !res.Success {
//		return res.Err()
//	}
package netrequest
