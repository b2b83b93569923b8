package netrequest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// Kind identifies which fetch operation a transaction serves.
type Kind string

const (
	KindJSON     Kind = "json"
	KindText     Kind = "text"
	KindBinary   Kind = "binary"
	KindDownload Kind = "download"
)

// Progress describes one received chunk.
type Progress struct {
	// Chunk is the size of this chunk in bytes.
	Chunk int
	// Received is the cumulative byte count, including this chunk.
	Received int64
	// Total is the declared Content-Length, or -1 when unknown.
	Total int64
	// Fraction is Chunk/Total when Total is known, else 0.
	Fraction float64
}

func newProgress(chunk int, received, total int64) Progress {
	p := Progress{Chunk: chunk, Received: received, Total: total}
	if total > 0 {
		p.Fraction = float64(chunk) / float64(total)
	}
	return p
}

// decodeFunc turns an assembled body into the payload. body is nil for
// streaming sinks, where n carries the bytes written.
type decodeFunc func(body []byte, n int64) (any, error)

// plan fixes the per-operation behavior of a fetch.
type plan struct {
	kind   Kind
	follow bool
	// identity asks for the body as stored and never decodes a
	// Content-Encoding, so artifacts arrive byte for byte.
	identity bool
	// sink returns the writer for one transaction and, for buffered
	// operations, the buffer behind it.
	sink   func() (io.Writer, *bytes.Buffer)
	decode decodeFunc
}

func buffered() (io.Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return buf, buf
}

func jsonPlan() plan {
	return plan{
		kind: KindJSON,
		sink: buffered,
		decode: func(body []byte, _ int64) (any, error) {
			var v any
			if err := sonic.Unmarshal(body, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func typedJSONPlan[T any]() plan {
	return plan{
		kind: KindJSON,
		sink: buffered,
		decode: func(body []byte, _ int64) (any, error) {
			var v T
			if err := sonic.Unmarshal(body, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func textPlan() plan {
	return plan{
		kind: KindText,
		sink: buffered,
		decode: func(body []byte, _ int64) (any, error) {
			return string(body), nil
		},
	}
}

func binaryPlan() plan {
	return plan{
		kind:     KindBinary,
		follow:   true,
		identity: true,
		sink:     buffered,
		decode: func(body []byte, _ int64) (any, error) {
			if body == nil {
				body = []byte{}
			}
			return body, nil
		},
	}
}

func downloadPlan(w io.Writer) plan {
	return plan{
		kind:     KindDownload,
		follow:   true,
		identity: true,
		sink: func() (io.Writer, *bytes.Buffer) {
			return w, nil
		},
		decode: func(_ []byte, n int64) (any, error) {
			return n, nil
		},
	}
}

// encodeBody serializes a request body as JSON text. Byte slices are
// treated as already encoded.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	}
	data, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}
