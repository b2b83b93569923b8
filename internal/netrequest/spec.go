package netrequest

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Target is where a request goes: either a URLTarget or an OptionsTarget.
type Target interface {
	resolve() (*url.URL, error)
}

// URLTarget addresses a resource by absolute URL.
type URLTarget struct {
	URL string
}

// URL is shorthand for URLTarget{URL: raw}.
func URL(raw string) URLTarget {
	return URLTarget{URL: raw}
}

func (t URLTarget) resolve() (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(t.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, t.URL)
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	u.Host = joinHost(host, u.Port())
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// OptionsTarget addresses a resource by its parts. Scheme defaults to http,
// Path to "/" and a zero Port means the scheme's default. Path may carry a
// query string.
type OptionsTarget struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

func (t OptionsTarget) resolve() (*url.URL, error) {
	scheme := strings.ToLower(t.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, t.Scheme)
	}
	if t.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidTarget)
	}
	if t.Port < 0 || t.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidTarget, t.Port)
	}

	host, err := canonicalHost(t.Host)
	if err != nil {
		return nil, err
	}
	port := ""
	if t.Port != 0 {
		port = strconv.Itoa(t.Port)
	}

	path := t.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     joinHost(host, port),
		Path:     ref.Path,
		RawPath:  ref.RawPath,
		RawQuery: ref.RawQuery,
	}, nil
}

// canonicalHost lower-cases host names and converts them to their ASCII
// (punycode) form. IP literals pass through.
func canonicalHost(host string) (string, error) {
	host = strings.Trim(host, "[]")
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: host %q: %v", ErrInvalidTarget, host, err)
	}
	return strings.ToLower(ascii), nil
}

func joinHost(host, port string) string {
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// ProgressFunc receives one call per body chunk.
type ProgressFunc func(Progress)

// RequestSpec describes one logical fetch. It is not modified by the engine.
type RequestSpec struct {
	Target Target
	// Method overrides the inferred method. Empty means POST when Body is
	// set and GET otherwise.
	Method string
	Header http.Header
	// Body is serialized as JSON. Content-Type is the caller's business.
	Body     any
	Timeout  time.Duration
	Progress ProgressFunc
}

// URL resolves the request's target.
func (s RequestSpec) URL() (*url.URL, error) {
	if s.Target == nil {
		return nil, fmt.Errorf("%w: no target", ErrInvalidTarget)
	}
	return s.Target.resolve()
}

func (s RequestSpec) method() string {
	if s.Method != "" {
		return strings.ToUpper(s.Method)
	}
	if s.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// header returns the headers to send, filling in userAgent when the request
// carries none.
func (s RequestSpec) header(userAgent string) http.Header {
	h := s.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("User-Agent") == "" && userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return h
}

// redirect derives the request for the next hop. The hop is always a bodiless
// GET; headers, timeout and progress carry forward.
func (s RequestSpec) redirect(location string) RequestSpec {
	return RequestSpec{
		Target:   URLTarget{URL: location},
		Header:   s.Header.Clone(),
		Timeout:  s.Timeout,
		Progress: s.Progress,
	}
}
