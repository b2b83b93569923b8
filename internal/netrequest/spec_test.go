package netrequest

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetResolve(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{"absolute url", URL("https://nodejs.org/dist/index.json"), "https://nodejs.org/dist/index.json"},
		{"empty path", URL("http://example.com"), "http://example.com/"},
		{"upper case host", URL("HTTP://Mirror.Example.COM/x"), "http://mirror.example.com/x"},
		{"unicode host", URL("http://bücher.example/x"), "http://xn--bcher-kva.example/x"},
		{"ipv6 with port", URL("http://[::1]:8080/a"), "http://[::1]:8080/a"},
		{"options defaults", OptionsTarget{Host: "example.com"}, "http://example.com/"},
		{"options port", OptionsTarget{Scheme: "HTTPS", Host: "example.com", Port: 8443, Path: "/v1"}, "https://example.com:8443/v1"},
		{"options query", OptionsTarget{Host: "example.com", Path: "dist/index.json?arch=x64"}, "http://example.com/dist/index.json?arch=x64"},
		{"options ipv6", OptionsTarget{Host: "::1", Path: "/"}, "http://[::1]/"},
		{"options unicode host", OptionsTarget{Host: "Bücher.example"}, "http://xn--bcher-kva.example/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := tt.target.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestTargetResolveErrors(t *testing.T) {
	for name, target := range map[string]Target{
		"relative url":   URL("/dist/index.json"),
		"ftp url":        URL("ftp://example.com/file"),
		"options scheme": OptionsTarget{Scheme: "file", Host: "example.com"},
		"options host":   OptionsTarget{},
		"options port":   OptionsTarget{Host: "example.com", Port: 70000},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := target.resolve()
			assert.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

func TestRequestSpecMethod(t *testing.T) {
	assert.Equal(t, http.MethodGet, RequestSpec{}.method())
	assert.Equal(t, http.MethodPost, RequestSpec{Body: map[string]int{"a": 1}}.method())
	assert.Equal(t, http.MethodPut, RequestSpec{Method: "put", Body: "x"}.method())
	assert.Equal(t, http.MethodHead, RequestSpec{Method: http.MethodHead}.method())
}

func TestRequestSpecHeader(t *testing.T) {
	t.Run("fills user agent", func(t *testing.T) {
		h := RequestSpec{}.header("toolfetch/1.0")
		assert.Equal(t, "toolfetch/1.0", h.Get("User-Agent"))
	})

	t.Run("does not mutate caller headers", func(t *testing.T) {
		orig := http.Header{"Accept": []string{"application/json"}}
		h := RequestSpec{Header: orig}.header("toolfetch/1.0")

		assert.Equal(t, "application/json", h.Get("Accept"))
		assert.Empty(t, orig.Get("User-Agent"))
	})

	t.Run("keeps caller user agent", func(t *testing.T) {
		h := RequestSpec{Header: http.Header{"User-Agent": []string{"mine"}}}.header("toolfetch/1.0")
		assert.Equal(t, "mine", h.Get("User-Agent"))
	})
}

func TestRequestSpecRedirect(t *testing.T) {
	progress := func(Progress) {}
	orig := RequestSpec{
		Target:   URL("http://example.com/a"),
		Method:   http.MethodPost,
		Header:   http.Header{"X-Token": []string{"t"}},
		Body:     []byte("payload"),
		Timeout:  time.Second,
		Progress: progress,
	}

	next := orig.redirect("http://cdn.example.com/b")

	assert.Equal(t, URL("http://cdn.example.com/b"), next.Target)
	assert.Equal(t, http.MethodGet, next.method())
	assert.Nil(t, next.Body)
	assert.Equal(t, "t", next.Header.Get("X-Token"))
	assert.Equal(t, time.Second, next.Timeout)
	assert.NotNil(t, next.Progress)

	next.Header.Set("X-Token", "changed")
	assert.Equal(t, "t", orig.Header.Get("X-Token"))
}
