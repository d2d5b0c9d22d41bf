// Package rest is a thin, typed wrapper over net/http for issuing WebDAV
// requests, in the idiom of the teacher's lib/rest (its Opts/Client/
// URLJoin/URLPathEscape/ReadBody, as used throughout backend/webdav.go:
// "f.srv.CallXML(&opts, nil, &result)"). It owns none of the WebDAV
// semantics — those live in the provider package — just request
// construction, header/credential injection, and response-body capping.
package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Doer is the credential-bearing HTTP client the core is handed by its
// vendor subclass (§1's "out of scope" injected capability). *http.Client
// satisfies it directly; so does any http.RoundTripper-wrapped client
// that injects Basic/Bearer auth (see package auth).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Opts describes one HTTP request to make against a Client's root URL.
type Opts struct {
	Method        string
	Path          string // resolved against the Client's root
	Body          io.Reader
	ContentLength *int64
	ExtraHeaders  map[string]string
}

// Client issues requests against a fixed root URL using an injected Doer.
type Client struct {
	doer Doer
	root *url.URL
}

// NewClient builds a Client rooted at root, issuing requests through doer.
func NewClient(doer Doer, root *url.URL) *Client {
	return &Client{doer: doer, root: root}
}

// Call builds and issues the request described by opts and returns the
// raw response. The caller is responsible for closing resp.Body and for
// checking resp.StatusCode — Call itself does not interpret status codes,
// that is the HTTP Error Translator's job one layer up.
func (c *Client) Call(ctx context.Context, opts *Opts) (*http.Response, error) {
	target, err := URLJoin(c.root, opts.Path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target.String(), opts.Body)
	if err != nil {
		return nil, err
	}
	if opts.ContentLength != nil {
		req.ContentLength = *opts.ContentLength
	}
	for k, v := range opts.ExtraHeaders {
		req.Header.Set(k, v)
	}

	return c.doer.Do(req)
}

// Root returns the client's root URL.
func (c *Client) Root() *url.URL { return c.root }

// URLJoin resolves path against base the way the teacher's
// lib/rest.URLJoin does: as a URL reference, not a filesystem join, so
// that absolute hrefs returned by the server resolve correctly too.
func URLJoin(base *url.URL, path string) (*url.URL, error) {
	relative, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(relative), nil
}

// URLPathEscape percent-encodes each segment of a path for use as a URL
// path, preserving "/" as the segment separator — the teacher's
// rest.URLPathEscape (see lib/rest/url_test.go's TestURLPathEscape).
func URLPathEscape(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// ReadBody reads up to maxBytes of resp.Body and closes it, matching the
// teacher's rest.ReadBody plus the 64 KiB cap §4.B mandates for error
// bodies. Bytes beyond maxBytes are discarded, not buffered.
func ReadBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}
