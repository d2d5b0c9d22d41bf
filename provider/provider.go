// Package provider adapts a remote WebDAV-speaking HTTP server into the
// uniform cloud-storage-provider operations described by the
// specification: enumerate roots, list a folder, look up by name, fetch
// metadata, create a folder, upload, download, delete, copy, move.
//
// The IPC framework that would invoke these operations, and the
// credentials/base-URL the operations run against, are injected
// capabilities (§1) — this package never does process startup, service
// registration, or credential management itself.
package provider

import (
	"context"
	"net/url"

	"github.com/opencloud-eu/webdav-provider/internal/pacer"
	"github.com/opencloud-eu/webdav-provider/internal/rest"
	"github.com/opencloud-eu/webdav-provider/provider/errs"
	"github.com/opencloud-eu/webdav-provider/provider/vendor"
	"github.com/rs/zerolog"
)

// BaseURLResolver supplies the absolute base URL of the user's root
// collection for a given request context (§3's "Request Context").
// Implementations typically read credentials/tenant info out of ctx to
// pick the right base URL; the reference implementation used by tests is
// StaticBaseURL.
type BaseURLResolver interface {
	BaseURL(ctx context.Context) (*url.URL, error)
}

// StaticBaseURL is a BaseURLResolver that always returns the same URL,
// for single-tenant deployments and tests.
type StaticBaseURL struct{ URL *url.URL }

// BaseURL implements BaseURLResolver.
func (s StaticBaseURL) BaseURL(context.Context) (*url.URL, error) { return s.URL, nil }

// Provider is the façade described in §4.H. It is safe for concurrent use:
// every public operation builds its own handler state and shares nothing
// mutable across calls except the injected doer/resolver/pacer, which are
// captured at construction and not affected by later configuration
// changes (§5's resource-lifetime guarantee).
type Provider struct {
	doer   rest.Doer
	base   BaseURLResolver
	pacer  *pacer.Pacer
	quirks vendor.Quirks
	log    zerolog.Logger
}

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithQuirks sets the vendor-specific behaviour toggles (SPEC_FULL
// supplement #1).
func WithQuirks(q vendor.Quirks) Option {
	return func(p *Provider) { p.quirks = q }
}

// WithLogger sets the zerolog.Logger the provider logs through. The
// default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// WithPacer overrides the retry pacer. The default is pacer.NewDefault().
func WithPacer(p2 *pacer.Pacer) Option {
	return func(p *Provider) { p.pacer = p2 }
}

// New builds a Provider that issues requests through doer (the
// credential-bearing HTTP client injected by the vendor subclass) against
// the base URL resolver supplies.
func New(doer rest.Doer, base BaseURLResolver, opts ...Option) *Provider {
	p := &Provider{
		doer:  doer,
		base:  base,
		pacer: pacer.NewDefault(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) resolveBase(ctx context.Context) (*url.URL, error) {
	base, err := p.base.BaseURL(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.RemoteComms, err, "could not resolve base url")
	}
	return base, nil
}
