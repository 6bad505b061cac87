package sensor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/pkg/types"
)

const scrapeTimeout = 10 * time.Second

// Source produces one reading per call.
type Source interface {
	Read(ctx context.Context) (types.Reading, error)
}

// New returns the Source configured by src.
func New(src config.Source) (Source, error) {
	switch src.Type {
	case "synthetic", "":
		return NewSynthetic(src.MotorID, src.Seed), nil
	case "prometheus":
		client, err := newScrapeClient(src.Auth, src.TLS)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: %w", src.MotorID, err)
		}
		return &promSource{src: src, client: client}, nil
	}
	return nil, fmt.Errorf("sensor: unsupported type %q", src.Type)
}

// newScrapeClient returns a client that authenticates every request the way
// auth describes.
func newScrapeClient(auth config.AuthConfig, opts config.TLSConfig) (*http.Client, error) {
	tlsCfg, err := auth.ClientTLS(opts)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	return &http.Client{
		Timeout: scrapeTimeout,
		Transport: &authTransport{
			next:     &http.Transport{TLSClientConfig: tlsCfg},
			decorate: decorator(auth),
		},
	}, nil
}

// decorator returns the header mutation for auth's mode, or nil when the
// mode needs none (none, mtls).
func decorator(auth config.AuthConfig) func(http.Header) {
	switch auth.Mode {
	case "apikey":
		header, key := auth.EffectiveHeader(), auth.Key()
		return func(h http.Header) { h.Set(header, key) }
	case "bearer":
		token := auth.Token()
		return func(h http.Header) { h.Set("Authorization", "Bearer "+token) }
	case "basic":
		user, pass := auth.Username, auth.Password()
		return func(h http.Header) {
			r := http.Request{Header: h}
			r.SetBasicAuth(user, pass)
		}
	}
	return nil
}

type authTransport struct {
	next     http.RoundTripper
	decorate func(http.Header)
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.decorate != nil {
		req = req.Clone(req.Context())
		t.decorate(req.Header)
	}
	return t.next.RoundTrip(req)
}
