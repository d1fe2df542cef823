package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
)

// ErrInvalidEndpoint is returned when a template and account id do not form an
// absolute URL. Callers must fail the request rather than fall back.
var ErrInvalidEndpoint = errors.New("invalid auth base url, check settings")

// Resolve builds the per-account URL templateURL + "/" + accountID.
func Resolve(templateURL, accountID string) (*url.URL, error) {
	raw := templateURL + "/" + accountID

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute url", ErrInvalidEndpoint, raw)
	}

	return parsed, nil
}

// ConfigSource is the read side of the account configuration store.
type ConfigSource interface {
	Get() (account.Config, error)
}

// Transport rewrites every outgoing request to the resolved per-account URL.
// A request whose URL cannot be resolved is never sent.
type Transport struct {
	// Base performs the rewritten request. http.DefaultTransport is used when nil.
	Base http.RoundTripper

	// Source supplies the auth base URL and account id for each request.
	Source ConfigSource
}

// NewTransport creates a rewriting transport on top of base.
func NewTransport(base http.RoundTripper, source ConfigSource) *Transport {
	return &Transport{
		Base:   base,
		Source: source,
	}
}

// Rewrite returns a copy of req targeting the resolved URL.
func (t *Transport) Rewrite(req *http.Request) (*http.Request, error) {
	cfg, err := t.Source.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read account config: %w", err)
	}

	target, err := Resolve(cfg.AuthBaseURL, cfg.AccountID)
	if err != nil {
		return nil, err
	}

	rewritten := req.Clone(req.Context())
	rewritten.URL = target
	rewritten.Host = target.Host
	return rewritten, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten, err := t.Rewrite(req)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(rewritten)
}
