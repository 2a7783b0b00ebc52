package wellknown

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/MicahParks/jwkset"
	"github.com/liveforeverx/openid-connect/document"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Options are configurable options for the Fetcher.
type Options struct {
	httpClient *http.Client
}

// WithHttpClient allows for a configurable http client, which may be useful
// for wiring in instrumented transports such as otelhttp.
func WithHttpClient(httpClient *http.Client) Option {
	return func(fo *Options) {
		fo.httpClient = httpClient
	}
}

func defaultOptions() *Options {
	opts := &Options{}
	WithHttpClient(http.DefaultClient)(opts)
	return opts
}

// Option for the Fetcher.
type Option func(*Options)

// Fetcher is an implementation of document.Fetcher that retrieves the OIDC
// discovery document from a well known configuration URI and then the JWK set
// it advertises. The remaining key lifetime is derived from the Cache-Control
// max-age directive of the JWK set response.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a new Fetcher.
func NewFetcher(options ...Option) *Fetcher {
	opts := defaultOptions()
	for _, option := range options {
		option(opts)
	}

	return &Fetcher{httpClient: opts.httpClient}
}

// Fetch retrieves the discovery document served at uri along with the signing
// key set it points at.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (document.Result, error) {
	discovery, err := f.fetchDiscovery(ctx, uri)
	if err != nil {
		return document.Result{}, fmt.Errorf("fetching discovery document: %w", err)
	}

	if discovery.JwksUri == "" {
		return document.Result{}, fmt.Errorf("discovery document %q has no jwks_uri", uri)
	}

	keys, lifetime, err := f.fetchKeys(ctx, discovery.JwksUri)
	if err != nil {
		return document.Result{}, fmt.Errorf("fetching jwks: %w", err)
	}

	return document.Result{Discovery: discovery, Keys: keys, Lifetime: lifetime}, nil
}

func (f *Fetcher) fetchDiscovery(ctx context.Context, uri string) (document.Discovery, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return document.Discovery{}, fmt.Errorf("creating new http request: %w", err)
	}
	resp, err := f.httpClient.Do(httpRequest)
	if err != nil {
		return document.Discovery{}, fmt.Errorf("making http request for discovery document: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		return document.Discovery{}, fmt.Errorf("request for discovery document %q was not HTTP 2xx OK, it was: %d", uri, resp.StatusCode)
	}

	d := document.Discovery{}
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return d, fmt.Errorf("decoding discovery document: %w", err)
	}

	return d, nil
}

func (f *Fetcher) fetchKeys(ctx context.Context, jwksUri string) (jwkset.JWKSMarshal, *time.Duration, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksUri, nil)
	if err != nil {
		return jwkset.JWKSMarshal{}, nil, fmt.Errorf("creating new http request: %w", err)
	}
	resp, err := f.httpClient.Do(httpRequest)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return jwkset.JWKSMarshal{}, nil, fmt.Errorf("making http request for jwks: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		return jwkset.JWKSMarshal{}, nil, fmt.Errorf("request for jwks %q was not HTTP 2xx OK, it was: %d", jwksUri, resp.StatusCode)
	}

	jwkJson, err := io.ReadAll(resp.Body)
	if err != nil {
		return jwkset.JWKSMarshal{}, nil, fmt.Errorf("failed to read jwks response body: %w", err)
	}

	keys := jwkset.JWKSMarshal{}
	if err := json.Unmarshal(jwkJson, &keys); err != nil {
		return keys, nil, fmt.Errorf("decoding jwks: %w", err)
	}

	return keys, maxAge(resp.Header.Get("Cache-Control")), nil
}

// maxAge parses the max-age directive out of a Cache-Control header value.
// A missing or malformed directive yields nil rather than an error since the
// lifetime is advisory.
func maxAge(header string) *time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		value, found := strings.CutPrefix(strings.ToLower(directive), "max-age=")
		if !found {
			continue
		}

		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil
		}

		lifetime := time.Duration(seconds) * time.Second
		return &lifetime
	}

	return nil
}
