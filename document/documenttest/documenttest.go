package documenttest

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"github.com/MicahParks/jwkset"
	"github.com/liveforeverx/openid-connect/document"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

const (
	KID = "test"
)

// Fetcher is a scripted document.Fetcher keyed by URI that counts fetches.
type Fetcher struct {
	mu      sync.Mutex
	results map[string]document.Result
	errs    map[string]error
	counts  map[string]int
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		results: make(map[string]document.Result),
		errs:    make(map[string]error),
		counts:  make(map[string]int),
	}
}

// SetResult scripts a successful fetch result for uri.
func (f *Fetcher) SetResult(uri string, result document.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[uri] = result
	delete(f.errs, uri)
}

// SetError scripts a fetch failure for uri.
func (f *Fetcher) SetError(uri string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[uri] = err
	delete(f.results, uri)
}

func (f *Fetcher) Fetch(ctx context.Context, uri string) (document.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[uri]++

	if err, ok := f.errs[uri]; ok {
		return document.Result{}, err
	}
	if result, ok := f.results[uri]; ok {
		return result, nil
	}
	return document.Result{}, fmt.Errorf("no scripted result for %q", uri)
}

// Count returns the number of fetches issued for uri.
func (f *Fetcher) Count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[uri]
}

// TotalCount returns the number of fetches issued across all URIs.
func (f *Fetcher) TotalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, count := range f.counts {
		total += count
	}
	return total
}

// Result builds a fetch result whose key set contains the public half of priv
// under the well known test KID.
func Result(t *testing.T, ctx context.Context, priv *rsa.PrivateKey, lifetime *time.Duration) document.Result {
	return document.Result{
		Discovery: document.Discovery{
			Issuer:  "https://test.example.com",
			JwksUri: "https://test.example.com/oauth2/v1/keys",
		},
		Keys:     Jwks(t, ctx, priv),
		Lifetime: lifetime,
	}
}

// Jwks builds a JWK set containing the public half of priv under the well
// known test KID.
func Jwks(t *testing.T, ctx context.Context, priv *rsa.PrivateKey) jwkset.JWKSMarshal {
	serverStore := jwkset.NewMemoryStorage()
	md := jwkset.JWKMetadataOptions{
		KID: KID,
	}
	jwkOptions := jwkset.JWKOptions{
		Metadata: md,
	}
	jwk, err := jwkset.NewJWKFromKey(priv, jwkOptions)
	require.NoError(t, err)

	err = serverStore.KeyWrite(ctx, jwk)
	require.NoError(t, err)

	rawJWKS, err := serverStore.JSONPublic(ctx)
	require.NoError(t, err)

	keys := jwkset.JWKSMarshal{}
	err = json.Unmarshal(rawJWKS, &keys)
	require.NoError(t, err)

	return keys
}

// Lifetime is a convenience for scripting pointer lifetimes.
func Lifetime(d time.Duration) *time.Duration {
	return &d
}
