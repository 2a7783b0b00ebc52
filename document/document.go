package document

import (
	"context"
	"time"

	"github.com/MicahParks/jwkset"
)

// Discovery represents an OIDC discovery document published by an identity
// provider under its well known configuration endpoint.
// See: https://openid.net/specs/openid-connect-discovery-1_0.html
type Discovery struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint               string   `json:"end_session_endpoint,omitempty"`
	JwksUri                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported,omitempty"`
	SubjectTypesSupported            []string `json:"subject_types_supported,omitempty"`
	IdTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	ClaimsSupported                  []string `json:"claims_supported,omitempty"`
}

// Result is the outcome of fetching metadata for a single tenant URI: the
// discovery document, the signing key set it points at, and the remaining
// lifetime of those keys when the provider advertises one.
type Result struct {
	Discovery Discovery
	Keys      jwkset.JWKSMarshal

	// Lifetime is the provider-advertised remaining validity of Keys. A nil
	// Lifetime means the provider did not advertise one.
	Lifetime *time.Duration
}

// Fetcher is a pluggable fetcher of OIDC provider metadata.
type Fetcher interface {
	// Fetch retrieves the discovery document and signing key set served at uri.
	Fetch(ctx context.Context, uri string) (Result, error)
}
