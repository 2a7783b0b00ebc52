package openidconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Keyfunc builds a jwt.Keyfunc from the cached signing key set of the given
// provider and tenant. The store only caches key material; verifying tokens
// with the returned keyfunc is up to the caller.
func (s *Store) Keyfunc(ctx context.Context, provider string, tenant string) (jwt.Keyfunc, error) {
	keys, err := s.JWKS(ctx, provider, tenant)
	if err != nil {
		return nil, fmt.Errorf("getting cached jwks: %w", err)
	}
	if keys == nil {
		return nil, fmt.Errorf("no cached jwks for provider %q tenant %q", provider, tenant)
	}

	jwkJson, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("encoding cached jwks: %w", err)
	}

	kf, err := keyfunc.NewJWKSetJSON(jwkJson)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc from jwk json: %w", err)
	}

	return kf.Keyfunc, nil
}
