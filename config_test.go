package openidconnect

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestResolveTenants(t *testing.T) {

	t.Run("static tenant list wins", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/:tenant/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true, Tenants: []string{"a", "b"}},
		}

		require.Equal(t, []string{"a", "b"}, resolveTenants(cfg))
	})

	t.Run("dynamic starts empty", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/:tenant/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true},
		}

		require.Empty(t, resolveTenants(cfg))
	})

	t.Run("single tenant gets the sentinel", func(t *testing.T) {
		cfg := ProviderConfig{URI: "https://idp/.well-known"}

		require.Equal(t, []string{DefaultTenant}, resolveTenants(cfg))
	})
}

func TestURITemplate(t *testing.T) {

	t.Run("static uri is returned unchanged for every tenant", func(t *testing.T) {
		cfg := ProviderConfig{URI: "https://idp/.well-known"}

		template, err := newURITemplate(cfg)
		require.NoError(t, err)
		require.Equal(t, "https://idp/.well-known", template.uriFor("a"))
		require.Equal(t, "https://idp/.well-known", template.uriFor("b"))
	})

	t.Run("dynamic template substitutes the tenant", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/:tenant/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true},
		}

		template, err := newURITemplate(cfg)
		require.NoError(t, err)
		require.Equal(t, "https://idp/acme/.well-known", template.uriFor("acme"))
	})

	t.Run("only the first placeholder occurrence is substituted", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/:tenant/:tenant/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true},
		}

		template, err := newURITemplate(cfg)
		require.NoError(t, err)
		require.Equal(t, "https://idp/acme/:tenant/.well-known", template.uriFor("acme"))
	})

	t.Run("custom placeholder", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/{tid}/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true, Placeholder: "{tid}"},
		}

		template, err := newURITemplate(cfg)
		require.NoError(t, err)
		require.Equal(t, "https://idp/acme/.well-known", template.uriFor("acme"))
	})

	t.Run("missing placeholder is a typed error", func(t *testing.T) {
		cfg := ProviderConfig{
			URI:         "https://idp/.well-known",
			MultiTenant: MultiTenantConfig{Dynamic: true},
		}

		_, err := newURITemplate(cfg)
		require.ErrorIs(t, err, ErrMissingPlaceholder)
	})
}

func TestParseConfig(t *testing.T) {

	t.Run("parse provider map", func(t *testing.T) {
		data := []byte(`
okta:
  uri: https://test.okta.com/.well-known/openid-configuration
azure:
  uri: https://login.example.com/:tenant/.well-known/openid-configuration
  multi_tenant:
    dynamic: true
    tenants: [acme, globex]
legacy:
  uri: https://legacy.example.com/.well-known/openid-configuration
  disabled: true
`)

		configs, err := ParseConfig(data)
		require.NoError(t, err)
		require.Len(t, configs, 3)

		require.Equal(t, "https://test.okta.com/.well-known/openid-configuration", configs["okta"].URI)
		require.False(t, configs["okta"].MultiTenant.Dynamic)

		require.True(t, configs["azure"].MultiTenant.Dynamic)
		require.Equal(t, []string{"acme", "globex"}, configs["azure"].MultiTenant.Tenants)

		require.True(t, configs["legacy"].Disabled)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("{"))
		require.ErrorContains(t, err, "decoding provider config")
	})
}
