package openidconnect

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"slices"
	"strings"
)

const (
	// DefaultTenant is the sentinel tenant identifier used by providers that
	// are not configured for multi-tenancy.
	DefaultTenant = "default"

	// DefaultPlaceholder is the token substituted with a tenant identifier in
	// dynamic multi-tenant URI templates.
	DefaultPlaceholder = ":tenant"
)

// ErrMissingPlaceholder indicates that a dynamic multi-tenant provider was
// configured with a URI template that does not contain the placeholder token.
var ErrMissingPlaceholder = errors.New("uri template is missing the tenant placeholder")

// MultiTenantConfig describes how a provider serves multiple tenants.
type MultiTenantConfig struct {
	// Dynamic admits tenants lazily on first key lookup instead of requiring
	// them to be enumerated up front.
	Dynamic bool `yaml:"dynamic" json:"dynamic"`

	// Tenants is the static set of tenants provisioned at startup.
	Tenants []string `yaml:"tenants" json:"tenants"`

	// Placeholder overrides DefaultPlaceholder in the URI template.
	Placeholder string `yaml:"placeholder" json:"placeholder"`
}

func (mt MultiTenantConfig) placeholder() string {
	if mt.Placeholder == "" {
		return DefaultPlaceholder
	}
	return mt.Placeholder
}

// ProviderConfig describes a single identity provider.
type ProviderConfig struct {
	// URI is the well known configuration URI, or a template containing the
	// tenant placeholder when multi-tenancy is enabled.
	URI string `yaml:"uri" json:"uri"`

	// Disabled skips initialization of this provider entirely.
	Disabled bool `yaml:"disabled" json:"disabled"`

	MultiTenant MultiTenantConfig `yaml:"multi_tenant" json:"multi_tenant"`
}

// ParseConfig decodes a YAML mapping of provider identifier to ProviderConfig.
func ParseConfig(data []byte) (map[string]ProviderConfig, error) {
	configs := make(map[string]ProviderConfig)
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("decoding provider config: %w", err)
	}
	return configs, nil
}

// resolveTenants derives the initial tenant set for a provider. Static tenant
// lists win, dynamic providers start empty, everything else gets the sentinel
// tenant.
func resolveTenants(cfg ProviderConfig) []string {
	mt := cfg.MultiTenant
	switch {
	case len(mt.Tenants) > 0:
		return slices.Clone(mt.Tenants)
	case mt.Dynamic:
		return nil
	default:
		return []string{DefaultTenant}
	}
}

// uriTemplate produces per-tenant fetch URIs. The template is split at the
// first occurrence of the placeholder; any further occurrences are left in the
// suffix verbatim.
type uriTemplate struct {
	prefix string
	suffix string
	static bool
}

func newURITemplate(cfg ProviderConfig) (*uriTemplate, error) {
	if !cfg.MultiTenant.Dynamic {
		return &uriTemplate{prefix: cfg.URI, static: true}, nil
	}

	placeholder := cfg.MultiTenant.placeholder()
	prefix, suffix, found := strings.Cut(cfg.URI, placeholder)
	if !found {
		return nil, fmt.Errorf("template %q: %w (%q)", cfg.URI, ErrMissingPlaceholder, placeholder)
	}

	return &uriTemplate{prefix: prefix, suffix: suffix}, nil
}

func (t *uriTemplate) uriFor(tenant string) string {
	if t.static {
		return t.prefix
	}
	return t.prefix + tenant + t.suffix
}
