package openidconnect

import (
	"time"
)

// DefaultRefreshInterval is the delay until the next scheduled refresh when a
// provider does not advertise a remaining key lifetime. It also caps the
// delay computed from any refresh batch.
const DefaultRefreshInterval = time.Hour

// refreshBatch fetches every tenant in the batch sequentially, replaces their
// cached documents, and returns the delay until the next scheduled refresh:
// the minimum of DefaultRefreshInterval and the delays derived from the
// successful fetches in this batch. Failed fetches store their error in place
// of a document and do not influence the delay.
func (s *Store) refreshBatch(provider string, state *providerState, batch []string) time.Duration {
	delay := DefaultRefreshInterval

	for _, tenant := range batch {
		uri := state.template.uriFor(tenant)

		result, err := s.fetcher.Fetch(s.backgroundCtx, uri)
		if err != nil {
			s.logger.Error("failed to refresh provider metadata",
				"provider", provider, "tenant", tenant, "uri", uri, "error", err)
			state.documents[tenant] = tenantDocument{err: err}
			continue
		}

		state.documents[tenant] = tenantDocument{result: result}
		if candidate := refreshIn(result.Lifetime); candidate < delay {
			delay = candidate
		}
	}

	return delay
}

// refreshIn converts a remaining key lifetime into a refresh delay. An absent
// lifetime falls back to DefaultRefreshInterval and an already expired
// lifetime refreshes immediately.
func refreshIn(lifetime *time.Duration) time.Duration {
	switch {
	case lifetime == nil:
		return DefaultRefreshInterval
	case *lifetime > 0:
		return *lifetime
	default:
		return 0
	}
}
