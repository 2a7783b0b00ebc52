package openidconnect

import (
	"context"
	"errors"
	"fmt"
	"github.com/MicahParks/jwkset"
	"github.com/benbjohnson/clock"
	"github.com/liveforeverx/openid-connect/document"
	"github.com/liveforeverx/openid-connect/document/wellknown"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ErrClosed is returned by queries issued against a closed Store.
var ErrClosed = errors.New("store is closed")

// Options are configurable options for the Store.
type Options struct {
	fetcher       document.Fetcher
	clock         clock.Clock
	logger        *slog.Logger
	backgroundCtx context.Context
}

// WithFetcher allows for a configurable metadata fetcher, which may be useful
// if you want to customize how discovery documents and JWK sets are retrieved.
func WithFetcher(fetcher document.Fetcher) Option {
	return func(so *Options) {
		so.fetcher = fetcher
	}
}

func withClock(clock clock.Clock) Option {
	return func(so *Options) {
		so.clock = clock
	}
}

// WithLogger allows for a configurable logger for refresh failures.
func WithLogger(logger *slog.Logger) Option {
	return func(so *Options) {
		so.logger = logger
	}
}

// WithBackgroundCtx specifies the context used for fetches performed by
// scheduled refreshes.
func WithBackgroundCtx(ctx context.Context) Option {
	return func(so *Options) {
		so.backgroundCtx = ctx
	}
}

func defaultOptions() *Options {
	opts := &Options{}
	WithFetcher(wellknown.NewFetcher())(opts)
	withClock(clock.New())(opts)
	WithLogger(slog.Default())(opts)
	WithBackgroundCtx(context.Background())(opts)
	return opts
}

// Option for the Store.
type Option func(*Options)

// tenantDocument is a single tenant's cached fetch outcome: either a result or
// the opaque error the fetch produced, never both.
type tenantDocument struct {
	result document.Result
	err    error
}

// providerState is the per-provider state owned by the store's run loop. The
// timer, once armed, is either still pending or has already fired and queued a
// refresh event.
type providerState struct {
	config    ProviderConfig
	template  *uriTemplate
	tenants   []string
	documents map[string]tenantDocument
	timer     *clock.Timer
}

// Store maintains a periodically refreshed cache of OIDC provider metadata.
//
// All state is owned by a single goroutine; queries and timer fires are
// delivered to it as messages and processed one at a time, so no two
// mutations ever overlap. Fetches run inside that goroutine's turn, which
// means a slow fetch for one provider delays queries against every provider.
type Store struct {
	fetcher       document.Fetcher
	clock         clock.Clock
	logger        *slog.Logger
	backgroundCtx context.Context

	providers map[string]*providerState // owned by the run loop after New returns

	requests  chan any
	fires     chan string
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Store for the given providers, runs the initial refresh batch
// for each enabled provider synchronously, and starts the refresh loop.
// Providers marked Disabled are skipped entirely. A dynamic provider whose URI
// template is missing the tenant placeholder fails construction with an error
// wrapping ErrMissingPlaceholder.
func New(configs map[string]ProviderConfig, options ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, option := range options {
		option(opts)
	}

	s := &Store{
		fetcher:       opts.fetcher,
		clock:         opts.clock,
		logger:        opts.logger,
		backgroundCtx: opts.backgroundCtx,
		providers:     make(map[string]*providerState),
		requests:      make(chan any),
		fires:         make(chan string),
		done:          make(chan struct{}),
	}

	for name, cfg := range configs {
		if cfg.Disabled {
			continue
		}

		template, err := newURITemplate(cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}

		s.providers[name] = &providerState{
			config:    cfg,
			template:  template,
			tenants:   resolveTenants(cfg),
			documents: make(map[string]tenantDocument),
		}
	}

	for name, state := range s.providers {
		delay := s.refreshBatch(name, state, state.tenants)
		s.arm(name, state, delay)
	}

	go s.run()
	return s, nil
}

// Close stops the refresh loop and cancels all armed timers. Queries issued
// after Close return ErrClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

type configRequest struct {
	provider string
	reply    chan *ProviderConfig
}

type discoveryRequest struct {
	provider string
	tenant   string
	reply    chan discoveryReply
}

type discoveryReply struct {
	discovery *document.Discovery
	err       error
}

type jwksRequest struct {
	provider string
	tenant   string
	reply    chan *jwkset.JWKSMarshal
}

// Config returns the configuration of the given provider, or nil if the
// provider is unknown or disabled.
func (s *Store) Config(ctx context.Context, provider string) (*ProviderConfig, error) {
	req := configRequest{provider: provider, reply: make(chan *ProviderConfig, 1)}
	if err := s.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case cfg := <-req.reply:
		return cfg, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DiscoveryDocument returns the cached discovery document for the given
// provider and tenant. Single-tenant callers address the DefaultTenant
// sentinel. If the last fetch for the tenant failed, that fetch error is
// returned verbatim. An unknown provider or tenant yields nil, nil.
func (s *Store) DiscoveryDocument(ctx context.Context, provider string, tenant string) (*document.Discovery, error) {
	req := discoveryRequest{provider: provider, tenant: tenant, reply: make(chan discoveryReply, 1)}
	if err := s.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case reply := <-req.reply:
		return reply.discovery, reply.err
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// JWKS returns the cached signing key set for the given provider and tenant.
// Under dynamic multi-tenancy a lookup for an unseen tenant provisions it on
// demand: the tenant is fetched, cached, added to the scheduled tenant set,
// and the provider's refresh timer is rearmed.
//
// Unlike DiscoveryDocument, a stored fetch error is collapsed to a nil result;
// the error detail is not exposed through the key lookup path.
func (s *Store) JWKS(ctx context.Context, provider string, tenant string) (*jwkset.JWKSMarshal, error) {
	req := jwksRequest{provider: provider, tenant: tenant, reply: make(chan *jwkset.JWKSMarshal, 1)}
	if err := s.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case keys := <-req.reply:
		return keys, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) send(ctx context.Context, req any) error {
	select {
	case s.requests <- req:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) run() {
	for {
		select {
		case <-s.done:
			for _, state := range s.providers {
				if state.timer != nil {
					state.timer.Stop()
				}
			}
			return
		case provider := <-s.fires:
			s.handleTimerFired(provider)
		case req := <-s.requests:
			switch req := req.(type) {
			case configRequest:
				s.handleConfig(req)
			case discoveryRequest:
				s.handleDiscovery(req)
			case jwksRequest:
				s.handleJWKS(req)
			}
		}
	}
}

// handleTimerFired refreshes the full current tenant set of the provider and
// rearms its timer. A stale fire delivered after cancellation is simply an
// extra full refresh, which is harmless.
func (s *Store) handleTimerFired(provider string) {
	state, ok := s.providers[provider]
	if !ok {
		return
	}

	delay := s.refreshBatch(provider, state, state.tenants)
	s.arm(provider, state, delay)
}

func (s *Store) handleConfig(req configRequest) {
	state, ok := s.providers[req.provider]
	if !ok {
		req.reply <- nil
		return
	}

	cfg := state.config
	req.reply <- &cfg
}

func (s *Store) handleDiscovery(req discoveryRequest) {
	state, ok := s.providers[req.provider]
	if !ok {
		req.reply <- discoveryReply{}
		return
	}

	entry, ok := state.documents[req.tenant]
	if !ok {
		req.reply <- discoveryReply{}
		return
	}
	if entry.err != nil {
		req.reply <- discoveryReply{err: entry.err}
		return
	}

	discovery := entry.result.Discovery
	req.reply <- discoveryReply{discovery: &discovery}
}

func (s *Store) handleJWKS(req jwksRequest) {
	state, ok := s.providers[req.provider]
	if !ok {
		req.reply <- nil
		return
	}

	entry, ok := state.documents[req.tenant]
	if !ok {
		if !state.config.MultiTenant.Dynamic || slices.Contains(state.tenants, req.tenant) {
			req.reply <- nil
			return
		}

		s.provision(req.provider, state, req.tenant)
		entry = state.documents[req.tenant]
	}

	if entry.err != nil {
		req.reply <- nil
		return
	}

	keys := entry.result.Keys
	req.reply <- &keys
}

// provision admits a single new tenant on demand. The delay computed from the
// single-tenant batch supersedes whatever delay was governing the rest of the
// tenant set; the next scheduled refresh covers the full set.
func (s *Store) provision(provider string, state *providerState, tenant string) {
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
	}

	delay := s.refreshBatch(provider, state, []string{tenant})
	state.tenants = append([]string{tenant}, state.tenants...)
	s.arm(provider, state, delay)
}

// arm replaces the provider's timer with one firing after delay. The prior
// timer is cancelled first; at most one stale fire from it may still be
// queued, which handleTimerFired tolerates.
func (s *Store) arm(provider string, state *providerState, delay time.Duration) {
	if state.timer != nil {
		state.timer.Stop()
	}

	state.timer = s.clock.AfterFunc(delay, func() {
		select {
		case s.fires <- provider:
		case <-s.done:
		}
	})
}
