package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"fleetscope/internal/config"
	"fleetscope/internal/fetch"
	"fleetscope/internal/pool"
	"fleetscope/internal/provider"
	"fleetscope/internal/service"
)

// session wires one discovery service per organization around a shared fetch client
// and worker pool. It implements handler.Discoverer.
type session struct {
	client      *fetch.Client
	workers     *pool.Pool
	events      *service.EventBus
	orgs        []string
	discoveries map[string]*service.Discovery
	logger      *logrus.Logger
}

// sessionOptions selects where organization data comes from
type sessionOptions struct {
	// Fixture, when set, replaces the cloud API with a YAML snapshot
	Fixture string
	// Orgs restricts the run to these organizations
	Orgs []string
	// Events is shared across sessions; nil creates a new bus
	Events *service.EventBus
}

func newSession(cfg *config.Config, configPath string, opts sessionOptions, logger *logrus.Logger) (*session, error) {
	if len(opts.Orgs) > 0 {
		cfg.Organizations = opts.Orgs
	}

	profile := cfg.EffectiveFetch()
	s := &session{
		client: fetch.New(fetch.Config{
			RatePerSecond: profile.RatePerSecond,
			Burst:         profile.Burst,
		}, logger),
		events:      opts.Events,
		discoveries: make(map[string]*service.Discovery),
		logger:      logger,
	}

	if s.events == nil {
		s.events = service.NewEventBus()
	}

	sources, err := s.sources(cfg, configPath, opts)
	if err != nil {
		return nil, err
	}

	s.workers = pool.New(profile.Workers, logger)
	for _, src := range sources {
		cached := provider.NewCached(src.provider, s.client)
		s.discoveries[src.org] = service.NewDiscovery(cached, s.workers, s.events, logger)
		s.orgs = append(s.orgs, src.org)
	}

	logger.WithFields(logrus.Fields{
		"organizations": len(s.orgs),
		"workers":       profile.Workers,
		"rate":          profile.RatePerSecond,
		"burst":         profile.Burst,
	}).Debug("Session ready")

	return s, nil
}

type source struct {
	org      string
	provider provider.Provider
}

func (s *session) sources(cfg *config.Config, configPath string, opts sessionOptions) ([]source, error) {
	if opts.Fixture != "" {
		fixture, err := provider.LoadFixture(opts.Fixture)
		if err != nil {
			return nil, err
		}
		orgs := cfg.Organizations
		if len(orgs) == 0 && fixture.Organization() != "" {
			orgs = []string{fixture.Organization()}
		}
		if len(orgs) == 0 {
			return nil, fmt.Errorf("fixture %s names no organization, pass --org", opts.Fixture)
		}
		out := make([]source, 0, len(orgs))
		for _, org := range orgs {
			out = append(out, source{org: org, provider: fixture})
		}
		return out, nil
	}

	creds, err := cfg.Credentials(configPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(creds))
	out := make([]source, 0, len(creds))
	for _, cred := range creds {
		if seen[cred.OrgID] {
			s.logger.WithField("org_id", cred.OrgID).Warn("Duplicate organization in credentials, keeping the first key")
			continue
		}
		seen[cred.OrgID] = true

		dash, err := provider.NewDashboard(provider.DashboardConfig{
			BaseURL:  cfg.Dashboard.BaseURL,
			APIKey:   cred.APIKey,
			Timeout:  cfg.Dashboard.Timeout.Duration(),
			Throttle: s.client,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("organization %s: %w", cred.OrgID, err)
		}
		out = append(out, source{org: cred.OrgID, provider: dash})
	}
	return out, nil
}

// Organizations returns the organizations of the session in configuration order
func (s *session) Organizations() []string {
	return s.orgs
}

// Events returns the bus every discovery publishes to
func (s *session) Events() *service.EventBus {
	return s.events
}

// Run discovers one organization
func (s *session) Run(ctx context.Context, orgID string) (*service.Report, error) {
	d, ok := s.discoveries[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s is not configured", orgID)
	}
	return d.Run(ctx, orgID)
}

// Close stops the worker pool
func (s *session) Close() {
	if s.workers != nil {
		s.workers.Close()
	}
}

// reloader is a Discoverer that rebuilds its session after Invalidate, so the next run
// re-reads configuration and inputs and starts with an empty fetch cache
type reloader struct {
	build func() (*session, error)

	mu      sync.Mutex
	current *session
	stale   bool
}

func newReloader(build func() (*session, error)) (*reloader, error) {
	s, err := build()
	if err != nil {
		return nil, err
	}
	return &reloader{build: build, current: s}, nil
}

// Invalidate marks the current session stale
func (r *reloader) Invalidate() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

// Organizations returns the organizations of the current session
func (r *reloader) Organizations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Organizations()
}

// Run discovers orgID, rebuilding the session first if it is stale.
// A failed rebuild keeps the previous session.
func (r *reloader) Run(ctx context.Context, orgID string) (*service.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stale {
		next, err := r.build()
		if err != nil {
			r.current.logger.WithError(err).Warn("Reload failed, keeping previous session")
		} else {
			r.current.Close()
			r.current = next
		}
		r.stale = false
	}
	return r.current.Run(ctx, orgID)
}

// Close stops the current session
func (r *reloader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Close()
}
