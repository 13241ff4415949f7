package jobcard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Loader fetches the last persisted card for a session. It returns
// (nil, nil) when the session has none.
type Loader func(ctx context.Context, sessionID string) (*JobCard, error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLoader rehydrates new sessions through l.
func WithLoader(l Loader) RegistryOption {
	return func(r *Registry) { r.load = l }
}

// WithTTL sets how long an untouched session survives Sweep.
func WithTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryClock replaces time.Now for idle tracking.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry holds one Controller per UI session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  func(sessionID string) *Controller
	load     Loader
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry returns a registry that builds controllers with factory.
func NewRegistry(factory func(sessionID string) *Controller, opts ...RegistryOption) *Registry {
	if factory == nil {
		factory = func(id string) *Controller { return NewController(WithSessionID(id)) }
	}
	r := &Registry{
		sessions: make(map[string]*session),
		factory:  factory,
		ttl:      2 * time.Hour,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	// ErrEmptySession is returned for a blank session id.
	ErrEmptySession = errors.New("jobcard: empty session id")
	// ErrSessionNotOwned is returned when a session belongs to another user.
	ErrSessionNotOwned = errors.New("jobcard: session owned by another user")
)

// GetOwned is Get followed by an ownership check. The first owner to touch a
// session claims it.
func (r *Registry) GetOwned(ctx context.Context, sessionID, owner string) (*Controller, error) {
	c, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !c.Claim(owner) {
		return nil, ErrSessionNotOwned
	}
	return c, nil
}

// DropOwned drops the session unless it belongs to someone other than owner.
func (r *Registry) DropOwned(ctx context.Context, sessionID, owner string) error {
	if c, ok := r.Lookup(sessionID); ok && !c.Claim(owner) {
		return ErrSessionNotOwned
	}
	r.Drop(ctx, sessionID)
	return nil
}

// Get returns the session's controller, creating and rehydrating it on first
// use. A loader failure is logged and the session starts empty.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Controller, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	if c, ok := r.Lookup(sessionID); ok {
		return c, nil
	}

	c := r.factory(sessionID)
	if r.load != nil {
		jc, err := r.load(ctx, sessionID)
		switch {
		case err != nil:
			r.logger.Warn("session rehydrate failed", "session", sessionID, "err", err)
		case jc != nil:
			if err := c.Load(jc); err != nil {
				r.logger.Warn("session snapshot rejected", "session", sessionID, "err", err)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.lastSeen = r.now()
		return s.ctrl, nil
	}
	r.sessions[sessionID] = &session{ctrl: c, lastSeen: r.now()}
	return c, nil
}

// Lookup returns an existing controller without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.ctrl, true
}

// Drop resets and forgets a session.
func (r *Registry) Drop(ctx context.Context, sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		s.ctrl.Reset(ctx)
	}
	return ok
}

// Sweep forgets sessions idle longer than the TTL and returns how many went.
// Evicted controllers keep their card; only the registry entry is removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.logger.Info("idle sessions evicted", "count", n, "remaining", len(r.sessions))
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
