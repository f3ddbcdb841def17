package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/telemetry"
)

// Heartbeat is signalled after every sweep so health checks can spot a stalled sweeper.
type Heartbeat interface {
	Beat()
}

type Options struct {
	Defaults  []string
	Timeout   time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
	Metrics   domain.Metrics
	Heartbeat Heartbeat
}

// Store keeps per-client visibility state in memory.
//
// The store lock guards only the key index. Each session carries its own
// lock, so reads and writes for different keys never contend and a writer
// replaces both tool sets of one session atomically.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record

	defaults  domain.ToolSet
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
	metrics   domain.Metrics
	heartbeat Heartbeat
}

type record struct {
	mu      sync.Mutex
	session domain.Session
	removed bool
}

func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := opts.Defaults
	if len(defaults) == 0 {
		defaults = domain.DefaultEnabledTools()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		records:   make(map[string]*record),
		defaults:  domain.NewToolSet(defaults...),
		timeout:   opts.Timeout,
		now:       now,
		logger:    logger.Named("session_store"),
		metrics:   opts.Metrics,
		heartbeat: opts.Heartbeat,
	}
}

// DefaultEnabledTools returns the tools every session starts with and keeps.
func (s *Store) DefaultEnabledTools() []string {
	return s.defaults.Sorted()
}

// Timeout is the idle duration after which sessions expire.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// GetOrCreate returns the live session for key, creating it with the
// requested mode when absent or expired. Every call counts as activity.
func (s *Store) GetOrCreate(key string, mode domain.ToolMode) (domain.Session, error) {
	if key == "" {
		return domain.Session{}, domain.ErrSessionUnavailable
	}

	s.mu.RLock()
	rec := s.records[key]
	s.mu.RUnlock()
	if rec != nil {
		if session, ok := s.touchLive(rec); ok {
			return session, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec = s.records[key]; rec != nil {
		if session, ok := s.touchLive(rec); ok {
			return session, nil
		}
		rec.mu.Lock()
		rec.removed = true
		rec.mu.Unlock()
		delete(s.records, key)
		s.logger.Debug("replacing expired session",
			telemetry.EventField(telemetry.EventSessionExpired),
			telemetry.SessionField(key),
		)
	}

	if mode == "" {
		mode = domain.DefaultToolMode
	}
	now := s.now()
	rec = &record{session: domain.Session{
		ID:                key,
		Mode:              mode,
		EnabledTools:      s.defaults.Clone(),
		EnabledCategories: domain.NewToolSet(),
		CreatedAt:         now,
		LastActivity:      now,
	}}
	s.records[key] = rec

	s.logger.Info("session created",
		telemetry.EventField(telemetry.EventSessionCreated),
		telemetry.SessionField(key),
		telemetry.ModeField(string(mode)),
	)
	if s.metrics != nil {
		s.metrics.ObserveSessionCreated()
		s.metrics.SetActiveSessions(len(s.records))
	}
	return rec.session.Clone(), nil
}

// touchLive refreshes a session that is neither removed nor expired.
func (s *Store) touchLive(rec *record) (domain.Session, bool) {
	now := s.now()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed || rec.session.Expired(now, s.timeout) {
		return domain.Session{}, false
	}
	rec.session.LastActivity = now
	return rec.session.Clone(), true
}

// Get returns a copy of the session without counting it as activity.
func (s *Store) Get(key string) (domain.Session, bool) {
	s.mu.RLock()
	rec := s.records[key]
	s.mu.RUnlock()
	if rec == nil {
		return domain.Session{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return domain.Session{}, false
	}
	return rec.session.Clone(), true
}

func (s *Store) Touch(key string) error {
	_, err := s.Modify(key, func(*domain.Session) {})
	return err
}

// Update replaces both sets of a session. The default tools are always kept.
func (s *Store) Update(key string, enabledTools, enabledCategories []string) (domain.Session, error) {
	return s.Modify(key, func(session *domain.Session) {
		session.EnabledTools = domain.NewToolSet(enabledTools...)
		session.EnabledCategories = domain.NewToolSet(enabledCategories...)
	})
}

// Modify runs fn against a private copy of the session and commits the
// result under the session lock. Calls for the same key are serialized.
func (s *Store) Modify(key string, fn func(session *domain.Session)) (domain.Session, error) {
	s.mu.RLock()
	rec := s.records[key]
	s.mu.RUnlock()
	if rec == nil {
		return domain.Session{}, domain.E(domain.CodeNotFound, "session.modify", "", domain.ErrSessionNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return domain.Session{}, domain.E(domain.CodeNotFound, "session.modify", "", domain.ErrSessionNotFound)
	}

	next := rec.session.Clone()
	fn(&next)
	if next.EnabledTools == nil {
		next.EnabledTools = domain.NewToolSet()
	}
	if next.EnabledCategories == nil {
		next.EnabledCategories = domain.NewToolSet()
	}
	for name := range s.defaults {
		next.EnabledTools.Add(name)
	}
	next.ID = rec.session.ID
	next.CreatedAt = rec.session.CreatedAt
	next.LastActivity = s.now()

	rec.session = next
	return next.Clone(), nil
}

// SweepExpired removes sessions idle longer than timeout and returns how many were dropped.
func (s *Store) SweepExpired(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	now := s.now()

	s.mu.Lock()
	removed := 0
	for key, rec := range s.records {
		rec.mu.Lock()
		if rec.session.Expired(now, timeout) {
			rec.removed = true
			delete(s.records, key)
			removed++
			s.logger.Debug("session expired",
				telemetry.EventField(telemetry.EventSessionExpired),
				telemetry.SessionField(key),
			)
		}
		rec.mu.Unlock()
	}
	active := len(s.records)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveSessionsExpired(removed)
		s.metrics.SetActiveSessions(active)
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", zap.Int("count", removed), zap.Int("active", active))
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = domain.DefaultSessionSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(s.timeout)
			s.beat()
		}
	}
}

func (s *Store) beat() {
	if s.heartbeat != nil {
		s.heartbeat.Beat()
	}
}

// Close drops every session.
func (s *Store) Close() {
	s.mu.Lock()
	for key, rec := range s.records {
		rec.mu.Lock()
		rec.removed = true
		rec.mu.Unlock()
		delete(s.records, key)
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetActiveSessions(0)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Info returns the introspection view of one session.
func (s *Store) Info(id string) (domain.SessionInfo, bool) {
	session, ok := s.Get(id)
	if !ok {
		return domain.SessionInfo{}, false
	}
	return session.Info(s.now(), s.timeout), true
}

// List returns every session ordered by id.
func (s *Store) List() []domain.SessionInfo {
	s.mu.RLock()
	records := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	now := s.now()
	out := make([]domain.SessionInfo, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		if !rec.removed {
			out = append(out, rec.session.Info(now, s.timeout))
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Snapshot() domain.SessionsSnapshot {
	sessions := s.List()
	return domain.SessionsSnapshot{
		Total:        len(sessions),
		Sessions:     sessions,
		DefaultTools: s.DefaultEnabledTools(),
	}
}
