package convstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/extract"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/resilience"
)

// SnapshotStore persists serialized session snapshots keyed by normalized
// phone number. Get returns (nil, nil) when no snapshot exists; a store
// failure is logged and absorbed, never surfaced to the conversation.
type SnapshotStore interface {
	Get(ctx context.Context, phone string) ([]byte, error)
	Set(ctx context.Context, phone string, data []byte) error
}

// entry pairs a session's state with its own lock so concurrent updates to
// different sessions never contend. gen counts mutations; persisted records
// the newest generation whose snapshot reached the store.
type entry struct {
	mu        sync.Mutex
	st        *State
	gen       uint64
	persisted uint64
}

// Manager owns every live conversation. All reads hand out deep copies;
// the internal state is only ever touched under the per-session lock.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byPhone map[string]string // normalized phone -> session id

	store   SnapshotStore
	breaker *resilience.Breaker
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a Manager. The store may be nil, which disables
// cross-session persistence; the manager still works fully in memory.
func NewManager(store SnapshotStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: map[string]*entry{},
		byPhone: map[string]string{},
		store:   store,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		logger:  logger,
		now:     time.Now,
	}
}

// Update runs one conversational turn through the state machine: extract
// entities, merge them, note mentioned vehicles, then move stage, interest
// and sentiment. A missing session id creates a fresh session; the returned
// snapshot carries the id to use on subsequent turns. Update never fails;
// a turn that teaches us nothing simply changes nothing.
func (m *Manager) Update(ctx context.Context, turn domain.Turn) *State {
	e, id := m.entryFor(turn.SessionID)

	e.mu.Lock()
	st := e.st
	now := m.now()
	st.MessageCount++

	ents := extract.Utterance(turn.Utterance)
	st.applyEntities(ents, turn.Utterance, now)
	if turn.CustomerName != "" {
		st.CustomerName = turn.CustomerName
	}
	st.noteVehicles(turn.MentionedIDs, now)

	lower := strings.ToLower(turn.Utterance)
	st.advanceStage(lower)
	st.updateInterest(lower, now)
	st.updateSentiment(lower)

	st.UpdatedAt = now
	e.gen++
	gen := e.gen
	snap := st.clone()
	e.mu.Unlock()

	if snap.CustomerPhone != "" {
		m.indexPhone(snap.CustomerPhone, id)
		if m.persist(ctx, snap) {
			m.markPersisted(e, gen)
		}
	}
	return snap
}

// View returns a deep copy of the session state, or (nil, false) if the
// session is unknown.
func (m *Manager) View(sessionID string) (*State, bool) {
	m.mu.RLock()
	e, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.clone(), true
}

// MarkFavorite flags a vehicle as a favorite. The discussed-vehicle record
// is created if the vehicle was never mentioned; repeated calls are no-ops.
func (m *Manager) MarkFavorite(ctx context.Context, sessionID, stockID string) (*State, bool) {
	return m.withSession(ctx, sessionID, func(st *State, now time.Time) {
		v := st.vehicle(canonicalID(stockID), now)
		v.IsFavorite = true
		v.Sentiment = "positive"
		st.FavoriteVehicles = appendUnique(st.FavoriteVehicles, v.StockID)
	})
}

// MarkRejected flags a vehicle as passed on, recording the reason. The
// favorite flag, if set earlier, stays set; rejection only flips sentiment,
// so the retrieval penalty applies while the badge survives for display.
func (m *Manager) MarkRejected(ctx context.Context, sessionID, stockID, reason string) (*State, bool) {
	if strings.TrimSpace(reason) == "" {
		reason = "customer passed"
	}
	return m.withSession(ctx, sessionID, func(st *State, now time.Time) {
		v := st.vehicle(canonicalID(stockID), now)
		v.Sentiment = "negative"
		v.Objections = append(v.Objections, reason)
		st.RejectedVehicles = appendUnique(st.RejectedVehicles, v.StockID)
	})
}

// AddressObjection marks the oldest open objection of the category as
// handled. It reports only whether the session exists; addressing a
// category with no open objection changes nothing.
func (m *Manager) AddressObjection(ctx context.Context, sessionID, category, resolution string) (*State, bool) {
	return m.withSession(ctx, sessionID, func(st *State, now time.Time) {
		for i := range st.Objections {
			o := &st.Objections[i]
			if o.Category == category && !o.Addressed {
				o.Addressed = true
				o.Resolution = resolution
				return
			}
		}
	})
}

// FindByPhone looks a customer up by phone: the direct index first, then a
// scan of live sessions (most recently active wins), then the durable
// snapshot store. Anything that is not a 10-digit phone is simply not found.
func (m *Manager) FindByPhone(ctx context.Context, phone string) (*State, bool) {
	p := domain.NormalizePhone(phone)
	if p == "" {
		return nil, false
	}

	m.mu.RLock()
	id, ok := m.byPhone[p]
	m.mu.RUnlock()
	if ok {
		if st, ok := m.View(id); ok {
			return st, true
		}
	}

	if st := m.scanForPhone(p); st != nil {
		m.indexPhone(p, st.SessionID)
		return st, true
	}

	st := m.loadSnapshot(ctx, p)
	if st == nil {
		return nil, false
	}
	restored := m.install(st)
	m.indexPhone(p, restored.SessionID)
	return restored, true
}

// SweepIdle drops sessions whose last activity is older than maxAge and
// returns how many were removed. Live sessions are never blocked; a session
// updated mid-sweep survives the next sweep instead.
func (m *Manager) SweepIdle(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.RLock()
	candidates := make(map[string]*entry, len(m.entries))
	for id, e := range m.entries {
		candidates[id] = e
	}
	m.mu.RUnlock()

	stale := map[string]string{} // session id -> phone (may be empty)
	for id, e := range candidates {
		e.mu.Lock()
		if e.st.UpdatedAt.Before(cutoff) {
			stale[id] = e.st.CustomerPhone
		}
		e.mu.Unlock()
	}
	if len(stale) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, phone := range stale {
		if _, ok := m.entries[id]; !ok {
			continue
		}
		delete(m.entries, id)
		removed++
		if phone != "" && m.byPhone[phone] == id {
			delete(m.byPhone, phone)
		}
	}
	return removed
}

// FlushDirty rewrites the snapshot of every phone-known session that changed
// since its last successful write, returning how many were written. The
// inline write on each update covers the common path; the flush catches the
// sessions whose writes the breaker absorbed during a store outage.
func (m *Manager) FlushDirty(ctx context.Context) int {
	if m.store == nil {
		return 0
	}

	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	flushed := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.st.CustomerPhone == "" || e.persisted >= e.gen {
			e.mu.Unlock()
			continue
		}
		gen := e.gen
		snap := e.st.clone()
		e.mu.Unlock()

		if !m.persist(ctx, snap) {
			continue
		}
		m.markPersisted(e, gen)
		flushed++
	}
	return flushed
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Manager) entryFor(sessionID string) (*entry, string) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	m.mu.RLock()
	e, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if ok {
		return e, sessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[sessionID]; ok {
		return e, sessionID
	}
	e = &entry{st: newState(sessionID, m.now())}
	m.entries[sessionID] = e
	return e, sessionID
}

func (m *Manager) withSession(ctx context.Context, sessionID string, mutate func(*State, time.Time)) (*State, bool) {
	m.mu.RLock()
	e, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	now := m.now()
	mutate(e.st, now)
	e.st.UpdatedAt = now
	e.gen++
	gen := e.gen
	snap := e.st.clone()
	e.mu.Unlock()

	if snap.CustomerPhone != "" {
		if m.persist(ctx, snap) {
			m.markPersisted(e, gen)
		}
	}
	return snap, true
}

func (m *Manager) scanForPhone(phone string) *State {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var best *State
	for _, e := range entries {
		e.mu.Lock()
		if e.st.CustomerPhone == phone && (best == nil || e.st.UpdatedAt.After(best.UpdatedAt)) {
			best = e.st.clone()
		}
		e.mu.Unlock()
	}
	return best
}

func (m *Manager) loadSnapshot(ctx context.Context, phone string) *State {
	if m.store == nil {
		return nil
	}
	var data []byte
	err := m.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		data, err = m.store.Get(ctx, phone)
		return err
	})
	if err != nil {
		m.logger.Warn("session snapshot read failed", "phone", phone, "err", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		m.logger.Warn("session snapshot decode failed", "phone", phone, "err", err)
		return nil
	}
	return &st
}

// install adopts a deserialized state as a live session. If the session id
// is already live, the live state wins.
func (m *Manager) install(st *State) *State {
	if st.SessionID == "" {
		st.SessionID = uuid.NewString()
	}
	st.normalize()

	m.mu.Lock()
	e, ok := m.entries[st.SessionID]
	if !ok {
		e = &entry{st: st}
		m.entries[st.SessionID] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.clone()
}

func (m *Manager) indexPhone(phone, sessionID string) {
	m.mu.Lock()
	m.byPhone[phone] = sessionID
	m.mu.Unlock()
}

// persist writes one snapshot through the breaker and reports whether it
// reached the store.
func (m *Manager) persist(ctx context.Context, snap *State) bool {
	if m.store == nil {
		return false
	}
	data, err := json.Marshal(snap)
	if err != nil {
		m.logger.Warn("session snapshot marshal failed", "session_id", snap.SessionID, "err", err)
		return false
	}
	err = m.breaker.Call(ctx, func(ctx context.Context) error {
		return m.store.Set(ctx, snap.CustomerPhone, data)
	})
	if err != nil {
		m.logger.Warn("session snapshot write failed", "session_id", snap.SessionID, "err", err)
		return false
	}
	return true
}

func (m *Manager) markPersisted(e *entry, gen uint64) {
	e.mu.Lock()
	if e.persisted < gen {
		e.persisted = gen
	}
	e.mu.Unlock()
}
