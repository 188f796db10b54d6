package convstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
	sets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(ctx context.Context, phone string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store down")
	}
	return f.data[phone], nil
}

func (f *fakeStore) Set(ctx context.Context, phone string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store down")
	}
	f.data[phone] = data
	f.sets++
	return nil
}

func TestSessionIDMintedWhenMissing(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	st := m.Update(ctx, turn("", "hello"))
	if st.SessionID == "" {
		t.Fatal("expected a minted session id")
	}
	st2 := m.Update(ctx, turn(st.SessionID, "I need an SUV"))
	if st2.MessageCount != 2 {
		t.Errorf("message count = %d, want 2 on the same session", st2.MessageCount)
	}
}

func TestViewUnknownSession(t *testing.T) {
	m := newTestManager()
	if st, ok := m.View("no-such-session"); ok || st != nil {
		t.Errorf("View = %v, %v; want nil, false", st, ok)
	}
}

func TestViewReturnsIsolatedCopy(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	st := m.Update(ctx, turn("", "I want a truck", "ST-1"))
	view, _ := m.View(st.SessionID)
	view.PreferredTypes = append(view.PreferredTypes, "tampered")
	view.DiscussedVehicles["ST-1"].Mentions = 99

	fresh, _ := m.View(st.SessionID)
	for _, p := range fresh.PreferredTypes {
		if p == "tampered" {
			t.Error("mutating a view leaked into manager state")
		}
	}
	if fresh.DiscussedVehicles["ST-1"].Mentions != 1 {
		t.Errorf("mentions = %d, want 1", fresh.DiscussedVehicles["ST-1"].Mentions)
	}
}

func TestFindByPhoneRejectsMalformedInput(t *testing.T) {
	m := newTestManager()
	for _, phone := range []string{"", "123", "555-123", "not a phone", "55512345678901"} {
		if _, ok := m.FindByPhone(context.Background(), phone); ok {
			t.Errorf("FindByPhone(%q) found a session", phone)
		}
	}
}

func TestFindByPhoneDirectIndex(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	st := m.Update(ctx, turn("", "call me at 555-123-4567"))
	found, ok := m.FindByPhone(ctx, "(555) 123-4567")
	if !ok || found.SessionID != st.SessionID {
		t.Fatalf("direct index lookup failed: ok=%v", ok)
	}
	// Country code is stripped during normalization.
	found, ok = m.FindByPhone(ctx, "1-555-123-4567")
	if !ok || found.SessionID != st.SessionID {
		t.Errorf("11-digit lookup failed: ok=%v", ok)
	}
}

func TestFindByPhoneFallsBackToScan(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	st := m.Update(ctx, turn("", "my number is 555-123-4567"))
	m.mu.Lock()
	delete(m.byPhone, "5551234567") // simulate a lost index entry
	m.mu.Unlock()

	found, ok := m.FindByPhone(ctx, "5551234567")
	if !ok || found.SessionID != st.SessionID {
		t.Fatalf("scan fallback failed: ok=%v", ok)
	}

	// The scan should have repaired the index.
	m.mu.RLock()
	repaired := m.byPhone["5551234567"]
	m.mu.RUnlock()
	if repaired != st.SessionID {
		t.Errorf("index not repaired, got %q", repaired)
	}
}

func TestFindByPhonePrefersMostRecentlyActive(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	older := m.Update(ctx, turn("", "reach me at 555-123-4567"))

	m.now = func() time.Time { return base.Add(time.Hour) }
	newer := m.Update(ctx, turn("", "it's me again, 555-123-4567"))

	m.mu.Lock()
	delete(m.byPhone, "5551234567")
	m.mu.Unlock()

	found, ok := m.FindByPhone(ctx, "5551234567")
	if !ok {
		t.Fatal("expected a match")
	}
	if found.SessionID != newer.SessionID {
		t.Errorf("found %q, want most recent %q (older %q)", found.SessionID, newer.SessionID, older.SessionID)
	}
}

func TestFindByPhoneLoadsDurableSnapshot(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	first := NewManager(store, nil)
	st := first.Update(ctx, turn("", "I'm Dave, 555-123-4567, looking for a minivan"))
	if store.sets == 0 {
		t.Fatal("expected a snapshot write once the phone was known")
	}

	// A fresh process with the same store resumes the customer's session.
	second := NewManager(store, nil)
	restored, ok := second.FindByPhone(ctx, "555-123-4567")
	if !ok {
		t.Fatal("snapshot lookup failed")
	}
	if restored.SessionID != st.SessionID {
		t.Errorf("session id = %q, want %q", restored.SessionID, st.SessionID)
	}
	if restored.CustomerName != "Dave" {
		t.Errorf("name = %q, want Dave", restored.CustomerName)
	}
	if len(restored.PreferredTypes) == 0 {
		t.Error("preferences were not restored")
	}

	// The restored session is live: a follow-up turn continues it.
	next := second.Update(ctx, turn(restored.SessionID, "still want the minivan"))
	if next.MessageCount != restored.MessageCount+1 {
		t.Errorf("message count = %d, want %d", next.MessageCount, restored.MessageCount+1)
	}
}

func TestPersistenceFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	m := NewManager(store, nil)
	ctx := context.Background()

	st := m.Update(ctx, turn("", "I'm at 555-123-4567, show me trucks"))
	if st == nil || st.CustomerPhone != "5551234567" {
		t.Fatal("update must succeed despite a down store")
	}
	// Keep going; the breaker may open but conversation flow never breaks.
	for i := 0; i < 10; i++ {
		st = m.Update(ctx, turn(st.SessionID, "any trucks yet?"))
	}
	if st.MessageCount != 11 {
		t.Errorf("message count = %d, want 11", st.MessageCount)
	}
}

func TestFlushDirtyCatchesUpAfterStoreOutage(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	m := NewManager(store, nil)
	ctx := context.Background()

	st := m.Update(ctx, turn("", "I'm at 555-123-4567, show me trucks"))
	m.Update(ctx, turn("", "just looking, no number for you"))

	store.fail = false
	if n := m.FlushDirty(ctx); n != 1 {
		t.Fatalf("flushed = %d, want 1 (only the phone-known session)", n)
	}
	if store.data["5551234567"] == nil {
		t.Fatal("snapshot never reached the store")
	}

	// Nothing changed since the flush, so there is nothing to write.
	if n := m.FlushDirty(ctx); n != 0 {
		t.Errorf("second flush = %d, want 0", n)
	}

	// With the store healthy the inline write covers new turns; the flush
	// stays a no-op.
	m.Update(ctx, turn(st.SessionID, "any trucks yet?"))
	if store.sets != 2 {
		t.Fatalf("sets = %d, want 2 (flush plus inline write)", store.sets)
	}
	if n := m.FlushDirty(ctx); n != 0 {
		t.Errorf("flush after inline write = %d, want 0", n)
	}
}

func TestSweepIdleRemovesOnlyStaleSessions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }
	stale := m.Update(ctx, turn("", "just browsing, 555-123-4567"))
	fresh := m.Update(ctx, turn("", "hello"))

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	m.Update(ctx, turn(fresh.SessionID, "still here"))

	removed := m.SweepIdle(time.Hour)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := m.View(stale.SessionID); ok {
		t.Error("stale session survived the sweep")
	}
	if _, ok := m.View(fresh.SessionID); !ok {
		t.Error("active session was swept")
	}
	// The phone index entry for the swept session goes with it.
	if _, ok := m.FindByPhone(ctx, "5551234567"); ok {
		t.Error("swept session still reachable by phone")
	}
}

func TestConcurrentUpdatesAcrossSessions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	shared := m.Update(ctx, turn("", "hello"))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				m.Update(ctx, turn(shared.SessionID, "I want an SUV"))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			own := ""
			for i := 0; i < 25; i++ {
				st := m.Update(ctx, turn(own, "looking for a sedan"))
				own = st.SessionID
			}
		}()
	}
	wg.Wait()

	st, _ := m.View(shared.SessionID)
	if st.MessageCount != 1+8*25 {
		t.Errorf("shared session message count = %d, want %d", st.MessageCount, 1+8*25)
	}
	if m.Count() != 1+8 {
		t.Errorf("session count = %d, want %d", m.Count(), 1+8)
	}
}
