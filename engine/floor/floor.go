// Package floor wires the conversational matching engine into one service:
// session state, the text index, scoring, and the inventory feed behind a
// single constructed object. A turn runs through a staged pipeline
// (validate -> update state -> match inventory) so each hop is traced and
// failures surface at the stage that produced them.
package floor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
	"github.com/ShowfloorAI/showfloor-mvp/engine/recommend"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/fn"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/metrics"
)

// Options tunes how the service handles a conversation turn.
type Options struct {
	// AutoRetrieve runs inventory matching on every turn that carries a
	// customer utterance. Disable it when the caller only wants state
	// tracking and will search explicitly.
	AutoRetrieve bool
	// MatchLimit caps the vehicles returned per turn.
	MatchLimit int
	// MatchMinScore drops weak matches; zero keeps the retriever default.
	MatchMinScore float64
	// SimilarLimit caps similar-vehicle lookups.
	SimilarLimit int
}

// DefaultOptions returns the settings used by the API and worker binaries.
func DefaultOptions() Options {
	return Options{
		AutoRetrieve: true,
		MatchLimit:   retrieve.DefaultLimit,
		SimilarLimit: retrieve.DefaultLimit,
	}
}

// Deps carries the collaborators the service needs. Metrics and Logger may
// be nil; the service then counts into a private registry and logs to
// slog.Default().
type Deps struct {
	States    *convstate.Manager
	Retriever *retrieve.Retriever
	Recommend *recommend.Engine
	Source    inventory.Source
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}

// TurnResult is what a processed turn hands back to the caller: the updated
// session state plus the inventory matches for this turn, if matching ran.
type TurnResult struct {
	State   *convstate.State       `json:"state"`
	Matches []domain.ScoredVehicle `json:"matches,omitempty"`
}

// turnCtx threads a turn and its updated state between pipeline stages.
type turnCtx struct {
	turn  domain.Turn
	state *convstate.State
}

// Service owns the engine components and exposes the conversation-facing
// operations. Construct it once and share it; every method is safe for
// concurrent use.
type Service struct {
	states    *convstate.Manager
	retriever *retrieve.Retriever
	recs      *recommend.Engine
	source    inventory.Source
	opts      Options
	logger    *slog.Logger
	pipeline  fn.Stage[domain.Turn, TurnResult]

	mTurns      *metrics.Counter
	mRetrievals *metrics.Counter
	mRebuilds   *metrics.Counter
	mReaped     *metrics.Counter
	gSessions   *metrics.Gauge
	gVehicles   *metrics.Gauge
}

// New constructs the service. Zero option fields fall back to defaults.
func New(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if opts.MatchLimit <= 0 {
		opts.MatchLimit = retrieve.DefaultLimit
	}
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = retrieve.DefaultLimit
	}
	s := &Service{
		states:    deps.States,
		retriever: deps.Retriever,
		recs:      deps.Recommend,
		source:    deps.Source,
		opts:      opts,
		logger:    deps.Logger,

		mTurns:      deps.Metrics.Counter("showfloor_turns_total", "Conversation turns processed."),
		mRetrievals: deps.Metrics.Counter("showfloor_retrievals_total", "Inventory retrievals served."),
		mRebuilds:   deps.Metrics.Counter("showfloor_index_rebuilds_total", "Successful index rebuilds."),
		mReaped:     deps.Metrics.Counter("showfloor_sessions_reaped_total", "Idle sessions reaped."),
		gSessions:   deps.Metrics.Gauge("showfloor_sessions_active", "Sessions currently tracked."),
		gVehicles:   deps.Metrics.Gauge("showfloor_inventory_vehicles", "Vehicles in the live index."),
	}
	s.pipeline = s.buildPipeline()
	return s
}

func (s *Service) buildPipeline() fn.Stage[domain.Turn, TurnResult] {
	validate := fn.TracedStage("floor.validate", func(_ context.Context, t domain.Turn) fn.Result[domain.Turn] {
		if err := domain.ValidateTurn(t); err != nil {
			return fn.Err[domain.Turn](err)
		}
		return fn.Ok(t)
	})

	update := fn.TracedStage("floor.update", func(ctx context.Context, t domain.Turn) fn.Result[turnCtx] {
		st := s.states.Update(ctx, t)
		return fn.Ok(turnCtx{turn: t, state: st})
	})

	match := fn.TracedStage("floor.match", func(_ context.Context, tc turnCtx) fn.Result[TurnResult] {
		out := TurnResult{State: tc.state}
		if s.opts.AutoRetrieve && strings.TrimSpace(tc.turn.Utterance) != "" && s.retriever.Fitted() {
			out.Matches = s.retriever.Retrieve(tc.turn.Utterance, tc.state, retrieve.Options{
				Limit:    s.opts.MatchLimit,
				MinScore: s.opts.MatchMinScore,
			})
			s.mRetrievals.Inc()
		}
		return fn.Ok(out)
	})

	return fn.Then(fn.Then(validate, update), match)
}

// ProcessTurn runs one conversation turn through the pipeline. The returned
// error is non-nil only when the turn fails validation; state extraction and
// matching degrade rather than fail.
func (s *Service) ProcessTurn(ctx context.Context, turn domain.Turn) (TurnResult, error) {
	res := s.pipeline(ctx, turn)
	out, err := res.Unwrap()
	if err != nil {
		return TurnResult{}, fmt.Errorf("floor: turn %s: %w", turn.SessionID, err)
	}
	s.mTurns.Inc()
	s.gSessions.Set(int64(s.states.Count()))
	return out, nil
}

// Search ranks inventory against a free-text query. When sessionID names a
// known session its preferences steer the scoring; unknown or empty ids run
// the query cold. Strict mode turns budget and capacity preferences into
// hard filters.
func (s *Service) Search(query, sessionID string, strict bool, opts retrieve.Options) []domain.ScoredVehicle {
	var st *convstate.State
	if sessionID != "" {
		st, _ = s.states.View(sessionID)
	}
	s.mRetrievals.Inc()
	if strict {
		return s.retriever.RetrieveStrict(query, st, opts)
	}
	return s.retriever.Retrieve(query, st, opts)
}

// SearchByCriteria filters inventory on structured criteria with no scoring.
func (s *Service) SearchByCriteria(c retrieve.Criteria) []domain.Record {
	return s.retriever.RetrieveByCriteria(c)
}

// Vehicle looks up one record by stock id.
func (s *Service) Vehicle(stockID string) (domain.Record, bool) {
	return s.retriever.GetByStockID(stockID)
}

// Similar returns vehicles that resemble the given one across attributes,
// with per-match reasons. Unknown ids return no results.
func (s *Service) Similar(stockID string, limit int) []domain.ScoredVehicle {
	src, ok := s.retriever.GetByStockID(stockID)
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = s.opts.SimilarLimit
	}
	return s.recs.Recommend(src, s.retriever.Records(), recommend.Options{Limit: limit})
}

// SimilarByText ranks similarity through the text index instead of the
// attribute engine; useful when description prose matters more than specs.
func (s *Service) SimilarByText(stockID string, limit int) []domain.ScoredVehicle {
	if limit <= 0 {
		limit = s.opts.SimilarLimit
	}
	return s.retriever.RetrieveSimilar(stockID, limit)
}

// Personalized recommends unseen vehicles from a browsing history of stock
// ids. Ids not in the live index are skipped; an empty usable history
// returns no results.
func (s *Service) Personalized(historyIDs []string, limit int) []domain.ScoredVehicle {
	history := fn.FilterMap(historyIDs, s.retriever.GetByStockID)
	if len(history) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = s.opts.SimilarLimit
	}
	return s.recs.RecommendPersonalized(history, s.retriever.Records(), limit)
}

// PersonalizedForSession recommends from the vehicles a session has
// discussed so far.
func (s *Service) PersonalizedForSession(sessionID string, limit int) []domain.ScoredVehicle {
	st, ok := s.states.View(sessionID)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(st.DiscussedVehicles))
	for id := range st.DiscussedVehicles {
		ids = append(ids, id)
	}
	return s.Personalized(ids, limit)
}

// Session returns a snapshot of one session's state.
func (s *Service) Session(sessionID string) (*convstate.State, bool) {
	return s.states.View(sessionID)
}

// SessionByPhone finds the session for a customer phone number, restoring it
// from the durable store when it aged out of memory.
func (s *Service) SessionByPhone(ctx context.Context, phone string) (*convstate.State, bool) {
	return s.states.FindByPhone(ctx, phone)
}

// Favorite marks a vehicle as a favorite in the session.
func (s *Service) Favorite(ctx context.Context, sessionID, stockID string) (*convstate.State, bool) {
	return s.states.MarkFavorite(ctx, sessionID, stockID)
}

// Reject records that the customer passed on a vehicle.
func (s *Service) Reject(ctx context.Context, sessionID, stockID, reason string) (*convstate.State, bool) {
	return s.states.MarkRejected(ctx, sessionID, stockID, reason)
}

// AddressObjection resolves a raised objection in the session.
func (s *Service) AddressObjection(ctx context.Context, sessionID, category, resolution string) (*convstate.State, bool) {
	return s.states.AddressObjection(ctx, sessionID, category, resolution)
}

// Rebuild pulls a fresh inventory snapshot from the source and swaps the
// index. In-flight queries keep the old index until the swap lands; a failed
// snapshot or an empty feed leaves it untouched.
func (s *Service) Rebuild(ctx context.Context) error {
	recs, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("floor: inventory snapshot: %w", err)
	}
	if err := s.retriever.Rebuild(recs); err != nil {
		return err
	}
	s.mRebuilds.Inc()
	s.gVehicles.Set(int64(s.retriever.VehicleCount()))
	return nil
}

// SweepIdle evicts sessions idle past maxAge and reports how many went.
func (s *Service) SweepIdle(maxAge time.Duration) int {
	n := s.states.SweepIdle(maxAge)
	if n > 0 {
		s.mReaped.Add(int64(n))
		s.logger.Info("floor: idle sessions reaped", "count", n)
	}
	s.gSessions.Set(int64(s.states.Count()))
	return n
}

// FlushSessions rewrites durable snapshots for sessions that changed since
// their last successful write and returns how many were written.
func (s *Service) FlushSessions(ctx context.Context) int {
	n := s.states.FlushDirty(ctx)
	if n > 0 {
		s.logger.Info("floor: session snapshots flushed", "count", n)
	}
	return n
}

// VehicleCount reports the number of vehicles in the live index.
func (s *Service) VehicleCount() int { return s.retriever.VehicleCount() }

// ActiveSessions reports the number of sessions currently tracked.
func (s *Service) ActiveSessions() int { return s.states.Count() }

// Ready reports whether the index has been built at least once.
func (s *Service) Ready() bool { return s.retriever.Fitted() }
