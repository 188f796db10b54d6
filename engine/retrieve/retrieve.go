// Package retrieve ranks inventory against free-text queries by fusing
// TF-IDF text similarity with preference scoring from conversation state.
// A fitted index is immutable; Rebuild swaps the whole fitted structure
// atomically so in-flight reads see either the old index or the new one.
package retrieve

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/textindex"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/fn"
)

const (
	DefaultLimit    = 5
	DefaultMinScore = 10.0

	// Cosine similarity below this contributes nothing; TF-IDF overlap on a
	// stray token is noise, not a match.
	textGate = 0.1

	// Prices up to 15% over the stated ceiling keep partial budget credit.
	// Soft scoring penalizes near-misses instead of hiding them.
	overCeilingBand   = 1.15
	overCeilingCredit = 0.3
	comfortBonus      = 5.0

	// Strict pre-filtering allows 10% over ceiling, nothing more.
	strictPriceBand = 1.10

	synonymTypeCredit = 0.8

	favoriteBoost  = 1.5
	discussedBoost = 1.2
	rejectedBoost  = 0.3

	sameBodyBonus   = 10.0
	closePriceBonus = 10.0

	vectorWorkers = 8
)

// Weights control the component scores summed before state boosts. The
// retrieval score is unbounded; confidence is derived from the score
// normalized by the weights that could have applied.
type Weights struct {
	Text     float64
	Budget   float64
	Type     float64
	Features float64
	UseCases float64
}

// DefaultWeights returns the standard component weighting.
func DefaultWeights() Weights {
	return Weights{Text: 30, Budget: 25, Type: 20, Features: 15, UseCases: 10}
}

func (w Weights) total() float64 {
	return w.Text + w.Budget + w.Type + w.Features + w.UseCases
}

// Options tune one retrieval call. Zero values take defaults.
type Options struct {
	Limit    int
	MinScore float64
}

// Criteria is a pure structured filter for tool-style exact lookups.
// String fields match case-insensitively; zero values are ignored.
type Criteria struct {
	MaxPrice   float64
	MinPrice   float64
	BodyStyle  string
	FuelType   string
	Drivetrain string
	Make       string
	Model      string
	MinYear    int
	MaxMileage int
	MinSeating int
	MinTowing  int
	Features   []string
	Limit      int
}

// fitted is one immutable snapshot of the indexed inventory. All slices are
// parallel: feats[i], vecs[i], docs[i] describe recs[i].
type fitted struct {
	index   *textindex.Index
	recs    []domain.Record
	feats   []domain.VehicleFeatures
	vecs    []map[string]float64
	docs    []string
	byStock map[string]int
}

// Retriever serves ranked inventory matches. Safe for concurrent use; all
// methods read one atomic snapshot and never mutate it.
type Retriever struct {
	weights Weights
	logger  *slog.Logger
	cur     atomic.Pointer[fitted]
}

// New creates an unfitted Retriever. Zero weights take DefaultWeights; a nil
// logger falls back to slog.Default. Call Rebuild before retrieving.
func New(w Weights, logger *slog.Logger) *Retriever {
	if w.total() == 0 {
		w = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{weights: w, logger: logger}
}

// Rebuild fits a fresh index over the inventory snapshot and swaps it in
// atomically. An empty snapshot is rejected and the previous index, if any,
// stays live.
func (r *Retriever) Rebuild(records []domain.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("retrieve: rebuild: %w", domain.ErrEmptyInventory)
	}

	feats := make([]domain.VehicleFeatures, len(records))
	docs := make([]string, len(records))
	byStock := make(map[string]int, len(records))
	for i, rec := range records {
		feats[i] = domain.ExtractFeatures(rec)
		docs[i] = docFor(feats[i])
		if id := canonical(feats[i].StockID); id != "" {
			if _, dup := byStock[id]; !dup {
				byStock[id] = i
			}
		}
	}

	ix := &textindex.Index{}
	ix.Fit(docs)
	vecs := fn.ParMap(docs, vectorWorkers, ix.Transform)

	r.cur.Store(&fitted{
		index:   ix,
		recs:    records,
		feats:   feats,
		vecs:    vecs,
		docs:    docs,
		byStock: byStock,
	})
	r.logger.Info("retrieve: index rebuilt",
		"vehicles", len(records),
		"vocabulary", len(ix.Vocabulary()))
	return nil
}

// Fitted reports whether an index is live.
func (r *Retriever) Fitted() bool { return r.cur.Load() != nil }

// VehicleCount returns the number of vehicles in the live index.
func (r *Retriever) VehicleCount() int {
	ft := r.cur.Load()
	if ft == nil {
		return 0
	}
	return len(ft.recs)
}

// Records returns the raw records behind the live index. Callers must treat
// the slice as read-only.
func (r *Retriever) Records() []domain.Record {
	ft := r.cur.Load()
	if ft == nil {
		return nil
	}
	return ft.recs
}

// GetByStockID returns the raw record for a stock id, or false when the id
// is unknown or no index is live.
func (r *Retriever) GetByStockID(stockID string) (domain.Record, bool) {
	ft := r.cur.Load()
	if ft == nil {
		return nil, false
	}
	i, ok := ft.byStock[canonical(stockID)]
	if !ok {
		return nil, false
	}
	return ft.recs[i], true
}

// Retrieve ranks inventory against a natural-language query, blending text
// similarity with the preferences accumulated in st. st may be nil for a
// stateless search. Near-miss vehicles are penalized, never excluded.
func (r *Retriever) Retrieve(query string, st *convstate.State, opts Options) []domain.ScoredVehicle {
	return r.retrieve(query, st, opts, nil)
}

// RetrieveStrict eliminates vehicles outside the session's hard constraints
// (price past 10% over ceiling, seating and towing minimums, electric-only
// when that is the stated fuel preference) before scoring the survivors.
func (r *Retriever) RetrieveStrict(query string, st *convstate.State, opts Options) []domain.ScoredVehicle {
	if st == nil {
		return r.retrieve(query, nil, opts, nil)
	}
	pass := func(f domain.VehicleFeatures) bool {
		if st.BudgetMax > 0 && (f.Price <= 0 || f.Price > st.BudgetMax*strictPriceBand) {
			return false
		}
		if st.MinSeating > 0 && f.Seating < st.MinSeating {
			return false
		}
		if st.MinTowing > 0 && f.Towing < st.MinTowing {
			return false
		}
		if st.FuelPreference == "electric" && f.FuelType != "electric" {
			return false
		}
		return true
	}
	return r.retrieve(query, st, opts, pass)
}

func (r *Retriever) retrieve(query string, st *convstate.State, opts Options, pass func(domain.VehicleFeatures) bool) []domain.ScoredVehicle {
	ft := r.cur.Load()
	if ft == nil {
		return nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}

	qvec := ft.index.Transform(expandQuery(query))
	out := make([]domain.ScoredVehicle, 0, opts.Limit)
	for i := range ft.feats {
		if pass != nil && !pass(ft.feats[i]) {
			continue
		}
		sv := r.scoreOne(ft, i, qvec, st)
		if sv.Score < opts.MinScore {
			continue
		}
		out = append(out, sv)
	}
	sortRanked(out)
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	r.logger.Debug("retrieve: query ranked",
		"query", query,
		"candidates", len(ft.recs),
		"returned", len(out))
	return out
}

// RetrieveSimilar ranks the rest of the inventory against one source
// vehicle: text cosine plus bonuses for matching body style and a listed
// price within 15% of the source. Unknown ids return an empty result.
func (r *Retriever) RetrieveSimilar(stockID string, limit int) []domain.ScoredVehicle {
	ft := r.cur.Load()
	if ft == nil {
		return nil
	}
	src, ok := ft.byStock[canonical(stockID)]
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	srcFeat := ft.feats[src]
	srcVec := ft.vecs[src]
	out := make([]domain.ScoredVehicle, 0, limit)
	for i := range ft.feats {
		if i == src {
			continue
		}
		f := ft.feats[i]
		score := textindex.Cosine(srcVec, ft.vecs[i]) * r.weights.Text
		var reasons []string
		if f.BodyStyle != "" && f.BodyStyle == srcFeat.BodyStyle {
			score += sameBodyBonus
			reasons = append(reasons, fmt.Sprintf("Same body style (%s)", f.BodyStyle))
		}
		if srcFeat.Price > 0 && f.Price > 0 && math.Abs(f.Price-srcFeat.Price) <= 0.15*srcFeat.Price {
			score += closePriceBonus
			reasons = append(reasons, "Similar price")
		}
		if score <= 0 {
			continue
		}
		out = append(out, domain.ScoredVehicle{
			Vehicle:    ft.recs[i],
			Features:   f,
			Score:      score,
			Reasons:    reasons,
			Confidence: domain.ConfidenceBucket(score / (r.weights.Text + sameBodyBonus + closePriceBonus)),
		})
	}
	sortRanked(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RetrieveByCriteria filters the inventory with no scoring. Results keep
// index order.
func (r *Retriever) RetrieveByCriteria(c Criteria) []domain.Record {
	ft := r.cur.Load()
	if ft == nil {
		return nil
	}
	var out []domain.Record
	for i, f := range ft.feats {
		if !matchesCriteria(f, c) {
			continue
		}
		out = append(out, ft.recs[i])
		if c.Limit > 0 && len(out) >= c.Limit {
			break
		}
	}
	return out
}

func (r *Retriever) scoreOne(ft *fitted, i int, qvec map[string]float64, st *convstate.State) domain.ScoredVehicle {
	w := r.weights
	f := ft.feats[i]
	blob := ft.docs[i]

	var score, applicable float64
	var reasons, warnings []string

	if len(qvec) > 0 {
		applicable += w.Text
		if sim := textindex.Cosine(qvec, ft.vecs[i]); sim > textGate {
			score += sim * w.Text
			reasons = append(reasons, "Good match for your description")
		}
	}

	if st != nil {
		if st.BudgetMax > 0 {
			applicable += w.Budget
			score, reasons, warnings = scoreBudget(w.Budget, f.Price, st.BudgetMin, st.BudgetMax, score, reasons, warnings)
		}
		if len(st.PreferredTypes) > 0 {
			applicable += w.Type
			score, reasons = scoreType(w.Type, f, blob, st.PreferredTypes, score, reasons)
		}
		if len(st.RequestedFeatures) > 0 {
			applicable += w.Features
			matched := 0
			for _, want := range st.RequestedFeatures {
				if f.HasFeature(want) || strings.Contains(blob, strings.ToLower(want)) {
					matched++
				}
			}
			if matched > 0 {
				score += w.Features * float64(matched) / float64(len(st.RequestedFeatures))
				reasons = append(reasons, fmt.Sprintf("Has %d of %d requested features", matched, len(st.RequestedFeatures)))
			}
		}
		if len(st.UseCases) > 0 {
			applicable += w.UseCases
			per := w.UseCases / float64(len(st.UseCases))
			var pts float64
			var fits []string
			for _, uc := range st.UseCases {
				if useCaseFits(uc, f, blob) {
					pts += per
					fits = append(fits, uc)
				}
			}
			if pts > w.UseCases {
				pts = w.UseCases
			}
			if pts > 0 {
				score += pts
				reasons = append(reasons, fmt.Sprintf("Suits %s", strings.Join(fits, ", ")))
			}
		}
	}

	base := score
	if st != nil {
		switch {
		case st.IsRejected(f.StockID):
			score *= rejectedBoost
			warnings = append(warnings, "Previously passed on this vehicle")
		case st.IsFavorite(f.StockID):
			score *= favoriteBoost
			reasons = append(reasons, "One of your favorites")
		case st.WasDiscussed(f.StockID):
			score *= discussedBoost
			reasons = append(reasons, "Previously discussed")
		}
	}

	conf := domain.ConfidenceLow
	if applicable > 0 {
		conf = domain.ConfidenceBucket(base / applicable)
	}
	return domain.ScoredVehicle{
		Vehicle:    ft.recs[i],
		Features:   f,
		Score:      score,
		Reasons:    reasons,
		Warnings:   warnings,
		Confidence: conf,
	}
}

func scoreBudget(weight, price, floor, ceiling, score float64, reasons, warnings []string) (float64, []string, []string) {
	if price <= 0 {
		warnings = append(warnings, "No listed price")
		return score, reasons, warnings
	}
	switch {
	case price <= ceiling:
		pts := weight
		if (floor > 0 && price >= floor) || price <= 0.85*ceiling {
			pts += comfortBonus
		}
		score += pts
		if price <= 0.85*ceiling {
			reasons = append(reasons, fmt.Sprintf("Well under your $%.0f budget", ceiling))
		} else {
			reasons = append(reasons, "Fits your budget")
		}
	case price <= ceiling*overCeilingBand:
		score += weight * overCeilingCredit
		reasons = append(reasons, "Slightly above your budget")
		warnings = append(warnings, fmt.Sprintf("$%.0f over your stated budget", price-ceiling))
	default:
		warnings = append(warnings, fmt.Sprintf("$%.0f over your stated budget", price-ceiling))
	}
	return score, reasons, warnings
}

// scoreType awards the first preferred type that matches: a substring hit on
// body style or model earns full weight, a synonym-table hit 80%.
func scoreType(weight float64, f domain.VehicleFeatures, blob string, types []string, score float64, reasons []string) (float64, []string) {
	model := strings.ToLower(f.Model)
	for _, t := range types {
		if strings.Contains(f.BodyStyle, t) || strings.Contains(model, t) {
			score += weight
			reasons = append(reasons, fmt.Sprintf("Matches your preferred type (%s)", t))
			return score, reasons
		}
		for _, syn := range typeSynonyms[t] {
			if strings.Contains(blob, syn) {
				score += weight * synonymTypeCredit
				reasons = append(reasons, fmt.Sprintf("Close to your preferred type (%s)", t))
				return score, reasons
			}
		}
	}
	return score, reasons
}

func matchesCriteria(f domain.VehicleFeatures, c Criteria) bool {
	if c.MaxPrice > 0 && (f.Price <= 0 || f.Price > c.MaxPrice) {
		return false
	}
	if c.MinPrice > 0 && f.Price < c.MinPrice {
		return false
	}
	if c.BodyStyle != "" && f.BodyStyle != strings.ToLower(strings.TrimSpace(c.BodyStyle)) {
		return false
	}
	if c.FuelType != "" && f.FuelType != strings.ToLower(strings.TrimSpace(c.FuelType)) {
		return false
	}
	if c.Drivetrain != "" && f.Drivetrain != strings.ToLower(strings.TrimSpace(c.Drivetrain)) {
		return false
	}
	if c.Make != "" && !strings.EqualFold(strings.TrimSpace(c.Make), f.Make) {
		return false
	}
	if c.Model != "" && !strings.Contains(strings.ToLower(f.Model), strings.ToLower(strings.TrimSpace(c.Model))) {
		return false
	}
	if c.MinYear > 0 && f.Year < c.MinYear {
		return false
	}
	if c.MaxMileage > 0 && f.Mileage > c.MaxMileage {
		return false
	}
	if c.MinSeating > 0 && f.Seating < c.MinSeating {
		return false
	}
	if c.MinTowing > 0 && f.Towing < c.MinTowing {
		return false
	}
	for _, want := range c.Features {
		if !f.HasFeature(want) {
			return false
		}
	}
	return true
}

func sortRanked(out []domain.ScoredVehicle) {
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Features.StockID < out[b].Features.StockID
	})
}

// docFor builds the text document indexed for one vehicle. Feature order is
// sorted so identical snapshots produce identical corpora.
func docFor(f domain.VehicleFeatures) string {
	var b strings.Builder
	add := func(s string) {
		if s != "" {
			b.WriteString(strings.ToLower(s))
			b.WriteByte(' ')
		}
	}
	if f.Year > 0 {
		add(strconv.Itoa(f.Year))
	}
	add(f.Make)
	add(f.Model)
	add(f.Trim)
	add(f.BodyStyle)
	add(f.Drivetrain)
	add(f.FuelType)
	for _, c := range f.Colors {
		add(c)
	}
	feats := make([]string, 0, len(f.Features))
	for fe := range f.Features {
		feats = append(feats, fe)
	}
	sort.Strings(feats)
	for _, fe := range feats {
		add(fe)
	}
	add(f.Description)

	switch f.FuelType {
	case "electric":
		add("electric ev zero emissions")
	case "hybrid", "plug-in hybrid":
		add("hybrid fuel efficient economy")
	}
	if f.Towing >= 10000 {
		add("heavy towing")
	}
	if f.Seating >= 7 {
		add("large family third row")
	}
	return strings.TrimSpace(b.String())
}

func canonical(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
