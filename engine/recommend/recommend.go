// Package recommend scores vehicle-to-vehicle similarity for "show me
// something like this" and "based on what they've looked at" flows. Scoring
// is content-based over normalized vehicle features; no conversation state
// is consulted, so the engine is safe to share across all sessions.
package recommend

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// Defaults for the recommendation entry points. Personalized matching runs
// a lower bar because the synthetic profile is fuzzier than a real vehicle.
const (
	DefaultLimit         = 5
	DefaultMinScore      = 0.3
	PersonalizedMinScore = 0.25
	yearCloseWindow      = 2
	yearNearWindow       = 4
)

// Weights configures the per-component points. The pair score is the sum of
// earned points divided by the weight total, so it always lands in [0,1].
type Weights struct {
	BodyStyle   float64
	PriceBucket float64
	FuelType    float64
	Drivetrain  float64
	Features    float64
	Performance float64
	ModelYear   float64
	Luxury      float64
}

// DefaultWeights reflect what moves a showroom shopper: body style and
// price band dominate, trim-level flags only nudge.
var DefaultWeights = Weights{
	BodyStyle:   25,
	PriceBucket: 20,
	FuelType:    15,
	Drivetrain:  10,
	Features:    15,
	Performance: 5,
	ModelYear:   5,
	Luxury:      5,
}

// Total sums the configured weights.
func (w Weights) Total() float64 {
	return w.BodyStyle + w.PriceBucket + w.FuelType + w.Drivetrain +
		w.Features + w.Performance + w.ModelYear + w.Luxury
}

// Options bound one recommendation call.
type Options struct {
	Limit    int
	MinScore float64
	Exclude  []string
}

// Engine is the content-based similarity engine. Stateless and read-only
// after construction; one instance serves all callers.
type Engine struct {
	weights Weights
	logger  *slog.Logger
}

// New creates an Engine. A zero-valued weights struct selects the defaults.
func New(weights Weights, logger *slog.Logger) *Engine {
	if weights.Total() == 0 {
		weights = DefaultWeights
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{weights: weights, logger: logger}
}

// Similarity scores one vehicle pair in [0,1].
func (e *Engine) Similarity(a, b domain.VehicleFeatures) float64 {
	score, _ := e.score(a, b)
	return score
}

// Recommend ranks candidates by similarity to source. The source vehicle
// and any explicitly excluded ids never appear in the output.
func (e *Engine) Recommend(source domain.Record, candidates []domain.Record, opts Options) []domain.ScoredVehicle {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}

	src := domain.ExtractFeatures(source)
	excluded := map[string]bool{}
	if src.StockID != "" {
		excluded[canonical(src.StockID)] = true
	}
	for _, id := range opts.Exclude {
		if id != "" {
			excluded[canonical(id)] = true
		}
	}

	results := e.rank(src, candidates, excluded, opts.MinScore)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	e.logger.Debug("recommend", "source", src.StockID, "candidates", len(candidates), "results", len(results))
	return results
}

// RecommendPersonalized ranks candidates against a synthetic profile built
// from the customer's viewing history. No history means no personalization:
// the result is empty rather than a guess.
func (e *Engine) RecommendPersonalized(history []domain.Record, candidates []domain.Record, limit int) []domain.ScoredVehicle {
	if len(history) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	viewed := map[string]bool{}
	feats := make([]domain.VehicleFeatures, 0, len(history))
	for _, rec := range history {
		f := domain.ExtractFeatures(rec)
		feats = append(feats, f)
		if f.StockID != "" {
			viewed[canonical(f.StockID)] = true
		}
	}

	profile := buildProfile(feats)
	results := e.rank(profile, candidates, viewed, PersonalizedMinScore)
	if len(results) > limit {
		results = results[:limit]
	}
	e.logger.Debug("recommend personalized", "history", len(history), "results", len(results))
	return results
}

func (e *Engine) rank(src domain.VehicleFeatures, candidates []domain.Record, excluded map[string]bool, minScore float64) []domain.ScoredVehicle {
	var out []domain.ScoredVehicle
	for _, rec := range candidates {
		feats := domain.ExtractFeatures(rec)
		if id := canonical(feats.StockID); id != "" && excluded[id] {
			continue
		}
		score, comps := e.score(src, feats)
		if score < minScore {
			continue
		}
		out = append(out, domain.ScoredVehicle{
			Vehicle:    rec,
			Features:   feats,
			Score:      score,
			Reasons:    topReasons(comps, 3),
			Confidence: domain.ConfidenceBucket(score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Features.StockID < out[j].Features.StockID
	})
	return out
}

// component is one earned similarity term, kept for reason selection.
type component struct {
	points float64
	reason string
}

// score sums the component points for a pair. Exact-match components only
// fire when both sides actually carry a value; two blanks agreeing on
// nothing is not similarity.
func (e *Engine) score(a, b domain.VehicleFeatures) (float64, []component) {
	w := e.weights
	var comps []component
	add := func(points float64, reason string) {
		if points > 0 {
			comps = append(comps, component{points: points, reason: reason})
		}
	}

	if a.BodyStyle != "" && a.BodyStyle == b.BodyStyle {
		add(w.BodyStyle, fmt.Sprintf("Same body style (%s)", a.BodyStyle))
	}

	if a.Price > 0 && b.Price > 0 {
		switch absInt(a.PriceBucket - b.PriceBucket) {
		case 0:
			add(w.PriceBucket, "Similar price range")
		case 1:
			add(w.PriceBucket/2, "Comparable price range")
		}
	}

	if a.FuelType != "" && a.FuelType == b.FuelType {
		add(w.FuelType, fmt.Sprintf("Same fuel type (%s)", a.FuelType))
	}
	if a.Drivetrain != "" && a.Drivetrain == b.Drivetrain {
		add(w.Drivetrain, fmt.Sprintf("Same drivetrain (%s)", strings.ToUpper(a.Drivetrain)))
	}

	if j, shared := jaccard(a.Features, b.Features); j > 0 {
		add(w.Features*j, fmt.Sprintf("Shares %d features", shared))
	}

	switch {
	case a.IsPerformance && b.IsPerformance:
		add(w.Performance, "Both performance models")
	case !a.IsPerformance && !b.IsPerformance:
		add(w.Performance/2, "")
	}

	if a.Year > 0 && b.Year > 0 {
		switch d := absInt(a.Year - b.Year); {
		case d <= yearCloseWindow:
			add(w.ModelYear, "Close in model year")
		case d <= yearNearWindow:
			add(w.ModelYear/2, "")
		}
	}

	switch {
	case a.IsLuxury && b.IsLuxury:
		add(w.Luxury, "Both luxury models")
	case !a.IsLuxury && !b.IsLuxury:
		add(w.Luxury/2, "")
	}

	total := 0.0
	for _, c := range comps {
		total += c.points
	}
	return total / w.Total(), comps
}

// buildProfile condenses a viewing history into one synthetic vehicle:
// modal body/fuel/drivetrain, mean price and year, every feature seen, and
// majority-vote performance/luxury flags.
func buildProfile(views []domain.VehicleFeatures) domain.VehicleFeatures {
	bodies := map[string]int{}
	fuels := map[string]int{}
	drives := map[string]int{}
	profile := domain.VehicleFeatures{Features: map[string]bool{}}

	var priceSum float64
	var bucketSum, priceN, yearSum, yearN, perfN, luxN int
	for _, v := range views {
		if v.BodyStyle != "" {
			bodies[v.BodyStyle]++
		}
		if v.FuelType != "" {
			fuels[v.FuelType]++
		}
		if v.Drivetrain != "" {
			drives[v.Drivetrain]++
		}
		if v.Price > 0 {
			priceSum += v.Price
			bucketSum += v.PriceBucket
			priceN++
		}
		if v.Year > 0 {
			yearSum += v.Year
			yearN++
		}
		for f := range v.Features {
			profile.Features[f] = true
		}
		if v.IsPerformance {
			perfN++
		}
		if v.IsLuxury {
			luxN++
		}
	}

	profile.BodyStyle = mode(bodies)
	profile.FuelType = mode(fuels)
	profile.Drivetrain = mode(drives)
	if priceN > 0 {
		profile.Price = priceSum / float64(priceN)
		profile.PriceBucket = int(math.Round(float64(bucketSum) / float64(priceN)))
	}
	if yearN > 0 {
		profile.Year = int(math.Round(float64(yearSum) / float64(yearN)))
	}
	profile.IsPerformance = perfN*2 > len(views)
	profile.IsLuxury = luxN*2 > len(views)
	return profile
}

// topReasons picks the highest-contributing labeled components.
func topReasons(comps []component, limit int) []string {
	sort.SliceStable(comps, func(i, j int) bool { return comps[i].points > comps[j].points })
	var reasons []string
	for _, c := range comps {
		if c.reason == "" {
			continue
		}
		reasons = append(reasons, c.reason)
		if len(reasons) == limit {
			break
		}
	}
	return reasons
}

// jaccard is set overlap over set union, plus the shared count for reasons.
func jaccard(a, b map[string]bool) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for f := range small {
		if large[f] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0, 0
	}
	return float64(shared) / float64(union), shared
}

func mode(counts map[string]int) string {
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func canonical(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
