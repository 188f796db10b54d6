package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/floor"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
	"github.com/ShowfloorAI/showfloor-mvp/pkg/fn"
)

// api bundles the engine service with what the handlers need around it.
type api struct {
	svc    *floor.Service
	logger *slog.Logger
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/turn", a.handleTurn)
	mux.HandleFunc("POST /api/search", a.handleSearch)
	mux.HandleFunc("GET /api/vehicles/{stockID}", a.handleVehicle)
	mux.HandleFunc("GET /api/vehicles/{stockID}/similar", a.handleSimilar)
	mux.HandleFunc("POST /api/recommendations", a.handleRecommendations)
	mux.HandleFunc("GET /api/sessions/{sessionID}", a.handleSession)
	mux.HandleFunc("GET /api/sessions/by-phone", a.handleSessionByPhone)
	mux.HandleFunc("POST /api/sessions/{sessionID}/favorite", a.handleFavorite)
	mux.HandleFunc("POST /api/sessions/{sessionID}/reject", a.handleReject)
	mux.HandleFunc("POST /api/sessions/{sessionID}/objection", a.handleObjection)
	mux.HandleFunc("POST /api/admin/rebuild", a.handleRebuild)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- DTOs ---

// TurnRequest is the JSON body for POST /api/turn. Role selects which side of
// the exchange Text came from: anything other than the salesperson aliases
// counts as the customer.
type TurnRequest struct {
	SessionID    string   `json:"session_id"`
	Role         string   `json:"role,omitempty"`
	Text         string   `json:"text"`
	MentionedIDs []string `json:"mentioned_stock_ids,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
}

func (r TurnRequest) toTurn() domain.Turn {
	t := domain.Turn{
		SessionID:    r.SessionID,
		MentionedIDs: fn.Unique(r.MentionedIDs),
		CustomerName: r.CustomerName,
	}
	switch strings.ToLower(strings.TrimSpace(r.Role)) {
	case "agent", "assistant", "salesperson":
		t.Response = r.Text
	default:
		t.Utterance = r.Text
	}
	return t
}

// MatchView is the compact ranked-result shape every list endpoint returns.
type MatchView struct {
	StockID    string   `json:"stock_id"`
	Year       int      `json:"year,omitempty"`
	Make       string   `json:"make,omitempty"`
	Model      string   `json:"model,omitempty"`
	Trim       string   `json:"trim,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Mileage    int      `json:"mileage,omitempty"`
	BodyStyle  string   `json:"body_style,omitempty"`
	FuelType   string   `json:"fuel_type,omitempty"`
	Score      float64  `json:"score"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func matchViewOf(sv domain.ScoredVehicle) MatchView {
	f := sv.Features
	return MatchView{
		StockID:    f.StockID,
		Year:       f.Year,
		Make:       f.Make,
		Model:      f.Model,
		Trim:       f.Trim,
		Price:      f.Price,
		Mileage:    f.Mileage,
		BodyStyle:  f.BodyStyle,
		FuelType:   f.FuelType,
		Score:      sv.Score,
		Confidence: sv.Confidence,
		Reasons:    sv.Reasons,
		Warnings:   sv.Warnings,
	}
}

// TurnResponse is the JSON response for POST /api/turn.
type TurnResponse struct {
	State   *convstate.State `json:"state"`
	Summary string           `json:"summary"`
	Matches []MatchView      `json:"matches,omitempty"`
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query     string  `json:"query"`
	SessionID string  `json:"session_id,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	MinScore  float64 `json:"min_score,omitempty"`
	Strict    bool    `json:"strict,omitempty"`
}

// ResultList wraps ranked results for search, similar, and recommendations.
type ResultList struct {
	Results []MatchView `json:"results"`
	Count   int         `json:"count"`
}

// RecommendationsRequest is the JSON body for POST /api/recommendations.
// Either a browsing history of stock ids or a session id must be given; the
// session wins when both are present.
type RecommendationsRequest struct {
	History   []string `json:"history,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// VehicleActionRequest is the JSON body for favorite and reject actions.
type VehicleActionRequest struct {
	StockID string `json:"stock_id"`
	Reason  string `json:"reason,omitempty"`
}

// ObjectionRequest is the JSON body for resolving an objection.
type ObjectionRequest struct {
	Category   string `json:"category"`
	Resolution string `json:"resolution,omitempty"`
}

// SessionResponse is a session snapshot plus a one-line summary a
// salesperson can read at a glance.
type SessionResponse struct {
	State   *convstate.State `json:"state"`
	Summary string           `json:"summary"`
}

// --- Handlers ---

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"ready":    a.svc.Ready(),
		"vehicles": a.svc.VehicleCount(),
		"sessions": a.svc.ActiveSessions(),
	})
}

func (a *api) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := a.svc.ProcessTurn(r.Context(), req.toTurn())
	if err != nil {
		// ProcessTurn only fails on validation; everything downstream
		// degrades instead.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TurnResponse{
		State:   res.State,
		Summary: summarize(res.State),
		Matches: fn.Map(res.Matches, matchViewOf),
	})
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !a.svc.Ready() {
		writeError(w, http.StatusServiceUnavailable, "inventory index not ready")
		return
	}

	matches := a.svc.Search(req.Query, req.SessionID, req.Strict, retrieve.Options{
		Limit:    req.Limit,
		MinScore: req.MinScore,
	})
	writeJSON(w, http.StatusOK, ResultList{Results: fn.Map(matches, matchViewOf), Count: len(matches)})
}

func (a *api) handleVehicle(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.svc.Vehicle(r.PathValue("stockID"))
	if !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *api) handleSimilar(w http.ResponseWriter, r *http.Request) {
	stockID := r.PathValue("stockID")
	if _, ok := a.svc.Vehicle(stockID); !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	limit := intQuery(r, "limit")

	var matches []domain.ScoredVehicle
	if r.URL.Query().Get("by") == "text" {
		matches = a.svc.SimilarByText(stockID, limit)
	} else {
		matches = a.svc.Similar(stockID, limit)
	}
	writeJSON(w, http.StatusOK, ResultList{Results: fn.Map(matches, matchViewOf), Count: len(matches)})
}

func (a *api) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !a.svc.Ready() {
		writeError(w, http.StatusServiceUnavailable, "inventory index not ready")
		return
	}

	var matches []domain.ScoredVehicle
	switch {
	case req.SessionID != "":
		if _, ok := a.svc.Session(req.SessionID); !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		matches = a.svc.PersonalizedForSession(req.SessionID, req.Limit)
	case len(req.History) > 0:
		matches = a.svc.Personalized(fn.Unique(req.History), req.Limit)
	default:
		writeError(w, http.StatusBadRequest, "history or session_id is required")
		return
	}
	writeJSON(w, http.StatusOK, ResultList{Results: fn.Map(matches, matchViewOf), Count: len(matches)})
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	st, ok := a.svc.Session(r.PathValue("sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: st, Summary: summarize(st)})
}

func (a *api) handleSessionByPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if domain.NormalizePhone(phone) == "" {
		writeError(w, http.StatusBadRequest, "a ten digit phone number is required")
		return
	}
	st, ok := a.svc.SessionByPhone(r.Context(), phone)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for that phone number")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: st, Summary: summarize(st)})
}

func (a *api) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var req VehicleActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StockID == "" {
		writeError(w, http.StatusBadRequest, "stock_id is required")
		return
	}
	st, ok := a.svc.Favorite(r.Context(), r.PathValue("sessionID"), req.StockID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: st, Summary: summarize(st)})
}

func (a *api) handleReject(w http.ResponseWriter, r *http.Request) {
	var req VehicleActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StockID == "" {
		writeError(w, http.StatusBadRequest, "stock_id is required")
		return
	}
	st, ok := a.svc.Reject(r.Context(), r.PathValue("sessionID"), req.StockID, req.Reason)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: st, Summary: summarize(st)})
}

func (a *api) handleObjection(w http.ResponseWriter, r *http.Request) {
	var req ObjectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	st, ok := a.svc.AddressObjection(r.Context(), r.PathValue("sessionID"), req.Category, req.Resolution)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: st, Summary: summarize(st)})
}

func (a *api) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Rebuild(r.Context()); err != nil {
		a.logger.Error("inventory rebuild failed", "err", err)
		writeError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": a.svc.VehicleCount()})
}

// --- Helpers ---

func intQuery(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// summarize renders the one-line session recap shown next to every snapshot.
func summarize(st *convstate.State) string {
	if st == nil {
		return ""
	}
	parts := []string{string(st.Stage)}
	if st.CustomerName != "" {
		parts[0] = st.CustomerName + ", " + parts[0]
	}
	if len(st.PreferredTypes) > 0 {
		parts = append(parts, "wants "+strings.Join(st.PreferredTypes, "/"))
	}
	if st.BudgetMax > 0 {
		parts = append(parts, fmt.Sprintf("budget up to $%.0f", st.BudgetMax))
	}
	if n := len(st.DiscussedVehicles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d vehicles discussed", n))
	}
	if n := len(st.FavoriteVehicles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d favorites", n))
	}
	if n := len(st.Objections); n > 0 {
		open := 0
		for _, o := range st.Objections {
			if !o.Addressed {
				open++
			}
		}
		if open > 0 {
			parts = append(parts, fmt.Sprintf("%d open objections", open))
		}
	}
	return strings.Join(parts, ", ")
}
