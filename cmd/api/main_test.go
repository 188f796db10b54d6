package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/floor"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
	"github.com/ShowfloorAI/showfloor-mvp/engine/recommend"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
)

func testRecords() []domain.Record {
	return []domain.Record{
		{
			"stock_number": "FL-100", "year": 2022, "make": "Kia", "model": "Telluride",
			"body_style": "SUV", "fuel_type": "Gasoline", "drivetrain": "AWD",
			"price": 48000.0, "seating_capacity": 7,
			"features": "Third Row, Backup Camera, Leather Seats",
		},
		{
			"stock_number": "FL-101", "year": 2022, "make": "Hyundai", "model": "Palisade",
			"body_style": "SUV", "fuel_type": "Gasoline", "drivetrain": "AWD",
			"price": 46500.0, "seating_capacity": 7,
			"features": "Third Row, Backup Camera",
		},
		{
			"stock_number": "FL-200", "year": 2023, "make": "Ford", "model": "F-250",
			"body_style": "Pickup", "fuel_type": "Diesel", "drivetrain": "4WD",
			"price": 70000.0, "towing_capacity": 12000,
			"features": "Tow Package, Trailer Brake",
		},
		{
			"stock_number": "FL-300", "year": 2021, "make": "Honda", "model": "Civic",
			"body_style": "Sedan", "fuel_type": "Gasoline", "drivetrain": "FWD",
			"price": 24000.0, "features": "Backup Camera",
		},
		{
			"stock_number": "FL-400", "year": 2023, "make": "Chevrolet", "model": "Bolt EUV",
			"body_style": "SUV", "fuel_type": "Electric", "drivetrain": "FWD",
			"price": 29000.0, "features": "One Pedal Driving, Backup Camera",
		},
	}
}

func newTestAPI(t *testing.T) *api {
	t.Helper()
	svc := floor.New(floor.Deps{
		States:    convstate.NewManager(nil, nil),
		Retriever: retrieve.New(retrieve.Weights{}, nil),
		Recommend: recommend.New(recommend.Weights{}, nil),
		Source:    &inventory.StaticSource{Records: testRecords()},
	}, floor.DefaultOptions())
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return &api{svc: svc, logger: slog.Default()}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()
	rec := do(t, mux, "GET", "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[map[string]any](t, rec)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", resp["status"])
	}
	if resp["ready"] != true {
		t.Fatalf("expected ready true, got %v", resp["ready"])
	}
	if n, _ := resp["vehicles"].(float64); n != 5 {
		t.Fatalf("expected 5 vehicles, got %v", resp["vehicles"])
	}
}

func TestTurnEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()
	body := `{"session_id":"s1","text":"I'm looking for a family SUV under $50k"}`
	rec := do(t, mux, "POST", "/api/turn", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[TurnResponse](t, rec)
	if resp.State == nil || resp.State.BudgetMax != 50000 {
		t.Fatalf("expected budget max 50000 in state, got %+v", resp.State)
	}
	if len(resp.Matches) == 0 {
		t.Fatal("expected matches for an SUV query")
	}
	if resp.Matches[0].BodyStyle != "suv" {
		t.Fatalf("expected top match to be an suv, got %q", resp.Matches[0].BodyStyle)
	}
	if !strings.Contains(resp.Summary, "budget up to $50000") {
		t.Fatalf("summary missing budget: %q", resp.Summary)
	}

	// The session must be retrievable afterwards.
	rec = do(t, mux, "GET", "/api/sessions/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for tracked session, got %d", rec.Code)
	}
}

func TestTurnEndpoint_AgentRole(t *testing.T) {
	mux := newTestAPI(t).routes()
	body := `{"session_id":"s2","role":"agent","text":"Let me pull up the Telluride","mentioned_stock_ids":["FL-100","FL-100"]}`
	rec := do(t, mux, "POST", "/api/turn", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[TurnResponse](t, rec)
	if len(resp.Matches) != 0 {
		t.Fatalf("agent turns must not auto-retrieve, got %d matches", len(resp.Matches))
	}
	dv, ok := resp.State.DiscussedVehicles["FL-100"]
	if !ok {
		t.Fatal("mentioned vehicle not tracked")
	}
	if dv.Mentions != 1 {
		t.Fatalf("duplicate ids must collapse to one mention, got %d", dv.Mentions)
	}
}

func TestTurnEndpoint_Rejections(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/turn", `{"session_id":"s3","text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty turn, got %d", rec.Code)
	}
	rec = do(t, mux, "POST", "/api/turn", "not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}
	// A rejected turn must not create the session.
	rec = do(t, mux, "GET", "/api/sessions/s3", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for never-created session, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()
	body := `{"query":"something that can tow my trailer, diesel preferred"}`
	rec := do(t, mux, "POST", "/api/search", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ResultList](t, rec)
	if resp.Count != len(resp.Results) || resp.Count == 0 {
		t.Fatalf("bad result count %d for %d results", resp.Count, len(resp.Results))
	}
	if resp.Results[0].StockID != "FL-200" {
		t.Fatalf("expected the diesel truck on top, got %q", resp.Results[0].StockID)
	}
}

func TestSearchEndpoint_Rejections(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/search", `{"query":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank query, got %d", rec.Code)
	}
	rec = do(t, mux, "POST", "/api/search", "{")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestVehicleEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "GET", "/api/vehicles/fl-300", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for case-insensitive lookup, got %d", rec.Code)
	}
	resp := decode[map[string]any](t, rec)
	if resp["stock_number"] != "FL-300" {
		t.Fatalf("expected FL-300, got %v", resp["stock_number"])
	}

	rec = do(t, mux, "GET", "/api/vehicles/FL-999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown vehicle, got %d", rec.Code)
	}
}

func TestSimilarEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "GET", "/api/vehicles/FL-100/similar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[ResultList](t, rec)
	if len(resp.Results) == 0 {
		t.Fatal("expected similar vehicles")
	}
	if resp.Results[0].StockID != "FL-101" {
		t.Fatalf("expected the near-twin on top, got %q", resp.Results[0].StockID)
	}
	for _, m := range resp.Results {
		if m.StockID == "FL-100" {
			t.Fatal("source vehicle leaked into its own similar list")
		}
	}

	rec = do(t, mux, "GET", "/api/vehicles/FL-100/similar?by=text&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for text mode, got %d", rec.Code)
	}
	resp = decode[ResultList](t, rec)
	if len(resp.Results) > 2 {
		t.Fatalf("limit ignored, got %d results", len(resp.Results))
	}

	rec = do(t, mux, "GET", "/api/vehicles/FL-999/similar", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown vehicle, got %d", rec.Code)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/recommendations", `{"history":["FL-100","FL-999","FL-100"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ResultList](t, rec)
	if len(resp.Results) == 0 {
		t.Fatal("expected recommendations from a usable history")
	}
	if resp.Results[0].StockID != "FL-101" {
		t.Fatalf("expected the sibling SUV on top, got %q", resp.Results[0].StockID)
	}
	for _, m := range resp.Results {
		if m.StockID == "FL-100" {
			t.Fatal("viewed vehicle leaked into recommendations")
		}
	}

	rec = do(t, mux, "POST", "/api/recommendations", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with neither history nor session, got %d", rec.Code)
	}
	rec = do(t, mux, "POST", "/api/recommendations", `{"session_id":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestRecommendationsEndpoint_FromSession(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/turn", `{"session_id":"s4","text":"Tell me about the Telluride","mentioned_stock_ids":["FL-100"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn setup failed: %d", rec.Code)
	}

	rec = do(t, mux, "POST", "/api/recommendations", `{"session_id":"s4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ResultList](t, rec)
	if len(resp.Results) == 0 {
		t.Fatal("expected recommendations for a session with discussed vehicles")
	}
	for _, m := range resp.Results {
		if m.StockID == "FL-100" {
			t.Fatal("discussed vehicle leaked into recommendations")
		}
	}
}

func TestSessionByPhoneEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/turn", `{"session_id":"s5","text":"You can reach me at 555-123-4567"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn setup failed: %d", rec.Code)
	}

	rec = do(t, mux, "GET", "/api/sessions/by-phone?phone=%28555%29+123-4567", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if resp.State.SessionID != "s5" {
		t.Fatalf("expected session s5, got %q", resp.State.SessionID)
	}

	rec = do(t, mux, "GET", "/api/sessions/by-phone?phone=123", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a short phone, got %d", rec.Code)
	}
	rec = do(t, mux, "GET", "/api/sessions/by-phone?phone=2125550000", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown phone, got %d", rec.Code)
	}
}

func TestFavoriteAndRejectEndpoints(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/turn", `{"session_id":"s6","text":"I like the Telluride","mentioned_stock_ids":["FL-100"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn setup failed: %d", rec.Code)
	}

	rec = do(t, mux, "POST", "/api/sessions/s6/favorite", `{"stock_id":"FL-100"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if !resp.State.IsFavorite("FL-100") {
		t.Fatal("favorite not recorded")
	}

	rec = do(t, mux, "POST", "/api/sessions/s6/reject", `{"stock_id":"FL-300","reason":"too small"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp = decode[SessionResponse](t, rec)
	if !resp.State.IsRejected("FL-300") {
		t.Fatal("rejection not recorded")
	}

	rec = do(t, mux, "POST", "/api/sessions/s6/favorite", `{"stock_id":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing stock_id, got %d", rec.Code)
	}
	rec = do(t, mux, "POST", "/api/sessions/ghost/favorite", `{"stock_id":"FL-100"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestObjectionEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/turn", `{"session_id":"s7","text":"I need to check with my wife first"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn setup failed: %d", rec.Code)
	}

	body := `{"category":"spouse_approval","resolution":"spouse joined the test drive"}`
	rec = do(t, mux, "POST", "/api/sessions/s7/objection", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if len(resp.State.Objections) == 0 || !resp.State.Objections[0].Addressed {
		t.Fatalf("objection not resolved: %+v", resp.State.Objections)
	}

	rec = do(t, mux, "POST", "/api/sessions/s7/objection", `{"category":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing category, got %d", rec.Code)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	mux := newTestAPI(t).routes()

	rec := do(t, mux, "POST", "/api/admin/rebuild", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string]any](t, rec)
	if n, _ := resp["vehicles"].(float64); n != 5 {
		t.Fatalf("expected 5 vehicles after rebuild, got %v", resp["vehicles"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestAPI(t).routes()
	rec := do(t, mux, "GET", "/api/turn", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CORSOrigin != "*" {
		t.Fatalf("expected default CORS *, got %s", cfg.CORSOrigin)
	}
	if cfg.MetricsPort != 9091 {
		t.Fatalf("expected default metrics port 9091, got %d", cfg.MetricsPort)
	}
	if cfg.SessionTTL != 720*time.Hour {
		t.Fatalf("expected default session ttl 720h, got %s", cfg.SessionTTL)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_ENV_VAR_XYZ", "custom")
	if v := envOr("TEST_ENV_VAR_XYZ", "default"); v != "custom" {
		t.Fatalf("expected custom, got %s", v)
	}
	if v := envOr("NONEXISTENT_VAR_ABC", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}

	t.Setenv("TEST_ENV_INT", "42")
	if v := envInt("TEST_ENV_INT", 7); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	t.Setenv("TEST_ENV_INT", "not a number")
	if v := envInt("TEST_ENV_INT", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}

	t.Setenv("TEST_ENV_DUR", "90s")
	if v := envDuration("TEST_ENV_DUR", time.Minute); v != 90*time.Second {
		t.Fatalf("expected 90s, got %s", v)
	}
	t.Setenv("TEST_ENV_FLOAT", "2.5")
	if v := envFloat("TEST_ENV_FLOAT", 1); v != 2.5 {
		t.Fatalf("expected 2.5, got %v", v)
	}
}
