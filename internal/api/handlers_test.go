package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/db"
	"ratfun/tripgraph/internal/graph"
	"ratfun/tripgraph/internal/selector"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memorySource struct {
	trips []graph.Trip
	err   error
}

func (m *memorySource) FetchTrips(ctx context.Context, worldID string) ([]graph.Trip, error) {
	return m.trips, m.err
}

func (m *memorySource) FetchOutcomes(ctx context.Context, worldID string, tripIDs []string) ([]graph.Outcome, error) {
	return nil, m.err
}

func testSource() *memorySource {
	return &memorySource{trips: []graph.Trip{
		{ID: "cave", WorldID: "w1", Balance: 800, CreationCost: 1000},
		{ID: "lab", WorldID: "w1", Balance: 300, CreationCost: 200},
	}}
}

func setupTestRouter(src cache.Source, store *db.DB) (*gin.Engine, *cache.Cache) {
	c := cache.New(src)
	handlers := NewHandlers(c, selector.New(c, nil), store, nil)
	return NewRouter(handlers), c
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	return resp
}

func TestHandlers_HandleHealth(t *testing.T) {
	router, c := setupTestRouter(testSource(), nil)
	if err := c.Ensure(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}

	w := doJSON(router, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" || len(resp.Worlds) != 1 || resp.Worlds[0] != "w1" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestHandlers_HandleSelect(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	body := SelectRequest{
		Trips: []graph.Trip{
			{ID: "a", Balance: 100, CreationCost: 100},
			{ID: "b", Balance: 900, CreationCost: 100},
		},
		AgentValue: 50,
	}
	w := doJSON(router, "POST", "/v1/worlds/w1/select", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp SelectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Result == nil || resp.Result.Trip.ID != "b" || resp.Result.Tier != selector.TierNoHistory {
		t.Errorf("unexpected result %+v", resp.Result)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestHandlers_HandleSelect_DefaultsToActiveTrips(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	// only lab (min 20) is enterable at 50
	w := doJSON(router, "POST", "/v1/worlds/w1/select", SelectRequest{AgentValue: 50})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp SelectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Result == nil || resp.Result.Trip.ID != "lab" {
		t.Errorf("unexpected result %+v", resp.Result)
	}
}

func TestHandlers_HandleSelect_InvalidRequest(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	cases := map[string]string{
		"malformed":       `{"agent_value":`,
		"negative value":  `{"agent_value": -5}`,
		"empty path id":   `{"agent_value": 5, "current_path": [""]}`,
		"trip without id": `{"agent_value": 5, "trips": [{"balance": 10}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doJSON(router, "POST", "/v1/worlds/w1/select", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if resp := decodeError(t, w); resp.Code != "INVALID_REQUEST" {
				t.Errorf("expected code INVALID_REQUEST, got %q", resp.Code)
			}
		})
	}
}

func TestHandlers_HandlePath(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	w := doJSON(router, "POST", "/v1/worlds/w1/path", PathRequest{AgentValue: 500, MaxSteps: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp PathResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Steps) != 1 || resp.Steps[0].TripID != "cave" {
		t.Errorf("unexpected steps %+v", resp.Steps)
	}

	w = doJSON(router, "POST", "/v1/worlds/w1/path", `{"agent_value": 5, "max_steps": 99}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("max_steps above 50 should be rejected, got %d", w.Code)
	}
}

func TestHandlers_HandleOutcome(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	body := `{"trip_id":"cave","rat_id":"r1","created_at":"2025-03-01T12:00:00Z","rat_value_before":200,"rat_value_after":0}`
	w := doJSON(router, "POST", "/v1/worlds/w1/outcomes", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp OutcomeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID == "" || !resp.Died || resp.Persisted || resp.OutcomesSinceRebuild != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	w = doJSON(router, "POST", "/v1/worlds/w1/outcomes", `{"trip_id":"cave","created_at":"2025-03-01T12:00:00Z"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "INVALID_OUTCOME" {
		t.Errorf("expected code INVALID_OUTCOME, got %q", resp.Code)
	}
}

func TestHandlers_HandleOutcome_Persisted(t *testing.T) {
	store, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.UpsertTrip(ctx, db.TripRow{ID: "cave", WorldID: "w1", Balance: 800, CreationCost: 1000}); err != nil {
		t.Fatal(err)
	}
	router, c := setupTestRouter(&graph.DBSource{DB: store}, store)

	body := `{"id":"o1","trip_id":"cave","rat_id":"r1","created_at":"2025-03-01T12:00:00Z","value_change":40}`
	w := doJSON(router, "POST", "/v1/worlds/w1/outcomes", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp OutcomeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Persisted || resp.OutcomesSinceRebuild != 0 {
		t.Errorf("first load should read the stored outcome, got %+v", resp)
	}
	if n, _ := store.CountOutcomes(ctx, "w1"); n != 1 {
		t.Errorf("stored outcomes = %d, want 1", n)
	}
	_ = c.View("w1", func(g *graph.TripGraph) {
		if got := g.Node("cave").Stats.Count; got != 1 {
			t.Errorf("cave count = %d, want 1", got)
		}
	})

	body = `{"id":"o2","trip_id":"cave","rat_id":"r2","created_at":"2025-03-01T12:01:00Z","value_change":10}`
	w = doJSON(router, "POST", "/v1/worlds/w1/outcomes", body)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.OutcomesSinceRebuild != 1 {
		t.Errorf("loaded graph should apply incrementally, got %+v", resp)
	}
}

func TestHandlers_HandleAccessible(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	w := doJSON(router, "GET", "/v1/worlds/w1/trips/accessible?value=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "INVALID_VALUE" {
		t.Errorf("expected code INVALID_VALUE, got %q", resp.Code)
	}

	w = doJSON(router, "GET", "/v1/worlds/w1/trips/accessible?value=150", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp AccessibleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Trips) != 2 || resp.Trips[0].ID != "cave" {
		t.Errorf("unexpected trips %+v", resp.Trips)
	}
}

func TestHandlers_HandleDepleted(t *testing.T) {
	router, c := setupTestRouter(testSource(), nil)

	w := doJSON(router, "POST", "/v1/worlds/w1/trips/cave/depleted", nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Code != "WORLD_NOT_LOADED" {
		t.Errorf("unloaded world: got %d %s", w.Code, w.Body.String())
	}

	if err := c.Ensure(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	w = doJSON(router, "POST", "/v1/worlds/w1/trips/cave/depleted", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	w = doJSON(router, "POST", "/v1/worlds/w1/trips/nope/depleted", nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Code != "TRIP_NOT_FOUND" {
		t.Errorf("unknown trip: got %d %s", w.Code, w.Body.String())
	}
}

func TestHandlers_HandleStaleness(t *testing.T) {
	router, c := setupTestRouter(testSource(), nil)

	w := doJSON(router, "GET", "/v1/worlds/w1/staleness", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := c.Ensure(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	w = doJSON(router, "GET", "/v1/worlds/w1/staleness", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestHandlers_HandleRebuild(t *testing.T) {
	router, _ := setupTestRouter(testSource(), nil)

	w := doJSON(router, "POST", "/v1/worlds/w1/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp RebuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Nodes != 2 {
		t.Errorf("expected 2 nodes, got %d", resp.Nodes)
	}

	failing, _ := setupTestRouter(&memorySource{err: errors.New("store offline")}, nil)
	w = doJSON(failing, "POST", "/v1/worlds/w1/rebuild", nil)
	if w.Code != http.StatusBadGateway || decodeError(t, w).Code != "REBUILD_FAILED" {
		t.Errorf("failed rebuild: got %d %s", w.Code, w.Body.String())
	}
}
