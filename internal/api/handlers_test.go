package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleetopt/internal/config"
	"fleetopt/internal/model"
	"fleetopt/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	s, err := NewServer(config.Default())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	// keep test solves short
	s.Cfg.Solver.SATimeMs = 30
	return s
}

func doSolve(t *testing.T, s *Server, body string) model.Run {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	s.SolveHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("solve: got %d body=%s", rr.Code, rr.Body.String())
	}
	var run model.Run
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	return run
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestSolveSyntheticInstance(t *testing.T) {
	s := newTestServer(t)
	run := doSolve(t, s, `{"n":12,"seed":7,"capacity":50,"vehicles":4,"saTimeMs":30}`)
	if run.Status != "completed" {
		t.Fatalf("status: %s (%s)", run.Status, run.Error)
	}
	if len(run.Routes) == 0 || run.Cost <= 0 {
		t.Fatalf("no solution: %+v", run)
	}
	for _, rt := range run.Routes {
		if rt[0] != 0 || rt[len(rt)-1] != 0 {
			t.Fatalf("route missing depot sentinels: %v", rt)
		}
	}
	if run.Stats == nil || run.Stats.BestCost > run.Stats.InitialCost+1e-9 {
		t.Fatalf("annealing regressed: %+v", run.Stats)
	}
}

func TestSolveExplicitCustomers(t *testing.T) {
	s := newTestServer(t)
	body := `{"depot":{"x":0,"y":0},"customers":[
		{"x":10,"y":0,"demand":10},{"x":20,"y":0,"demand":10},
		{"x":10,"y":10,"demand":10},{"x":20,"y":10,"demand":10}],
		"capacity":100,"vehicles":2,"saTimeMs":20,"seed":1}`
	run := doSolve(t, s, body)
	served := 0
	for _, rt := range run.Routes {
		served += len(rt) - 2
	}
	if served != 4 || run.Unserved != 0 {
		t.Fatalf("expected all 4 customers served: served=%d unserved=%d", served, run.Unserved)
	}
}

func TestSolveDeterministicWithSeed(t *testing.T) {
	s := newTestServer(t)
	// zero budget disables annealing; construction + local search are
	// deterministic for a fixed seed
	s.Cfg.Solver.SATimeMs = 0
	body := `{"n":15,"seed":42,"capacity":40,"vehicles":5,"noLocal":false}`
	a := doSolve(t, s, body)
	b := doSolve(t, s, body)
	if a.Cost != b.Cost {
		t.Fatalf("same seed, different cost: %v vs %v", a.Cost, b.Cost)
	}
}

func TestSolveRejectsBadRequest(t *testing.T) {
	s := newTestServer(t)
	cases := []string{
		`{"capacity":10,"vehicles":1}`,                        // neither n nor customers
		`{"n":5,"capacity":0,"vehicles":1}`,                   // zero capacity
		`{"n":5,"capacity":10,"vehicles":0}`,                  // zero vehicles
		`{"n":5,"capacity":10,"vehicles":1,"cooling":1.5}`,    // cooling out of range
		`{"n":5,"capacity":10,"vehicles":1,"lambdaTw":-1}`,    // negative weight
		`{"n":5,"customers":[{"x":1,"y":1,"demand":1}],"capacity":10,"vehicles":1}`, // both
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(c)))
		s.SolveHandler(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: got %d", c, rr.Code)
		}
	}
}

func TestSolveInfeasibleDemandFailsRun(t *testing.T) {
	s := newTestServer(t)
	body := `{"customers":[{"x":1,"y":1,"demand":200}],"capacity":100,"vehicles":1}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(body)))
	s.SolveHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("infeasible: got %d body=%s", rr.Code, rr.Body.String())
	}
	// the run should be recorded as failed
	items, _, err := s.Store.ListRuns(req.Context(), "failed", "", 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one failed run, got %d err=%v", len(items), err)
	}
	if items[0].Error == "" {
		t.Fatal("failed run should carry the error message")
	}
}

func TestRunsListGetDelete(t *testing.T) {
	s := newTestServer(t)
	run := doSolve(t, s, `{"n":8,"seed":3,"capacity":30,"vehicles":3,"saTimeMs":10}`)

	rr := httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil))
	if rr.Code != 200 {
		t.Fatalf("runs list: %d", rr.Code)
	}
	var list struct {
		Items []model.Run `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].ID != run.ID {
		t.Fatalf("bad listing: %+v", list.Items)
	}

	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("run get: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/runs/"+run.ID, nil))
	if rr.Code != 204 {
		t.Fatalf("run delete: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	if rr.Code != 404 {
		t.Fatalf("deleted run should 404, got %d", rr.Code)
	}
}

func TestRunsExportCSV(t *testing.T) {
	s := newTestServer(t)
	doSolve(t, s, `{"n":6,"seed":1,"capacity":30,"vehicles":2,"saTimeMs":10,"tag":"exp"}`)
	doSolve(t, s, `{"n":6,"seed":2,"capacity":30,"vehicles":2,"saTimeMs":10,"tag":"exp"}`)

	rr := httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/export", nil))
	if rr.Code != 200 {
		t.Fatalf("export: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type: %s", ct)
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("want header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[1][3] != "exp" {
		t.Fatalf("bad rows: %v", records)
	}
}

type failingListStore struct {
	*store.Memory
}

func (f *failingListStore) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	return nil, "", errors.New("backend down")
}

func TestRunsExportStoreErrorIsNot200(t *testing.T) {
	s := newTestServer(t)
	s.Store = &failingListStore{Memory: store.NewMemory()}

	rr := httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/export", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("export with broken store: got %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want a problem body, got content type %s", ct)
	}
}

func TestRunPlotSVG(t *testing.T) {
	s := newTestServer(t)
	run := doSolve(t, s, `{"n":10,"seed":5,"capacity":40,"vehicles":3,"saTimeMs":10}`)
	rr := httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID+"/plot.svg", nil))
	if rr.Code != 200 {
		t.Fatalf("plot: %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type: %s", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "<svg") {
		t.Fatalf("not svg: %s", rr.Body.String()[:30])
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(`{"url":"http://example.test/hook","events":["run.completed"],"secret":"s"}`)))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != 201 {
		t.Fatalf("create sub: %d body=%s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rr.Code != 200 {
		t.Fatalf("list subs: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(`{"url":"http://x","events":["bogus.event"]}`)))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != 400 {
		t.Fatalf("bogus event type should 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != 204 {
		t.Fatalf("delete sub: %d", rr.Code)
	}
}

func TestSolveEnqueuesWebhook(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(`{"url":"http://example.test/hook","events":["run.completed"]}`)))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != 201 {
		t.Fatalf("create sub: %d", rr.Code)
	}
	doSolve(t, s, `{"n":6,"seed":1,"capacity":30,"vehicles":2,"saTimeMs":10}`)
	due, err := s.Store.FetchDueWebhookDeliveries(req.Context(), 10)
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].EventType != "run.completed" {
		t.Fatalf("expected one run.completed delivery, got %+v", due)
	}
}

func TestSolveRequiresRole(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(`{"n":5,"capacity":10,"vehicles":2}`)))
	req.Header.Set("X-Role", "viewer")
	s.SolveHandler(rr, req)
	if rr.Code != 403 {
		t.Fatalf("viewer role should 403, got %d", rr.Code)
	}
}
