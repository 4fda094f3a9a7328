package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetopt/internal/model"
	"fleetopt/internal/solver"
	"fleetopt/internal/store"
	"fleetopt/internal/viz"
)

// SolveHandler handles POST /v1/solve. Solves run synchronously; lifecycle
// events go out on the broker and webhook queue either way.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !(p.IsAdmin() || p.Role == "user") {
		writeProblem(w, 403, "Forbidden", "user or admin required", r.URL.Path)
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	run, err := s.Store.CreateRun(r.Context(), req)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	s.Broker.Publish(run.ID, SSEEvent{Type: "run.started", Data: map[string]any{"runId": run.ID, "ts": run.CreatedAt}})
	s.Pub.Emit(r.Context(), "run.started", map[string]any{"runId": run.ID, "tag": run.Tag})

	res, err := s.runSolve(req)
	if err != nil {
		var inf *solver.InfeasibleError
		status := http.StatusInternalServerError
		title := "Solve failed"
		if errors.As(err, &inf) || errors.Is(err, solver.ErrInvalidConfig) {
			status = http.StatusUnprocessableEntity
			title = "Infeasible instance"
		}
		failed := model.RunResult{Status: "failed", Error: err.Error()}
		run, _ = s.Store.FinishRun(r.Context(), run.ID, failed)
		s.Broker.Publish(run.ID, SSEEvent{Type: "run.failed", Data: map[string]any{"runId": run.ID, "error": err.Error()}})
		s.Pub.Emit(r.Context(), "run.failed", map[string]any{"runId": run.ID, "error": err.Error()})
		writeProblem(w, status, title, err.Error(), r.URL.Path)
		return
	}
	run, err = s.Store.FinishRun(r.Context(), run.ID, res)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Finish run failed", err.Error(), r.URL.Path)
		return
	}
	s.Broker.Publish(run.ID, SSEEvent{Type: "run.completed", Data: map[string]any{
		"runId": run.ID, "cost": run.Cost, "unserved": run.Unserved, "runtimeMs": run.RuntimeMs,
	}})
	s.Pub.Emit(r.Context(), "run.completed", map[string]any{
		"runId": run.ID, "cost": run.Cost, "unserved": run.Unserved, "tag": run.Tag,
	})
	writeJSON(w, http.StatusOK, run)
}

// RunsHandler handles GET /v1/runs and GET /v1/runs/export.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/runs/export" {
		s.runsExport(w, r)
		return
	}
	if r.URL.Path != "/v1/runs" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRuns(r.Context(), status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// runsExport writes completed runs as CSV, one row per run.
func (s *Server) runsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	// Fetch the first page before committing to a CSV response so store
	// failures still surface as a problem body.
	items, next, err := s.Store.ListRuns(r.Context(), status, "", 200)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="runs.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "status", "createdAt", "tag", "n", "vehicles", "capacity", "cost", "distance", "timeWindow", "fairness", "unserved", "runtimeMs", "iterations"})
	for {
		for _, run := range items {
			n := run.Request.N
			if n == 0 {
				n = len(run.Request.Customers)
			}
			iters := 0
			if run.Stats != nil {
				iters = run.Stats.Iterations
			}
			_ = cw.Write([]string{
				run.ID, run.Status, run.CreatedAt, run.Tag,
				strconv.Itoa(n), strconv.Itoa(run.Request.Vehicles), strconv.Itoa(run.Request.Capacity),
				fmt.Sprintf("%.4f", run.Cost),
				fmt.Sprintf("%.4f", run.CostBreakdown["distance"]),
				fmt.Sprintf("%.4f", run.CostBreakdown["timeWindow"]),
				fmt.Sprintf("%.4f", run.CostBreakdown["fairness"]),
				strconv.Itoa(run.Unserved), strconv.FormatInt(run.RuntimeMs, 10), strconv.Itoa(iters),
			})
		}
		if next == "" {
			break
		}
		items, next, err = s.Store.ListRuns(r.Context(), status, next, 200)
		if err != nil {
			// The 200 is already on the wire; abort the connection so the
			// client sees a broken download instead of a truncated CSV.
			log.Printf("runs export: list page failed: %v", err)
			panic(http.ErrAbortHandler)
		}
	}
	cw.Flush()
}

// RunByIDHandler handles /v1/runs/{id} plus the events/stream, ws and
// plot.svg subresources.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.runEventsStream(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "ws" {
		s.RunWSHandler(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "plot.svg" {
		s.runPlot(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case http.MethodDelete:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteRun(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Delete run failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(204)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runEventsStream streams run lifecycle events as SSE with heartbeats.
func (s *Server) runEventsStream(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// runPlot renders a completed run's routes as SVG.
func (s *Server) runPlot(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}
	if run.Status != "completed" || len(run.Routes) == 0 {
		writeProblem(w, http.StatusConflict, "Run not plottable", "run has no routes", r.URL.Path)
		return
	}
	in, _, err := buildInstance(s.Cfg, run.Request)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Rebuild instance failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(viz.RenderSVG(in.AllNodes(), run.Routes))
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/subscriptions" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
