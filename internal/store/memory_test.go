package store

import (
	"context"
	"testing"
	"time"

	"fleetopt/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, err := m.CreateRun(ctx, model.SolveRequest{N: 10, Capacity: 50, Vehicles: 3, Tag: "trial"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.Status != "running" || run.ID == "" {
		t.Fatalf("unexpected new run: %+v", run)
	}
	done, err := m.FinishRun(ctx, run.ID, model.RunResult{
		Status: "completed",
		Routes: [][]int{{0, 1, 2, 0}},
		Cost:   42.5,
	})
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if done.Status != "completed" || done.Cost != 42.5 {
		t.Fatalf("unexpected finished run: %+v", done)
	}
	got, err := m.GetRun(ctx, run.ID)
	if err != nil || got.Status != "completed" {
		t.Fatalf("GetRun after finish: %+v err=%v", got, err)
	}
	if _, err := m.FinishRun(ctx, "missing", model.RunResult{Status: "failed"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryListRunsCursorAndStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ids := []string{}
	for i := 0; i < 5; i++ {
		run, _ := m.CreateRun(ctx, model.SolveRequest{N: 5, Capacity: 10, Vehicles: 2})
		ids = append(ids, run.ID)
	}
	_, _ = m.FinishRun(ctx, ids[1], model.RunResult{Status: "completed"})
	_, _ = m.FinishRun(ctx, ids[3], model.RunResult{Status: "completed"})

	page1, next, err := m.ListRuns(ctx, "", "", 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(page1) != 3 || next == "" {
		t.Fatalf("expected full page with cursor, got %d next=%q", len(page1), next)
	}
	page2, _, err := m.ListRuns(ctx, "", next, 3)
	if err != nil {
		t.Fatalf("ListRuns page2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 remaining runs, got %d", len(page2))
	}
	if page1[0].ID != ids[0] || page2[0].ID != ids[3] {
		t.Fatalf("cursor ordering broke: %q then %q", page1[0].ID, page2[0].ID)
	}

	completed, _, err := m.ListRuns(ctx, "completed", "", 0)
	if err != nil {
		t.Fatalf("ListRuns status filter: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed runs, got %d", len(completed))
	}
}

func TestMemorySubscriptionEventMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://a", Events: []string{"run.completed"}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://b", Events: []string{"*"}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://c", Events: []string{"run.failed"}})

	subs, err := m.GetSubscriptionsForEvent(ctx, "run.completed")
	if err != nil {
		t.Fatalf("GetSubscriptionsForEvent: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected exact + wildcard match, got %d", len(subs))
	}
}

func TestMemoryWebhookQueueScheduling(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.EnqueueWebhook(ctx, "sub1", "run.completed", "http://x", "s3cr3t", []byte(`{}`))
	if err != nil {
		t.Fatalf("EnqueueWebhook: %v", err)
	}
	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("expected one due delivery, got %v err=%v", due, err)
	}

	// retry pushed into the future should no longer be due
	later := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500); err != nil {
		t.Fatalf("MarkWebhookDelivery: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivery should be deferred, got %d due", len(due))
	}

	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200); err != nil {
		t.Fatalf("mark success: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered webhook should not be fetched again")
	}
}
