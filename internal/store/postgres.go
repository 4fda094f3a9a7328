package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetopt/internal/model"
)

// Postgres persists runs and webhook state. Route lists, requests, and stats
// are stored as JSONB payloads; listing cursors are id-ordered like Memory.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    tag TEXT,
    request JSONB NOT NULL,
    routes JSONB,
    cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    cost_breakdown JSONB,
    unserved INT NOT NULL DEFAULT 0,
    runtime_ms BIGINT NOT NULL DEFAULT 0,
    stats JSONB,
    error TEXT
);
CREATE TABLE IF NOT EXISTS subscriptions (
    id UUID PRIMARY KEY,
    url TEXT NOT NULL,
    events JSONB NOT NULL,
    secret TEXT
);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id UUID PRIMARY KEY,
    subscription_id UUID NOT NULL,
    event_type TEXT NOT NULL,
    url TEXT NOT NULL,
    secret TEXT,
    payload JSONB NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INT NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_error TEXT,
    response_code INT
);
CREATE INDEX IF NOT EXISTS webhook_deliveries_due ON webhook_deliveries (status, next_attempt_at);
`

// Migrate creates the schema if missing. Dev helper; production deployments
// run migrations out of band.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) CreateRun(ctx context.Context, req model.SolveRequest) (model.Run, error) {
	run := model.Run{
		ID:        uuid.New().String(),
		Status:    "running",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Tag:       req.Tag,
		Request:   req,
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, tag, request) VALUES ($1,$2,$3,$4)`,
		run.ID, run.Status, nullIfEmpty(run.Tag), toJSON(req))
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) FinishRun(ctx context.Context, id string, res model.RunResult) (model.Run, error) {
	result, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status=$2, routes=$3, cost=$4, cost_breakdown=$5, unserved=$6, runtime_ms=$7, stats=$8, error=$9 WHERE id=$1`,
		id, res.Status, toJSON(res.Routes), res.Cost, toJSON(res.CostBreakdown), res.Unserved, res.RuntimeMs, toJSON(res.Stats), nullIfEmpty(res.Error))
	if err != nil {
		return model.Run{}, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.Run{}, ErrNotFound
	}
	return p.GetRun(ctx, id)
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM runs WHERE id=$1`, id)
	return scanRun(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(row rowScanner) (model.Run, error) {
	var r model.Run
	var createdAt time.Time
	var tag, errText sql.NullString
	var request, routes, breakdown, stats []byte
	err := row.Scan(&r.ID, &r.Status, &createdAt, &tag, &request, &routes, &r.Cost, &breakdown, &r.Unserved, &r.RuntimeMs, &stats, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		return r, err
	}
	r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	r.Tag = tag.String
	r.Error = errText.String
	_ = json.Unmarshal(request, &r.Request)
	if len(routes) > 0 {
		_ = json.Unmarshal(routes, &r.Routes)
	}
	if len(breakdown) > 0 {
		_ = json.Unmarshal(breakdown, &r.CostBreakdown)
	}
	if len(stats) > 0 {
		var st model.SolveStats
		if json.Unmarshal(stats, &st) == nil {
			r.Stats = &st
		}
	}
	return r, nil
}

const runCols = `id::text, status, created_at, tag, request, routes, cost, cost_breakdown, unserved, runtime_ms, stats, error`

func (p *Postgres) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	switch {
	case status != "" && cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT `+runCols+` FROM runs WHERE status=$1 AND id::text > $2 ORDER BY id LIMIT $3`, status, cursor, limit)
	case status != "":
		rows, err = p.db.QueryContext(ctx, `SELECT `+runCols+` FROM runs WHERE status=$1 ORDER BY id LIMIT $2`, status, limit)
	case cursor != "":
		rows, err = p.db.QueryContext(ctx, `SELECT `+runCols+` FROM runs WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	default:
		rows, err = p.db.QueryContext(ctx, `SELECT `+runCols+` FROM runs ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	var last string
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	var next string
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteRun(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM runs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.URL, ev, nullIfEmpty(sub.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events, secret FROM subscriptions WHERE events @> $1::jsonb OR events @> '["*"]'::jsonb`,
		fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, "", err
	}
	var next string
	if len(subs) == limit {
		next = subs[len(subs)-1].ID
	}
	return subs, next, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var secret sql.NullString
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &secret); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(events, &s.Events)
		s.Secret = secret.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, subscriptionID, eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, subscription_id::text, event_type, url, secret, payload, status, attempts
		 FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var secret sql.NullString
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		d.Secret = secret.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=NULL, response_code=$2 WHERE id=$1`,
			id, responseCode)
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4 WHERE id=$1`,
		id, nextAttemptAt, nullIfEmpty(lastError), responseCode)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode)
	return err
}

// Helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// toJSON marshals v for a JSONB column, mapping empty values to SQL NULL.
func toJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}
