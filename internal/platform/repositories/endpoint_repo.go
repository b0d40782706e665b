package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadhook/internal/platform/models"
)

const endpointColumns = `id, organization_id, name, description, secret, payload_type, events, is_active,
	header_rules, retry_max_attempts, retry_delay_seconds, total_requests, successful_requests,
	failed_requests, last_triggered_at, created_by, created_at, updated_at`

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Create(ctx context.Context, e *models.Endpoint) error {
	eventsJSON, rulesJSON, err := marshalEndpointJSON(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO endpoints (id, organization_id, name, description, secret, payload_type, events, is_active,
			header_rules, retry_max_attempts, retry_delay_seconds, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, e.ID, e.OrganizationID, e.Name, e.Description, e.Secret, e.PayloadType,
		eventsJSON, e.IsActive, rulesJSON, e.Retry.MaxAttempts, e.Retry.DelaySeconds, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return err
}

// GetByID returns nil, nil when no endpoint has this id.
func (r *EndpointRepository) GetByID(ctx context.Context, id string) (*models.Endpoint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE id = ?`, id)
	e, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *EndpointRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Endpoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints := []*models.Endpoint{}
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

// Update rewrites the mutable configuration. Counters are left alone; they
// only move through RecordOutcome.
func (r *EndpointRepository) Update(ctx context.Context, e *models.Endpoint) error {
	eventsJSON, rulesJSON, err := marshalEndpointJSON(e)
	if err != nil {
		return err
	}
	e.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE endpoints
		SET name = ?, description = ?, payload_type = ?, events = ?, is_active = ?, header_rules = ?,
			retry_max_attempts = ?, retry_delay_seconds = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	_, err = r.db.ExecContext(ctx, query, e.Name, e.Description, e.PayloadType, eventsJSON, e.IsActive, rulesJSON,
		e.Retry.MaxAttempts, e.Retry.DelaySeconds, e.UpdatedAt, e.ID, e.OrganizationID)
	return err
}

func (r *EndpointRepository) UpdateSecret(ctx context.Context, orgID, id, sealed string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE endpoints SET secret = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		sealed, time.Now().Unix(), id, orgID)
	return err
}

func (r *EndpointRepository) Delete(ctx context.Context, orgID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ? AND organization_id = ?`, id, orgID)
	return err
}

// RecordOutcome bumps the request counters in one statement so concurrent
// deliveries to the same endpoint never lose an increment.
func (r *EndpointRepository) RecordOutcome(ctx context.Context, id string, success bool, at int64) error {
	var ok, failed int
	if success {
		ok = 1
	} else {
		failed = 1
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE endpoints
		SET total_requests = total_requests + 1,
			successful_requests = successful_requests + ?,
			failed_requests = failed_requests + ?,
			last_triggered_at = ?
		WHERE id = ?
	`, ok, failed, at, id)
	return err
}

func marshalEndpointJSON(e *models.Endpoint) (string, string, error) {
	events := e.Events
	if events == nil {
		events = []string{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", "", err
	}

	rules := e.HeaderRules
	if rules == nil {
		rules = map[string]string{}
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return "", "", err
	}
	return string(eventsJSON), string(rulesJSON), nil
}

func scanEndpoint(s interface {
	Scan(dest ...interface{}) error
}) (*models.Endpoint, error) {
	var e models.Endpoint
	var eventsStr, rulesStr string
	var lastTriggeredAt sql.NullInt64

	err := s.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Description, &e.Secret, &e.PayloadType, &eventsStr, &e.IsActive,
		&rulesStr, &e.Retry.MaxAttempts, &e.Retry.DelaySeconds, &e.TotalRequests, &e.SuccessfulRequests,
		&e.FailedRequests, &lastTriggeredAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastTriggeredAt.Valid {
		v := lastTriggeredAt.Int64
		e.LastTriggeredAt = &v
	}

	if err := json.Unmarshal([]byte(eventsStr), &e.Events); err != nil {
		return nil, fmt.Errorf("endpoint %s events: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(rulesStr), &e.HeaderRules); err != nil {
		return nil, fmt.Errorf("endpoint %s header rules: %w", e.ID, err)
	}
	if e.Events == nil {
		e.Events = []string{}
	}

	return &e, nil
}
