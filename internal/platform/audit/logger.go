package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Unknown fills identifiers that were not resolved before a request failed.
const Unknown = "unknown"

// Record is one inbound webhook request, as received and as answered.
// Rows are append-only.
type Record struct {
	ID               string            `json:"id"`
	EndpointID       string            `json:"endpoint_id"`
	OrganizationID   string            `json:"organization_id"`
	Method           string            `json:"method"`
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers"`
	Body             string            `json:"body"`
	ResponseStatus   int               `json:"response_status"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Success          bool              `json:"success"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	LeadID           string            `json:"lead_id,omitempty"`
	Provider         string            `json:"provider,omitempty"`
	UserAgent        string            `json:"user_agent"`
	IPAddress        string            `json:"ip_address"`
	CreatedAt        int64             `json:"created_at"`
}

type Logger struct {
	globalDB *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{globalDB: db}
}

// Record persists rec synchronously. Missing identifiers are replaced with
// Unknown so a row is always written.
func (l *Logger) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "wal_" + uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	if rec.EndpointID == "" {
		rec.EndpointID = Unknown
	}
	if rec.OrganizationID == "" {
		rec.OrganizationID = Unknown
	}
	if rec.ProcessingTimeMs < 0 {
		rec.ProcessingTimeMs = 0
	}

	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_audit_log (id, endpoint_id, organization_id, method, url, headers, body, response_status,
			processing_time_ms, success, error_message, lead_id, provider, user_agent, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = l.globalDB.ExecContext(ctx, query, rec.ID, rec.EndpointID, rec.OrganizationID, rec.Method, rec.URL,
		string(headersJSON), rec.Body, rec.ResponseStatus, rec.ProcessingTimeMs, rec.Success, rec.ErrorMessage,
		rec.LeadID, rec.Provider, rec.UserAgent, rec.IPAddress, rec.CreatedAt)
	return err
}

// List returns the newest records for one endpoint of orgID.
func (l *Logger) List(ctx context.Context, orgID, endpointID string, limit, offset int) ([]*Record, error) {
	query := `
		SELECT id, endpoint_id, organization_id, method, url, headers, body, response_status, processing_time_ms,
			success, error_message, lead_id, provider, user_agent, ip_address, created_at
		FROM webhook_audit_log
		WHERE organization_id = ? AND endpoint_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	rows, err := l.globalDB.QueryContext(ctx, query, orgID, endpointID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var rec Record
		var headersStr string
		if err := rows.Scan(&rec.ID, &rec.EndpointID, &rec.OrganizationID, &rec.Method, &rec.URL, &headersStr, &rec.Body,
			&rec.ResponseStatus, &rec.ProcessingTimeMs, &rec.Success, &rec.ErrorMessage, &rec.LeadID, &rec.Provider,
			&rec.UserAgent, &rec.IPAddress, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headersStr), &rec.Headers); err != nil {
			return nil, fmt.Errorf("audit record %s headers: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
