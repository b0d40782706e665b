package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists leads in a tenant database.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithNotes inserts lead and its notes in one transaction, so a lead
// never exists without the notes that explain where it came from.
func (r *Repository) CreateWithNotes(ctx context.Context, lead *Lead, notes []string) error {
	customJSON, err := json.Marshal(nonNilFields(lead.CustomFields))
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (id, organization_id, name, email, phone, company, source, value, status,
			custom_fields, endpoint_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID, lead.OrganizationID, lead.Name, lead.Email, lead.Phone, lead.Company, lead.Source, lead.Value,
		lead.Status, string(customJSON), lead.EndpointID, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return err
	}

	for _, body := range notes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lead_notes (id, lead_id, organization_id, body, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, "note_"+uuid.New().String(), lead.ID, lead.OrganizationID, body, lead.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AttachTags links tagIDs to leadID. Already-linked tags are ignored.
func (r *Repository) AttachTags(ctx context.Context, leadID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO lead_tags (lead_id, tag_id) VALUES (?, ?)`, leadID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns nil, nil when the lead does not exist in orgID. It and the
// List readers below are the read side of ingestion; the receive path only
// writes.
func (r *Repository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	var lead Lead
	var customStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, email, phone, company, source, value, status,
			custom_fields, endpoint_id, created_at, updated_at
		FROM leads WHERE id = ? AND organization_id = ?
	`, id, orgID).Scan(&lead.ID, &lead.OrganizationID, &lead.Name, &lead.Email, &lead.Phone, &lead.Company,
		&lead.Source, &lead.Value, &lead.Status, &customStr, &lead.EndpointID, &lead.CreatedAt, &lead.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(customStr), &lead.CustomFields); err != nil {
		return nil, fmt.Errorf("lead %s custom fields: %w", lead.ID, err)
	}
	return &lead, nil
}

func (r *Repository) ListNotes(ctx context.Context, leadID string) ([]*Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, organization_id, body, created_at
		FROM lead_notes WHERE lead_id = ? ORDER BY created_at, rowid
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []*Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.OrganizationID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (r *Repository) ListTagNames(ctx context.Context, leadID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name FROM lead_tags lt
		JOIN tags t ON t.id = lt.tag_id
		WHERE lt.lead_id = ?
		ORDER BY t.name
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// New builds a lead with a fresh id and the default status.
func New(orgID string) *Lead {
	now := time.Now().Unix()
	return &Lead{
		ID:             "lead_" + uuid.New().String(),
		OrganizationID: orgID,
		Source:         DefaultSource,
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func nonNilFields(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
