// Package notify writes in-app notifications for tenant admins.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"leadhook/internal/platform/models"
)

const KindLeadCreated = "lead.created"

type Recipients interface {
	ListByRoles(ctx context.Context, orgID string, roles ...string) ([]*models.User, error)
}

type Notification struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	ResourceID     string `json:"resource_id"`
	ReadAt         *int64 `json:"read_at,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// Dispatcher fans a lead event out to every admin and owner of the tenant.
type Dispatcher struct {
	users    Recipients
	tenantDB *sql.DB
}

func NewDispatcher(users Recipients, tenantDB *sql.DB) *Dispatcher {
	return &Dispatcher{users: users, tenantDB: tenantDB}
}

func (d *Dispatcher) Notify(ctx context.Context, orgID, leadID, summary string) error {
	recipients, err := d.users.ListByRoles(ctx, orgID, models.RoleAdmin, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	now := time.Now().Unix()
	var firstErr error
	for _, u := range recipients {
		n := &Notification{
			ID:             "ntf_" + uuid.New().String(),
			OrganizationID: orgID,
			UserID:         u.ID,
			Kind:           KindLeadCreated,
			Title:          "New lead received",
			Body:           summary,
			ResourceID:     leadID,
			CreatedAt:      now,
		}
		if err := d.insert(ctx, n); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("notify user %s: %w", u.ID, err)
		}
	}
	return firstErr
}

func (d *Dispatcher) insert(ctx context.Context, n *Notification) error {
	_, err := d.tenantDB.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, user_id, kind, title, body, resource_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OrganizationID, n.UserID, n.Kind, n.Title, n.Body, n.ResourceID, n.CreatedAt)
	return err
}

// ListForUser returns the newest notifications addressed to userID. The
// dispatcher only writes; this is the read side for whatever shows them.
func (d *Dispatcher) ListForUser(ctx context.Context, orgID, userID string, limit int) ([]*Notification, error) {
	rows, err := d.tenantDB.QueryContext(ctx, `
		SELECT id, organization_id, user_id, kind, title, body, resource_id, read_at, created_at
		FROM notifications
		WHERE organization_id = ? AND user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, orgID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*Notification{}
	for rows.Next() {
		var n Notification
		var readAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.ResourceID, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			v := readAt.Int64
			n.ReadAt = &v
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}
