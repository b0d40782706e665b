package repositories

import (
	"context"
	"database/sql"
	"strings"

	"leadhook/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, slug, name, db_file_path, plan_tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.DBFilePath, org.PlanTier, org.CreatedAt, org.UpdatedAt)
	return err
}

// GetByID returns nil, nil when the organization does not exist.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, db_file_path, plan_tier, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.DBFilePath, &org.PlanTier, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

// List returns organizations that have not been deleted.
func (r *OrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, db_file_path, plan_tier, created_at, updated_at, deleted_at
		FROM organizations WHERE deleted_at IS NULL ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Slug, &org.Name, &org.DBFilePath, &org.PlanTier, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, full_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.OrganizationID, user.Email, user.FullName, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, full_name, role, created_at, updated_at, deleted_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.OrganizationID, &u.Email, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListByRoles returns the live members of orgID holding any of roles.
func (r *UserRepository) ListByRoles(ctx context.Context, orgID string, roles ...string) ([]*models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roles)), ",")
	args := make([]interface{}, 0, len(roles)+1)
	args = append(args, orgID)
	for _, role := range roles {
		args = append(args, role)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, email, full_name, role, created_at, updated_at
		FROM users
		WHERE organization_id = ? AND deleted_at IS NULL AND role IN (`+placeholders+`)
		ORDER BY created_at
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
