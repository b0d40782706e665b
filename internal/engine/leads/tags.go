package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const DefaultTagColor = "#6B7280"

// ErrTagExists is returned by TagStore.Create when (organization, name) is taken.
var ErrTagExists = errors.New("tag already exists")

type TagStore interface {
	// FindByName returns nil, nil when no tag matches.
	FindByName(ctx context.Context, orgID, name string) (*Tag, error)
	Create(ctx context.Context, tag *Tag) error
}

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) FindByName(ctx context.Context, orgID, name string) (*Tag, error) {
	var t Tag
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, color, created_at
		FROM tags WHERE organization_id = ? AND name = ?
	`, orgID, name).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TagRepository) Create(ctx context.Context, tag *Tag) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (id, organization_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, tag.ID, tag.OrganizationID, tag.Name, tag.Color, tag.CreatedAt)
	if isUniqueViolation(err) {
		return ErrTagExists
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Resolver maps tag names to tag ids, creating missing tags. Concurrent
// resolvers rely on the unique index: the loser of a create race reads the
// winner's row.
type Resolver struct {
	store TagStore
	color string
}

func NewResolver(store TagStore, defaultColor string) *Resolver {
	if defaultColor == "" {
		defaultColor = DefaultTagColor
	}
	return &Resolver{store: store, color: defaultColor}
}

// Resolve returns one id per distinct non-blank name, in first-seen order.
// Names are trimmed and compared case-sensitively.
func (r *Resolver) Resolve(ctx context.Context, orgID string, names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	ids := make([]string, 0, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		id, err := r.resolveOne(ctx, orgID, name)
		if err != nil {
			return ids, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Resolver) resolveOne(ctx context.Context, orgID, name string) (string, error) {
	existing, err := r.store.FindByName(ctx, orgID, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	tag := &Tag{
		ID:             "tag_" + uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Color:          r.color,
		CreatedAt:      time.Now().Unix(),
	}
	err = r.store.Create(ctx, tag)
	if err == nil {
		return tag.ID, nil
	}
	if !errors.Is(err, ErrTagExists) {
		return "", err
	}

	// Lost the race; the other writer's row is authoritative.
	existing, err = r.store.FindByName(ctx, orgID, name)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", fmt.Errorf("tag %q conflicted but could not be read back", name)
	}
	return existing.ID, nil
}
