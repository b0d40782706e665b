package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"leadhook/internal/pkg/validator"
	"leadhook/internal/platform/auth"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/models"
	"leadhook/internal/platform/repositories"
)

type orgInput struct {
	Slug     string `json:"slug" validate:"required,max=63"`
	Name     string `json:"name" validate:"required,max=255"`
	PlanTier string `json:"plan_tier" validate:"oneof=free pro enterprise"`
}

type userInput struct {
	OrgID    string `json:"org" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"name" validate:"max=255"`
	Role     string `json:"role" validate:"oneof=owner admin member"`
}

type provisioner struct {
	orgs   *repositories.OrganizationRepository
	users  *repositories.UserRepository
	pool   *database.TenantDBPool
	tokens *auth.TokenService
}

// createOrg registers the organization and creates its tenant database.
func (p *provisioner) createOrg(ctx context.Context, in orgInput) (*models.Organization, error) {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if in.PlanTier == "" {
		in.PlanTier = "free"
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	id := "org_" + uuid.New().String()
	org := &models.Organization{
		ID:         id,
		Slug:       in.Slug,
		Name:       in.Name,
		DBFilePath: id + ".db",
		PlanTier:   in.PlanTier,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	if _, err := p.pool.Get(org.ID, org.DBFilePath); err != nil {
		return nil, fmt.Errorf("create tenant database: %w", err)
	}
	return org, nil
}

func (p *provisioner) createUser(ctx context.Context, in userInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = models.RoleMember
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	org, err := p.orgs.GetByID(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil || org.DeletedAt != nil {
		return nil, fmt.Errorf("organization %s not found", in.OrgID)
	}

	now := time.Now().Unix()
	user := &models.User{
		ID:             "usr_" + uuid.New().String(),
		OrganizationID: org.ID,
		Email:          in.Email,
		FullName:       in.FullName,
		Role:           in.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// mintToken issues an access token for an existing user. Interactive login
// lives outside this service.
func (p *provisioner) mintToken(ctx context.Context, userID string) (string, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.DeletedAt != nil {
		return "", fmt.Errorf("user %s not found", userID)
	}
	return p.tokens.GenerateAccessToken(user.ID, user.OrganizationID, user.Role, user.Email)
}
