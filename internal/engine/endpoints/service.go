// Package endpoints manages tenant webhook endpoint configuration.
package endpoints

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"leadhook/internal/pkg/validator"
	"leadhook/internal/platform/models"
	"leadhook/internal/platform/repositories"
	"leadhook/internal/platform/secrets"
)

var (
	ErrEndpointNotFound       = errors.New("Webhook endpoint not found")
	ErrEndpointInactive       = errors.New("Webhook endpoint is inactive")
	// ErrTenantMismatch is returned when the endpoint exists under another
	// organization. Callers should answer as if it were not found.
	ErrTenantMismatch         = errors.New("endpoint belongs to another organization")
	ErrUnsupportedPayloadType = errors.New("unsupported payload type")
)

type CreateInput struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description" validate:"max=1000"`
	PayloadType string              `json:"payload_type"`
	Events      []string            `json:"events"`
	HeaderRules map[string]string   `json:"header_rules"`
	Retry       *models.RetryPolicy `json:"retry_config"`
	CreatedBy   string              `json:"-"`
}

func (in *CreateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	return validator.Struct(in)
}

// UpdateInput carries optional changes; nil fields are left alone.
type UpdateInput struct {
	Name        *string             `json:"name" validate:"omitnil,min=1,max=255"`
	Description *string             `json:"description" validate:"omitnil,max=1000"`
	PayloadType *string             `json:"payload_type"`
	Events      *[]string           `json:"events"`
	IsActive    *bool               `json:"is_active"`
	HeaderRules *map[string]string  `json:"header_rules"`
	Retry       *models.RetryPolicy `json:"retry_config"`
}

func (in *UpdateInput) normalize() error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	return validator.Struct(in)
}

// PayloadTypes reports which payload types may be configured on an endpoint.
type PayloadTypes interface {
	Has(name string) bool
	Names() []string
}

type Service struct {
	repo  *repositories.EndpointRepository
	box   *secrets.Box
	types PayloadTypes
}

func NewService(repo *repositories.EndpointRepository, box *secrets.Box, types PayloadTypes) *Service {
	return &Service{repo: repo, box: box, types: types}
}

// Create registers an endpoint and returns it with the plaintext secret.
// The plaintext is not retrievable afterwards.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*models.Endpoint, string, error) {
	if err := in.normalize(); err != nil {
		return nil, "", err
	}
	payloadType, err := s.payloadType(in.PayloadType)
	if err != nil {
		return nil, "", err
	}

	plain, err := secrets.Generate()
	if err != nil {
		return nil, "", err
	}
	sealed, err := s.box.Seal(plain)
	if err != nil {
		return nil, "", err
	}

	retry := models.RetryPolicy{MaxAttempts: 3, DelaySeconds: 60}
	if in.Retry != nil {
		retry = *in.Retry
	}

	now := time.Now().Unix()
	e := &models.Endpoint{
		ID:             "whe_" + uuid.New().String(),
		OrganizationID: orgID,
		Name:           in.Name,
		Description:    in.Description,
		Secret:         sealed,
		PayloadType:    payloadType,
		Events:         in.Events,
		IsActive:       true,
		HeaderRules:    in.HeaderRules,
		Retry:          retry,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if e.Events == nil {
		e.Events = []string{}
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, "", fmt.Errorf("create endpoint: %w", err)
	}
	return e, plain, nil
}

// Get returns the endpoint if orgID owns it.
func (s *Service) Get(ctx context.Context, orgID, id string) (*models.Endpoint, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEndpointNotFound
	}
	if e.OrganizationID != orgID {
		return nil, ErrTenantMismatch
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, orgID string) ([]*models.Endpoint, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

func (s *Service) Update(ctx context.Context, orgID, id string, in UpdateInput) (*models.Endpoint, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		e.Name = *in.Name
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.PayloadType != nil {
		pt, err := s.payloadType(*in.PayloadType)
		if err != nil {
			return nil, err
		}
		e.PayloadType = pt
	}
	if in.Events != nil {
		e.Events = *in.Events
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if in.HeaderRules != nil {
		e.HeaderRules = *in.HeaderRules
	}
	if in.Retry != nil {
		e.Retry = *in.Retry
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update endpoint: %w", err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, orgID, id)
}

// RotateSecret replaces the signing secret and returns the new plaintext once.
func (s *Service) RotateSecret(ctx context.Context, orgID, id string) (*models.Endpoint, string, error) {
	e, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, "", err
	}

	plain, err := secrets.Generate()
	if err != nil {
		return nil, "", err
	}
	sealed, err := s.box.Seal(plain)
	if err != nil {
		return nil, "", err
	}
	if err := s.repo.UpdateSecret(ctx, orgID, id, sealed); err != nil {
		return nil, "", fmt.Errorf("rotate secret: %w", err)
	}
	e.Secret = sealed
	return e, plain, nil
}

// Lookup resolves an endpoint for the public receive route, which has no
// caller tenant. Inactive endpoints are reported as ErrEndpointInactive
// together with the endpoint so the caller can still attribute the request.
func (s *Service) Lookup(ctx context.Context, id string) (*models.Endpoint, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEndpointNotFound
	}
	if !e.IsActive {
		return e, ErrEndpointInactive
	}
	return e, nil
}

// SigningSecret opens the endpoint's sealed secret. Endpoints without a
// secret return "".
func (s *Service) SigningSecret(e *models.Endpoint) (string, error) {
	return s.box.Open(e.Secret)
}

func (s *Service) RecordOutcome(ctx context.Context, id string, success bool) error {
	return s.repo.RecordOutcome(ctx, id, success, time.Now().Unix())
}

func (s *Service) payloadType(raw string) (string, error) {
	pt := strings.ToLower(strings.TrimSpace(raw))
	if pt == "" || s.types == nil || s.types.Has(pt) {
		return pt, nil
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedPayloadType, pt, strings.Join(s.types.Names(), ", "))
}
