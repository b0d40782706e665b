package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/pkg/errors"
	"leadhook/internal/platform/repositories"
)

type TenantMiddleware struct {
	orgRepo *repositories.OrganizationRepository
}

func NewTenantMiddleware(orgRepo *repositories.OrganizationRepository) *TenantMiddleware {
	return &TenantMiddleware{orgRepo: orgRepo}
}

// Handle resolves the caller's live organization from its claims. It must run
// after AuthMiddleware. Endpoint configuration and audit rows live in the
// global database, so the tenant database is not opened here.
func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := apiContext.ClaimsFrom(r.Context())
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		org, err := m.orgRepo.GetByID(r.Context(), claims.OrganizationID)
		if err != nil {
			log.Error().Err(err).Str("organization_id", claims.OrganizationID).Msg("failed to load organization")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load organization", nil)
			return
		}
		if org == nil || org.DeletedAt != nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &apiContext.TenantContext{
			OrgID:   org.ID,
			OrgSlug: org.Slug,
		})

		next(w, r.WithContext(ctx))
	}
}
