package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/engine/endpoints"
	apperrors "leadhook/internal/pkg/errors"
	"leadhook/internal/pkg/validator"
	"leadhook/internal/platform/audit"
	"leadhook/internal/platform/models"
)

// EndpointHandler serves the endpoint management API. The caller's tenant
// comes from the tenant middleware.
type EndpointHandler struct {
	svc        *endpoints.Service
	auditLog   *audit.Logger
	apiBaseURL string
}

func NewEndpointHandler(svc *endpoints.Service, auditLog *audit.Logger, apiBaseURL string) *EndpointHandler {
	return &EndpointHandler{
		svc:        svc,
		auditLog:   auditLog,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
	}
}

type endpointView struct {
	*models.Endpoint
	ReceiveURL string `json:"receive_url"`
	HasSecret  bool   `json:"has_secret"`
	// Secret is only set on create and rotate.
	Secret string `json:"secret,omitempty"`
}

func (h *EndpointHandler) view(e *models.Endpoint) endpointView {
	return endpointView{
		Endpoint:   e,
		ReceiveURL: h.apiBaseURL + "/webhooks/receive/" + e.ID,
		HasSecret:  e.HasSecret(),
	}
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	list, err := h.svc.List(r.Context(), tenant.OrgID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	views := make([]endpointView, 0, len(list))
	for _, e := range list {
		views = append(views, h.view(e))
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{"endpoints": views})
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	var in endpoints.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if claims, ok := apiContext.ClaimsFrom(r.Context()); ok {
		in.CreatedBy = claims.UserID
	}

	e, secret, err := h.svc.Create(r.Context(), tenant.OrgID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	log.Info().Str("endpoint_id", e.ID).Str("organization_id", tenant.OrgID).Msg("webhook endpoint created")

	v := h.view(e)
	v.Secret = secret
	apperrors.WriteJSON(w, http.StatusCreated, v)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	e, err := h.svc.Get(r.Context(), tenant.OrgID, apiContext.Param(r.Context(), "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, h.view(e))
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	var in endpoints.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	e, err := h.svc.Update(r.Context(), tenant.OrgID, apiContext.Param(r.Context(), "id"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, h.view(e))
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())
	id := apiContext.Param(r.Context(), "id")

	if err := h.svc.Delete(r.Context(), tenant.OrgID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	log.Info().Str("endpoint_id", id).Str("organization_id", tenant.OrgID).Msg("webhook endpoint deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *EndpointHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	e, secret, err := h.svc.RotateSecret(r.Context(), tenant.OrgID, apiContext.Param(r.Context(), "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	v := h.view(e)
	v.Secret = secret
	apperrors.WriteJSON(w, http.StatusOK, v)
}

// Logs lists the audit records of one endpoint, newest first.
func (h *EndpointHandler) Logs(w http.ResponseWriter, r *http.Request) {
	tenant, _ := apiContext.TenantFrom(r.Context())

	e, err := h.svc.Get(r.Context(), tenant.OrgID, apiContext.Param(r.Context(), "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	page, limit, offset := pagination(r)
	records, err := h.auditLog.List(r.Context(), tenant.OrgID, e.ID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  records,
		"page":  page,
		"limit": limit,
	})
}

func (h *EndpointHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, endpoints.ErrEndpointNotFound), errors.Is(err, endpoints.ErrTenantMismatch):
		apperrors.WriteError(w, http.StatusNotFound, apperrors.ErrCodeNotFound, endpoints.ErrEndpointNotFound.Error(), nil)
	case errors.Is(err, endpoints.ErrUnsupportedPayloadType), errors.As(err, new(*validator.ValidationError)):
		apperrors.WriteValidation(w, err)
	default:
		log.Error().Err(err).Msg("endpoint management request failed")
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Internal server error", nil)
	}
}
