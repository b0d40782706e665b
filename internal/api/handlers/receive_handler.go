package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/engine/endpoints"
	"leadhook/internal/engine/ingest"
	"leadhook/internal/engine/leads"
	"leadhook/internal/engine/notify"
	apperrors "leadhook/internal/pkg/errors"
	"leadhook/internal/platform/audit"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/metrics"
	"leadhook/internal/platform/models"
	"leadhook/internal/platform/repositories"
)

type AuditRecorder interface {
	Record(ctx context.Context, rec *audit.Record) error
}

type TenantDBs interface {
	Get(orgID, dbPath string) (*sql.DB, error)
}

// ReceiveHandler serves the public ingestion route. Every request ends in
// finish, which updates the endpoint counters, then writes the audit record
// and the response.
type ReceiveHandler struct {
	endpoints *endpoints.Service
	orgs      *repositories.OrganizationRepository
	users     *repositories.UserRepository
	tenants   TenantDBs
	registry  *ingest.Registry
	audit     AuditRecorder
	verifier  ingest.Verifier
	cfg       config.WebhooksConfig

	newNotifier func(tenantDB *sql.DB) ingest.Notifier
}

func NewReceiveHandler(
	svc *endpoints.Service,
	orgs *repositories.OrganizationRepository,
	users *repositories.UserRepository,
	tenants TenantDBs,
	registry *ingest.Registry,
	auditLog AuditRecorder,
	cfg config.WebhooksConfig,
) *ReceiveHandler {
	h := &ReceiveHandler{
		endpoints: svc,
		orgs:      orgs,
		users:     users,
		tenants:   tenants,
		registry:  registry,
		audit:     auditLog,
		verifier:  ingest.Verifier{RequireSignature: cfg.RequireSignature},
		cfg:       cfg,
	}
	h.newNotifier = func(db *sql.DB) ingest.Notifier {
		return notify.NewDispatcher(users, db)
	}
	return h
}

type receiveResults struct {
	Created int                  `json:"created"`
	Failed  int                  `json:"failed"`
	LeadIDs []string             `json:"leadIds,omitempty"`
	Errors  []ingest.RecordError `json:"errors,omitempty"`
}

type receiveResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Results receiveResults `json:"results"`
}

type errorBody struct {
	Error string `json:"error"`
}

// receiveState is what the pipeline decided; finish turns it into side effects.
type receiveState struct {
	status    int
	body      interface{}
	outcome   string
	errMsg    string
	signature string
	endpoint  *models.Endpoint
}

func (s *receiveState) reject(status int, outcome, msg string) {
	s.status = status
	s.outcome = outcome
	s.errMsg = msg
	s.body = errorBody{Error: msg}
}

func (h *ReceiveHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := context.WithoutCancel(r.Context())

	rec := &audit.Record{
		EndpointID: apiContext.Param(r.Context(), "endpoint_id"),
		Method:     r.Method,
		URL:        r.URL.RequestURI(),
		Headers:    flattenHeaders(r.Header),
		UserAgent:  r.UserAgent(),
		IPAddress:  clientIP(r),
	}
	st := &receiveState{}

	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("endpoint_id", rec.EndpointID).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("webhook handler panicked")
			st.reject(http.StatusInternalServerError, metrics.OutcomeInternalError, "Internal server error")
			st.errMsg = fmt.Sprintf("panic: %v", p)
		}
		h.finish(ctx, w, rec, st, start)
	}()

	h.process(ctx, r, rec, st)
}

func (h *ReceiveHandler) process(ctx context.Context, r *http.Request, rec *audit.Record, st *receiveState) {
	body, tooLarge, err := readBody(r.Body, h.cfg.MaxBodyBytes)
	rec.Body = string(body)
	if err != nil {
		st.reject(http.StatusBadRequest, metrics.OutcomeBadPayload, ingest.ErrMalformedPayload.Error())
		st.errMsg = "read body: " + err.Error()
		return
	}

	endpoint, err := h.endpoints.Lookup(ctx, rec.EndpointID)
	if endpoint != nil {
		st.endpoint = endpoint
		rec.OrganizationID = endpoint.OrganizationID
	}
	switch {
	case errors.Is(err, endpoints.ErrEndpointNotFound):
		st.reject(http.StatusNotFound, metrics.OutcomeNotFound, endpoints.ErrEndpointNotFound.Error())
		return
	case errors.Is(err, endpoints.ErrEndpointInactive):
		st.reject(http.StatusNotFound, metrics.OutcomeInactive, endpoints.ErrEndpointNotFound.Error())
		st.errMsg = endpoints.ErrEndpointInactive.Error()
		return
	case err != nil:
		h.internal(st, "lookup endpoint", err)
		return
	}

	org, err := h.orgs.GetByID(ctx, endpoint.OrganizationID)
	if err != nil || org == nil {
		if err == nil {
			err = fmt.Errorf("organization %s not found", endpoint.OrganizationID)
		}
		h.internal(st, "load organization", err)
		return
	}
	if org.DeletedAt != nil {
		st.reject(http.StatusNotFound, metrics.OutcomeNotFound, endpoints.ErrEndpointNotFound.Error())
		st.errMsg = "organization is deleted"
		return
	}

	if tooLarge {
		st.reject(http.StatusRequestEntityTooLarge, metrics.OutcomePayloadTooLarge, ingest.ErrPayloadTooLarge.Error())
		return
	}

	secret, err := h.endpoints.SigningSecret(endpoint)
	if err != nil {
		h.internal(st, "open signing secret", err)
		return
	}
	verification := h.verifier.Verify(body, r.Header, secret)
	st.signature = verification.String()
	if !verification.OK() {
		st.reject(http.StatusUnauthorized, metrics.OutcomeBadSignature, ingest.ErrInvalidSignature.Error())
		return
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		st.reject(http.StatusBadRequest, metrics.OutcomeBadPayload, ingest.ErrMalformedPayload.Error())
		return
	}

	payloadType := h.registry.DetectType(endpoint.PayloadType, r.Header, payload)
	rec.Provider = payloadType

	result, err := h.registry.Transform(payloadType, payload, ingest.RequestMeta{
		EndpointID:   endpoint.ID,
		EndpointName: endpoint.Name,
		Headers:      r.Header,
		HeaderRules:  endpoint.HeaderRules,
	})
	if err != nil {
		st.reject(http.StatusBadRequest, metrics.OutcomeTransformFailed, "Data transformation failed: "+err.Error())
		return
	}

	tenantDB, err := h.tenants.Get(org.ID, org.DBFilePath)
	if err != nil {
		h.internal(st, "open tenant database", err)
		return
	}

	coordinator := ingest.NewCoordinator(
		leads.NewRepository(tenantDB),
		leads.NewResolver(leads.NewTagRepository(tenantDB), h.cfg.DefaultTagColor),
		h.newNotifier(tenantDB),
	)
	out := coordinator.Ingest(ctx, ingest.Batch{
		OrgID:    org.ID,
		Endpoint: endpoint,
		Provider: result.Provider,
		Leads:    result.Leads,
	})

	results := receiveResults{
		Created: len(out.Created),
		Failed:  len(out.Errors),
		LeadIDs: out.LeadIDs(),
	}
	if len(out.Errors) > 0 {
		results.Errors = out.Errors
		st.errMsg = summarizeRecordErrors(out.Errors)
	}

	if !out.Success() {
		st.status = http.StatusBadRequest
		st.outcome = metrics.OutcomeNoLeadsCreated
		if st.errMsg == "" {
			st.errMsg = "No leads created"
		}
		st.body = receiveResponse{Success: false, Message: "No leads were created", Results: results}
		return
	}

	rec.LeadID = out.Created[0].ID
	st.status = http.StatusOK
	st.outcome = metrics.OutcomeSuccess
	st.body = receiveResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d lead(s) from %s", len(out.Created), result.Provider),
		Results: results,
	}
}

func (h *ReceiveHandler) internal(st *receiveState, op string, err error) {
	log.Error().Err(err).Msg("webhook " + op + " failed")
	st.reject(http.StatusInternalServerError, metrics.OutcomeInternalError, "Internal server error")
	st.errMsg = op + ": " + err.Error()
}

func (h *ReceiveHandler) finish(ctx context.Context, w http.ResponseWriter, rec *audit.Record, st *receiveState, start time.Time) {
	elapsed := time.Since(start)

	rec.ResponseStatus = st.status
	rec.Success = st.status == http.StatusOK
	rec.ErrorMessage = st.errMsg
	rec.ProcessingTimeMs = elapsed.Milliseconds()

	if st.endpoint != nil {
		if err := h.endpoints.RecordOutcome(ctx, st.endpoint.ID, rec.Success); err != nil {
			log.Error().Err(err).Str("endpoint_id", st.endpoint.ID).Msg("failed to update endpoint counters")
		}
	}
	if err := h.audit.Record(ctx, rec); err != nil {
		log.Error().Err(err).
			Str("endpoint_id", rec.EndpointID).
			Str("organization_id", rec.OrganizationID).
			Msg("failed to write webhook audit record")
	}
	metrics.ObserveRequest(rec.Provider, st.outcome, elapsed.Seconds())

	log.Info().
		Str("endpoint_id", rec.EndpointID).
		Str("organization_id", rec.OrganizationID).
		Str("provider", rec.Provider).
		Str("lead_id", rec.LeadID).
		Str("signature", st.signature).
		Int("status", st.status).
		Dur("elapsed", elapsed).
		Msg("webhook processed")

	apperrors.WriteJSON(w, st.status, st.body)
}

// readBody reads at most limit bytes. tooLarge reports that more were sent;
// the returned bytes are then truncated to limit.
func readBody(body io.Reader, limit int64) (data []byte, tooLarge bool, err error) {
	if body == nil {
		return nil, false, nil
	}
	if limit <= 0 {
		data, err = io.ReadAll(body)
		return data, false, err
	}
	data, err = io.ReadAll(io.LimitReader(body, limit+1))
	if int64(len(data)) > limit {
		return data[:limit], true, err
	}
	return data, false, err
}

func summarizeRecordErrors(errs []ingest.RecordError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Lead+": "+e.Error)
	}
	return fmt.Sprintf("%d lead(s) failed: %s", len(errs), strings.Join(parts, "; "))
}
