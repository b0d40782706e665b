package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/engine/endpoints"
	"leadhook/internal/engine/ingest"
	"leadhook/internal/platform/audit"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/models"
	"leadhook/internal/platform/repositories"
	"leadhook/internal/platform/secrets"
	"leadhook/internal/testutil"
)

type receiveFixture struct {
	handler  *ReceiveHandler
	router   *httprouter.Router
	globalDB *sql.DB
	svc      *endpoints.Service
	repo     *repositories.EndpointRepository
	auditLog *audit.Logger
	pool     *database.TenantDBPool
	endpoint *models.Endpoint
}

func newReceiveFixture(t *testing.T, cfg config.WebhooksConfig) *receiveFixture {
	t.Helper()
	ctx := context.Background()

	globalDB := testutil.GlobalDB(t)
	orgs := repositories.NewOrganizationRepository(globalDB)
	users := repositories.NewUserRepository(globalDB)
	require.NoError(t, orgs.Create(ctx, &models.Organization{ID: "org_1", Slug: "acme", Name: "Acme", DBFilePath: "org_1.db", PlanTier: "free", CreatedAt: 1, UpdatedAt: 1}))
	require.NoError(t, users.Create(ctx, &models.User{ID: "usr_1", OrganizationID: "org_1", Email: "owner@acme.test", Role: models.RoleOwner, CreatedAt: 1, UpdatedAt: 1}))

	pool := database.NewTenantDBPool(config.TenantDBConfig{BasePath: t.TempDir(), MaxConnectionsPerOrg: 1})
	t.Cleanup(pool.CloseAll)

	box := secrets.NewBox("test-key")
	registry := ingest.DefaultRegistry()
	repo := repositories.NewEndpointRepository(globalDB)
	svc := endpoints.NewService(repo, box, registry)

	e, _, err := svc.Create(ctx, "org_1", endpoints.CreateInput{Name: "Site form"})
	require.NoError(t, err)
	sealed, err := box.Seal("s3cr3t")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateSecret(ctx, "org_1", e.ID, sealed))

	auditLog := audit.NewLogger(globalDB)
	h := NewReceiveHandler(svc, orgs, users, pool, registry, auditLog, cfg)

	router := httprouter.New()
	router.POST("/webhooks/receive/:endpoint_id", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		h.Receive(w, r.WithContext(context.WithValue(r.Context(), apiContext.Params, ps)))
	})

	return &receiveFixture{handler: h, router: router, globalDB: globalDB, svc: svc, repo: repo, auditLog: auditLog, pool: pool, endpoint: e}
}

func (f *receiveFixture) post(t *testing.T, endpointID, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/receive/"+endpointID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *receiveFixture) logs(t *testing.T) []*audit.Record {
	t.Helper()
	records, err := f.auditLog.List(context.Background(), "org_1", f.endpoint.ID, 100, 0)
	require.NoError(t, err)
	return records
}

func (f *receiveFixture) tenantDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := f.pool.Get("org_1", "org_1.db")
	require.NoError(t, err)
	return db
}

func (f *receiveFixture) leadCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.tenantDB(t).QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&n))
	return n
}

func (f *receiveFixture) counters(t *testing.T) (total, ok, failed int64) {
	t.Helper()
	e, err := f.repo.GetByID(context.Background(), f.endpoint.ID)
	require.NoError(t, err)
	return e.TotalRequests, e.SuccessfulRequests, e.FailedRequests
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const adaBody = `{"name":"Ada Lovelace","email":"ada@example.com"}`

func TestReceive_ScenarioA_SignedLeadCreated(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, adaBody, map[string]string{
		"X-Webhook-Signature": "sha256=" + ingest.Sign("s3cr3t", []byte(adaBody)),
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decodeResponse(t, rr)
	assert.Equal(t, true, out["success"])
	results := out["results"].(map[string]interface{})
	assert.Equal(t, float64(1), results["created"])
	assert.Equal(t, float64(0), results["failed"])
	assert.NotContains(t, results, "errors")
	leadIDs := results["leadIds"].([]interface{})
	require.Len(t, leadIDs, 1)

	var source, status string
	require.NoError(t, f.tenantDB(t).QueryRow(`SELECT source, status FROM leads WHERE id = ?`, leadIDs[0]).Scan(&source, &status))
	assert.Equal(t, "webhook", source)
	assert.Equal(t, "new", status)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, http.StatusOK, logs[0].ResponseStatus)
	assert.Equal(t, leadIDs[0], logs[0].LeadID)
	assert.Equal(t, ingest.TypeGeneric, logs[0].Provider)
	assert.Equal(t, adaBody, logs[0].Body)
	assert.GreaterOrEqual(t, logs[0].ProcessingTimeMs, int64(0))

	var notifications int
	require.NoError(t, f.tenantDB(t).QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = 'usr_1'`).Scan(&notifications))
	assert.Equal(t, 1, notifications)

	total, ok, failed := f.counters(t)
	assert.Equal(t, [3]int64{1, 1, 0}, [3]int64{total, ok, failed})
}

func TestReceive_ScenarioB_BadSignature(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, adaBody, map[string]string{
		"X-Webhook-Signature": "sha256=" + ingest.Sign("wrong", []byte(adaBody)),
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid webhook signature", decodeResponse(t, rr)["error"])
	assert.Equal(t, 0, f.leadCount(t))

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, http.StatusUnauthorized, logs[0].ResponseStatus)

	total, ok, failed := f.counters(t)
	assert.Equal(t, [3]int64{1, 0, 1}, [3]int64{total, ok, failed})
}

func TestReceive_UnsignedIsAcceptedUnlessStrict(t *testing.T) {
	lenient := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})
	assert.Equal(t, http.StatusOK, lenient.post(t, lenient.endpoint.ID, adaBody, nil).Code)

	strict := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20, RequireSignature: true})
	assert.Equal(t, http.StatusUnauthorized, strict.post(t, strict.endpoint.ID, adaBody, nil).Code)
}

func TestReceive_ScenarioC_InvalidJSON(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, "not json", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid JSON payload", decodeResponse(t, rr)["error"])

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "Invalid JSON payload", logs[0].ErrorMessage)
	assert.Equal(t, "not json", logs[0].Body)
	assert.False(t, logs[0].Success)
}

func TestReceive_ScenarioD_TransformationError(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})
	payment := "payment"
	_, err := f.svc.Update(context.Background(), "org_1", f.endpoint.ID, endpoints.UpdateInput{PayloadType: &payment})
	require.NoError(t, err)

	rr := f.post(t, f.endpoint.ID, `{"amount":49,"currency":"usd"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	msg, _ := decodeResponse(t, rr)["error"].(string)
	assert.True(t, strings.HasPrefix(msg, "Data transformation failed: "), msg)
	assert.Contains(t, msg, "customer_id")
	assert.Equal(t, 0, f.leadCount(t))

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, ingest.TypePayment, logs[0].Provider)
}

func TestReceive_ScenarioE_PartialSuccess(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, `{"leads":[{"phone":"+100"},{"name":"Grace Hopper","email":"grace@example.com"}]}`, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	results := decodeResponse(t, rr)["results"].(map[string]interface{})
	assert.Equal(t, float64(1), results["created"])
	assert.Equal(t, float64(1), results["failed"])
	assert.Len(t, results["errors"], 1)
	assert.Equal(t, 1, f.leadCount(t))

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Contains(t, logs[0].ErrorMessage, "1 lead(s) failed")
}

func TestReceive_AllRecordsFail(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, `[{"phone":"1"},{"email":"nope"}]`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	out := decodeResponse(t, rr)
	assert.Equal(t, false, out["success"])
	results := out["results"].(map[string]interface{})
	assert.Equal(t, float64(0), results["created"])
	assert.Equal(t, float64(2), results["failed"])

	total, ok, failed := f.counters(t)
	assert.Equal(t, [3]int64{1, 0, 1}, [3]int64{total, ok, failed})
}

func TestReceive_NotFoundAndInactive(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, "whe_missing", adaBody, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Webhook endpoint not found", decodeResponse(t, rr)["error"])

	unknown, err := f.auditLog.List(context.Background(), audit.Unknown, "whe_missing", 10, 0)
	require.NoError(t, err)
	require.Len(t, unknown, 1)
	assert.Equal(t, http.StatusNotFound, unknown[0].ResponseStatus)

	inactive := false
	_, err = f.svc.Update(context.Background(), "org_1", f.endpoint.ID, endpoints.UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	rr = f.post(t, f.endpoint.ID, adaBody, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 0, f.leadCount(t))

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "Webhook endpoint is inactive", logs[0].ErrorMessage)
}

func TestReceive_DeletedOrganizationIsNotFound(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})
	db := f.tenantDB(t)
	_, err := f.globalDB.Exec(`UPDATE organizations SET deleted_at = 5 WHERE id = 'org_1'`)
	require.NoError(t, err)

	rr := f.post(t, f.endpoint.ID, adaBody, map[string]string{
		"X-Webhook-Signature": "sha256=" + ingest.Sign("s3cr3t", []byte(adaBody)),
	})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Webhook endpoint not found", decodeResponse(t, rr)["error"])

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&n))
	assert.Zero(t, n)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "org_1", logs[0].OrganizationID)
	assert.Equal(t, http.StatusNotFound, logs[0].ResponseStatus)
	assert.Equal(t, "organization is deleted", logs[0].ErrorMessage)

	total, ok, failed := f.counters(t)
	assert.Equal(t, [3]int64{1, 0, 1}, [3]int64{total, ok, failed})
}

func TestReceive_NonFiniteValueIsRejected(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})

	rr := f.post(t, f.endpoint.ID, `{"name":"Inf","value":"Infinity"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	results := decodeResponse(t, rr)["results"].(map[string]interface{})
	assert.Equal(t, float64(0), results["created"])
	assert.Equal(t, float64(1), results["failed"])
	assert.Equal(t, 0, f.leadCount(t))
}

func TestReceive_BodyTooLarge(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 16})

	rr := f.post(t, f.endpoint.ID, adaBody, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].Body, 16)
}

type panickingTenants struct{}

func (panickingTenants) Get(orgID, dbPath string) (*sql.DB, error) {
	panic("tenant pool corrupted")
}

func TestReceive_PanicIsAuditedAs500(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})
	f.handler.tenants = panickingTenants{}

	rr := f.post(t, f.endpoint.ID, adaBody, nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeResponse(t, rr)["error"])

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].ErrorMessage, "tenant pool corrupted")
	assert.Equal(t, ingest.TypeGeneric, logs[0].Provider)

	total, ok, failed := f.counters(t)
	assert.Equal(t, [3]int64{1, 0, 1}, [3]int64{total, ok, failed})
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, orgID, leadID, summary string) error {
	return errors.New("notifications table is read-only")
}

type failingAudit struct{ calls int }

func (a *failingAudit) Record(ctx context.Context, rec *audit.Record) error {
	a.calls++
	return errors.New("audit db unavailable")
}

func TestReceive_SideChannelFailuresDoNotChangeResponse(t *testing.T) {
	f := newReceiveFixture(t, config.WebhooksConfig{MaxBodyBytes: 1 << 20})
	fa := &failingAudit{}
	f.handler.audit = fa
	f.handler.newNotifier = func(*sql.DB) ingest.Notifier { return failingNotifier{} }

	rr := f.post(t, f.endpoint.ID, adaBody, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	results := decodeResponse(t, rr)["results"].(map[string]interface{})
	assert.Equal(t, float64(1), results["created"])
	assert.Equal(t, float64(0), results["failed"])
	assert.Equal(t, 1, fa.calls)
}

func TestReadBody(t *testing.T) {
	data, tooLarge, err := readBody(bytes.NewReader([]byte("12345")), 5)
	require.NoError(t, err)
	assert.False(t, tooLarge)
	assert.Equal(t, "12345", string(data))

	data, tooLarge, err = readBody(bytes.NewReader([]byte("123456")), 5)
	require.NoError(t, err)
	assert.True(t, tooLarge)
	assert.Equal(t, "12345", string(data))
}
