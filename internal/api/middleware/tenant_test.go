package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/platform/auth"
	"leadhook/internal/platform/repositories"
)

var orgColumns = []string{"id", "slug", "name", "db_file_path", "plan_tier", "created_at", "updated_at", "deleted_at"}

func TestTenantMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	orgRepo := repositories.NewOrganizationRepository(db)
	middleware := NewTenantMiddleware(orgRepo)

	withClaims := func(orgID string) *http.Request {
		req, _ := http.NewRequest("GET", "/", nil)
		ctx := context.WithValue(req.Context(), apiContext.Claims, &auth.Claims{OrganizationID: orgID})
		return req.WithContext(ctx)
	}

	t.Run("Valid Tenant", func(t *testing.T) {
		rows := sqlmock.NewRows(orgColumns).
			AddRow("org_123", "test-org", "Test Org", "org_123.db", "enterprise", 1234567890, 1234567890, nil)
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_123").
			WillReturnRows(rows)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := apiContext.TenantFrom(r.Context())
			if !ok {
				t.Fatal("Expected tenant context")
			}
			if tenant.OrgID != "org_123" {
				t.Errorf("Expected OrgID org_123, got %s", tenant.OrgID)
			}
			if tenant.OrgSlug != "test-org" {
				t.Errorf("Expected OrgSlug test-org, got %s", tenant.OrgSlug)
			}
			w.WriteHeader(http.StatusOK)
		})

		handler.ServeHTTP(rr, withClaims("org_123"))

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Invalid Tenant", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_999").
			WillReturnError(sql.ErrNoRows)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, withClaims("org_999"))

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Deleted Tenant", func(t *testing.T) {
		rows := sqlmock.NewRows(orgColumns).
			AddRow("org_gone", "gone", "Gone", "org_gone.db", "free", 1, 1, 5)
		mock.ExpectQuery("SELECT (.+) FROM organizations WHERE id = ?").
			WithArgs("org_gone").
			WillReturnRows(rows)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		})

		handler.ServeHTTP(rr, withClaims("org_gone"))

		if rr.Code != http.StatusForbidden {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("Missing Claims", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		rr := httptest.NewRecorder()
		middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not be called")
		}).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
