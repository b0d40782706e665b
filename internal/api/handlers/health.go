package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	apperrors "leadhook/internal/pkg/errors"
)

type HealthHandler struct {
	globalDB *sql.DB
}

func NewHealthHandler(globalDB *sql.DB) *HealthHandler {
	return &HealthHandler{globalDB: globalDB}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"global_db": "healthy"}
	status := "healthy"
	if err := h.globalDB.PingContext(ctx); err != nil {
		checks["global_db"] = "unhealthy: " + err.Error()
		status = "degraded"
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	apperrors.WriteJSON(w, statusCode, struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	})
}
