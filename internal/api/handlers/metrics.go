package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsHandler struct {
	next http.Handler
}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{next: promhttp.Handler()}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(w, r)
}
