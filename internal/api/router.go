package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/api/handlers"
	"leadhook/internal/api/middleware"
	"leadhook/internal/pkg/errors"
)

type Dependencies struct {
	ReceiveHandler   *handlers.ReceiveHandler
	EndpointHandler  *handlers.EndpointHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Public ingestion; authenticated by endpoint id and signature only
	router.POST("/webhooks/receive/:endpoint_id", wrap(deps.ReceiveHandler.Receive))

	router.GET("/healthz", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	read := deps.RateLimiter.Handle(middleware.LimitAPIRead)
	write := deps.RateLimiter.Handle(middleware.LimitAPIWrite)
	admin := requireRole("admin", "owner")

	// Endpoint management
	router.GET("/api/v1/webhooks",
		chain(deps.EndpointHandler.List, authMid.Handle, tenantMid.Handle, admin, read))
	router.POST("/api/v1/webhooks",
		chain(deps.EndpointHandler.Create, authMid.Handle, tenantMid.Handle, admin, write))
	router.GET("/api/v1/webhooks/:id",
		chain(deps.EndpointHandler.Get, authMid.Handle, tenantMid.Handle, admin, read))
	router.PUT("/api/v1/webhooks/:id",
		chain(deps.EndpointHandler.Update, authMid.Handle, tenantMid.Handle, admin, write))
	router.DELETE("/api/v1/webhooks/:id",
		chain(deps.EndpointHandler.Delete, authMid.Handle, tenantMid.Handle, admin, write))
	router.POST("/api/v1/webhooks/:id/rotate-secret",
		chain(deps.EndpointHandler.RotateSecret, authMid.Handle, tenantMid.Handle, admin, write))
	router.GET("/api/v1/webhooks/:id/logs",
		chain(deps.EndpointHandler.Logs, authMid.Handle, tenantMid.Handle, admin, read))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := apiContext.ClaimsFrom(r.Context())
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Authentication required", nil)
				return
			}

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
