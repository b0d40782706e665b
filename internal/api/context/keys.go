package context

import (
	"context"

	"github.com/julienschmidt/httprouter"
	"leadhook/internal/platform/auth"
)

type Key string

const (
	Claims Key = "claims"
	Tenant Key = "tenant"
	Params Key = "params"
)

// TenantContext is the caller's organization.
type TenantContext struct {
	OrgID   string
	OrgSlug string
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(Claims).(*auth.Claims)
	return c, ok && c != nil
}

func TenantFrom(ctx context.Context) (*TenantContext, bool) {
	t, ok := ctx.Value(Tenant).(*TenantContext)
	return t, ok && t != nil
}

// Param returns the named route parameter, or "".
func Param(ctx context.Context, name string) string {
	ps, _ := ctx.Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
