// Package migrations ships the SQL schema for the global and per-tenant databases.
package migrations

import "embed"

//go:embed global/*.sql tenant/*.sql
var FS embed.FS

const (
	GlobalDir = "global"
	TenantDir = "tenant"
)
