package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leadhook/internal/platform/auth"
	"leadhook/internal/platform/config"
	"leadhook/internal/platform/database"
	"leadhook/internal/platform/repositories"
	"leadhook/internal/testutil"
)

func newProvisioner(t *testing.T) *provisioner {
	t.Helper()
	db := testutil.GlobalDB(t)
	pool := database.NewTenantDBPool(config.TenantDBConfig{BasePath: t.TempDir()})
	t.Cleanup(pool.CloseAll)
	return &provisioner{
		orgs:   repositories.NewOrganizationRepository(db),
		users:  repositories.NewUserRepository(db),
		pool:   pool,
		tokens: auth.NewTokenService(config.JWTConfig{Secret: "s", AccessTokenTTL: time.Minute}),
	}
}

func TestProvisioner_OrgUserToken(t *testing.T) {
	p := newProvisioner(t)
	ctx := context.Background()

	org, err := p.createOrg(ctx, orgInput{Slug: " Acme ", Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Slug)
	assert.Equal(t, "free", org.PlanTier)

	tenantDB, err := p.pool.Get(org.ID, org.DBFilePath)
	require.NoError(t, err)
	var n int
	require.NoError(t, tenantDB.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&n))

	user, err := p.createUser(ctx, userInput{OrgID: org.ID, Email: "Owner@Acme.test", Role: "owner"})
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.test", user.Email)

	tok, err := p.mintToken(ctx, user.ID)
	require.NoError(t, err)
	claims, err := p.tokens.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, org.ID, claims.OrganizationID)
	assert.Equal(t, "owner", claims.Role)
}

func TestProvisioner_RejectsBadInput(t *testing.T) {
	p := newProvisioner(t)
	ctx := context.Background()

	_, err := p.createOrg(ctx, orgInput{Slug: "x", Name: "X", PlanTier: "platinum"})
	assert.Error(t, err)

	_, err = p.createUser(ctx, userInput{OrgID: "org_missing", Email: "a@b.test"})
	assert.ErrorContains(t, err, "not found")

	_, err = p.createUser(ctx, userInput{OrgID: "org_x", Email: "not-an-email"})
	assert.Error(t, err)

	_, err = p.mintToken(ctx, "usr_missing")
	assert.ErrorContains(t, err, "not found")
}
