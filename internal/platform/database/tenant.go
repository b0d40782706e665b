package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"leadhook/internal/platform/config"
	"leadhook/migrations"
)

// TenantDBPool holds one *sql.DB per organization. Each database is migrated
// to the tenant schema the first time it is opened by this process.
type TenantDBPool struct {
	pools  map[string]*sql.DB
	mu     sync.RWMutex
	config config.TenantDBConfig
}

func NewTenantDBPool(cfg config.TenantDBConfig) *TenantDBPool {
	return &TenantDBPool{
		pools:  make(map[string]*sql.DB),
		config: cfg,
	}
}

// Get returns the pooled handle for orgID. Relative dbPath values are
// resolved under the configured base path.
func (p *TenantDBPool) Get(orgID string, dbPath string) (*sql.DB, error) {
	p.mu.RLock()
	if db, exists := p.pools[orgID]; exists {
		p.mu.RUnlock()
		return db, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if db, exists := p.pools[orgID]; exists {
		return db, nil
	}

	if !filepath.IsAbs(dbPath) && p.config.BasePath != "" {
		dbPath = filepath.Join(p.config.BasePath, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create tenant db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}

	if p.config.MaxConnectionsPerOrg > 0 {
		db.SetMaxOpenConns(p.config.MaxConnectionsPerOrg)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := ApplyMigrations(db, migrations.FS, migrations.TenantDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tenant %s: %w", orgID, err)
	}

	p.pools[orgID] = db
	return db, nil
}

func (p *TenantDBPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, db := range p.pools {
		db.Close()
	}
	p.pools = make(map[string]*sql.DB)
}
