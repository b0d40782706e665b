package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"leadhook/internal/platform/config"
)

// sqliteDSN appends the pragmas every connection needs. busy_timeout lets
// concurrent writers wait instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	path = strings.TrimPrefix(path, "file:")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
}

func NewGlobalDB(cfg config.GlobalDBConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(cfg.URL))
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
