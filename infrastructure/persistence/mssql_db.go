package persistence

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"newshub/infrastructure/configuration"

	_ "github.com/microsoft/go-mssqldb"
)

func mssqlDSN(cfg configuration.Db) string {
	q := url.Values{}
	if cfg.Name != "" {
		q.Set("database", cfg.Name)
	}
	// Azure SQL requires encryption; local containers run with a self-signed cert
	q.Set("encrypt", "true")
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		q.Set("TrustServerCertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

// NewMSSQLDB opens a sql.DB against Azure SQL / SQL Server and verifies the
// connection before returning it.
func NewMSSQLDB() (*sql.DB, error) {
	db, err := sql.Open("sqlserver", mssqlDSN(configuration.C.Database.Mssql))
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(time.Minute)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
