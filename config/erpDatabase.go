package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

var (
	erpDB *gorm.DB
)

// GetERPDB returns the read-only connection to the ERP (Flexx) SQL Server database.
func GetERPDB() *gorm.DB {
	return erpDB
}

// ConnectERPDatabase opens the ERP pool without pinging it: the ERP is an
// external system that may be offline, and an unreachable ERP must only fail
// the check calls that need it, never the process start.
func ConnectERPDatabase() error {
	host := strings.TrimSpace(os.Getenv("DB_SERVER_ERP"))
	if host == "" {
		return fmt.Errorf("DB_SERVER_ERP not set")
	}
	port := strings.TrimSpace(os.Getenv("DB_PORT_ERP"))
	if port == "" {
		port = "1433"
	}

	query := url.Values{}
	query.Set("database", os.Getenv("DB_DATABASE_ERP"))
	query.Set("encrypt", "disable")
	query.Set("TrustServerCertificate", "true")
	query.Set("app name", "frete360")

	dsn := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(os.Getenv("DB_USER_ERP"), os.Getenv("DB_PASSWORD_ERP")),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}

	cfg := InitConfig()
	cfg.DisableAutomaticPing = true
	conn, err := gorm.Open(sqlserver.Open(dsn.String()), cfg)
	if err != nil {
		return err
	}
	if sqlDB, derr := conn.DB(); derr == nil {
		sqlDB.SetMaxOpenConns(utils.IntFromEnv("DB_MAX_OPEN_CONNS_ERP", 5))
		sqlDB.SetConnMaxIdleTime(2 * time.Minute)
	}
	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName("erp"))); err != nil {
		logg.WithField("module", "config").Warnf("erp db: otelgorm plugin not installed: %v", err)
	}
	erpDB = conn
	return nil
}
