package config

import (
	"os"
	"strings"

	"github.com/frete360/frete_backend/utils"
)

type Mode string

const (
	ModeAPI  Mode = "API"
	ModeMock Mode = "MOCK"
)

// BackendMode selects the ERP backend once at process start.
//
// Set via env:
// - APP_MODE=MOCK serves the built-in ERP dataset (offline development)
// - APP_MODE=API (default) reads the ERP SQL Server
func BackendMode() Mode {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_MODE")), string(ModeMock)) {
		return ModeMock
	}
	return ModeAPI
}

// ERPMaxRangeDays is the widest date span a cargo check may request.
func ERPMaxRangeDays() int {
	if n := utils.IntFromEnv("ERP_MAX_RANGE_DAYS", 45); n > 0 {
		return n
	}
	return 45
}

// SyncEventsEnabled turns on publishing of sync-completed events to Pub/Sub.
func SyncEventsEnabled() bool {
	return utils.EnvBoolDefault("ENABLE_ERP_SYNC_EVENTS", false)
}
