package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// Open connects the usage-history database. A local sqlite file is the
// default; a shared deployment can point several runners at postgres.
func Open(log *logger.Logger, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown usage db driver: %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if err := AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}

	log.Info("Usage database ready", "driver", driver)
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&domain.UsageEntry{})
}
