package models

import (
	"fmt"
	"time"

	"github.com/trackwell/issuetracker/internal/config"
	applog "github.com/trackwell/issuetracker/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// gormWriter routes gorm's own log lines through zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	applog.Warn().Str("component", "gorm").Msgf(format, args...)
}

// Open connects to the configured database without touching the global handle.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Issue{},
		&ActivityLog{},
		&Comment{},
		&RefreshToken{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

// SeedDefaultData inserts runtime settings that do not exist yet. Token
// lifetimes are left unseeded so the jwt section of the config file applies
// until an admin overrides them.
func SeedDefaultData(db *gorm.DB) error {
	defaults := []SystemConfig{
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaults {
		cfg := cfg
		if err := db.Where(SystemConfig{Key: cfg.Key}).FirstOrCreate(&cfg).Error; err != nil {
			return err
		}
	}
	return nil
}
