package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/starpromo/promobot/internal/models"
)

var DB *gorm.DB

// Init opens the database and migrates the schema. dbType selects the
// driver: "sqlite" (default) or "postgres".
func Init(dbType, connString string) error {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(connString)
	default:
		dialector = sqlite.Open(connString)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if dbType != "postgres" {
		// Single-writer: the sqlite file is the sole authority and
		// conflicting writes must serialize on one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access underlying connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&models.PromotedChannel{},
		&models.Admin{},
		&models.Payment{},
		&models.MembershipCheck{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	DB = db
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithRetry retries an operation a few times when the database reports
// a transient busy/locked condition.
func WithRetry(op func() error) error {
	const maxAttempts = 3

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = op()
		if err == nil || !isTransient(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
