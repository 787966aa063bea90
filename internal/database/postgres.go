package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"drawwin/internal/config"
	"drawwin/internal/models"
)

func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	// TranslateError turns driver-specific unique violations into
	// gorm.ErrDuplicatedKey, which the allocator retry loop depends on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to PostgreSQL")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema. Besides AutoMigrate it installs the partial
// unique index that enforces "at most one pending winner" at the storage
// layer, so the invariant holds across multiple service instances.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Entry{},
		&models.Winner{},
		&models.WithdrawalRequest{},
		&models.Inquiry{},
		&models.EmailLog{},
		&models.Setting{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_winners_one_pending ON winners (payment_status) WHERE payment_status = 'pending'`).Error
	if err != nil {
		return fmt.Errorf("failed to create pending-winner index: %w", err)
	}

	return nil
}
