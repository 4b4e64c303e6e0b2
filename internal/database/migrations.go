package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationUniqueExternalKeys = "2026-06-12_unique_external_keys"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationUniqueExternalKeys, apply: uniqueExternalKeys},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// uniqueExternalKeys enforces the one-external-key-per-record invariant.
// Partial indexes: rows created internally carry an empty external_id and
// stay outside the constraint.
func uniqueExternalKeys(db *gorm.DB) error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_jobs_external_key ON jobs (tenant_id, external_source, external_id) WHERE external_id <> '';`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_parts_external_key ON parts (tenant_id, external_source, external_id) WHERE external_id <> '';`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_resources_external_key ON resources (tenant_id, external_source, external_id) WHERE external_id <> '';`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
