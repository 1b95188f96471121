package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDisplayBoosts = "2026-07-18_backfill_display_boosts"

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
		{name: migrationBackfillDisplayBoosts, apply: backfillDisplayBoosts},
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

// backfillDisplayBoosts recomputes raw boost totals from per-user aggregates
// for rows written before the denormalized counter existed.
func backfillDisplayBoosts(db *gorm.DB) error {
	const statement = `
UPDATE submissions
SET display_boosts = (
	SELECT COALESCE(SUM(boost_count), 0)
	FROM user_boosts
	WHERE user_boosts.submission_id = submissions.id
)
WHERE display_boosts = 0;`
	return db.Exec(statement).Error
}
