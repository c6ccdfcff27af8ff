package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/papercrane/scrapbook/internal/scrapbook"
)

// Rows created before the rating columns existed carry zeros; tasting
// entries are supposed to start at the neutral midpoint.
const migrationBackfillNeutralRatings = "2026-08-20_backfill_neutral_ratings"

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
		{name: migrationBackfillNeutralRatings, apply: backfillNeutralRatings},
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

// Only rows where every rating column of both tasters is zero are treated
// as pre-ratings rows; any single nonzero score marks the row as already
// scored. A genuine double all-zero tasting is indistinguishable from a
// legacy row and gets reset, which is accepted.
func backfillNeutralRatings(db *gorm.DB) error {
	neutral := scrapbook.DefaultRatings()
	return db.Model(&scrapbook.CardRecord{}).
		Where("kind = ?", string(scrapbook.KindWatermelon)).
		Where("rachy_texture = 0 AND rachy_juiciness = 0 AND rachy_sweetness = 0").
		Where("davey_texture = 0 AND davey_juiciness = 0 AND davey_sweetness = 0").
		Updates(map[string]any{
			"rachy_texture":   neutral.Texture,
			"rachy_juiciness": neutral.Juiciness,
			"rachy_sweetness": neutral.Sweetness,
			"davey_texture":   neutral.Texture,
			"davey_juiciness": neutral.Juiciness,
			"davey_sweetness": neutral.Sweetness,
		}).Error
}
