package database

import (
	"errors"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeDownloadDevices = "2026-07-20_normalize_download_devices"

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
		{name: migrationNormalizeDownloadDevices, apply: normalizeDownloadDevices},
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

// Early builds stored raw user agents in the device column; fold those
// rows into the unknown bucket.
func normalizeDownloadDevices(db *gorm.DB) error {
	known := []string{
		analytics.DeviceDesktop,
		analytics.DeviceMobile,
		analytics.DeviceTablet,
		analytics.DeviceBot,
		analytics.DeviceUnknown,
	}
	return db.Model(&analytics.CVDownload{}).
		Where("device NOT IN ?", known).
		Update("device", analytics.DeviceUnknown).Error
}
