package migration_2

import (
	"fmt"

	"gorm.io/gorm"
)

const defaultThreshold = 0.5

type Job struct {
	Threshold float64 `gorm:"not null;default:0.5"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Job{}, "Threshold"); err != nil {
		return fmt.Errorf("error adding Threshold column: %w", err)
	}

	if err := db.Model(&Job{}).
		Where("threshold IS NULL").
		Update("threshold", defaultThreshold).Error; err != nil {
		return fmt.Errorf("error setting default value for Threshold: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Job{}, "Threshold"); err != nil {
		return fmt.Errorf("error dropping Threshold column: %w", err)
	}
	return nil
}
