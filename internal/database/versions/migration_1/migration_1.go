package migration_1

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Analysis struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreationTime time.Time
	TextLength   int
	EntityCount  int
	Threshold    float64
	DurationMs   int64
	Result       datatypes.JSON `gorm:"type:jsonb;not null"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().CreateTable(&Analysis{}); err != nil {
		return fmt.Errorf("error creating analyses table: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&Analysis{}); err != nil {
		return fmt.Errorf("error dropping analyses table: %w", err)
	}
	return nil
}
