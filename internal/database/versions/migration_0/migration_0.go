package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Job struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	StorageType string `gorm:"size:20;not null"`
	Bucket      string
	Prefix      sql.NullString

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	CompletionTime sql.NullTime

	TotalDocuments     int `gorm:"default:0"`
	SucceededDocuments int `gorm:"default:0"`
	FailedDocuments    int `gorm:"default:0"`

	Labels []JobLabel `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
	Groups []JobGroup `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
	Errors []JobError `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
	Docs   []Document `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
}

type JobLabel struct {
	JobId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Label string    `gorm:"primaryKey"`
	Count uint64    `gorm:"default:0"`
}

type JobGroup struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobId uuid.UUID `gorm:"type:uuid"`
	Name  string
	Query string

	Objects []DocumentGroup `gorm:"foreignKey:GroupId;constraint:OnDelete:CASCADE"`
}

type Document struct {
	JobId         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Object        string    `gorm:"primaryKey;size:255"`
	Size          int64
	EntityCount   int
	ProcessedTime time.Time
	Result        datatypes.JSON `gorm:"type:jsonb;not null"`
}

type DocumentGroup struct {
	JobId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Object  string    `gorm:"primaryKey"`
	GroupId uuid.UUID `gorm:"type:uuid;primaryKey"`
}

type JobError struct {
	JobId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Object    string
	Error     string
	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Job{}, &JobLabel{}, &JobGroup{}, &Document{}, &DocumentGroup{}, &JobError{}); err != nil {
		return fmt.Errorf("error creating initial tables: %w", err)
	}
	return nil
}
