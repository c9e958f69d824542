package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

type Job struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`

	StorageType string `gorm:"size:20;not null"`
	Bucket      string
	Prefix      sql.NullString
	Threshold   float64 `gorm:"not null;default:0.5"`

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

// JobLabel counts the values found for a category or NER label across all
// documents of a job.
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

// Analysis records a single /analyze call when STORE_ANALYSES is enabled.
type Analysis struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreationTime time.Time
	TextLength   int
	EntityCount  int
	Threshold    float64
	DurationMs   int64
	Result       datatypes.JSON `gorm:"type:jsonb;not null"`
}
