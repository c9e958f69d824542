package database

import (
	"context"
	"testing"
	"time"

	"pl-ner-backend/internal/database/versions/migration_0"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, GetMigrator(db).Migrate())
	return db
}

func createJob(t *testing.T, db *gorm.DB) uuid.UUID {
	id := uuid.New()
	require.NoError(t, db.Create(&Job{
		Id:           id,
		Name:         "job",
		StorageType:  "local",
		Bucket:       "docs",
		Status:       JobQueued,
		Threshold:    0.5,
		CreationTime: time.Now().UTC(),
	}).Error)
	return id
}

func TestMigrateUpgradesInitialSchema(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	initial := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{ID: "0", Migrate: migration_0.Migration},
	})
	require.NoError(t, initial.Migrate())
	assert.False(t, db.Migrator().HasTable(&Analysis{}))

	require.NoError(t, GetMigrator(db).Migrate())

	assert.True(t, db.Migrator().HasColumn(&Job{}, "Threshold"))
	assert.True(t, db.Migrator().HasTable(&Analysis{}))
}

func TestJobStatusAndCounters(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	id := createJob(t, db)

	require.NoError(t, UpdateJobStatus(ctx, db, id, JobRunning))
	require.NoError(t, SetJobTotalDocuments(ctx, db, id, 5))
	require.NoError(t, IncrementJobDocuments(ctx, db, id, 2, 1))
	require.NoError(t, IncrementJobDocuments(ctx, db, id, 1, 0))

	var job Job
	require.NoError(t, db.First(&job, "id = ?", id).Error)
	assert.Equal(t, JobRunning, job.Status)
	assert.False(t, job.CompletionTime.Valid)
	assert.Equal(t, 5, job.TotalDocuments)
	assert.Equal(t, 3, job.SucceededDocuments)
	assert.Equal(t, 1, job.FailedDocuments)

	require.NoError(t, UpdateJobStatus(ctx, db, id, JobCompleted))
	require.NoError(t, db.First(&job, "id = ?", id).Error)
	assert.True(t, job.CompletionTime.Valid)
}

func TestAddJobLabelCounts(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	id := createJob(t, db)

	require.NoError(t, AddJobLabelCounts(ctx, db, id, map[string]uint64{"PESEL": 1, "PHONE": 2}))
	require.NoError(t, AddJobLabelCounts(ctx, db, id, map[string]uint64{"PESEL": 3}))
	require.NoError(t, AddJobLabelCounts(ctx, db, id, nil))

	var labels []JobLabel
	require.NoError(t, db.Where("job_id = ?", id).Order("label").Find(&labels).Error)
	assert.Equal(t, []JobLabel{
		{JobId: id, Label: "PESEL", Count: 4},
		{JobId: id, Label: "PHONE", Count: 2},
	}, labels)
}

func TestSaveDocument(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	id := createJob(t, db)

	group := JobGroup{Id: uuid.New(), JobId: id, Name: "with pesel", Query: `COUNT(PESEL) > 0`}
	require.NoError(t, db.Create(&group).Error)

	doc := &Document{JobId: id, Object: "a.txt", Size: 10, EntityCount: 1, Result: datatypes.JSON(`{"PESEL":[]}`)}
	require.NoError(t, SaveDocument(ctx, db, doc, []uuid.UUID{group.Id}))

	// saving again replaces the result
	doc.EntityCount = 2
	require.NoError(t, SaveDocument(ctx, db, doc, []uuid.UUID{group.Id}))

	var docs []Document
	require.NoError(t, db.Where("job_id = ?", id).Find(&docs).Error)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].EntityCount)

	var members []DocumentGroup
	require.NoError(t, db.Where("group_id = ?", group.Id).Find(&members).Error)
	assert.Equal(t, []DocumentGroup{{JobId: id, Object: "a.txt", GroupId: group.Id}}, members)
}

func TestSaveJobError(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	id := createJob(t, db)

	SaveJobError(ctx, db, id, "broken.pdf", "unable to parse")

	var errs []JobError
	require.NoError(t, db.Where("job_id = ?", id).Find(&errs).Error)
	require.Len(t, errs, 1)
	assert.Equal(t, "broken.pdf", errs[0].Object)
	assert.Equal(t, "unable to parse", errs[0].Error)
}

func TestResetJobProgress(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()
	id := createJob(t, db)

	require.NoError(t, SetJobTotalDocuments(ctx, db, id, 2))
	require.NoError(t, IncrementJobDocuments(ctx, db, id, 1, 1))
	require.NoError(t, AddJobLabelCounts(ctx, db, id, map[string]uint64{"DATE": 1}))
	doc := &Document{JobId: id, Object: "a.txt", Result: datatypes.JSON(`{}`)}
	require.NoError(t, SaveDocument(ctx, db, doc, nil))

	require.NoError(t, ResetJobProgress(ctx, db, id))

	var job Job
	require.NoError(t, db.Preload("Labels").Preload("Docs").First(&job, "id = ?", id).Error)
	assert.Equal(t, 0, job.TotalDocuments)
	assert.Equal(t, 0, job.SucceededDocuments)
	assert.Equal(t, 0, job.FailedDocuments)
	assert.Empty(t, job.Labels)
	assert.Empty(t, job.Docs)
}
