package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func UpdateJobStatus(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Job{Id: jobId}).Updates(updates).Error; err != nil {
		slog.Error("error updating job status", "job_id", jobId, "status", status, "error", err)
		return err
	}
	return nil
}

func SetJobTotalDocuments(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, total int) error {
	if err := txn.WithContext(ctx).Model(&Job{Id: jobId}).Update("total_documents", total).Error; err != nil {
		return fmt.Errorf("error setting total documents for job %v: %w", jobId, err)
	}
	return nil
}

// ResetJobProgress clears the results of an interrupted earlier run of a job.
func ResetJobProgress(ctx context.Context, db *gorm.DB, jobId uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		for _, model := range []any{&JobLabel{}, &DocumentGroup{}, &Document{}} {
			if err := txn.Where("job_id = ?", jobId).Delete(model).Error; err != nil {
				return fmt.Errorf("error clearing results of job %v: %w", jobId, err)
			}
		}

		return txn.Model(&Job{Id: jobId}).Updates(map[string]any{
			"total_documents":     0,
			"succeeded_documents": 0,
			"failed_documents":    0,
		}).Error
	})
}

func IncrementJobDocuments(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, succeeded, failed int) error {
	err := txn.WithContext(ctx).Model(&Job{Id: jobId}).Updates(map[string]any{
		"succeeded_documents": gorm.Expr("succeeded_documents + ?", succeeded),
		"failed_documents":    gorm.Expr("failed_documents + ?", failed),
	}).Error
	if err != nil {
		return fmt.Errorf("error updating document counters for job %v: %w", jobId, err)
	}
	return nil
}

func AddJobLabelCounts(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, counts map[string]uint64) error {
	if len(counts) == 0 {
		return nil
	}

	rows := make([]JobLabel, 0, len(counts))
	for label, count := range counts {
		rows = append(rows, JobLabel{JobId: jobId, Label: label, Count: count})
	}

	err := txn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "label"}},
		DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("job_labels.count + excluded.count")}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("error updating label counts for job %v: %w", jobId, err)
	}
	return nil
}

// SaveDocument stores the result for a document and its group memberships,
// replacing any earlier result for the same object.
func SaveDocument(ctx context.Context, db *gorm.DB, doc *Document, groups []uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Clauses(clause.OnConflict{UpdateAll: true}).Create(doc).Error; err != nil {
			return fmt.Errorf("error saving document %s: %w", doc.Object, err)
		}

		if len(groups) == 0 {
			return nil
		}

		rows := make([]DocumentGroup, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, DocumentGroup{JobId: doc.JobId, Object: doc.Object, GroupId: g})
		}
		if err := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("error saving groups for document %s: %w", doc.Object, err)
		}
		return nil
	})
}

func SaveJobError(ctx context.Context, txn *gorm.DB, jobId uuid.UUID, object, errorMessage string) {
	jobError := JobError{
		JobId:     jobId,
		ErrorId:   uuid.New(),
		Object:    object,
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&jobError).Error; err != nil {
		slog.Error("error saving job error", "job_id", jobId, "error", err)
	}
}

func SaveAnalysis(ctx context.Context, db *gorm.DB, analysis *Analysis) error {
	if err := db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("error saving analysis: %w", err)
	}
	return nil
}
