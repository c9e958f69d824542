package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pl-ner-backend/internal/core/utils"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"
	"pl-ner-backend/pkg/api"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultMaxWorkers = 4

var ErrUnknownStorageType = errors.New("unknown storage type")

type TaskProcessor struct {
	db        *gorm.DB
	providers map[string]storage.Provider
	parser    storage.Parser
	analyzer  *Analyzer
	reciever  messaging.Reciever

	maxWorkers int
}

func NewTaskProcessor(db *gorm.DB, providers map[string]storage.Provider, parser storage.Parser, analyzer *Analyzer, reciever messaging.Reciever, maxWorkers int) *TaskProcessor {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &TaskProcessor{
		db:         db,
		providers:  providers,
		parser:     parser,
		analyzer:   analyzer,
		reciever:   reciever,
		maxWorkers: maxWorkers,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor", "max_workers", proc.maxWorkers)

	for task := range proc.reciever.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {
	case messaging.ExtractJobQueue:
		var payload messaging.ExtractJobPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling extract job task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processExtractJob(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processExtractJob(ctx context.Context, payload messaging.ExtractJobPayload) error {
	jobId := payload.JobId

	var job database.Job
	if err := proc.db.WithContext(ctx).Preload("Groups").First(&job, "id = ?", jobId).Error; err != nil {
		slog.Error("error fetching job", "job_id", jobId, "error", err)
		return fmt.Errorf("error getting job: %w", err)
	}

	switch job.Status {
	case database.JobCompleted, database.JobFailed:
		slog.Info("job already finished, skipping", "job_id", jobId, "status", job.Status)
		return nil
	case database.JobRunning:
		slog.Warn("job was interrupted, restarting it", "job_id", jobId)
		if err := database.ResetJobProgress(ctx, proc.db, jobId); err != nil {
			return err
		}
	}

	if err := database.UpdateJobStatus(ctx, proc.db, jobId, database.JobRunning); err != nil {
		return fmt.Errorf("error marking job as running: %w", err)
	}

	slog.Info("processing extract job", "job_id", jobId, "storage_type", job.StorageType, "bucket", job.Bucket)

	if err := proc.runJob(ctx, job); err != nil {
		slog.Error("error running extract job", "job_id", jobId, "error", err)
		database.SaveJobError(ctx, proc.db, jobId, "", err.Error())
		database.UpdateJobStatus(ctx, proc.db, jobId, database.JobFailed) // nolint:errcheck
		return fmt.Errorf("error running extract job: %w", err)
	}

	if err := database.UpdateJobStatus(ctx, proc.db, jobId, database.JobCompleted); err != nil {
		return fmt.Errorf("error updating job status to complete: %w", err)
	}

	slog.Info("extract job completed successfully", "job_id", jobId)

	return nil
}

type groupFilter struct {
	id     uuid.UUID
	filter Filter
}

type documentResult struct {
	response api.AnalyzeResponse
	values   LabelToValues
}

func (proc *TaskProcessor) runJob(ctx context.Context, job database.Job) error {
	provider, ok := proc.providers[job.StorageType]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownStorageType, job.StorageType)
	}

	groups := make([]groupFilter, 0, len(job.Groups))
	for _, group := range job.Groups {
		filter, err := ParseQuery(group.Query)
		if err != nil {
			return fmt.Errorf("invalid query for group '%s': %w", group.Name, err)
		}
		groups = append(groups, groupFilter{id: group.Id, filter: filter})
	}

	listed, err := provider.ListObjects(ctx, job.Bucket, job.Prefix.String)
	if err != nil {
		return fmt.Errorf("error listing objects: %w", err)
	}

	objects := make([]storage.Object, 0, len(listed))
	for _, obj := range listed {
		if storage.IsSupported(obj.Name) {
			objects = append(objects, obj)
		} else {
			slog.Debug("skipping unsupported object", "job_id", job.Id, "object", obj.Name)
		}
	}

	if err := database.SetJobTotalDocuments(ctx, proc.db, job.Id, len(objects)); err != nil {
		return err
	}

	worker := func(ctx context.Context, obj storage.Object) (documentResult, error) {
		return proc.analyzeDocument(ctx, provider, job.Bucket, obj, job.Threshold)
	}

	failed := 0
	for completed := range utils.RunInPool(ctx, worker, objects, proc.maxWorkers) {
		object := completed.Input
		if completed.Error != nil {
			slog.Error("error processing document", "job_id", job.Id, "object", object.Name, "error", completed.Error)
			failed++
			database.SaveJobError(ctx, proc.db, job.Id, object.Name, completed.Error.Error())
			if err := database.IncrementJobDocuments(ctx, proc.db, job.Id, 0, 1); err != nil {
				return err
			}
			continue
		}

		if err := proc.saveDocument(ctx, job.Id, object, completed.Result, groups); err != nil {
			slog.Error("error saving document", "job_id", job.Id, "object", object.Name, "error", err)
			failed++
			database.SaveJobError(ctx, proc.db, job.Id, object.Name, err.Error())
			if err := database.IncrementJobDocuments(ctx, proc.db, job.Id, 0, 1); err != nil {
				return err
			}
			continue
		}

		if err := database.IncrementJobDocuments(ctx, proc.db, job.Id, 1, 0); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if failed > 0 {
		slog.Warn("some documents could not be processed", "job_id", job.Id, "failed", failed, "total", len(objects))
	}

	return nil
}

func (proc *TaskProcessor) analyzeDocument(ctx context.Context, provider storage.Provider, bucket string, object storage.Object, threshold float64) (documentResult, error) {
	stream, err := provider.GetObjectStream(ctx, bucket, object.Name)
	if err != nil {
		return documentResult{}, fmt.Errorf("error opening object: %w", err)
	}
	defer stream.Close()

	response, err := proc.analyzer.AnalyzeDocument(ctx, proc.parser, object.Name, stream, threshold)
	if err != nil {
		return documentResult{}, err
	}

	return documentResult{response: response, values: NewLabelToValues(response)}, nil
}

func (proc *TaskProcessor) saveDocument(ctx context.Context, jobId uuid.UUID, object storage.Object, result documentResult, groups []groupFilter) error {
	data, err := json.Marshal(result.response)
	if err != nil {
		return fmt.Errorf("error serializing result: %w", err)
	}

	var matched []uuid.UUID
	for _, group := range groups {
		if group.filter.Matches(result.values) {
			matched = append(matched, group.id)
		}
	}

	doc := &database.Document{
		JobId:         jobId,
		Object:        object.Name,
		Size:          object.Size,
		EntityCount:   EntityCount(result.response),
		ProcessedTime: time.Now().UTC(),
		Result:        datatypes.JSON(data),
	}
	if err := database.SaveDocument(ctx, proc.db, doc, matched); err != nil {
		return err
	}

	return database.AddJobLabelCounts(ctx, proc.db, jobId, result.values.Counts())
}
