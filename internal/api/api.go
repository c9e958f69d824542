package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"
	"pl-ner-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultDocumentsLimit = 100
	maxDocumentsLimit     = 1000
	searchBatchSize       = 200
)

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	providers map[string]storage.Provider
	analyzer  *core.Analyzer

	modelType     string
	storeAnalyses bool
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher, providers map[string]storage.Provider, analyzer *core.Analyzer, modelType string, storeAnalyses bool) *BackendService {
	return &BackendService{
		db:            db,
		publisher:     publisher,
		providers:     providers,
		analyzer:      analyzer,
		modelType:     modelType,
		storeAnalyses: storeAnalyses,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))
	r.Post("/analyze", RestHandler(s.Analyze))
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListJobs))
		r.Post("/", RestHandler(s.CreateJob))
		r.Get("/{job_id}", RestHandler(s.GetJob))
		r.Get("/{job_id}/documents", RestHandler(s.GetJobDocuments))
		r.Get("/{job_id}/search", RestHandler(s.SearchJob))
	})
}

func (s *BackendService) Health(_ http.ResponseWriter, _ *http.Request) (any, error) {
	return api.HealthResponse{Status: "ok", Model: s.modelType}, nil
}

func parseThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		return core.DefaultThreshold, nil
	}
	if *threshold < 0 || *threshold > 1 {
		return 0, CodedErrorf(http.StatusBadRequest, "threshold must be between 0 and 1, got %v", *threshold)
	}
	return *threshold, nil
}

func (s *BackendService) Analyze(w http.ResponseWriter, r *http.Request) (any, error) {
	var req api.AnalyzeRequest
	var err error
	if r.URL.Query().Has("text") {
		req, err = ParseRequestQueryParams[api.AnalyzeRequest](r)
	} else {
		req, err = ParseRequest[api.AnalyzeRequest](w, r)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "text must not be empty")
	}

	threshold, err := parseThreshold(req.Threshold)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, req.Text, threshold)
	if err != nil {
		slog.Error("error analyzing text", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error analyzing text: %v", err)
	}
	duration := time.Since(start)

	if s.storeAnalyses {
		data, err := json.Marshal(res)
		if err != nil {
			return nil, CodedErrorf(http.StatusInternalServerError, "error serializing analysis: %v", err)
		}
		analysis := database.Analysis{
			Id:           uuid.New(),
			CreationTime: time.Now().UTC(),
			TextLength:   utf8.RuneCountInString(req.Text),
			EntityCount:  core.EntityCount(res),
			Threshold:    threshold,
			DurationMs:   duration.Milliseconds(),
			Result:       datatypes.JSON(data),
		}
		if err := database.SaveAnalysis(ctx, s.db, &analysis); err != nil {
			slog.Error("error storing analysis", "error", err)
		}
	}

	return res, nil
}

func (s *BackendService) CreateJob(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateJobRequest](w, r)
	if err != nil {
		return nil, err
	}

	if err := validateName(req.Name); err != nil {
		return nil, err
	}

	provider, ok := s.providers[req.StorageType]
	if !ok {
		return nil, CodedErrorf(http.StatusBadRequest, "unsupported storage type '%s'", req.StorageType)
	}

	if req.Bucket == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "bucket must be specified")
	}

	threshold, err := parseThreshold(req.Threshold)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	for _, err := range provider.IterObjects(ctx, req.Bucket, req.Prefix) {
		if err != nil {
			slog.Error("error accessing storage location", "storage_type", req.StorageType, "bucket", req.Bucket, "prefix", req.Prefix, "error", err)
			return nil, CodedErrorf(http.StatusBadRequest, "unable to access bucket '%s': %v", req.Bucket, err)
		}
		break
	}

	job := database.Job{
		Id:           uuid.New(),
		Name:         req.Name,
		StorageType:  req.StorageType,
		Bucket:       req.Bucket,
		Prefix:       sql.NullString{String: req.Prefix, Valid: req.Prefix != ""},
		Threshold:    threshold,
		Status:       database.JobQueued,
		CreationTime: time.Now().UTC(),
	}

	for name, query := range req.Groups {
		if _, err := core.ParseQuery(query); err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid query for group '%s': %v", name, err)
		}
		job.Groups = append(job.Groups, database.JobGroup{
			Id:    uuid.New(),
			JobId: job.Id,
			Name:  name,
			Query: query,
		})
	}

	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		slog.Error("error creating job", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create job entry")
	}

	if err := s.publisher.PublishExtractJob(ctx, messaging.ExtractJobPayload{JobId: job.Id}); err != nil {
		slog.Error("error publishing extract job", "job_id", job.Id, "error", err)
		database.SaveJobError(ctx, s.db, job.Id, "", "failed to queue job")
		database.UpdateJobStatus(ctx, s.db, job.Id, database.JobFailed) // nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue job")
	}

	slog.Info("queued extract job", "job_id", job.Id, "name", job.Name, "groups", len(job.Groups))

	return api.CreateJobResponse{JobId: job.Id}, nil
}

func (s *BackendService) ListJobs(_ http.ResponseWriter, r *http.Request) (any, error) {
	var jobs []database.Job
	if err := s.db.WithContext(r.Context()).Order("creation_time DESC").Find(&jobs).Error; err != nil {
		slog.Error("error listing jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving job records")
	}

	return convertJobs(jobs), nil
}

func (s *BackendService) getJob(r *http.Request, preload ...string) (database.Job, error) {
	jobId, err := URLParamUUID(r, "job_id")
	if err != nil {
		return database.Job{}, err
	}

	query := s.db.WithContext(r.Context())
	for _, p := range preload {
		query = query.Preload(p)
	}

	var job database.Job
	if err := query.First(&job, "id = ?", jobId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Job{}, CodedErrorf(http.StatusNotFound, "job not found")
		}
		slog.Error("error getting job", "job_id", jobId, "error", err)
		return database.Job{}, CodedErrorf(http.StatusInternalServerError, "error retrieving job record")
	}

	return job, nil
}

func (s *BackendService) GetJob(_ http.ResponseWriter, r *http.Request) (any, error) {
	job, err := s.getJob(r, "Labels", "Groups", "Errors")
	if err != nil {
		return nil, err
	}

	return convertJob(job), nil
}

func (s *BackendService) GetJobDocuments(_ http.ResponseWriter, r *http.Request) (any, error) {
	job, err := s.getJob(r, "Groups")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.DocumentsParams](r)
	if err != nil {
		return nil, err
	}

	if params.Offset < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "offset must not be negative")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDocumentsLimit
	}
	limit = min(limit, maxDocumentsLimit)

	query := s.db.WithContext(r.Context()).Where("documents.job_id = ?", job.Id)

	if params.Group != "" {
		var groupId uuid.UUID
		for _, g := range job.Groups {
			if g.Name == params.Group {
				groupId = g.Id
			}
		}
		if groupId == uuid.Nil {
			return nil, CodedErrorf(http.StatusNotFound, "group '%s' not found in job", params.Group)
		}
		query = query.
			Joins("JOIN document_groups ON document_groups.job_id = documents.job_id AND document_groups.object = documents.object").
			Where("document_groups.group_id = ?", groupId)
	}

	var docs []database.Document
	if err := query.Order("documents.object").Offset(params.Offset).Limit(limit).Find(&docs).Error; err != nil {
		slog.Error("error getting job documents", "job_id", job.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving job documents")
	}

	results := make([]api.Document, 0, len(docs))
	for _, d := range docs {
		doc, err := convertDocument(d)
		if err != nil {
			return nil, CodedError(http.StatusInternalServerError, err)
		}
		results = append(results, doc)
	}

	return results, nil
}

func (s *BackendService) SearchJob(_ http.ResponseWriter, r *http.Request) (any, error) {
	job, err := s.getJob(r)
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.SearchParams](r)
	if err != nil {
		return nil, err
	}

	filter, err := core.ParseQuery(params.Query)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid query: %v", err)
	}

	objects := []string{}
	for offset := 0; ; offset += searchBatchSize {
		var batch []database.Document
		if err := s.db.WithContext(r.Context()).
			Select("object", "result").
			Where("job_id = ?", job.Id).
			Order("object").
			Offset(offset).
			Limit(searchBatchSize).
			Find(&batch).Error; err != nil {
			slog.Error("error searching job documents", "job_id", job.Id, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving job documents")
		}

		for _, d := range batch {
			var res api.AnalyzeResponse
			if err := json.Unmarshal(d.Result, &res); err != nil {
				return nil, CodedErrorf(http.StatusInternalServerError, "error parsing result of document %s: %v", d.Object, err)
			}
			if filter.Matches(core.NewLabelToValues(res)) {
				objects = append(objects, d.Object)
			}
		}

		if len(batch) < searchBatchSize {
			break
		}
	}

	return api.SearchResponse{Objects: objects}, nil
}
