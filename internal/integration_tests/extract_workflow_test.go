//go:build integration

package integrationtests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"pl-ner-backend/internal/api"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/extract"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"
	pkgapi "pl-ner-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documents = map[string]string{
	"umowy/kowalski.txt": "Umowa zawarta 3 stycznia 2023 z Janem Kowalskim, PESEL 44051401359.",
	"umowy/nowak.html":   "<html><body><p>Kontakt: 600 123 456</p><p>Spotkanie o 14:30</p></body></html>",
	"notatki/pusta.md":   "Brak danych osobowych w tej notatce.",
	"notatki/skan.png":   "not a document",
}

func createAnalyzer(t *testing.T) *core.Analyzer {
	dicts, err := extract.DefaultDictionaries()
	require.NoError(t, err)
	engine, err := extract.NewEngine(dicts)
	require.NoError(t, err)
	return core.NewAnalyzer(engine, nil)
}

func waitForJob(t *testing.T, router http.Handler, jobId string) pkgapi.Job {
	t.Helper()

	deadline := time.Now().Add(time.Minute)
	for {
		job := callOK[pkgapi.Job](t, router, http.MethodGet, "/jobs/"+jobId, nil)
		if job.Status == database.JobCompleted || job.Status == database.JobFailed {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish, last status %s", jobId, job.Status)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func TestExtractJobWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := startPostgres(t, ctx)
	s3Provider := startMinio(t, ctx)
	rabbitURL := startRabbitMQ(t, ctx)

	for key, content := range documents {
		require.NoError(t, s3Provider.PutObject(ctx, bucketName, key, strings.NewReader(content)))
	}

	publisher, err := messaging.NewRabbitMQPublisher(rabbitURL)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(rabbitURL)
	require.NoError(t, err)

	providers := map[string]storage.Provider{storage.S3Storage: s3Provider}
	analyzer := createAnalyzer(t)

	worker := core.NewTaskProcessor(db, providers, storage.NewDefaultParser(), analyzer, receiver, 2)
	go worker.Start()
	defer worker.Stop()

	service := api.NewBackendService(db, publisher, providers, analyzer, string(core.NoModel), false)
	router := chi.NewRouter()
	service.AddRoutes(router)

	created := callOK[pkgapi.CreateJobResponse](t, router, http.MethodPost, "/jobs", pkgapi.CreateJobRequest{
		Name:        "umowy-2023",
		StorageType: storage.S3Storage,
		Bucket:      bucketName,
		Groups: map[string]string{
			"pesel":  `COUNT(PESEL) > 0`,
			"phones": `PHONE STARTS "600"`,
		},
	})

	job := waitForJob(t, router, created.JobId.String())
	require.Equal(t, database.JobCompleted, job.Status, "errors: %v", job.Errors)

	assert.Equal(t, 3, job.TotalDocuments)
	assert.Equal(t, 3, job.SucceededDocuments)
	assert.Equal(t, 0, job.FailedDocuments)
	assert.NotNil(t, job.CompletionTime)

	assert.Equal(t, uint64(1), job.LabelCounts["PESEL"])
	assert.Equal(t, uint64(1), job.LabelCounts["PHONE"])
	assert.Equal(t, uint64(1), job.LabelCounts["DATE"])
	assert.Equal(t, uint64(1), job.LabelCounts["TIME"])

	groups := map[string][]string{}
	for _, g := range job.Groups {
		groups[g.Name] = g.Objects
	}
	assert.ElementsMatch(t, []string{"umowy/kowalski.txt"}, groups["pesel"])
	assert.ElementsMatch(t, []string{"umowy/nowak.html"}, groups["phones"])

	docs := callOK[[]pkgapi.Document](t, router, http.MethodGet, fmt.Sprintf("/jobs/%s/documents?group=pesel", created.JobId), nil)
	require.Len(t, docs, 1)
	assert.Equal(t, "umowy/kowalski.txt", docs[0].Object)
	require.Len(t, docs[0].Result.Pesels, 1)
	assert.Equal(t, "44051401359", docs[0].Result.Pesels[0].Pesel)

	query := url.QueryEscape(`TIME = "14:30"`)
	search := callOK[pkgapi.SearchResponse](t, router, http.MethodGet, fmt.Sprintf("/jobs/%s/search?query=%s", created.JobId, query), nil)
	assert.Equal(t, []string{"umowy/nowak.html"}, search.Objects)
}

func TestExtractJobMissingBucket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := startPostgres(t, ctx)
	s3Provider := startMinio(t, ctx)

	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	providers := map[string]storage.Provider{storage.S3Storage: s3Provider}

	service := api.NewBackendService(db, queue, providers, createAnalyzer(t), string(core.NoModel), false)
	router := chi.NewRouter()
	service.AddRoutes(router)

	rec := call(t, router, http.MethodPost, "/jobs", pkgapi.CreateJobRequest{
		Name:        "brak",
		StorageType: storage.S3Storage,
		Bucket:      "no-such-bucket",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body pkgapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)

	var count int64
	require.NoError(t, db.Model(&database.Job{}).Count(&count).Error)
	assert.Zero(t, count)
}
