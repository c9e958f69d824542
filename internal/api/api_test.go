package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	backend "pl-ner-backend/internal/api"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/core/types"
	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/extract"
	"pl-ner-backend/internal/messaging"
	"pl-ner-backend/internal/storage"
	"pl-ner-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

type staticModel struct {
	entities []types.Entity
	err      error
}

func (m *staticModel) Predict(text string) ([]types.Entity, error) {
	return m.entities, m.err
}

func (m *staticModel) Release() {}

func newAnalyzer(t *testing.T, model core.Model) *core.Analyzer {
	dicts, err := extract.DefaultDictionaries()
	require.NoError(t, err)
	engine, err := extract.NewEngine(dicts)
	require.NoError(t, err)
	return core.NewAnalyzer(engine, model)
}

type testService struct {
	db       *gorm.DB
	queue    *messaging.InMemoryQueue
	provider *storage.LocalProvider
	router   chi.Router
}

func newTestService(t *testing.T, model core.Model, storeAnalyses bool, create ...any) testService {
	db := createDB(t, create...)
	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	provider := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, provider.CreateBucket(context.Background(), "docs"))

	service := backend.NewBackendService(db, queue, map[string]storage.Provider{storage.LocalStorage: provider}, newAnalyzer(t, model), "onnx", storeAnalyses)
	router := chi.NewRouter()
	service.AddRoutes(router)

	return testService{db: db, queue: queue, provider: provider, router: router}
}

func (s testService) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "recieved response: "+rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestService(t, nil, false)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.HealthResponse{Status: "ok", Model: "onnx"}, decode[api.HealthResponse](t, rec))
}

func TestAnalyze(t *testing.T) {
	model := &staticModel{entities: []types.Entity{
		{Label: "persName", Text: "Anna Nowak", Start: 0, End: 10, Score: 0.97},
		{Label: "placeName", Text: "Gdańsk", Start: 100, End: 106, Score: 0.3},
	}}
	s := newTestService(t, model, true)

	text := "Anna Nowak, PESEL 44051401359, tel. 600 123 456, spotkanie 3 czerwca 2024 o 14:15"

	t.Run("JsonBody", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{Text: text})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decode[api.AnalyzeResponse](t, rec)
		assert.Equal(t, text, res.InputText)
		assert.Equal(t, []api.NerEntity{{EntityGroup: "persName", Score: 0.97, Word: "Anna Nowak", Start: 0, End: 10}}, res.NerResults)
		assert.Equal(t, []api.PeselMatch{{Pesel: "44051401359", Start: 18, Stop: 29}}, res.Pesels)
		require.Len(t, res.Phones, 1)
		assert.Equal(t, "600123456", res.Phones[0].Phone)
		require.Len(t, res.Dates, 1)
		assert.Equal(t, "3 czerwca 2024", res.Dates[0].Date)
		require.Len(t, res.Times, 1)
		assert.Equal(t, "14:15", res.Times[0].Time)
	})

	t.Run("QueryParams", func(t *testing.T) {
		target := "/analyze?" + url.Values{"text": {text}, "threshold": {"0.2"}}.Encode()
		rec := s.do(t, http.MethodPost, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decode[api.AnalyzeResponse](t, rec)
		assert.Len(t, res.NerResults, 2)
	})

	t.Run("ResponseKeys", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{Text: "nic ciekawego"})
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		for _, key := range []string{"input_text", "ner_results", "DATE", "TIME", "PESEL", "PHONE"} {
			assert.Contains(t, raw, key)
		}
		assert.JSONEq(t, "[]", string(raw["PESEL"]))
	})

	var analyses []database.Analysis
	require.NoError(t, s.db.Find(&analyses).Error)
	assert.Len(t, analyses, 3)
}

func TestAnalyzeErrors(t *testing.T) {
	s := newTestService(t, &staticModel{err: errors.New("model crashed")}, false)

	rec := s.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	threshold := 1.5
	rec = s.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{Text: "tekst", Threshold: &threshold})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/analyze", api.AnalyzeRequest{Text: "tekst"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decode[api.ErrorResponse](t, rec).Error, "model crashed")

	huge := `{"text": "` + strings.Repeat("a", 17*1024*1024) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(huge))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreateJob(t *testing.T) {
	s := newTestService(t, nil, false)
	require.NoError(t, s.provider.PutObject(context.Background(), "docs", "a.txt", strings.NewReader("PESEL 44051401359")))

	payload := api.CreateJobRequest{
		Name:        "kwartalny-raport",
		StorageType: storage.LocalStorage,
		Bucket:      "docs",
		Groups: map[string]string{
			"pesel":    `COUNT(PESEL) > 0`,
			"warszawa": `placeName CONTAINS "Warszaw"`,
		},
	}
	rec := s.do(t, http.MethodPost, "/jobs", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	response := decode[api.CreateJobResponse](t, rec)
	assert.NotEqual(t, uuid.Nil, response.JobId)

	select {
	case task := <-s.queue.Tasks():
		assert.Equal(t, messaging.ExtractJobQueue, task.Type())
		var msg messaging.ExtractJobPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &msg))
		assert.Equal(t, response.JobId, msg.JobId)
	case <-time.After(time.Second):
		t.Fatal("job was not queued")
	}

	rec = s.do(t, http.MethodGet, "/jobs/"+response.JobId.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	job := decode[api.Job](t, rec)
	assert.Equal(t, "kwartalny-raport", job.Name)
	assert.Equal(t, database.JobQueued, job.Status)
	assert.Equal(t, core.DefaultThreshold, job.Threshold)
	assert.Nil(t, job.CompletionTime)
	assert.Len(t, job.Groups, 2)

	rec = s.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]api.Job](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, response.JobId, jobs[0].Id)
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestService(t, nil, false)

	bad := 2.0
	for name, payload := range map[string]api.CreateJobRequest{
		"invalid name":     {Name: "raport roczny", StorageType: storage.LocalStorage, Bucket: "docs"},
		"unknown storage":  {Name: "raport", StorageType: "ftp", Bucket: "docs"},
		"missing bucket":   {Name: "raport", StorageType: storage.LocalStorage},
		"missing location": {Name: "raport", StorageType: storage.LocalStorage, Bucket: "nie-ma"},
		"bad threshold":    {Name: "raport", StorageType: storage.LocalStorage, Bucket: "docs", Threshold: &bad},
		"bad query":        {Name: "raport", StorageType: storage.LocalStorage, Bucket: "docs", Groups: map[string]string{"g": `PESEL >`}},
	} {
		rec := s.do(t, http.MethodPost, "/jobs", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	var count int64
	require.NoError(t, s.db.Model(&database.Job{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestService(t, nil, false)

	rec := s.do(t, http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func documentResult(t *testing.T, res api.AnalyzeResponse) datatypes.JSON {
	data, err := json.Marshal(res)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func TestJobDocumentsAndSearch(t *testing.T) {
	jobId, groupId := uuid.New(), uuid.New()
	completed := time.Now().UTC()

	withPesel := api.AnalyzeResponse{
		NerResults: []api.NerEntity{{EntityGroup: "persName", Word: "Jan Kowalski"}},
		Pesels:     []api.PeselMatch{{Pesel: "44051401359", Start: 6, Stop: 17}},
	}
	withPhones := api.AnalyzeResponse{
		Phones: []api.PhoneMatch{{Phone: "600123456"}, {Phone: "48600123458"}},
	}

	s := newTestService(t, nil, false,
		&database.Job{
			Id: jobId, Name: "raport", StorageType: storage.LocalStorage, Bucket: "docs",
			Prefix: sql.NullString{String: "2024/", Valid: true}, Threshold: 0.5,
			Status: database.JobCompleted, CreationTime: completed, CompletionTime: sql.NullTime{Time: completed, Valid: true},
			TotalDocuments: 3, SucceededDocuments: 2, FailedDocuments: 1,
		},
		&database.JobGroup{Id: groupId, JobId: jobId, Name: "pesel", Query: `COUNT(PESEL) > 0`},
		&database.JobLabel{JobId: jobId, Label: "PESEL", Count: 1},
		&database.JobLabel{JobId: jobId, Label: "PHONE", Count: 2},
		&database.JobError{JobId: jobId, ErrorId: uuid.New(), Object: "2024/c.pdf", Error: "broken file", Timestamp: completed},
		&database.Document{JobId: jobId, Object: "2024/a.txt", Size: 20, EntityCount: 2, ProcessedTime: completed, Result: documentResult(t, withPesel)},
		&database.Document{JobId: jobId, Object: "2024/b.txt", Size: 30, EntityCount: 2, ProcessedTime: completed, Result: documentResult(t, withPhones)},
		&database.DocumentGroup{JobId: jobId, Object: "2024/a.txt", GroupId: groupId},
	)

	t.Run("GetJob", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/jobs/"+jobId.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		job := decode[api.Job](t, rec)
		assert.Equal(t, "2024/", job.Prefix)
		assert.Equal(t, database.JobCompleted, job.Status)
		assert.NotNil(t, job.CompletionTime)
		assert.Equal(t, map[string]uint64{"PESEL": 1, "PHONE": 2}, job.LabelCounts)
		assert.Equal(t, []string{"2024/c.pdf: broken file"}, job.Errors)
		assert.Equal(t, []api.Group{{Id: groupId, Name: "pesel", Query: `COUNT(PESEL) > 0`}}, job.Groups)
	})

	t.Run("Documents", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/documents", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		docs := decode[[]api.Document](t, rec)
		require.Len(t, docs, 2)
		assert.Equal(t, "2024/a.txt", docs[0].Object)
		assert.Equal(t, withPesel.Pesels, docs[0].Result.Pesels)
		assert.Equal(t, "2024/b.txt", docs[1].Object)

		rec = s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/documents?offset=1&limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		docs = decode[[]api.Document](t, rec)
		require.Len(t, docs, 1)
		assert.Equal(t, "2024/b.txt", docs[0].Object)
	})

	t.Run("DocumentsInGroup", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/documents?group=pesel", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		docs := decode[[]api.Document](t, rec)
		require.Len(t, docs, 1)
		assert.Equal(t, "2024/a.txt", docs[0].Object)

		rec = s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/documents?group=missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Search", func(t *testing.T) {
		tests := []struct {
			query    string
			expected []string
		}{
			{`COUNT(PHONE) = 2`, []string{"2024/b.txt"}},
			{`persName CONTAINS "kowalski"`, []string{"2024/a.txt"}},
			{`PESEL STARTS "44" OR PHONE = "600123456"`, []string{"2024/a.txt", "2024/b.txt"}},
			{`COUNT(DATE) > 0`, []string{}},
		}
		for _, tt := range tests {
			rec := s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/search?"+url.Values{"query": {tt.query}}.Encode(), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, api.SearchResponse{Objects: tt.expected}, decode[api.SearchResponse](t, rec), tt.query)
		}

		rec := s.do(t, http.MethodGet, "/jobs/"+jobId.String()+"/search?query="+url.QueryEscape("PESEL = 4"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
