//go:build integration

package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pl-ner-backend/internal/database"
	"pl-ner-backend/internal/storage"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const (
	postgresImage = "postgres:16-alpine"
	minioImage    = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
	rabbitMQImage = "rabbitmq:3.12-management-alpine"

	minioUser     = "pl-ner"
	minioPassword = "pl-ner-secret"

	bucketName = "dokumenty"
)

func removeOnCleanup(t *testing.T, c testcontainers.Container) {
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Errorf("error removing container: %v", err)
		}
	})
}

// startPostgres returns a migrated database in a fresh postgres container.
func startPostgres(t *testing.T, ctx context.Context) *gorm.DB {
	t.Helper()

	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("pl_ner"),
		postgres.WithUsername("pl_ner"),
		postgres.WithPassword("pl_ner"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "error starting postgres")
	removeOnCleanup(t, container)

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewDatabase(uri)
	require.NoError(t, err)
	return db
}

// startMinio returns an S3 provider backed by a minio container in which
// bucketName already exists.
func startMinio(t *testing.T, ctx context.Context) *storage.S3Provider {
	t.Helper()

	container, err := minio.Run(ctx, minioImage,
		minio.WithUsername(minioUser),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "error starting minio")
	removeOnCleanup(t, container)

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	provider, err := storage.NewS3Provider(ctx, storage.S3ProviderConfig{
		EndpointURL:     "http://" + endpoint,
		AccessKeyID:     minioUser,
		SecretAccessKey: minioPassword,
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	require.NoError(t, provider.CreateBucket(ctx, bucketName))

	return provider
}

func startRabbitMQ(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := rabbitmq.Run(ctx, rabbitMQImage)
	require.NoError(t, err, "error starting rabbitmq")
	removeOnCleanup(t, container)

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)
	return url
}

func call(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// callOK performs the request, requires a 200 and decodes the response into T.
func callOK[T any](t *testing.T, handler http.Handler, method, path string, body any) T {
	t.Helper()

	rec := call(t, handler, method, path, body)
	require.Equal(t, http.StatusOK, rec.Code, "%s %s: %s", method, path, rec.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
