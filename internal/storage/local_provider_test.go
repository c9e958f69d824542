package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewLocalProvider(t.TempDir())

	require.NoError(t, provider.CreateBucket(ctx, "docs"))

	objects := map[string]string{
		"a.txt":            "PESEL 44051401359",
		"reports/2024.txt": "10 maja 2024",
		"reports/q1/b.csv": "600 123 456",
		"other/c.txt":      "o wpół do trzeciej",
	}
	for key, data := range objects {
		require.NoError(t, provider.PutObject(ctx, "docs", key, strings.NewReader(data)))
	}

	t.Run("ListAll", func(t *testing.T) {
		list, err := provider.ListObjects(ctx, "docs", "")
		require.NoError(t, err)
		require.Len(t, list, 4)

		names := make([]string, 0, len(list))
		for _, obj := range list {
			names = append(names, obj.Name)
			assert.Equal(t, int64(len(objects[obj.Name])), obj.Size)
		}
		assert.ElementsMatch(t, []string{"a.txt", "reports/2024.txt", "reports/q1/b.csv", "other/c.txt"}, names)
	})

	t.Run("ListPrefix", func(t *testing.T) {
		list, err := provider.ListObjects(ctx, "docs", "reports/")
		require.NoError(t, err)
		assert.Equal(t, []Object{
			{Name: "reports/2024.txt", Size: int64(len(objects["reports/2024.txt"]))},
			{Name: "reports/q1/b.csv", Size: int64(len(objects["reports/q1/b.csv"]))},
		}, list)
	})

	t.Run("EarlyStop", func(t *testing.T) {
		count := 0
		for _, err := range provider.IterObjects(ctx, "docs", "") {
			require.NoError(t, err)
			count++
			break
		}
		assert.Equal(t, 1, count)
	})

	t.Run("GetObject", func(t *testing.T) {
		stream, err := provider.GetObjectStream(ctx, "docs", "reports/q1/b.csv")
		require.NoError(t, err)
		defer stream.Close()

		data, err := io.ReadAll(stream)
		require.NoError(t, err)
		assert.Equal(t, "600 123 456", string(data))
	})

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := provider.ListObjects(ctx, "missing", "")
		assert.Error(t, err)
	})

	t.Run("KeyEscapesBucket", func(t *testing.T) {
		_, err := provider.GetObjectStream(ctx, "docs", "../../etc/passwd")
		assert.Error(t, err)

		err = provider.PutObject(ctx, "docs", "../x.txt", strings.NewReader("x"))
		assert.Error(t, err)
	})
}
