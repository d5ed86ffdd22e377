package contentservice

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/devlog/internal/common"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// postFile builds a valid blog record. A nil override removes the field.
func postFile(t *testing.T, overrides map[string]any) *fstest.MapFile {
	t.Helper()

	fields := map[string]any{
		"id":          "post-1",
		"slug":        "hello-world",
		"title":       "Hello World",
		"type":        "blog",
		"summary":     "A short summary.",
		"body":        "Some body text.",
		"tags":        []string{},
		"author":      "Ada",
		"status":      "published",
		"publishedAt": "2024-01-01T10:00:00Z",
		"createdAt":   "2023-12-30T10:00:00Z",
		"updatedAt":   "2024-01-01T10:00:00Z",
	}

	for k, v := range overrides {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	data, err := json.Marshal(fields)
	require.NoError(t, err)

	return &fstest.MapFile{Data: data}
}

func setupTestService(t *testing.T, fsys fstest.MapFS, c *common.Cache) *ContentService {
	t.Helper()

	s := NewContentService(fsys, c, testLogger())
	s.now = func() time.Time { return testNow }

	return s
}

func slugs(posts []PostMeta) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}
