package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jacques/jacques/internal/catalog"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleManifest(sessionID string, tokens int) *catalog.SessionManifest {
	return &catalog.SessionManifest{
		SessionID:     sessionID,
		ProjectPath:   "/tmp/proj",
		Title:         "session " + sessionID,
		StartedAt:     time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
		Tokens:        catalog.Tokens{Input: tokens, Output: tokens / 2},
		ToolCallCount: 3,
		ToolsUsed:     []string{"Read", "Write", "Read"},
		Technologies:  []string{"go"},
		ContextSnippets: []string{"discussing the analytics cache"},
	}
}

func TestRecordManifestAndSummary(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.RecordManifest(sampleManifest("s1", 1000), "m1"))
	require.NoError(t, db.RecordManifest(sampleManifest("s2", 2000), "m2"))

	summary, err := db.Summary()
	require.NoError(t, err)
	require.Equal(t, 2, summary.SessionCount)
	require.Equal(t, 3000, summary.TotalInput)
}

func TestRecordManifestIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	m := sampleManifest("s1", 1000)

	require.NoError(t, db.RecordManifest(m, "m1"))
	require.NoError(t, db.RecordManifest(m, "m1"))

	summary, err := db.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, summary.SessionCount)
}

func TestToolUsageAggregates(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordManifest(sampleManifest("s1", 100), "m1"))
	require.NoError(t, db.RecordManifest(sampleManifest("s2", 100), "m2"))

	usage, err := db.ToolUsage(10)
	require.NoError(t, err)

	want := []ToolUsageCount{
		{Name: "Read", Count: 4}, // 2 uses per manifest x 2 manifests
		{Name: "Write", Count: 2},
	}
	if diff := cmp.Diff(want, usage); diff != "" {
		t.Errorf("ToolUsage() mismatch (-want +got):\n%s", diff)
	}
}

func TestTopSessionsOrdersByTokens(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordManifest(sampleManifest("small", 100), "m-small"))
	require.NoError(t, db.RecordManifest(sampleManifest("big", 5000), "m-big"))

	top, err := db.TopSessions(10)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	require.Equal(t, "m-big", top[0].ManifestID)
}

func TestRebuildReplacesContents(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordManifest(sampleManifest("stale", 100), "m-stale"))

	fresh := map[string]*catalog.SessionManifest{
		"m-new": sampleManifest("new", 200),
	}
	require.NoError(t, db.Rebuild(fresh))

	summary, err := db.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, summary.SessionCount)
}

func TestActivityBucketsByDay(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordManifest(sampleManifest("s1", 100), "m1"))

	points, err := db.Activity(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Equal(t, "2026-01-02", points[0].Date)
}
