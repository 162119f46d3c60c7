package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacques/jacques/internal/transcripttest"
)

func writeSessionFile(t *testing.T, projectDir, sessionID string, lines []string) SessionFile {
	t.Helper()
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	path := filepath.Join(projectDir, sessionID+".jsonl")
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return SessionFile{SessionID: sessionID, Path: path, ProjectDir: projectDir}
}

func TestExtractSessionWritesManifestAndIndex(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "transcripts")
	sf := writeSessionFile(t, projectDir, "sess-1", []string{
		`{"uuid":"a","type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"content":"how do I add auth to this go service"}}`,
		`{"uuid":"b","parentUuid":"a","type":"assistant","timestamp":"2026-01-01T00:00:01Z","message":{"content":[{"type":"text","text":"Let's use JWT."}]}}`,
	})

	e := NewExtractor(root)
	manifest, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", manifest.SessionID)
	assert.Contains(t, manifest.UserQuestions, "how do I add auth to this go service")

	_, err = os.Stat(filepath.Join(root, ".jacques", "sessions", "sess-1.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, ".jacques", "index.json"))
	assert.NoError(t, err)
}

func TestToolsUsedIncludesBashCommandTokens(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "transcripts")

	b := transcripttest.NewSessionBuilder("sess-bash")
	b.AddUser("2026-01-01T00:00:00Z", "check what's using port 8089")
	b.AddToolCall("2026-01-01T00:00:01Z", "Bash", map[string]any{"command": "lsof -i :8089"}, transcripttest.Usage{})

	sf := writeSessionFile(t, projectDir, "sess-bash", []string{b.StringNoTrailingNewline()})

	e := NewExtractor(root)
	manifest, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)
	assert.Contains(t, manifest.ToolsUsed, "Bash")
	assert.Contains(t, manifest.ToolsUsed, "lsof")
}

func TestCatalogPlanWritesFileReadableByReadPlanContent(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "transcripts")

	planContent := "# Add auth\n\n- step one\n- step two\n"
	b := transcripttest.NewSessionBuilder("sess-plan")
	b.AddUser("2026-01-01T00:00:00Z", "let's add authentication")
	b.AddToolCall("2026-01-01T00:00:01Z", "Write", map[string]any{
		"file_path": "docs/plans/auth.md",
		"content":   planContent,
	}, transcripttest.Usage{})

	sf := writeSessionFile(t, projectDir, "sess-plan", []string{b.StringNoTrailingNewline()})

	e := NewExtractor(root)
	manifest, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)
	require.Len(t, manifest.PlanRefs, 1)

	got, err := ReadPlanContent(root, manifest.PlanRefs[0].CatalogID)
	require.NoError(t, err)
	assert.Equal(t, "- step one\n- step two\n", got)
}

func TestExtractSessionSkipsUpToDateManifest(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "transcripts")
	sf := writeSessionFile(t, projectDir, "sess-1", []string{
		`{"uuid":"a","type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"content":"hello"}}`,
	})

	e := NewExtractor(root)
	first, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)

	second, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)
	assert.Equal(t, first.JSONLModifiedAt, second.JSONLModifiedAt)
}

func TestDeriveModePlanningTakesPrecedence(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "transcripts")
	sf := writeSessionFile(t, projectDir, "sess-2", []string{
		`{"uuid":"a","type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"content":"Implement the following plan:"}}`,
		`{"uuid":"b","parentUuid":"a","type":"assistant","timestamp":"2026-01-01T00:00:01Z","message":{"content":[{"type":"tool_use","id":"t1","name":"EnterPlanMode","input":{}}]}}`,
	})

	e := NewExtractor(root)
	manifest, err := e.ExtractSession(context.Background(), sf, Options{})
	require.NoError(t, err)
	assert.Equal(t, ModePlanning, manifest.Mode)
}
