package transcriptreader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-1.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
	return path
}

func TestParseUserAndAssistantMessages(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"uuid":"a","type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"content":"hello there"}}`,
		`{"uuid":"b","parentUuid":"a","type":"assistant","timestamp":"2026-01-01T00:00:01Z","message":{"content":[{"type":"text","text":"hi"}],"usage":{"input_tokens":10,"cache_read_input_tokens":5}}}`,
	})

	results, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.Len(t, r.Entries, 2)
	assert.Equal(t, EntryUserMessage, r.Entries[0].Type)
	assert.Equal(t, "hello there", r.Entries[0].Content.Text)
	assert.False(t, r.Entries[0].IsInternal)
	assert.Equal(t, EntryAssistantMessage, r.Entries[1].Type)
	assert.Equal(t, "hi", r.Entries[1].Content.Text)
	assert.Equal(t, 10, r.Stats.LastInputTokens)
	assert.Equal(t, 5, r.Stats.LastCacheReadTokens)
}

func TestParseToolCallKeepsFirstBlockOnly(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"uuid":"a","type":"assistant","timestamp":"2026-01-01T00:00:00Z","message":{"content":[` +
			`{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"x.go"}},` +
			`{"type":"tool_use","id":"t2","name":"Write","input":{"file_path":"y.go"}}` +
			`]}}`,
	})

	results, err := Parse(path)
	require.NoError(t, err)
	entries := results[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, EntryToolCall, entries[0].Type)
	assert.Equal(t, "Read", entries[0].Content.ToolName)
}

func TestParseSkipsInternalUserPrefixButKeepsEntry(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"uuid":"a","type":"user","timestamp":"2026-01-01T00:00:00Z","message":{"content":"<command-name>foo</command-name>"}}`,
	})
	results, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, results[0].Entries, 1)
	assert.True(t, results[0].Entries[0].IsInternal)
}

func TestParseFileHistorySnapshotSkipped(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"uuid":"a","type":"file-history-snapshot"}`,
	})
	results, err := Parse(path)
	require.NoError(t, err)
	assert.Empty(t, results[0].Entries)
}

func TestParseOversizedLineCountsAsParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-2.jsonl")
	big := `{"uuid":"a","type":"user","message":{"content":"` +
		string(make([]byte, maxLineLen+10)) + `"}}`
	require.NoError(t, os.WriteFile(path, []byte(big+"\n"), 0o644))

	results, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Stats.ParseErrorsCount)
}

func TestEstimateOutputTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateOutputTokens(""))
	assert.Equal(t, 1, EstimateOutputTokens("abcd"))
	assert.Equal(t, 2, EstimateOutputTokens("abcde"))
}
