package planid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacques/jacques/internal/transcriptreader"
)

func TestDetectEmbedded(t *testing.T) {
	text := "Implement the following plan:\n\n# JWT Auth\n\n" +
		"Add JWT with refresh tokens. This covers generation, " +
		"validation, secure storage, and middleware wiring for " +
		"protected routes across the whole service layer end to end."

	entries := []transcriptreader.TranscriptEntry{
		{Type: transcriptreader.EntryUserMessage, Content: transcriptreader.Content{Text: text}},
	}
	refs := DetectEmbedded(entries)
	require.Len(t, refs, 1)
	assert.Equal(t, SourceEmbedded, refs[0].Source)
	assert.Equal(t, "JWT Auth", refs[0].Title)
}

func TestDetectEmbeddedRejectsShortContent(t *testing.T) {
	entries := []transcriptreader.TranscriptEntry{
		{Type: transcriptreader.EntryUserMessage, Content: transcriptreader.Content{
			Text: "Implement the following plan:\n\n# Too short\n\nNot enough.",
		}},
	}
	assert.Empty(t, DetectEmbedded(entries))
}

func TestMergeWithinSessionPrefersWriteOverEmbedded(t *testing.T) {
	refs := []Reference{
		{Source: SourceEmbedded, MessageIndex: 2, Title: "from embedded"},
		{Source: SourceWrite, MessageIndex: 4, FilePath: "plans/x.md"},
	}
	merged := MergeWithinSession(refs)
	require.Len(t, merged, 1)
	assert.Equal(t, SourceWrite, merged[0].Source)
	assert.ElementsMatch(t, []Source{SourceEmbedded, SourceWrite}, merged[0].Sources)
}

func TestJaccardSimilarityAtThresholdIsDuplicate(t *testing.T) {
	a := "authentication system design covers tokens sessions storage middleware validation routes handlers users accounts"
	b := "authentication system design covers tokens sessions storage middleware validation routes handlers users accounts"
	sim := JaccardSimilarity(a, b)
	assert.GreaterOrEqual(t, sim, SimilarityThreshold)
}

func TestContentHashIsDeterministic(t *testing.T) {
	a := ContentHash("# Title\n\nSome Body TEXT")
	b := ContentHash("#   Title\n\nsome   body text")
	assert.Equal(t, a, b)
}

func TestBodyHashDropsHeading(t *testing.T) {
	h1 := BodyHash("# Dashboard — Timestamps\n\nshared body text here")
	h2 := BodyHash("# Navigator Improvements\n\nshared body text here")
	assert.Equal(t, h1, h2)
}

