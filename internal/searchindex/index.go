// Package searchindex implements the Keyword Index: a field-weighted
// inverted index over archived manifests, persisted as one JSON file.
package searchindex

import (
	"sort"
	"time"

	"github.com/jacques/jacques/internal/catalog"
)

// Field names and weights
const (
	FieldTitle    = "title"
	FieldQuestion = "question"
	FieldTool     = "tool"
	FieldFile     = "file"
	FieldTech     = "tech"
	FieldSubagent = "subagent"
	FieldSnippet  = "snippet"
)

var fieldWeights = map[string]float64{
	FieldTitle:    2.0,
	FieldQuestion: 1.5,
	FieldTool:     1.2,
	FieldFile:     1.0,
	FieldTech:     1.0,
	FieldSubagent: 0.8,
	FieldSnippet:  0.5,
}

// Ref is one posting: a manifest scored for a single keyword.
type Ref struct {
	ManifestID string  `json:"manifestId"`
	Field      string  `json:"fieldTag"`
	Score      float64 `json:"score"`
}

// ProjectStats is per-project aggregate metadata.
type ProjectStats struct {
	Path         string    `json:"path"`
	Count        int       `json:"count"`
	LastActivity time.Time `json:"lastActivity"`
}

// Metadata carries global index counters.
type Metadata struct {
	TotalConversations int       `json:"totalConversations"`
	TotalKeywords      int       `json:"totalKeywords"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// Index is the global, one-file keyword index.
type Index struct {
	Keywords map[string][]Ref        `json:"keywords"`
	Projects map[string]ProjectStats `json:"projects"`
	Metadata Metadata                `json:"metadata"`
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		Keywords: make(map[string][]Ref),
		Projects: make(map[string]ProjectStats),
	}
}

// extractFields implements field extraction, returning
// one (keyword, field, score) candidate per occurrence; collapsing
// repeated occurrences of a keyword within one field is Add's job.
func extractFields(m *catalog.SessionManifest) []struct {
	keyword string
	field   string
	score   float64
} {
	var out []struct {
		keyword string
		field   string
		score   float64
	}
	add := func(field string, tok string) {
		out = append(out, struct {
			keyword string
			field   string
			score   float64
		}{tok, field, fieldWeights[field]})
	}

	for _, t := range Tokenize(m.Title) {
		add(FieldTitle, t)
	}
	for _, q := range m.UserQuestions {
		for _, t := range Tokenize(q) {
			add(FieldQuestion, t)
		}
	}
	for _, tool := range m.ToolsUsed {
		for _, t := range Tokenize(tool) {
			add(FieldTool, t)
		}
	}
	for _, f := range m.FilesModified {
		for _, t := range TokenizePathLike(f) {
			add(FieldFile, t)
		}
	}
	for _, tech := range m.Technologies {
		for _, t := range Tokenize(tech) {
			add(FieldTech, t)
		}
	}
	if m.HasSubagents {
		add(FieldSubagent, "subagent")
		add(FieldSubagent, "agent")
	}
	for _, s := range m.ContextSnippets {
		for _, t := range Tokenize(s) {
			add(FieldSnippet, t)
		}
	}
	return out
}

// fieldKey pairs a keyword with the field it occurred in, so dedup
// collapses repeated occurrences within a field without discarding a
// keyword's other-field occurrences (a title word and a files-modified
// word that tokenize the same way must both contribute their score).
type fieldKey struct {
	keyword string
	field   string
}

// Add implements add(manifest): for each (keyword, field) pair, keep
// the highest-score ref for that manifestId, so a keyword's score for
// a manifest sums across every field it occurred in.
func (ix *Index) Add(m *catalog.SessionManifest, manifestID, projectID string) {
	candidates := extractFields(m)

	best := make(map[fieldKey]Ref) // (keyword, field) -> best ref for this manifest
	for _, c := range candidates {
		key := fieldKey{c.keyword, c.field}
		cur, ok := best[key]
		if !ok || c.score > cur.Score {
			best[key] = Ref{ManifestID: manifestID, Field: c.field, Score: c.score}
		}
	}

	for key, ref := range best {
		bucket := ix.Keywords[key.keyword]
		replaced := false
		for i, existing := range bucket {
			if existing.ManifestID == manifestID && existing.Field == key.field {
				if ref.Score > existing.Score {
					bucket[i] = ref
				}
				replaced = true
				break
			}
		}
		if !replaced {
			bucket = append(bucket, ref)
		}
		ix.Keywords[key.keyword] = bucket
	}

	stats := ix.Projects[projectID]
	stats.Count++
	if m.EndedAt.After(stats.LastActivity) {
		stats.LastActivity = m.EndedAt
	}
	ix.Projects[projectID] = stats

	ix.Metadata.TotalConversations++
	ix.Metadata.TotalKeywords = len(ix.Keywords)
}

// Remove implements remove(manifestId, projectId).
func (ix *Index) Remove(manifestID, projectID string) {
	for kw, bucket := range ix.Keywords {
		var kept []Ref
		for _, r := range bucket {
			if r.ManifestID != manifestID {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(ix.Keywords, kw)
		} else {
			ix.Keywords[kw] = kept
		}
	}

	stats := ix.Projects[projectID]
	if stats.Count > 0 {
		stats.Count--
	}
	ix.Projects[projectID] = stats

	ix.Metadata.TotalConversations--
	if ix.Metadata.TotalConversations < 0 {
		ix.Metadata.TotalConversations = 0
	}
	ix.Metadata.TotalKeywords = len(ix.Keywords)
}

// ScoredManifest is one search-result row.
type ScoredManifest struct {
	ManifestID string
	Score      float64
}

// Search implements search(query): tokenize, sum scores
// per manifest across all query tokens, sort descending (stable).
func (ix *Index) Search(query string) []ScoredManifest {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	acc := make(map[string]float64)
	var order []string
	for _, t := range tokens {
		for _, ref := range ix.Keywords[t] {
			if _, ok := acc[ref.ManifestID]; !ok {
				order = append(order, ref.ManifestID)
			}
			acc[ref.ManifestID] += ref.Score
		}
	}

	results := make([]ScoredManifest, 0, len(order))
	for _, id := range order {
		results = append(results, ScoredManifest{ManifestID: id, Score: acc[id]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// MaxPageSize is the hard pagination cap the requires.
const MaxPageSize = 50

// Paginate applies an offset/limit window, capping limit at
// MaxPageSize.
func Paginate(results []ScoredManifest, offset, limit int) []ScoredManifest {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset >= len(results) {
		return nil
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
