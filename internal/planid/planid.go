// Package planid implements the Plan Identity Engine: detecting
// plans in a parsed transcript, merging references within a session,
// and deduplicating plans across a project's catalog.
package planid

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jacques/jacques/internal/transcriptreader"
)

// Source is where a PlanReference was detected.
type Source string

const (
	SourceEmbedded Source = "embedded"
	SourceWrite    Source = "write"
	SourceAgent    Source = "agent"
)

// Reference is a per-session detection of a plan, before or after
// within-session merging (Sources is only populated post-merge).
type Reference struct {
	Title        string
	Source       Source
	MessageIndex int
	FilePath     string
	AgentID      string
	CatalogID    string
	Body         string
	Sources      []Source
}

// Plan is a project-level, deduplicated catalog entry: the
// cross-session identity a Reference resolves to once cataloged.
type Plan struct {
	ID          string
	Title       string
	Filename    string
	Path        string
	ContentHash string
	BodyHash    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Sessions    map[string]struct{}
}

var triggerPhrases = []string{
	"implement the following plan:",
	"here is the plan:",
	"follow this plan:",
}

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
var topLevelHeadingRe = regexp.MustCompile(`(?m)^#\s`)

var codeLikeTokens = []string{"import", "export", "const", "function", "class", "interface", "type"}

var planFileCodeExts = []string{
	".ts", ".tsx", ".js", ".jsx", ".py", ".go", ".rs", ".java", ".rb", ".c", ".cpp", ".h",
}

// DetectEmbedded scans user-message entries for embedded-plan trigger
// phrases.
func DetectEmbedded(entries []transcriptreader.TranscriptEntry) []Reference {
	var refs []Reference
	for i, e := range entries {
		if e.Type != transcriptreader.EntryUserMessage || e.IsInternal {
			continue
		}
		lower := strings.ToLower(e.Content.Text)
		for _, trig := range triggerPhrases {
			idx := strings.Index(lower, trig)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(e.Content.Text[idx+len(trig):])
			for _, piece := range splitOnTopLevelHeadings(rest) {
				if len(piece) < 100 || !strings.Contains(piece, "#") {
					continue
				}
				refs = append(refs, Reference{
					Title:        extractTitle(piece),
					Source:       SourceEmbedded,
					MessageIndex: i,
					Body:         extractBody(piece),
				})
			}
			break
		}
	}
	return refs
}

func splitOnTopLevelHeadings(text string) []string {
	locs := topLevelHeadingRe.FindAllStringIndex(text, -1)
	if len(locs) <= 1 {
		return []string{text}
	}
	var pieces []string
	for i, loc := range locs {
		start := loc[0]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pieces = append(pieces, strings.TrimSpace(text[start:end]))
	}
	return pieces
}

// DetectAgent produces one Reference per agent-progress entry whose
// agentType is "Plan". The plan body is resolved later via the
// subagent transcript (see catalog package).
func DetectAgent(entries []transcriptreader.TranscriptEntry) []Reference {
	var refs []Reference
	for i, e := range entries {
		if e.Type != transcriptreader.EntryAgentProgress {
			continue
		}
		if e.Content.AgentType != "Plan" {
			continue
		}
		refs = append(refs, Reference{
			Source:       SourceAgent,
			MessageIndex: i,
			AgentID:      e.Content.AgentID,
		})
	}
	return refs
}

// DetectWritten finds Write tool-calls whose target looks like a
// plan file and whose content looks like markdown.
func DetectWritten(entries []transcriptreader.TranscriptEntry) []Reference {
	var refs []Reference
	for i, e := range entries {
		if e.Type != transcriptreader.EntryToolCall || e.Content.ToolName != "Write" {
			continue
		}
		filePath := jsonField(e.Content.ToolInputJSON, "file_path")
		content := jsonField(e.Content.ToolInputJSON, "content")
		if !looksLikePlanPath(filePath) || !looksLikeMarkdownPlan(content) {
			continue
		}
		refs = append(refs, Reference{
			Title:        extractTitle(content),
			Source:       SourceWrite,
			MessageIndex: i,
			FilePath:     filePath,
			Body:         extractBody(content),
		})
	}
	return refs
}

func looksLikePlanPath(path string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	for _, ext := range planFileCodeExts {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return strings.HasSuffix(lower, ".md") ||
		strings.Contains(lower, "plan") ||
		strings.Contains(lower, "/plans/")
}

func looksLikeMarkdownPlan(content string) bool {
	if content == "" {
		return false
	}
	trimmed := strings.TrimSpace(content)
	lowerStart := strings.ToLower(trimmed)
	for _, tok := range codeLikeTokens {
		if strings.HasPrefix(lowerStart, tok) {
			return false
		}
	}
	hasHeading := headingRe.MatchString(content)
	hasListOrParagraph := strings.Contains(content, "\n- ") ||
		strings.Contains(content, "\n1. ") ||
		strings.Count(content, "\n\n") > 0
	return hasHeading && hasListOrParagraph
}

// extractTitle implements title extraction.
func extractTitle(content string) string {
	m := headingRe.FindStringSubmatch(content)
	var title string
	if m != nil {
		title = strings.TrimPrefix(strings.TrimSpace(m[1]), "Plan:")
		title = strings.TrimSpace(title)
	} else {
		for _, line := range strings.Split(content, "\n") {
			if strings.TrimSpace(line) != "" {
				title = strings.TrimSpace(line)
				break
			}
		}
	}
	if len(title) > 80 {
		title = string([]rune(title)[:79]) + "…"
	}
	return title
}

// extractBody removes the first heading line, if present.
func extractBody(content string) string {
	loc := headingRe.FindStringIndex(content)
	if loc == nil {
		return content
	}
	rest := content[loc[1]:]
	return strings.TrimLeft(rest, "\n")
}

// MergeWithinSession implements within-session
// deduplication: sort by messageIndex, group close references, and
// pick the canonical one by source priority write > embedded > agent.
func MergeWithinSession(refs []Reference) []Reference {
	sorted := append([]Reference(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MessageIndex < sorted[j].MessageIndex
	})

	const proximityWindow = 20 // message-index span treated as "close by"

	var groups [][]Reference
	for _, r := range sorted {
		placed := false
		for gi := range groups {
			last := groups[gi][len(groups[gi])-1]
			if r.MessageIndex-last.MessageIndex <= proximityWindow {
				groups[gi] = append(groups[gi], r)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []Reference{r})
		}
	}

	priority := map[Source]int{SourceWrite: 0, SourceEmbedded: 1, SourceAgent: 2}

	var out []Reference
	for _, g := range groups {
		canonical := g[0]
		for _, r := range g[1:] {
			if priority[r.Source] < priority[canonical.Source] {
				canonical = r
			}
		}
		merged := canonical
		seen := map[Source]bool{}
		for _, r := range g {
			if !seen[r.Source] {
				merged.Sources = append(merged.Sources, r.Source)
				seen[r.Source] = true
			}
			if merged.FilePath == "" {
				merged.FilePath = r.FilePath
			}
			if merged.AgentID == "" {
				merged.AgentID = r.AgentID
			}
			if merged.Body == "" {
				merged.Body = r.Body
			}
		}
		out = append(out, merged)
	}
	return out
}

// normalizeContent collapses whitespace to single spaces and
// lowercases, the first step of cross-session plan deduplication.
func normalizeContent(content string) string {
	fields := strings.Fields(content)
	return strings.ToLower(strings.Join(fields, " "))
}

// ContentHash is the SHA-256 over whitespace-normalized, case-folded
// full content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(normalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// BodyHash is the SHA-256 over the body only (content with the first
// heading line removed).
func BodyHash(content string) string {
	return ContentHash(extractBody(content))
}

// LengthBucket buckets content length into 0-500, 501-2000, 2001+ as
// the requires for the similarity-tier fallback.
func LengthBucket(content string) int {
	n := len(content)
	switch {
	case n <= 500:
		return 0
	case n <= 2000:
		return 1
	default:
		return 2
	}
}

// JaccardSimilarity computes word-overlap similarity using words with
// length > 3, the similarity-tier fallback for cross-session plan
// deduplication.
func JaccardSimilarity(a, b string) float64 {
	wordsA := significantWords(a)
	wordsB := significantWords(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	inter := 0
	for w := range wordsA {
		if wordsB[w] {
			inter++
		}
	}
	union := len(wordsA) + len(wordsB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(normalizeContent(s)) {
		if len(w) > 3 {
			out[w] = true
		}
	}
	return out
}

// SimilarityThreshold is the cross-session dedup threshold chosen in
// SPEC_FULL.md's Open Question decisions: >= 0.75 is a duplicate.
const SimilarityThreshold = 0.75

// jsonField pulls a top-level string field out of a raw JSON object,
// using the same gjson idiom as the Transcript Reader.
func jsonField(rawJSON, field string) string {
	if rawJSON == "" {
		return ""
	}
	return gjson.Get(rawJSON, field).Str
}
