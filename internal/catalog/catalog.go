package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/tidwall/gjson"

	"github.com/jacques/jacques/internal/planid"
	"github.com/jacques/jacques/internal/transcriptreader"
)

// Options configures a single extraction operation.
type Options struct {
	Force bool
}

// Extractor runs incremental manifest/plan/subagent extraction over a
// single project's transcripts.
type Extractor struct {
	ProjectRoot string // <project-root>, where .jacques/ lives
	CatalogDir  string // <project-root>/.jacques
}

// NewExtractor derives the catalog directory from a project root.
func NewExtractor(projectRoot string) *Extractor {
	return &Extractor{
		ProjectRoot: projectRoot,
		CatalogDir:  filepath.Join(projectRoot, ".jacques"),
	}
}

func (e *Extractor) sessionsDir() string { return filepath.Join(e.CatalogDir, "sessions") }
func (e *Extractor) plansDir() string    { return filepath.Join(e.CatalogDir, "plans") }
func (e *Extractor) subagentsDir() string { return filepath.Join(e.CatalogDir, "subagents") }
func (e *Extractor) indexPath() string   { return filepath.Join(e.CatalogDir, "index.json") }

// loadIndex reads the existing ProjectIndex, or returns an empty one.
func (e *Extractor) loadIndex() (*ProjectIndex, error) {
	var idx ProjectIndex
	if err := readJSON(e.indexPath(), &idx); err != nil {
		return &ProjectIndex{}, nil
	}
	return &idx, nil
}

// ExtractSession implements the per-session extraction steps.
func (e *Extractor) ExtractSession(ctx context.Context, sf SessionFile, opts Options) (*SessionManifest, error) {
	info, err := ModTime(sf.Path)
	if err != nil {
		return nil, fmt.Errorf("stat transcript %s: %w", sf.Path, err)
	}
	mtime := info.ModTime()

	manifestPath := filepath.Join(e.sessionsDir(), sf.SessionID+".json")
	if !opts.Force {
		var existing SessionManifest
		if err := readJSON(manifestPath, &existing); err == nil {
			if !existing.JSONLModifiedAt.Before(mtime) {
				return &existing, nil // up to date, skip
			}
		}
	}

	results, err := transcriptreader.Parse(sf.Path)
	if err != nil {
		return nil, fmt.Errorf("parsing transcript %s: %w", sf.Path, err)
	}
	primary := results[0]
	entries := primary.Entries

	embedded := planid.DetectEmbedded(entries)
	agent := planid.DetectAgent(entries)
	written := planid.DetectWritten(entries)
	refs := planid.MergeWithinSession(append(append(embedded, agent...), written...))

	manifest := &SessionManifest{
		SessionID:       sf.SessionID,
		ProjectPath:     e.ProjectRoot,
		JSONLModifiedAt: mtime,
		MessageCount:    countUserMessages(entries),
		ToolCallCount:   primary.Stats.ToolCallCount,
		HasSubagents:    primary.Stats.HasSubagents || len(sf.SubagentFiles) > 0,
		Tokens: Tokens{
			Input:         primary.Stats.LastInputTokens,
			Output:        primary.Stats.TotalOutputTokensEstimated,
			CacheCreation: primary.Stats.LastCacheCreationTokens,
			CacheRead:     primary.Stats.LastCacheReadTokens,
		},
	}
	manifest.StartedAt = primary.Stats.FirstTimestamp
	manifest.EndedAt = primary.Stats.LastTimestamp
	manifest.Title = firstUserTitle(entries)
	manifest.Mode = deriveMode(entries)

	var subagentIDs []string
	for _, sa := range sf.SubagentFiles {
		if err := e.extractSubagent(sa); err != nil {
			return nil, fmt.Errorf("extracting subagent %s: %w", sa.AgentID, err)
		}
		subagentIDs = append(subagentIDs, sa.AgentID)
	}
	manifest.SubagentIDs = subagentIDs

	var texts []string
	var filePaths []string
	for _, ent := range entries {
		if ent.Type == transcriptreader.EntryAssistantMessage {
			texts = append(texts, ent.Content.Text)
		}
		if ent.Type == transcriptreader.EntryUserMessage && !ent.IsInternal {
			texts = append(texts, ent.Content.Text)
		}
		if ent.Type == transcriptreader.EntryToolCall {
			if ent.Content.ToolName == "Write" || ent.Content.ToolName == "Edit" {
				if p := jsonFieldFilePath(ent.Content.ToolInputJSON); p != "" {
					filePaths = append(filePaths, p)
				}
			}
		}
	}
	manifest.Technologies = DeriveTechnologies(texts, filePaths)
	manifest.FilesModified = dedupStrings(filePaths)
	manifest.ToolsUsed = toolsUsed(entries)
	manifest.UserQuestions = userQuestions(entries)
	manifest.ContextSnippets = contextSnippets(entries)

	index, err := e.loadIndex()
	if err != nil {
		return nil, err
	}
	pc := NewPlanCatalog(e.plansDir(), index.Plans)

	now := time.Now()
	for i := range refs {
		if refs[i].Body == "" {
			continue
		}
		id, err := pc.CatalogPlan(refs[i].Title, refs[i].Body, sf.SessionID, now)
		if err != nil {
			return nil, fmt.Errorf("cataloging plan: %w", err)
		}
		refs[i].CatalogID = id
	}
	manifest.PlanRefs = refs
	manifest.PlanCount = len(refs)
	index.Plans = pc.Plans()

	if err := writeJSONAtomic(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	index.Sessions = upsertSessionRef(index.Sessions, SessionRef{
		SessionID:    sf.SessionID,
		ManifestPath: manifestPath,
		Title:        manifest.Title,
		StartedAt:    manifest.StartedAt,
		EndedAt:      manifest.EndedAt,
	})
	if err := writeJSONAtomic(e.indexPath(), index); err != nil {
		return nil, fmt.Errorf("writing project index: %w", err)
	}

	return manifest, nil
}

// ExtractProject runs the per-session step for every session file
// under a project, tolerating per-session failures.
func (e *Extractor) ExtractProject(ctx context.Context, projectDir string, opts Options) Result {
	sessions, err := DiscoverSessions(projectDir)
	if err != nil {
		return Result{Errors: []error{err}}
	}

	var res Result
	for _, sf := range sessions {
		select {
		case <-ctx.Done():
			res.Errors = append(res.Errors, ctx.Err())
			return res
		default:
		}
		if _, err := e.ExtractSession(ctx, sf, opts); err != nil {
			res.Errors = append(res.Errors, err)
			res.Skipped++
			continue
		}
		res.Extracted++
	}
	return res
}

func countUserMessages(entries []transcriptreader.TranscriptEntry) int {
	n := 0
	for _, e := range entries {
		if e.Type == transcriptreader.EntryUserMessage && !e.IsInternal {
			n++
		}
	}
	return n
}

func firstUserTitle(entries []transcriptreader.TranscriptEntry) string {
	for _, e := range entries {
		if e.Type == transcriptreader.EntryUserMessage && !e.IsInternal {
			return truncate(e.Content.Text, 80)
		}
	}
	return ""
}

// deriveMode implements step 10: planning takes
// precedence over trigger-based execution detection.
func deriveMode(entries []transcriptreader.TranscriptEntry) Mode {
	for _, e := range entries {
		if e.Type == transcriptreader.EntryToolCall && e.Content.ToolName == "EnterPlanMode" {
			return ModePlanning
		}
	}
	for _, e := range entries {
		if e.Type == transcriptreader.EntryUserMessage && !e.IsInternal {
			lower := strings.ToLower(e.Content.Text)
			for _, trig := range triggerPhrases {
				if strings.Contains(lower, trig) {
					return ModeExecution
				}
			}
			break
		}
	}
	return ModeNone
}

var triggerPhrases = []string{
	"implement the following plan:",
	"here is the plan:",
	"follow this plan:",
}

// toolsUsed collects every distinct tool name invoked, plus (for Bash
// calls) the command's own argv tokens, so a search for "npm" or
// "docker" reaches sessions where the tool only surfaces inside a
// shell command rather than in its name.
func toolsUsed(entries []transcriptreader.TranscriptEntry) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, e := range entries {
		if e.Type != transcriptreader.EntryToolCall || e.Content.ToolName == "" {
			continue
		}
		add(e.Content.ToolName)
		if e.Content.ToolName == "Bash" {
			for _, tok := range bashCommandTokens(e.Content.ToolInputJSON) {
				add(tok)
			}
		}
	}
	return out
}

// bashCommandTokens splits a Bash tool call's command argument into
// shell tokens, dropping tokens shorter than 3 bytes and anything that
// starts with "-" (flags). Tokens are otherwise kept as-is: no
// lowercasing, stop-word or all-digit filtering.
func bashCommandTokens(toolInputJSON string) []string {
	command := gjson.Get(toolInputJSON, "command").Str
	if command == "" {
		return nil
	}
	fields, err := shlex.Split(command)
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range fields {
		if len(f) < 3 || strings.HasPrefix(f, "-") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func userQuestions(entries []transcriptreader.TranscriptEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Type != transcriptreader.EntryUserMessage || e.IsInternal {
			continue
		}
		out = append(out, truncate(e.Content.Text, 200))
	}
	return out
}

func contextSnippets(entries []transcriptreader.TranscriptEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Type != transcriptreader.EntryAssistantMessage || e.Content.Text == "" {
			continue
		}
		out = append(out, truncate(e.Content.Text, 300))
		if len(out) >= 20 {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func upsertSessionRef(refs []SessionRef, ref SessionRef) []SessionRef {
	for i, r := range refs {
		if r.SessionID == ref.SessionID {
			refs[i] = ref
			return refs
		}
	}
	return append(refs, ref)
}

func jsonFieldFilePath(rawJSON string) string {
	if rawJSON == "" {
		return ""
	}
	return gjson.Get(rawJSON, "file_path").Str
}
