package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacques/jacques/internal/transcriptreader"
)

// extractSubagent implements step 5: read a subagent
// transcript and write its "result artifact" — a markdown rendering
// of the last substantial assistant output for Explore/Plan agents,
// or a structured markdown of query+results for web-search agents.
func (e *Extractor) extractSubagent(sa SubagentFile) error {
	results, err := transcriptreader.Parse(sa.Path)
	if err != nil {
		return fmt.Errorf("parsing subagent transcript %s: %w", sa.Path, err)
	}
	entries := results[0].Entries

	var lastSubstantial string
	var searchLines []string
	for _, ent := range entries {
		switch ent.Type {
		case transcriptreader.EntryAssistantMessage:
			if isSubstantial(ent.Content.Text) {
				lastSubstantial = ent.Content.Text
			}
		case transcriptreader.EntryWebSearch:
			searchLines = append(searchLines, fmt.Sprintf(
				"- query: %s (%d results)", ent.Content.SearchQuery, ent.Content.SearchResultCount))
		}
	}

	var body string
	if len(searchLines) > 0 {
		body = "# Web Search Results\n\n" + strings.Join(searchLines, "\n")
	} else {
		body = lastSubstantial
	}

	path := filepath.Join(e.subagentsDir(), sa.AgentID+".md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating subagents dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing subagent artifact: %w", err)
	}
	return os.Rename(tmp, path)
}

// isSubstantial matches the "substantial" rule for
// subagent plan content: length > 100 chars and contains a heading.
func isSubstantial(text string) bool {
	return len(text) > 100 && strings.Contains(text, "#")
}
