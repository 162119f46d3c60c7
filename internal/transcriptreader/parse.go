package transcriptreader

import (
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

const maxLineLen = 10 * 1024 * 1024

// forkThreshold is the number of user turns a divergent branch needs
// before it's treated as a genuine fork rather than a same-turn retry.
const forkThreshold = 3

// rawEntry is one decoded transcript line before DAG resolution.
type rawEntry struct {
	lineIndex  int
	uuid       string
	parentUUID string
	line       gjson.Result
	timestamp  time.Time
}

// Parse reads the whole transcript file at path, tolerating malformed
// or oversized lines (each increments a parse-error counter rather
// than aborting), and returns one ParseResult per branch: the primary
// session plus any detected forks. It does not follow the file tail.
func Parse(path string) ([]ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	defer f.Close()

	sessionID := sessionIDFromPath(path)

	lr := newLineReader(f, maxLineLen)
	var raws []rawEntry
	parseErrors := 0

	for {
		line, skipped, ok := lr.next()
		if !ok {
			break
		}
		if skipped {
			parseErrors++
			continue
		}
		if !gjson.Valid(line) {
			parseErrors++
			continue
		}
		parsed := gjson.Parse(line)
		raws = append(raws, rawEntry{
			lineIndex:  len(raws),
			uuid:       parsed.Get("uuid").Str,
			parentUUID: parsed.Get("parentUuid").Str,
			line:       parsed,
			timestamp:  extractTimestamp(parsed),
		})
	}

	branches := splitBranches(raws)

	results := make([]ParseResult, 0, len(branches))
	for _, b := range branches {
		entries := make([]TranscriptEntry, 0, len(b.raws))
		for i, r := range b.raws {
			entry, keep := categorize(r, sessionID)
			if !keep {
				continue
			}
			entry.Ordinal = i
			entries = append(entries, entry)
		}
		stats := computeStats(entries)
		stats.ParseErrorsCount = parseErrors
		id := sessionID
		relationship := ""
		if b.forkRoot != "" {
			id = sessionID + "-" + b.forkRoot
			relationship = "fork"
		}
		results = append(results, ParseResult{
			SessionID:    id,
			ParentID:     sessionID,
			Relationship: relationship,
			Entries:      entries,
			Stats:        stats,
		})
	}
	if len(results) == 0 {
		results = append(results, ParseResult{SessionID: sessionID, Stats: Stats{ParseErrorsCount: parseErrors}})
	}
	return results, nil
}

type branch struct {
	raws     []rawEntry
	forkRoot string // "" for the primary branch
}

// splitBranches walks the uuid/parentUuid DAG the way Claude Code
// transcripts occasionally branch (a retried or edited message),
// generalized from the corpus's own fork-detection walk: a
// divergence is a genuine fork only once the smaller branch
// accumulates forkThreshold user turns; otherwise it is a same-turn
// retry and only the longer continuation is kept.
func splitBranches(raws []rawEntry) []branch {
	if len(raws) == 0 {
		return nil
	}

	children := make(map[string][]int) // parentUUID -> indices into raws
	byUUID := make(map[string]int)
	for i, r := range raws {
		if r.uuid != "" {
			byUUID[r.uuid] = i
		}
	}
	for i, r := range raws {
		children[r.parentUUID] = append(children[r.parentUUID], i)
	}

	// Find root(s): entries whose parentUUID is empty or doesn't
	// resolve to any entry we actually have.
	var roots []int
	for i, r := range raws {
		if r.parentUUID == "" {
			roots = append(roots, i)
			continue
		}
		if _, known := byUUID[r.parentUUID]; !known {
			roots = append(roots, i)
		}
	}
	if len(roots) == 0 {
		roots = []int{0}
	}

	hasFork := false
	for parent, idxs := range children {
		if parent != "" && len(idxs) > 1 {
			hasFork = true
			break
		}
	}
	if !hasFork {
		// Single well-formed chain (or no parent metadata at all):
		// fall back to source order.
		return []branch{{raws: raws}}
	}

	var out []branch
	var walk func(idx int, acc *[]rawEntry)
	walk = func(idx int, acc *[]rawEntry) {
		*acc = append(*acc, raws[idx])
		kids := children[raws[idx].uuid]
		if len(kids) == 0 {
			return
		}
		if len(kids) == 1 {
			walk(kids[0], acc)
			return
		}
		// Multiple children: pick the branch with the most user
		// turns as the continuation of acc; branches reaching
		// forkThreshold user turns become their own result.
		best := kids[0]
		bestLen := branchUserTurns(raws, children, kids[0])
		for _, k := range kids[1:] {
			if n := branchUserTurns(raws, children, k); n > bestLen {
				best = k
				bestLen = n
			}
		}
		for _, k := range kids {
			if k == best {
				continue
			}
			if branchUserTurns(raws, children, k) >= forkThreshold {
				var forkAcc []rawEntry
				walk(k, &forkAcc)
				out = append(out, branch{raws: forkAcc, forkRoot: raws[k].uuid})
			}
		}
		walk(best, acc)
	}

	for _, r := range roots {
		var acc []rawEntry
		walk(r, &acc)
		out = append([]branch{{raws: acc}}, out...)
	}
	return out
}

func branchUserTurns(raws []rawEntry, children map[string][]int, start int) int {
	count := 0
	idx := start
	for {
		if raws[idx].line.Get("type").Str == "user" {
			count++
		}
		kids := children[raws[idx].uuid]
		if len(kids) == 0 {
			return count
		}
		idx = kids[0]
	}
}

func sessionIDFromPath(path string) string {
	base := path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	const suffix = ".jsonl"
	if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
		return base[:len(base)-len(suffix)]
	}
	return base
}

func extractTimestamp(line gjson.Result) time.Time {
	if ts := line.Get("timestamp").Str; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	}
	if ts := line.Get("snapshot.timestamp").Str; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// categorize applies the raw-type -> entryType rules.
// keep is false for entryType=skip.
func categorize(r rawEntry, sessionID string) (TranscriptEntry, bool) {
	line := r.line
	rawType := line.Get("type").Str

	entry := TranscriptEntry{
		UUID:       r.uuid,
		ParentUUID: r.parentUUID,
		SessionID:  sessionID,
		Timestamp:  r.timestamp,
	}

	switch rawType {
	case "user", "queue-operation":
		content := line.Get("message.content")
		if !content.Exists() {
			content = line.Get("content")
		}
		text, _, _, _ := extractContent(content)
		tuid, resultText, length := extractToolResult(content)
		if text == "" && tuid == "" {
			return entry, false
		}
		entry.Type = EntryUserMessage
		entry.Content.Text = text
		entry.IsInternal = isInternalUserText(text)
		if tuid != "" {
			entry.Type = EntryToolResult
			entry.Content.ToolResultContent = resultText
			entry.Content.ToolResultLength = length
		}
		return entry, true

	case "assistant":
		content := line.Get("message.content")
		if !content.Exists() {
			content = line.Get("content")
		}
		text, thinking, tool, hasToolUse := extractContent(content)
		entry.Content.Usage = extractUsage(line)
		entry.Content.Model = line.Get("message.model").Str
		if hasToolUse && tool != nil {
			entry.Type = EntryToolCall
			entry.Content.ToolName = tool.ToolName
			entry.Content.ToolInputJSON = tool.ToolInputJSON
			return entry, true
		}
		entry.Type = EntryAssistantMessage
		entry.Content.Text = text
		entry.Content.Thinking = thinking
		return entry, true

	case "progress":
		subtype := line.Get("subtype").Str
		switch subtype {
		case "hook_progress":
			return entry, false
		case "agent_progress", "bash_progress":
			entry.Type = EntryAgentProgress
			entry.Content.AgentID = line.Get("agentId").Str
			entry.Content.AgentType = line.Get("agentType").Str
			entry.Content.AgentDescription = line.Get("description").Str
			return entry, true
		case "mcp_progress", "query_update", "search_results_received":
			entry.Type = EntryWebSearch
			entry.Content.SearchQuery = line.Get("query").Str
			entry.Content.SearchResultCount = int(line.Get("resultCount").Int())
			return entry, true
		default:
			entry.Type = EntrySystemEvent
			entry.Content.EventType = subtype
			return entry, true
		}

	case "system":
		if line.Get("subtype").Str == "turn_duration" {
			entry.Type = EntrySystemEvent
			entry.Content.EventType = "turn_duration"
			entry.Content.DurationMs = line.Get("durationMs").Int()
			return entry, true
		}
		return entry, false

	case "summary":
		entry.Type = EntrySummary
		entry.Content.Summary = line.Get("summary").Str
		return entry, true

	case "file-history-snapshot":
		return entry, false

	default:
		return entry, false
	}
}

func extractUsage(line gjson.Result) Usage {
	u := line.Get("message.usage")
	if !u.Exists() {
		u = line.Get("usage")
	}
	return Usage{
		InputTokens:         int(u.Get("input_tokens").Int()),
		OutputTokens:        int(u.Get("output_tokens").Int()),
		CacheCreationTokens: int(u.Get("cache_creation_input_tokens").Int()),
		CacheReadTokens:     int(u.Get("cache_read_input_tokens").Int()),
	}
}

// computeStats implements statistics(entries).
func computeStats(entries []TranscriptEntry) Stats {
	var s Stats
	s.EntryCount = len(entries)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		if s.FirstTimestamp.IsZero() || e.Timestamp.Before(s.FirstTimestamp) {
			s.FirstTimestamp = e.Timestamp
		}
		if e.Timestamp.After(s.LastTimestamp) {
			s.LastTimestamp = e.Timestamp
		}

		switch e.Type {
		case EntryAssistantMessage:
			s.TotalOutputTokensEstimated += EstimateOutputTokens(e.Content.Text)
			s.TotalOutputTokensEstimated += EstimateOutputTokens(e.Content.Thinking)
		case EntryToolCall:
			s.ToolCallCount++
			s.TotalOutputTokensEstimated += EstimateOutputTokens(e.Content.ToolInputJSON)
		case EntryAgentProgress:
			if e.Content.AgentID != "" {
				s.HasSubagents = true
			}
		}

		u := e.Content.Usage
		if u.InputTokens > 0 || u.CacheReadTokens > 0 || u.CacheCreationTokens > 0 {
			s.TotalInputTokens += u.InputTokens
			s.LastInputTokens = u.InputTokens
			s.LastCacheReadTokens = u.CacheReadTokens
			s.LastCacheCreationTokens = u.CacheCreationTokens
		}
	}
	return s
}
