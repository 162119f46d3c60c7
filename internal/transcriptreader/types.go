// Package transcriptreader parses newline-delimited JSON transcript
// logs into a normalized sequence of entries plus summary stats.
package transcriptreader

import "time"

// EntryType is the normalized classification of a transcript line.
// entryType = skip is filtered out before an entry reaches any
// downstream component; it never appears in a parsed Entries slice.
type EntryType string

const (
	EntryUserMessage      EntryType = "user-message"
	EntryAssistantMessage EntryType = "assistant-message"
	EntryToolCall         EntryType = "tool-call"
	EntryToolResult       EntryType = "tool-result"
	EntryAgentProgress    EntryType = "agent-progress"
	EntryWebSearch        EntryType = "web-search"
	EntrySystemEvent      EntryType = "system-event"
	EntrySummary          EntryType = "summary"
)

// Usage mirrors the raw record's token-usage fields for one turn.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Content is the bag of optional fields a TranscriptEntry may carry.
type Content struct {
	Text              string
	Thinking          string
	ToolName          string
	ToolInputJSON     string
	ToolResultContent string
	ToolResultLength  int
	EventType         string
	EventData         string
	Summary           string
	AgentID           string
	AgentType         string
	AgentDescription  string
	SearchQuery       string
	SearchResultCount int
	Usage             Usage
	CostUSD           float64
	DurationMs        int64
	Model             string
}

// TranscriptEntry is one normalized line of a transcript.
type TranscriptEntry struct {
	Ordinal      int
	UUID         string
	ParentUUID   string
	SessionID    string
	Type         EntryType
	Timestamp    time.Time
	Content      Content
	IsInternal   bool // filtered-out user text prefix, see isInternalUserText
}

// Stats summarizes a parsed transcript for the Catalog Extractor and
// for context-window sizing.
type Stats struct {
	EntryCount                 int
	ParseErrorsCount            int
	FirstTimestamp              time.Time
	LastTimestamp               time.Time
	TotalOutputTokensEstimated  int
	TotalInputTokens            int // naive per-turn sum; overcounts since each turn resends prior context
	LastInputTokens             int
	LastCacheReadTokens         int
	LastCacheCreationTokens     int
	ToolCallCount               int
	HasSubagents                bool
}

// ParseResult is one parsed session (or fork branch) plus its stats.
type ParseResult struct {
	SessionID    string
	ParentID     string
	Relationship string // "" for the primary parse, "fork" for a branch
	Entries      []TranscriptEntry
	Stats        Stats
}
