// Package transcripttest provides shared JSONL fixture builders for
// transcript-reader and catalog tests. It emits lines in the raw
// on-disk shape Claude Code (and compatible tools) actually write:
// one JSON object per line, carrying uuid/parentUuid, a type
// discriminator, and a message.content block array.
package transcripttest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Usage mirrors a turn's token-usage block.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

func (u Usage) toMap() map[string]any {
	return map[string]any{
		"input_tokens":                u.InputTokens,
		"output_tokens":               u.OutputTokens,
		"cache_creation_input_tokens": u.CacheCreationTokens,
		"cache_read_input_tokens":     u.CacheReadTokens,
	}
}

// UserJSON returns a plain user message line.
func UserJSON(uuid, parentUUID, timestamp, text string) string {
	return mustMarshal(map[string]any{
		"type":       "user",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"message": map[string]any{
			"content": text,
		},
	})
}

// UserToolResultJSON returns a user-role tool_result line, the shape
// Claude Code writes after a tool call completes.
func UserToolResultJSON(uuid, parentUUID, timestamp, toolUseID, resultText string) string {
	return mustMarshal(map[string]any{
		"type":       "user",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"message": map[string]any{
			"content": []map[string]any{
				{
					"type":        "tool_result",
					"tool_use_id": toolUseID,
					"content":     resultText,
				},
			},
		},
	})
}

// AssistantTextJSON returns an assistant message line carrying text
// and/or thinking blocks plus a usage block.
func AssistantTextJSON(uuid, parentUUID, timestamp, text, thinking string, usage Usage) string {
	var blocks []map[string]any
	if thinking != "" {
		blocks = append(blocks, map[string]any{"type": "thinking", "thinking": thinking})
	}
	if text != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": text})
	}
	return mustMarshal(map[string]any{
		"type":       "assistant",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"message": map[string]any{
			"content": blocks,
			"usage":   usage.toMap(),
		},
	})
}

// AssistantToolCallJSON returns an assistant message line carrying a
// single tool_use block.
func AssistantToolCallJSON(uuid, parentUUID, timestamp, toolName string, toolInput any, usage Usage) string {
	input, err := json.Marshal(toolInput)
	if err != nil {
		panic(err)
	}
	return mustMarshal(map[string]any{
		"type":       "assistant",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"message": map[string]any{
			"content": []map[string]any{
				{
					"type":  "tool_use",
					"name":  toolName,
					"input": json.RawMessage(input),
				},
			},
			"usage": usage.toMap(),
		},
	})
}

// AgentProgressJSON returns a progress line for a subagent turn.
func AgentProgressJSON(uuid, parentUUID, timestamp, agentID, agentType, description string) string {
	return mustMarshal(map[string]any{
		"type":        "progress",
		"uuid":        uuid,
		"parentUuid":  parentUUID,
		"timestamp":   timestamp,
		"subtype":     "agent_progress",
		"agentId":     agentID,
		"agentType":   agentType,
		"description": description,
	})
}

// WebSearchProgressJSON returns a progress line for a web-search turn.
func WebSearchProgressJSON(uuid, parentUUID, timestamp, query string, resultCount int) string {
	return mustMarshal(map[string]any{
		"type":        "progress",
		"uuid":        uuid,
		"parentUuid":  parentUUID,
		"timestamp":   timestamp,
		"subtype":     "query_update",
		"query":       query,
		"resultCount": resultCount,
	})
}

// SummaryJSON returns a summary line.
func SummaryJSON(uuid, parentUUID, timestamp, summary string) string {
	return mustMarshal(map[string]any{
		"type":       "summary",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"summary":    summary,
	})
}

// TurnDurationJSON returns a system turn_duration line.
func TurnDurationJSON(uuid, parentUUID, timestamp string, durationMs int64) string {
	return mustMarshal(map[string]any{
		"type":       "system",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  timestamp,
		"subtype":    "turn_duration",
		"durationMs": durationMs,
	})
}

// JoinJSONL joins JSON lines with newlines and appends a trailing
// newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// SessionBuilder constructs a single linear transcript as JSONL,
// threading parentUuid from one appended line to the next so the
// reader's fork-detection walk sees an ordinary unforked chain.
type SessionBuilder struct {
	prefix string
	seq    int
	last   string
	lines  []string
}

// NewSessionBuilder returns a SessionBuilder whose generated uuids are
// prefixed with id (typically the session ID).
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{prefix: id}
}

func (b *SessionBuilder) nextUUID() string {
	b.seq++
	return fmt.Sprintf("%s-%03d", b.prefix, b.seq)
}

// AddUser appends a user message line.
func (b *SessionBuilder) AddUser(timestamp, text string) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, UserJSON(uuid, b.last, timestamp, text))
	b.last = uuid
	return b
}

// AddToolResult appends a user-role tool_result line for toolUseID.
func (b *SessionBuilder) AddToolResult(timestamp, toolUseID, resultText string) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, UserToolResultJSON(uuid, b.last, timestamp, toolUseID, resultText))
	b.last = uuid
	return b
}

// AddAssistantText appends an assistant text/thinking message line.
func (b *SessionBuilder) AddAssistantText(timestamp, text, thinking string, usage Usage) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, AssistantTextJSON(uuid, b.last, timestamp, text, thinking, usage))
	b.last = uuid
	return b
}

// AddToolCall appends an assistant tool_use message line and returns
// the generated uuid so a caller can pass it as a later tool_use_id.
func (b *SessionBuilder) AddToolCall(timestamp, toolName string, toolInput any, usage Usage) (*SessionBuilder, string) {
	uuid := b.nextUUID()
	b.lines = append(b.lines, AssistantToolCallJSON(uuid, b.last, timestamp, toolName, toolInput, usage))
	b.last = uuid
	return b, uuid
}

// AddAgentProgress appends a subagent-progress line.
func (b *SessionBuilder) AddAgentProgress(timestamp, agentID, agentType, description string) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, AgentProgressJSON(uuid, b.last, timestamp, agentID, agentType, description))
	b.last = uuid
	return b
}

// AddWebSearch appends a web-search progress line.
func (b *SessionBuilder) AddWebSearch(timestamp, query string, resultCount int) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, WebSearchProgressJSON(uuid, b.last, timestamp, query, resultCount))
	b.last = uuid
	return b
}

// AddSummary appends a summary line.
func (b *SessionBuilder) AddSummary(timestamp, summary string) *SessionBuilder {
	uuid := b.nextUUID()
	b.lines = append(b.lines, SummaryJSON(uuid, b.last, timestamp, summary))
	b.last = uuid
	return b
}

// AddRaw appends an arbitrary raw line, useful for malformed-input
// test cases. It does not participate in uuid chaining.
func (b *SessionBuilder) AddRaw(line string) *SessionBuilder {
	b.lines = append(b.lines, line)
	return b
}

// LastUUID returns the uuid of the most recently appended line.
func (b *SessionBuilder) LastUUID() string {
	return b.last
}

// String returns the JSONL content with a trailing newline.
func (b *SessionBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// StringNoTrailingNewline returns the JSONL content without a
// trailing newline, for exercising the reader's final-partial-line
// handling.
func (b *SessionBuilder) StringNoTrailingNewline() string {
	return strings.Join(b.lines, "\n")
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
