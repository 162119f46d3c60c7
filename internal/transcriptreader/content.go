package transcriptreader

import (
	"strings"

	"github.com/tidwall/gjson"
)

// extractContent pulls text/thinking/tool_use/tool_result blocks out
// of a message's content field, which is either a plain string or a
// JSON array of typed blocks. Only the first tool_use block is kept;
// additional blocks in the same entry are discarded and the reader
// does not depend on block ordering.
func extractContent(content gjson.Result) (text string, thinking string, firstTool *Content, hasToolUse bool) {
	if content.Type == gjson.String {
		return content.Str, "", nil, false
	}
	if !content.IsArray() {
		return "", "", nil, false
	}

	var textParts []string
	var thinkingParts []string

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").Str {
		case "text":
			if t := block.Get("text").Str; t != "" {
				textParts = append(textParts, t)
			}
		case "thinking":
			if t := block.Get("thinking").Str; t != "" {
				thinkingParts = append(thinkingParts, t)
			}
		case "tool_use":
			hasToolUse = true
			if firstTool == nil {
				firstTool = &Content{
					ToolName:      block.Get("name").Str,
					ToolInputJSON: block.Get("input").Raw,
				}
			}
		}
		return true
	})

	return strings.Join(textParts, "\n"),
		strings.Join(thinkingParts, "\n"),
		firstTool, hasToolUse
}

// extractToolResult pulls the tool_use_id and result text/length out
// of a user-role tool_result content block.
func extractToolResult(content gjson.Result) (toolUseID, resultText string, length int) {
	if !content.IsArray() {
		return "", "", 0
	}
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").Str != "tool_result" {
			return true
		}
		toolUseID = block.Get("tool_use_id").Str
		rc := block.Get("content")
		if rc.Type == gjson.String {
			resultText = rc.Str
			length = len(rc.Str)
			return false
		}
		if rc.IsArray() {
			var parts []string
			rc.ForEach(func(_, b gjson.Result) bool {
				t := b.Get("text").Str
				parts = append(parts, t)
				length += len(t)
				return true
			})
			resultText = strings.Join(parts, "\n")
		}
		return false
	})
	return toolUseID, resultText, length
}

// internalPrefixes lists the literal prefixes that mark a user-role
// entry as internal rather than a "real" user message. Covers both
// source variants, per the decision recorded in SPEC_FULL.md.
var internalPrefixes = []string{
	"<local-command-caveat>",
	"<command-name>",
	"<command-message>",
	"<command-args>",
	"<local-command-stdout>",
}

func isInternalUserText(text string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
