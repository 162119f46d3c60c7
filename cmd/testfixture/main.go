// Command testfixture writes a tree of synthetic transcript
// directories for manual exploration and for seeding catalog/analytics
// benchmarks, in the same on-disk layout a real transcript root uses:
// <out>/projects/<encoded-project>/<sessionID>.jsonl.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jacques/jacques/internal/pathenc"
	"github.com/jacques/jacques/internal/transcripttest"
)

type sessionSpec struct {
	project  string
	suffix   string
	turns    int // number of user/assistant exchanges
	toolUse  bool
	subagent bool
}

var specs = []sessionSpec{
	{project: "/Users/test/project-alpha", suffix: "small-2", turns: 2},
	{project: "/Users/test/project-alpha", suffix: "small-5", turns: 5},
	{project: "/Users/test/project-beta", suffix: "mixed-content-6", turns: 6, toolUse: true},
	{project: "/Users/test/project-beta", suffix: "medium-8", turns: 8, toolUse: true},
	{project: "/Users/test/project-beta", suffix: "medium-100", turns: 100, toolUse: true},
	{project: "/Users/test/project-gamma", suffix: "large-200", turns: 200, toolUse: true, subagent: true},
	{project: "/Users/test/project-gamma", suffix: "large-1500", turns: 1500, toolUse: true, subagent: true},
	{project: "/Users/test/project-delta", suffix: "xlarge-5500", turns: 5500, toolUse: true, subagent: true},
}

func main() {
	out := flag.String("out", "", "output transcript root directory")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <path>")
		os.Exit(1)
	}

	if err := os.RemoveAll(*out); err != nil {
		log.Fatalf("removing existing output dir: %v", err)
	}

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, spec := range specs {
		path, err := writeSessionFixture(*out, spec, i, base)
		if err != nil {
			log.Fatalf("writing fixture %s: %v", spec.suffix, err)
		}
		fmt.Printf("  test-session-%s: %d turns -> %s\n", spec.suffix, spec.turns, path)
	}

	fmt.Printf("Fixtures written under %s\n", *out)
}

func writeSessionFixture(root string, spec sessionSpec, index int, base time.Time) (string, error) {
	sessionID := fmt.Sprintf("test-session-%s", spec.suffix)
	projectDir := filepath.Join(root, "projects", pathenc.Encode(spec.project))
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return "", fmt.Errorf("creating project dir: %w", err)
	}

	start := base.Add(time.Duration(index) * 24 * time.Hour)
	var lines string
	if spec.suffix == "mixed-content-6" {
		lines = mixedContentSession(sessionID, start)
	} else {
		lines = generatedSession(sessionID, spec, start)
	}

	path := filepath.Join(projectDir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

func generatedSession(sessionID string, spec sessionSpec, start time.Time) string {
	b := transcripttest.NewSessionBuilder(sessionID)
	ts := func(i int) string {
		return start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano)
	}

	for i := range spec.turns {
		b.AddUser(ts(i*2), fmt.Sprintf(
			"User message %d of %d. Please help me with this task.", i, spec.turns,
		))

		usage := transcripttest.Usage{InputTokens: 500 + i, OutputTokens: 120}
		if spec.toolUse && i%3 == 0 {
			b, toolUseID := b.AddToolCall(ts(i*2+1), "Read", map[string]any{"file_path": "/src/main.ts"}, usage)
			b.AddToolResult(ts(i*2+1), toolUseID, "const app = express();")
		} else {
			b.AddAssistantText(ts(i*2+1), fmt.Sprintf(
				"Assistant response %d of %d. Here is my analysis.", i, spec.turns,
			), "", usage)
		}

		if spec.subagent && i%25 == 0 {
			b.AddAgentProgress(ts(i*2+1), fmt.Sprintf("agent-%d", i), "general-purpose", "Investigating related files")
		}
	}
	return b.String()
}

func mixedContentSession(sessionID string, start time.Time) string {
	b := transcripttest.NewSessionBuilder(sessionID)
	ts := func(i int) string {
		return start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano)
	}

	b.AddUser(ts(0), "Help me read a file")
	b.AddAssistantText(ts(1), "Here is my analysis.", "Let me analyze...", transcripttest.Usage{InputTokens: 500, OutputTokens: 80})
	b.AddUser(ts(2), "Now check the directory")
	b, readID := b.AddToolCall(ts(3), "Read", map[string]any{"file_path": "/src/main.ts"}, transcripttest.Usage{InputTokens: 520, OutputTokens: 40})
	b.AddToolResult(ts(3), readID, "const app = express();")
	b, bashID := b.AddToolCall(ts(4), "Bash", map[string]any{"command": "ls -la /src"}, transcripttest.Usage{InputTokens: 530, OutputTokens: 30})
	b.AddToolResult(ts(4), bashID, "main.ts\npackage.json")
	b.AddUser(ts(5), "Thanks")
	return b.String()
}
