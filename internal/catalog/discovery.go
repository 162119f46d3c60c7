package catalog

import (
	"os"
	"path/filepath"
	"strings"
)

// SessionFile is one discovered transcript on disk.
type SessionFile struct {
	SessionID     string
	Path          string
	ProjectDir    string // <transcript-root>/projects/<encoded-path>
	SubagentFiles []SubagentFile
}

// SubagentFile is a discovered agent-<agentId>.jsonl transcript, per
// the directory layout under <session-id>/subagents/.
type SubagentFile struct {
	AgentID string
	Path    string
}

// DiscoverProjects enumerates encoded project directories under the
// transcript root
func DiscoverProjects(transcriptRoot string) ([]string, error) {
	projectsDir := filepath.Join(transcriptRoot, "projects")
	entries, err := os.ReadDir(projectsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(projectsDir, e.Name()))
		}
	}
	return dirs, nil
}

// DiscoverSessions enumerates <session-id>.jsonl files directly under
// a project directory, plus any subagent transcripts each session has.
func DiscoverSessions(projectDir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(projectDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sessions []SessionFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		sessionID := strings.TrimSuffix(e.Name(), ".jsonl")
		sf := SessionFile{
			SessionID:  sessionID,
			Path:       filepath.Join(projectDir, e.Name()),
			ProjectDir: projectDir,
		}
		sf.SubagentFiles = discoverSubagents(projectDir, sessionID)
		sessions = append(sessions, sf)
	}
	return sessions, nil
}

func discoverSubagents(projectDir, sessionID string) []SubagentFile {
	dir := filepath.Join(projectDir, sessionID, "subagents")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []SubagentFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "agent-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		agentID := strings.TrimSuffix(strings.TrimPrefix(name, "agent-"), ".jsonl")
		out = append(out, SubagentFile{AgentID: agentID, Path: filepath.Join(dir, name)})
	}
	return out
}

// ModTime returns the file's modification time, used by the
// force/skip-if-not-newer re-extraction rule.
func ModTime(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
