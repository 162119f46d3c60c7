package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadProjectIndex reads a project's index.json, for read-only
// consumers (the HTTP API) that don't want a full Extractor.
func LoadProjectIndex(projectRoot string) (*ProjectIndex, error) {
	var idx ProjectIndex
	path := filepath.Join(projectRoot, ".jacques", "index.json")
	if err := readJSON(path, &idx); err != nil {
		return nil, fmt.Errorf("reading project index: %w", err)
	}
	return &idx, nil
}

// LoadManifest reads one session's manifest file by project root and
// session id.
func LoadManifest(projectRoot, sessionID string) (*SessionManifest, error) {
	var m SessionManifest
	path := filepath.Join(projectRoot, ".jacques", "sessions", sessionID+".json")
	if err := readJSON(path, &m); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return &m, nil
}

// ReadSubagentContent returns the rendered markdown artifact for a
// subagent id under a project.
func ReadSubagentContent(projectRoot, agentID string) (string, error) {
	path := filepath.Join(projectRoot, ".jacques", "subagents", agentID+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading subagent artifact: %w", err)
	}
	return string(data), nil
}

// ReadPlanContent returns a cataloged plan's markdown body by its
// catalog id (the Plan's generated UUID, not its filename).
func ReadPlanContent(projectRoot, planID string) (string, error) {
	idx, err := LoadProjectIndex(projectRoot)
	if err != nil {
		return "", err
	}
	for _, p := range idx.Plans {
		if p.ID == planID {
			data, err := os.ReadFile(p.Path)
			if err != nil {
				return "", fmt.Errorf("reading plan file: %w", err)
			}
			return string(data), nil
		}
	}
	return "", fmt.Errorf("plan %s not found", planID)
}
