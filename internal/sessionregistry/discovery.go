package sessionregistry

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jacques/jacques/internal/pathenc"
)

// DiscoveredSession is one candidate found by a startup scan, ready to
// be handed to Registry.registerDiscovered.
type DiscoveredSession struct {
	SessionID      string
	ProjectPath    string
	TranscriptPath string
}

// ProcessLister enumerates live processes by executable name. Exists
// so tests can fake process discovery without shelling out.
type ProcessLister func(ctx context.Context, processName string) ([]Process, error)

// Process is one matched OS process.
type Process struct {
	PID int
	CWD string
}

// psProcessLister shells out to ps, the only process-enumeration
// mechanism available without a third-party library; the exact
// mechanism is an implementation detail, not a contract other code
// depends on.
func psProcessLister(ctx context.Context, processName string) ([]Process, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid,comm").Output()
	if err != nil {
		return nil, err
	}
	var procs []Process
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		if !strings.Contains(fields[1], processName) {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, Process{PID: pid, CWD: processCWD(pid)})
	}
	return procs, nil
}

// processCWD resolves a process's working directory via the /proc
// cwd symlink. Returns "" on platforms without /proc.
func processCWD(pid int) string {
	link, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/cwd")
	if err != nil {
		return ""
	}
	return link
}

// FindJSONLFiles returns the *.jsonl files under dir modified within
// the last 60 seconds, or, if none qualify, the single most recently
// modified file.
func FindJSONLFiles(dir string, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var recent []string
	var newestPath string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		mt := info.ModTime()
		if now.Sub(mt) <= 60*time.Second {
			recent = append(recent, path)
		}
		if newestPath == "" || mt.After(newestMod) {
			newestPath, newestMod = path, mt
		}
	}
	if len(recent) > 0 {
		return recent, nil
	}
	if newestPath != "" {
		return []string{newestPath}, nil
	}
	return nil, nil
}

// Discover scans for live processName instances and, for each, the
// decoded transcript directory's recent .jsonl files, returning a
// DiscoveredSession per file found.
func Discover(ctx context.Context, transcriptRoot, processName string, lister ProcessLister, now time.Time) ([]DiscoveredSession, error) {
	if lister == nil {
		lister = psProcessLister
	}
	procs, err := lister(ctx, processName)
	if err != nil {
		return nil, err
	}
	var out []DiscoveredSession
	for _, p := range procs {
		if p.CWD == "" {
			continue
		}
		encoded := pathenc.Encode(p.CWD)
		projectDir := filepath.Join(transcriptRoot, "projects", encoded)
		files, err := FindJSONLFiles(projectDir, now)
		if err != nil {
			continue
		}
		for _, f := range files {
			out = append(out, DiscoveredSession{
				SessionID:      strings.TrimSuffix(filepath.Base(f), ".jsonl"),
				ProjectPath:    p.CWD,
				TranscriptPath: f,
			})
		}
	}
	return out, nil
}

// RunDiscovery executes Discover and registers every result.
func RunDiscovery(ctx context.Context, r *Registry, transcriptRoot, processName string, lister ProcessLister) error {
	found, err := Discover(ctx, transcriptRoot, processName, lister, time.Now())
	if err != nil {
		return err
	}
	for _, d := range found {
		r.registerDiscovered(d.SessionID, d.ProjectPath, d.TranscriptPath)
	}
	return nil
}
