package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jacques/jacques/internal/catalog"
	"github.com/jacques/jacques/internal/searchindex"
)

func recentWindowStart() time.Time {
	return time.Now().AddDate(0, 0, -30)
}

// reindexProgress is one SSE frame of a long-running archive
// operation.
type reindexProgress struct {
	Phase     string `json:"phase"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Current   string `json:"current,omitempty"`
}

// handleReindex rebuilds the analytics cache and search index from
// every project's catalog manifests on disk, streaming progress via
// SSE. Projects are supplied as repeated ?project= query values;
// there is no central registry of "all known projects" below this
// layer, so callers (the TUI/GUI) pass the set they track.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	projects := r.URL.Query()["project"]
	stream, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	manifests := make(map[string]*catalog.SessionManifest)
	newIndex := searchindex.New()

	total := len(projects)
	for i, project := range projects {
		stream.sendJSON("progress", reindexProgress{
			Phase: "scan", Total: total, Completed: i, Current: project,
		})
		idx, err := catalog.LoadProjectIndex(project)
		if err != nil {
			continue
		}
		for _, ref := range idx.Sessions {
			m, err := catalog.LoadManifest(project, ref.SessionID)
			if err != nil {
				continue
			}
			manifestID := project + ":" + ref.SessionID
			manifests[manifestID] = m
			newIndex.Add(m, manifestID, project)
		}
	}

	stream.sendJSON("progress", reindexProgress{Phase: "rebuild", Total: total, Completed: total})
	if err := s.db.Rebuild(manifests); err != nil {
		stream.sendJSON("error", map[string]string{"error": err.Error()})
		return
	}

	s.indexMu.Lock()
	s.index = newIndex
	s.indexMu.Unlock()

	stream.sendJSON("complete", reindexProgress{
		Phase: "complete", Total: total, Completed: total,
		Current: fmt.Sprintf("%d manifests indexed", len(manifests)),
	})
}
