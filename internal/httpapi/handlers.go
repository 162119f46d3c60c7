package httpapi

import (
	"net/http"
	"strconv"

	"github.com/jacques/jacques/internal/catalog"
	"github.com/jacques/jacques/internal/searchindex"
)

const apiVersion = "0.1.0"

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":  s.registry.List(),
		"focusedId": s.registry.GetFocused(),
	})
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if sess := s.registry.Get(id); sess != nil {
		writeJSON(w, http.StatusOK, sess)
		return
	}

	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	manifest, err := catalog.LoadManifest(project, id)
	if err != nil {
		writeErrorDetail(w, http.StatusNotFound, "session not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleListSubagents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return
	}
	manifest, err := catalog.LoadManifest(project, id)
	if err != nil {
		writeErrorDetail(w, http.StatusNotFound, "session not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manifest.SubagentIDs)
}

func (s *Server) handleSubagentContent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return
	}
	content, err := catalog.ReadSubagentContent(project, agentID)
	if err != nil {
		writeErrorDetail(w, http.StatusNotFound, "subagent artifact not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleProjectCatalog(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return
	}
	idx, err := catalog.LoadProjectIndex(project)
	if err != nil {
		writeErrorDetail(w, http.StatusNotFound, "project catalog not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

func (s *Server) handlePlanContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return
	}
	content, err := catalog.ReadPlanContent(project, id)
	if err != nil {
		writeErrorDetail(w, http.StatusNotFound, "plan not found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.indexMu.RLock()
	var results []searchindex.ScoredManifest
	if s.index != nil {
		results = s.index.Search(query)
	}
	s.indexMu.RUnlock()

	page := searchindex.Paginate(results, offset, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": page,
		"total":   len(results),
	})
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.db.Summary()
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "summary query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnalyticsActivity(w http.ResponseWriter, r *http.Request) {
	points, err := s.db.Activity(recentWindowStart())
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "activity query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleAnalyticsTools(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	tools, err := s.db.ToolUsage(limit)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "tool usage query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (s *Server) handleAnalyticsTopSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	top, err := s.db.TopSessions(limit)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, "top sessions query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": apiVersion})
}
