package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// handleHealthCheck reports process liveness plus a store round-trip so
// orchestration can tell a wedged database apart from a dead process.
func (ps *ProjectServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	status := "healthy"
	code := http.StatusOK

	if err := ps.store.Ping(); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		ps.logger.WithError(err).Error("Health check: database unreachable")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	ps.respondJSON(w, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"generative": ps.pipeline != nil,
		"public_url": ps.ngrokService.GetPublicURL(),
	})
}

// handleRecentProjects lists the user's projects ordered by last edit.
func (ps *ProjectServer) handleRecentProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	userID := sanitizeInput(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = defaultUserID
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			ps.respondWithValidationError(w, r, []ValidationError{{
				Field:   "limit",
				Message: "Limit must be an integer between 1 and 500",
				Code:    "INVALID_LIMIT",
			}})
			return
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ps.respondWithValidationError(w, r, []ValidationError{{
				Field:   "offset",
				Message: "Offset must be a non-negative integer",
				Code:    "INVALID_OFFSET",
			}})
			return
		}
		offset = parsed
	}

	projects, err := ps.store.ListProjects(userID, limit, offset)
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	ps.respondJSON(w, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// handleGetInfo returns a project's metadata plus per-track probe results.
// The trailing path segment may be a project ID or a track reference (a
// track location or its base name); project ID wins when both match.
func (ps *ProjectServer) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	ref := strings.TrimPrefix(r.URL.Path, "/api/get_info/")
	ref = sanitizeInput(ref)
	if ref == "" {
		ps.respondWithValidationError(w, r, []ValidationError{{
			Field:   "ref",
			Message: "Project ID or track reference is required",
			Code:    "MISSING_REF",
		}})
		return
	}

	projectID := ref
	project, err := ps.store.GetProject(ref)
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Failed to load project", err)
		return
	}
	if project == nil {
		project, err = ps.store.GetProjectByTrackRef(ref)
		if err != nil {
			ps.respondWithError(w, r, http.StatusInternalServerError, "Failed to resolve track reference", err)
			return
		}
		if project == nil {
			ps.respondWithError(w, r, http.StatusNotFound, "No project matches the given reference", nil)
			return
		}
		projectID = project.ProjectID
	}

	info, err := ps.timeline.GetInfo(projectID)
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	ps.respondJSON(w, info)
}
