package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// handleTrim cuts [start_time, end_time) out of a media file into a new
// file beside the source. The source and any project track lists are left
// untouched; the response carries the stream URL of the new clip.
func (ps *ProjectServer) handleTrim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var body struct {
		Location  string  `json:"location"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		ps.respondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.Location = sanitizeInput(body.Location)

	var validationErrors []ValidationError
	if vErr := ps.validateLocation(body.Location); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if vErr := ps.validateTimeRange(body.StartTime, body.EndTime); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if len(validationErrors) > 0 {
		ps.respondWithValidationError(w, r, validationErrors)
		return
	}

	streamURL, err := ps.timeline.Trim(body.Location, body.StartTime, body.EndTime)
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	ps.respondJSON(w, map[string]interface{}{
		"success":    true,
		"stream_url": streamURL,
	})
}

// handleConcatenate joins a project's current tracks, in timeline order,
// into one output file and returns its stream URL.
func (ps *ProjectServer) handleConcatenate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var body struct {
		ProjectID  string `json:"project_id"`
		OutputName string `json:"output_name,omitempty"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		ps.respondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.ProjectID = sanitizeInput(body.ProjectID)

	if vErr := ps.validateProjectID(body.ProjectID); vErr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*vErr})
		return
	}

	streamURL, err := ps.timeline.Concatenate(body.ProjectID, sanitizeInput(body.OutputName))
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	ps.respondJSON(w, map[string]interface{}{
		"success":    true,
		"stream_url": streamURL,
	})
}

// handleAddTrack appends an existing media file to a project's timeline.
// The track's start time is derived from the tracks already present.
func (ps *ProjectServer) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var body struct {
		ProjectID string `json:"project_id"`
		Location  string `json:"location"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		ps.respondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.ProjectID = sanitizeInput(body.ProjectID)
	body.Location = sanitizeInput(body.Location)

	var validationErrors []ValidationError
	if vErr := ps.validateProjectID(body.ProjectID); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if vErr := ps.validateLocation(body.Location); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if len(validationErrors) > 0 {
		ps.respondWithValidationError(w, r, validationErrors)
		return
	}

	track, count, err := ps.timeline.AddTrack(body.ProjectID, body.Location)
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	ps.logger.WithFields(logrus.Fields{
		"project_id": body.ProjectID,
		"location":   body.Location,
		"tracks":     count,
	}).Info("Track added via API")

	ps.respondJSON(w, map[string]interface{}{
		"success":     true,
		"track":       track,
		"track_count": count,
	})
}
