package server

import (
	"net/http"

	"contentizer/internal/generative"
)

// handleGenerate runs the full generation pipeline for a project: prompt
// to image, image to video, video onto the timeline. Long-running; the
// request context carries through so an abandoned client cancels the
// polling.
func (ps *ProjectServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	if ps.pipeline == nil {
		ps.respondWithError(w, r, http.StatusNotImplemented, "Generative pipeline is not configured", nil)
		return
	}

	var body struct {
		ProjectID      string `json:"project_id"`
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt,omitempty"`
		AspectRatio    string `json:"aspect_ratio,omitempty"`
		Duration       int    `json:"duration,omitempty"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		ps.respondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body.ProjectID = sanitizeInput(body.ProjectID)

	var validationErrors []ValidationError
	if vErr := ps.validateProjectID(body.ProjectID); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if body.Prompt == "" {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "prompt",
			Message: "A generation prompt is required",
			Code:    "MISSING_PROMPT",
		})
	}
	if len(validationErrors) > 0 {
		ps.respondWithValidationError(w, r, validationErrors)
		return
	}

	result, err := ps.pipeline.Run(r.Context(), body.ProjectID, generative.Request{
		Prompt:         body.Prompt,
		NegativePrompt: body.NegativePrompt,
		AspectRatio:    body.AspectRatio,
		Duration:       body.Duration,
	})
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	ps.respondJSON(w, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}
