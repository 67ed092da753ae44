package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contentizer/internal/timeline"
	"contentizer/pkg/models"
)

// defaultUserID is the owner assigned to projects when no user is given.
// The server is single-user; the column exists so multi-user can arrive
// without a schema change.
const defaultUserID = "0"

var allowedUploadExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// handleUpload receives a video file and creates a new project around it.
// The file lands in a fresh project directory under the storage root with
// a unique name prefix, and the project's seed version gets one track at
// start time 0 with the probed duration.
func (ps *ProjectServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	maxBytes := ps.config.Storage.MaxUploadSizeMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ps.respondWithError(w, r, http.StatusRequestEntityTooLarge, "Upload too large or malformed", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ps.respondWithValidationError(w, r, []ValidationError{{
			Field:   "file",
			Message: "A file field is required",
			Code:    "MISSING_FILE",
		}})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExtensions[ext] {
		ps.respondWithValidationError(w, r, []ValidationError{{
			Field:   "file",
			Message: fmt.Sprintf("Unsupported file type: %s", ext),
			Code:    "UNSUPPORTED_FILE_TYPE",
		}})
		return
	}

	name := sanitizeInput(r.FormValue("name"))
	if vErr := ps.validateProjectName(name); vErr != nil {
		ps.respondWithValidationError(w, r, []ValidationError{*vErr})
		return
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(header.Filename), ext)
	}

	userID := sanitizeInput(r.FormValue("user_id"))
	if userID == "" {
		userID = defaultUserID
	}

	// Every project gets its own directory; the stored filename carries a
	// unique prefix so uploads can never collide.
	projectID := uuid.New().String()
	filename := uploadFilename(header.Filename)
	location := filepath.Join(projectID, filename)

	destination, err := timeline.ResolveUnderRoot(ps.config.Storage.AssetsPath, location)
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not create project directory", err)
		return
	}

	out, err := os.Create(destination)
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not store uploaded file", err)
		return
	}
	written, err := io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destination)
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not store uploaded file", err)
		return
	}

	// Duration soft-fails to zero so a probe hiccup never blocks an upload.
	duration := ps.inspector.VideoDuration(destination)
	thumbPath := ps.operator.GenerateThumbnail(destination)
	ps.thumbCache.SetThumbnail(filename, thumbPath)

	project := models.NewProject(projectID, userID, name, projectID)
	project.Thumbnail = thumbnailReference(thumbPath, filename)
	project.Versions[0].Tracks = []models.Track{{
		Location:  location,
		StartTime: 0,
		Duration:  &duration,
		Type:      models.TrackTypeVideo,
	}}

	if err := ps.store.CreateProject(project); err != nil {
		os.Remove(destination)
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not create project", err)
		return
	}

	ps.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"filename":   filename,
		"size":       written,
		"duration":   duration,
	}).Info("Uploaded file and created project")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	ps.respondJSON(w, map[string]interface{}{
		"success":    true,
		"project":    project,
		"filename":   filename,
		"stream_url": timeline.StreamURLPrefix + filename,
	})
}

// uploadFilename builds the stored name for an uploaded file: a unique
// prefix plus the original base name, with any directory components the
// client sent stripped off.
func uploadFilename(original string) string {
	return fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(original))
}

// thumbnailReference converts an operator thumbnail result into a value a
// client can fetch. A generated thumbnail lives on the server's disk, so
// it is exposed through the thumbnail route keyed by the media filename;
// a placeholder URL passes through untouched.
func thumbnailReference(thumbPath, filename string) string {
	if strings.HasPrefix(thumbPath, "http://") || strings.HasPrefix(thumbPath, "https://") {
		return thumbPath
	}
	return "/api/thumbnail/" + filename
}
