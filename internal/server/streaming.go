package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"contentizer/internal/timeline"
)

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// handleStream serves a media file by its stream filename with byte-range
// support so players can seek. The filename is resolved to a full track
// location through the project that registered it, never trusted as a
// path on its own.
func (ps *ProjectServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	filename := streamFilename(r.URL.Path, "/api/stream/")
	if filename == "" {
		ps.respondWithValidationError(w, r, []ValidationError{{
			Field:   "filename",
			Message: "Stream filename is required",
			Code:    "MISSING_FILENAME",
		}})
		return
	}

	resolved, err := ps.resolveStreamFile(filename)
	if err != nil {
		ps.respondWithTimelineError(w, r, err)
		return
	}

	file, err := os.Open(resolved)
	if err != nil {
		ps.respondWithError(w, r, http.StatusNotFound, "Media file not found", err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		ps.respondWithError(w, r, http.StatusInternalServerError, "Could not read media file", err)
		return
	}

	contentType := videoContentTypes[strings.ToLower(filepath.Ext(filename))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
		return
	}

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		ps.handleRangeRequest(w, file, stat.Size(), rangeHeader)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	if _, err := io.Copy(w, file); err != nil {
		ps.logger.WithError(err).WithField("filename", filename).Warn("Error streaming media file")
	}
}

// resolveStreamFile maps a stream filename back to an on-disk path. A
// registered track whose base name matches wins. Derived outputs
// (trim/concat results) are not tracks but live in project directories
// under the storage root, so a second pass looks for those directly.
func (ps *ProjectServer) resolveStreamFile(filename string) (string, error) {
	project, err := ps.store.GetProjectByTrackRef(filename)
	if err != nil {
		return "", err
	}
	if project != nil {
		if current := project.CurrentVersion(); current != nil {
			for _, track := range current.Tracks {
				if filepath.Base(track.Location) == filename || track.Location == filename {
					return timeline.ResolveUnderRoot(ps.config.Storage.AssetsPath, track.Location)
				}
			}
		}
	}

	// Derived outputs are not tracks; they sit in some project directory
	// under the storage root. The filename itself must still resolve
	// inside the root.
	matches, err := filepath.Glob(filepath.Join(ps.config.Storage.AssetsPath, "*", filename))
	if err == nil && len(matches) > 0 {
		return timeline.ResolveUnderRoot(ps.config.Storage.AssetsPath,
			filepath.Join(filepath.Base(filepath.Dir(matches[0])), filename))
	}

	return "", fmt.Errorf("%w: %s", timeline.ErrFileNotFound, filename)
}

// handleRangeRequest implements simple single-range byte serving for seeking.
func (ps *ProjectServer) handleRangeRequest(w http.ResponseWriter, file *os.File, fileSize int64, rangeHeader string) {
	// Parse range header (e.g., "bytes=0-1023" or the suffix form "bytes=-500")
	startStr, endStr, _ := strings.Cut(strings.TrimPrefix(rangeHeader, "bytes="), "-")

	var start, end int64
	if startStr == "" {
		// Suffix range: the last N bytes of the file.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			n = 0 // rejected by the range validation below
		}
		if n > fileSize {
			n = fileSize
		}
		start = fileSize - n
		end = fileSize - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			start = 0
		}
		if endStr != "" {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				end = fileSize - 1
			}
		} else {
			end = fileSize - 1
		}
	}

	// Validate range
	if start < 0 || end >= fileSize || start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	// Set partial content headers
	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", contentLength))
	w.WriteHeader(http.StatusPartialContent)

	// Seek to start position and copy the requested range
	file.Seek(start, io.SeekStart)
	io.CopyN(w, file, contentLength)
}

// handleThumbnail serves (or lazily generates) the thumbnail for a media
// file referenced by its stream filename. Generation is best-effort: if
// it fails the client is redirected to the placeholder image.
func (ps *ProjectServer) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ps.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	filename := streamFilename(r.URL.Path, "/api/thumbnail/")
	if filename == "" {
		ps.respondWithValidationError(w, r, []ValidationError{{
			Field:   "filename",
			Message: "Thumbnail filename is required",
			Code:    "MISSING_FILENAME",
		}})
		return
	}

	thumbPath, cached := ps.thumbCache.GetThumbnail(filename)
	if !cached {
		resolved, err := ps.resolveStreamFile(filename)
		if err != nil {
			ps.respondWithTimelineError(w, r, err)
			return
		}
		thumbPath = ps.operator.GenerateThumbnail(resolved)
		ps.thumbCache.SetThumbnail(filename, thumbPath)
	}

	if strings.HasPrefix(thumbPath, "http://") || strings.HasPrefix(thumbPath, "https://") {
		http.Redirect(w, r, thumbPath, http.StatusFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, thumbPath)
}
