package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHandleRangeRequest(t *testing.T) {
	ps := testServer(t)

	path := filepath.Join(t.TempDir(), "clip.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	tests := []struct {
		name        string
		rangeHeader string
		wantStatus  int
		wantBody    string
		wantRange   string
	}{
		{"bounded range", "bytes=0-3", http.StatusPartialContent, "0123", "bytes 0-3/10"},
		{"open-ended range", "bytes=4-", http.StatusPartialContent, "456789", "bytes 4-9/10"},
		{"suffix range serves the tail", "bytes=-4", http.StatusPartialContent, "6789", "bytes 6-9/10"},
		{"suffix range larger than file", "bytes=-50", http.StatusPartialContent, "0123456789", "bytes 0-9/10"},
		{"zero suffix is unsatisfiable", "bytes=-0", http.StatusRequestedRangeNotSatisfiable, "", ""},
		{"start beyond file", "bytes=20-", http.StatusRequestedRangeNotSatisfiable, "", ""},
		{"end beyond file", "bytes=2-50", http.StatusRequestedRangeNotSatisfiable, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := os.Open(path)
			if err != nil {
				t.Fatalf("opening fixture: %v", err)
			}
			defer file.Close()

			rec := httptest.NewRecorder()
			ps.handleRangeRequest(rec, file, 10, tt.rangeHeader)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusPartialContent {
				return
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, expected %q", got, tt.wantBody)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, expected %q", got, tt.wantRange)
			}
		})
	}
}
