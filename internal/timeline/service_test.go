package timeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contentizer/internal/media"
	"contentizer/pkg/models"
)

// fakeStore is an in-memory ProjectStore.
type fakeStore struct {
	projects  map[string]*models.Project
	updateErr error
}

func newFakeStore(projects ...*models.Project) *fakeStore {
	store := &fakeStore{projects: make(map[string]*models.Project)}
	for _, p := range projects {
		store.projects[p.ProjectID] = p
	}
	return store
}

func (s *fakeStore) GetProject(projectID string) (*models.Project, error) {
	return s.projects[projectID], nil
}

func (s *fakeStore) GetProjectByTrackRef(ref string) (*models.Project, error) {
	for _, p := range s.projects {
		if cv := p.CurrentVersion(); cv != nil {
			for _, track := range cv.Tracks {
				if track.Location == ref || filepath.Base(track.Location) == ref {
					return p, nil
				}
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateProject(project *models.Project) error {
	s.projects[project.ProjectID] = project
	return nil
}

func (s *fakeStore) UpdateProject(project *models.Project) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.projects[project.ProjectID] = project
	return nil
}

func (s *fakeStore) ListProjects(userID string, limit, offset int) ([]models.Project, error) {
	return nil, nil
}

// fakeInspector serves canned metadata keyed by base name.
type fakeInspector struct {
	files      map[string]*media.Metadata
	probeCalls int
}

func (in *fakeInspector) Probe(location string) (*media.Metadata, error) {
	in.probeCalls++
	meta, ok := in.files[filepath.Base(location)]
	if !ok {
		return nil, &media.ProbeError{Location: location, Err: errors.New("probe failed")}
	}
	copied := *meta
	return &copied, nil
}

func (in *fakeInspector) VideoMetadata(location string) (*media.Metadata, error) {
	meta, err := in.Probe(location)
	if err != nil {
		return nil, err
	}
	if !meta.HasVideo {
		return nil, &media.ProbeError{Location: location, Err: media.ErrNoVideoStream}
	}
	return meta, nil
}

func (in *fakeInspector) VideoDuration(location string) float64 {
	meta, err := in.Probe(location)
	if err != nil {
		return 0
	}
	return meta.Duration
}

// fakeOperator records calls instead of invoking ffmpeg.
type fakeOperator struct {
	trimCalls    []string
	concatInputs []string
	concatOutput string
}

func (op *fakeOperator) Trim(input, output string, start, end float64) error {
	op.trimCalls = append(op.trimCalls, fmt.Sprintf("%s -> %s [%v, %v)", input, output, start, end))
	return nil
}

func (op *fakeOperator) Concatenate(inputs []string, output string) error {
	op.concatInputs = append([]string{}, inputs...)
	op.concatOutput = output
	return nil
}

func (op *fakeOperator) GenerateThumbnail(location string) string {
	return "/thumbnails/" + filepath.Base(location) + ".jpg"
}

func writeMediaFile(t *testing.T, root, location string) {
	t.Helper()
	path := filepath.Join(root, location)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating media dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		t.Fatalf("writing media file: %v", err)
	}
}

func newTestService(t *testing.T, store *fakeStore, inspector *fakeInspector) (*Service, *fakeOperator, string) {
	t.Helper()
	root := t.TempDir()
	operator := &fakeOperator{}
	return NewService(store, inspector, operator, root, quietLogger()), operator, root
}

func TestAddTrackDerivesStartTime(t *testing.T) {
	duration := 5.0
	project := models.NewProject("p1", "0", "demo", "p1")
	project.Versions[0].Tracks = []models.Track{
		{Location: "p1/a.mp4", StartTime: 0, Duration: &duration, Type: models.TrackTypeVideo},
	}

	store := newFakeStore(project)
	inspector := &fakeInspector{files: map[string]*media.Metadata{
		"a.mp4": {Duration: 5.0, HasVideo: true},
		"b.mp4": {Duration: 3.5, Width: 1920, Height: 1080, HasVideo: true},
	}}
	svc, _, root := newTestService(t, store, inspector)
	writeMediaFile(t, root, "p1/a.mp4")
	writeMediaFile(t, root, "p1/b.mp4")

	track, count, err := svc.AddTrack("p1", "p1/b.mp4")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	if track.StartTime != 5.0 {
		t.Errorf("track start time = %v, expected 5.0", track.StartTime)
	}
	if track.Duration == nil || *track.Duration != 3.5 {
		t.Errorf("track duration = %v, expected 3.5", track.Duration)
	}
	if count != 2 {
		t.Errorf("track count = %d, expected 2", count)
	}
	if got := store.projects["p1"].TrackCount(); got != 2 {
		t.Errorf("persisted track count = %d, expected 2", got)
	}
}

func TestAddTrackErrors(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	store := newFakeStore(project)
	inspector := &fakeInspector{files: map[string]*media.Metadata{
		"audio.mp3": {Duration: 3.0, HasVideo: false},
		"ok.mp4":    {Duration: 3.0, HasVideo: true},
	}}
	svc, _, root := newTestService(t, store, inspector)
	writeMediaFile(t, root, "p1/audio.mp3")
	writeMediaFile(t, root, "p1/ok.mp4")

	tests := []struct {
		name      string
		projectID string
		location  string
		sentinel  error
	}{
		{"missing project", "nope", "p1/ok.mp4", ErrProjectNotFound},
		{"path traversal", "p1", "../escape.mp4", ErrInvalidLocation},
		{"missing file", "p1", "p1/missing.mp4", ErrFileNotFound},
		{"no video stream", "p1", "p1/audio.mp3", ErrInvalidMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.AddTrack(tt.projectID, tt.location)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("AddTrack error = %v, expected %v", err, tt.sentinel)
			}
		})
	}
}

func TestAddTrackSurfacesStoreConflict(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	store := newFakeStore(project)
	store.updateErr = fmt.Errorf("%w: project p1", ErrConflict)

	inspector := &fakeInspector{files: map[string]*media.Metadata{
		"ok.mp4": {Duration: 3.0, HasVideo: true},
	}}
	svc, _, root := newTestService(t, store, inspector)
	writeMediaFile(t, root, "p1/ok.mp4")

	_, _, err := svc.AddTrack("p1", "p1/ok.mp4")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("AddTrack error = %v, expected ErrConflict", err)
	}
}

func TestTrimReturnsStreamURL(t *testing.T) {
	store := newFakeStore()
	inspector := &fakeInspector{files: map[string]*media.Metadata{}}
	svc, operator, root := newTestService(t, store, inspector)
	writeMediaFile(t, root, "p1/clip.mp4")

	streamURL, err := svc.Trim("p1/clip.mp4", 1.0, 4.0)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	if !strings.HasPrefix(streamURL, StreamURLPrefix) {
		t.Errorf("stream URL %q should start with %q", streamURL, StreamURLPrefix)
	}
	if !strings.HasPrefix(filepath.Base(streamURL), "clip.mp4_") {
		t.Errorf("output name %q should derive from source name", filepath.Base(streamURL))
	}
	if len(operator.trimCalls) != 1 {
		t.Fatalf("expected one trim call, got %d", len(operator.trimCalls))
	}
}

func TestTrimRejectsBadLocations(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(t, store, &fakeInspector{})

	if _, err := svc.Trim("../escape.mp4", 0, 1); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	if _, err := svc.Trim("missing.mp4", 0, 1); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestConcatenateUsesTimelineOrder(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	project.Versions[0].Tracks = []models.Track{
		{Location: "p1/x.mp4", StartTime: 0},
		{Location: "p1/y.mp4", StartTime: 5},
		{Location: "p1/z.mp4", StartTime: 2},
	}
	store := newFakeStore(project)
	svc, operator, _ := newTestService(t, store, &fakeInspector{})

	streamURL, err := svc.Concatenate("p1", "joined.mp4")
	if err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}

	var got []string
	for _, input := range operator.concatInputs {
		got = append(got, filepath.Base(input))
	}
	expected := []string{"x.mp4", "z.mp4", "y.mp4"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("concat input order = %v, expected %v", got, expected)
		}
	}

	if streamURL != StreamURLPrefix+"joined.mp4" {
		t.Errorf("stream URL = %q, expected %q", streamURL, StreamURLPrefix+"joined.mp4")
	}

	// The track list itself must keep insertion order.
	tracks := store.projects["p1"].CurrentVersion().Tracks
	if tracks[1].Location != "p1/y.mp4" {
		t.Errorf("track list reordered: %v", tracks)
	}
}

func TestConcatenateDefaultsOutputName(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	project.Versions[0].Tracks = []models.Track{{Location: "p1/x.mp4", StartTime: 0}}
	store := newFakeStore(project)
	svc, operator, _ := newTestService(t, store, &fakeInspector{})

	if _, err := svc.Concatenate("p1", ""); err != nil {
		t.Fatalf("Concatenate failed: %v", err)
	}

	base := filepath.Base(operator.concatOutput)
	if !strings.HasPrefix(base, "concat_") || !strings.HasSuffix(base, ".mp4") {
		t.Errorf("default output name %q should look like concat_<id>.mp4", base)
	}
}

func TestConcatenateEmptyTimeline(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	store := newFakeStore(project)
	svc, _, _ := newTestService(t, store, &fakeInspector{})

	_, err := svc.Concatenate("p1", "")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	_, err = svc.Concatenate("nope", "")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestGetInfoProbesEveryTrack(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	project.Versions[0].Tracks = []models.Track{
		{Location: "p1/a.mp4", StartTime: 0},
		{Location: "p1/broken.mp4", StartTime: 5},
		{Location: "p1/b.mp4", StartTime: 7},
	}
	store := newFakeStore(project)
	inspector := &fakeInspector{files: map[string]*media.Metadata{
		"a.mp4": {Duration: 5.0, Width: 1920, Height: 1080, FPS: 30, Codec: "h264", HasVideo: true},
		"b.mp4": {Duration: 2.0, HasVideo: true},
	}}
	svc, _, _ := newTestService(t, store, inspector)

	info, err := svc.GetInfo("p1")
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}

	if len(info.Probes) != 3 {
		t.Fatalf("probe count = %d, expected 3", len(info.Probes))
	}
	if info.Probes[0] == nil || info.Probes[0].Duration != 5.0 {
		t.Errorf("first probe = %+v, expected duration 5.0", info.Probes[0])
	}
	if info.Probes[1] != nil {
		t.Errorf("unprobeable track should yield nil entry, got %+v", info.Probes[1])
	}
	if info.Probes[2] == nil || info.Probes[2].Duration != 2.0 {
		t.Errorf("third probe = %+v, expected duration 2.0", info.Probes[2])
	}
}

func TestGetInfoIsIdempotent(t *testing.T) {
	project := models.NewProject("p1", "0", "demo", "p1")
	project.Versions[0].Tracks = []models.Track{{Location: "p1/a.mp4", StartTime: 0}}
	store := newFakeStore(project)
	inspector := &fakeInspector{files: map[string]*media.Metadata{
		"a.mp4": {Duration: 5.0, HasVideo: true},
	}}
	svc, _, _ := newTestService(t, store, inspector)

	first, err := svc.GetInfo("p1")
	if err != nil {
		t.Fatalf("first GetInfo failed: %v", err)
	}
	second, err := svc.GetInfo("p1")
	if err != nil {
		t.Fatalf("second GetInfo failed: %v", err)
	}

	if *first.Probes[0] != *second.Probes[0] {
		t.Errorf("GetInfo not idempotent: %+v vs %+v", first.Probes[0], second.Probes[0])
	}
	if store.projects["p1"].TrackCount() != 1 {
		t.Error("GetInfo must not mutate the project")
	}
}
