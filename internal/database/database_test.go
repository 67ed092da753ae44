package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"contentizer/internal/timeline"
	"contentizer/pkg/models"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProject(t *testing.T, db *Database, projectID string) *models.Project {
	t.Helper()
	project := models.NewProject(projectID, "0", "demo "+projectID, projectID)
	duration := 5.0
	project.Versions[0].Tracks = []models.Track{
		{Location: projectID + "/clip.mp4", StartTime: 0, Duration: &duration, Type: models.TrackTypeVideo},
	}
	if err := db.CreateProject(project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	return project
}

func TestCreateAndGetProject(t *testing.T) {
	db := testDatabase(t)
	created := seedProject(t, db, "p1")

	if created.Revision != 1 {
		t.Errorf("fresh project revision = %d, expected 1", created.Revision)
	}

	loaded, err := db.GetProject("p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetProject returned nil for existing project")
	}
	if loaded.Name != created.Name {
		t.Errorf("loaded name = %q, expected %q", loaded.Name, created.Name)
	}
	if loaded.TrackCount() != 1 {
		t.Errorf("loaded track count = %d, expected 1", loaded.TrackCount())
	}
	if loaded.Versions[0].Version != "0" {
		t.Errorf("seed version = %q, expected \"0\"", loaded.Versions[0].Version)
	}
	if loaded.Revision != 1 {
		t.Errorf("loaded revision = %d, expected 1", loaded.Revision)
	}
}

func TestGetProjectMissing(t *testing.T) {
	db := testDatabase(t)

	project, err := db.GetProject("does-not-exist")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if project != nil {
		t.Errorf("expected nil for missing project, got %+v", project)
	}
}

func TestUpdateProjectBumpsRevision(t *testing.T) {
	db := testDatabase(t)
	project := seedProject(t, db, "p1")

	project.Name = "renamed"
	project.LastEdited = time.Now()
	if err := db.UpdateProject(project); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if project.Revision != 2 {
		t.Errorf("revision after update = %d, expected 2", project.Revision)
	}

	loaded, err := db.GetProject("p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if loaded.Name != "renamed" {
		t.Errorf("loaded name = %q, expected %q", loaded.Name, "renamed")
	}
	if loaded.Revision != 2 {
		t.Errorf("stored revision = %d, expected 2", loaded.Revision)
	}
}

func TestUpdateProjectDetectsConcurrentWrite(t *testing.T) {
	db := testDatabase(t)
	seedProject(t, db, "p1")

	// Two editors read the same revision.
	first, _ := db.GetProject("p1")
	second, _ := db.GetProject("p1")

	first.Name = "first editor"
	if err := db.UpdateProject(first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	second.Name = "second editor"
	err := db.UpdateProject(second)
	if !errors.Is(err, timeline.ErrConflict) {
		t.Fatalf("second update error = %v, expected ErrConflict", err)
	}

	// The losing write must not have landed.
	loaded, _ := db.GetProject("p1")
	if loaded.Name != "first editor" {
		t.Errorf("stored name = %q, expected the first editor's write", loaded.Name)
	}
}

func TestGetProjectByTrackRef(t *testing.T) {
	db := testDatabase(t)
	seedProject(t, db, "p1")
	seedProject(t, db, "p2")

	t.Run("full location", func(t *testing.T) {
		project, err := db.GetProjectByTrackRef("p2/clip.mp4")
		if err != nil {
			t.Fatalf("GetProjectByTrackRef failed: %v", err)
		}
		if project == nil || project.ProjectID != "p2" {
			t.Errorf("resolved project = %+v, expected p2", project)
		}
	})

	t.Run("base name", func(t *testing.T) {
		project, err := db.GetProjectByTrackRef("clip.mp4")
		if err != nil {
			t.Fatalf("GetProjectByTrackRef failed: %v", err)
		}
		if project == nil {
			t.Error("expected a project for a matching base name")
		}
	})

	t.Run("no match", func(t *testing.T) {
		project, err := db.GetProjectByTrackRef("unknown.mp4")
		if err != nil {
			t.Fatalf("GetProjectByTrackRef failed: %v", err)
		}
		if project != nil {
			t.Errorf("expected nil, got %+v", project)
		}
	})

	t.Run("empty ref", func(t *testing.T) {
		project, err := db.GetProjectByTrackRef("")
		if err != nil {
			t.Fatalf("GetProjectByTrackRef failed: %v", err)
		}
		if project != nil {
			t.Errorf("expected nil for empty ref, got %+v", project)
		}
	})
}

func TestListProjectsOrdersByLastEdited(t *testing.T) {
	db := testDatabase(t)

	older := models.NewProject("old", "0", "older", "old")
	older.LastEdited = time.Now().Add(-time.Hour)
	if err := db.CreateProject(older); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	newer := models.NewProject("new", "0", "newer", "new")
	newer.LastEdited = time.Now()
	if err := db.CreateProject(newer); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	projects, err := db.ListProjects("0", 10, 0)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("project count = %d, expected 2", len(projects))
	}
	if projects[0].ProjectID != "new" || projects[1].ProjectID != "old" {
		t.Errorf("unexpected order: %s, %s", projects[0].ProjectID, projects[1].ProjectID)
	}

	limited, err := db.ListProjects("0", 1, 1)
	if err != nil {
		t.Fatalf("ListProjects with offset failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ProjectID != "old" {
		t.Errorf("limit/offset gave %+v, expected the older project", limited)
	}

	none, err := db.ListProjects("someone-else", 10, 0)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no projects for unknown user, got %d", len(none))
	}
}

func TestVersionsSurviveRoundTrip(t *testing.T) {
	db := testDatabase(t)
	project := seedProject(t, db, "p1")

	// Append a new version the way a timeline edit would.
	duration := 2.5
	project.Versions = append(project.Versions, models.ProjectVersion{
		Version: "1",
		Tracks: append(append([]models.Track{}, project.Versions[0].Tracks...),
			models.Track{Location: "p1/more.mp4", StartTime: 5, Duration: &duration, Type: models.TrackTypeVideo}),
	})
	if err := db.UpdateProject(project); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}

	loaded, err := db.GetProject("p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(loaded.Versions) != 2 {
		t.Fatalf("version count = %d, expected 2", len(loaded.Versions))
	}
	current := loaded.CurrentVersion()
	if current.Version != "1" {
		t.Errorf("current version = %q, expected \"1\"", current.Version)
	}
	if len(current.Tracks) != 2 {
		t.Errorf("current track count = %d, expected 2", len(current.Tracks))
	}
	if current.Tracks[1].StartTime != 5 {
		t.Errorf("appended track start = %v, expected 5", current.Tracks[1].StartTime)
	}
}
