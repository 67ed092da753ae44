package models

import "time"

// TrackType identifies the kind of media a track references.
type TrackType string

const (
	TrackTypeVideo TrackType = "video"
	TrackTypeImage TrackType = "image"
	TrackTypeAudio TrackType = "audio"
)

// Track is one media clip placed on a project's timeline. Location is
// always relative to the storage root; absolute paths are rejected before
// they ever reach a track.
type Track struct {
	Location  string    `json:"location"`
	StartTime float64   `json:"start_time"` // seconds on the timeline
	Duration  *float64  `json:"duration,omitempty"`
	Type      TrackType `json:"type"`
}

// ProjectVersion is an append-only snapshot of a project's track
// arrangement. Track order is insertion order, not timeline order.
type ProjectVersion struct {
	Version string  `json:"version"`
	Tracks  []Track `json:"tracks"`
}

// Project is the aggregate root for one editable video work.
type Project struct {
	ProjectID        string           `json:"project_id"`
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	ProjectDirectory string           `json:"project_directory"`
	Thumbnail        string           `json:"thumbnail"`
	LastEdited       time.Time        `json:"last_edited"`
	Versions         []ProjectVersion `json:"versions"`

	// Revision is the store's optimistic-concurrency token. It never
	// appears in the persisted document payload.
	Revision int64 `json:"-"`
}

// NewProject creates a project seeded with version "0". Versions is never
// empty after creation.
func NewProject(projectID, userID, name, directory string) *Project {
	return &Project{
		ProjectID:        projectID,
		UserID:           userID,
		Name:             name,
		ProjectDirectory: directory,
		LastEdited:       time.Now(),
		Versions: []ProjectVersion{
			{Version: "0", Tracks: []Track{}},
		},
	}
}

// CurrentVersion returns the active version: the last element of Versions.
// Returns nil for a malformed project with no versions.
func (p *Project) CurrentVersion() *ProjectVersion {
	if len(p.Versions) == 0 {
		return nil
	}
	return &p.Versions[len(p.Versions)-1]
}

// TrackCount returns the number of tracks in the current version.
func (p *Project) TrackCount() int {
	cv := p.CurrentVersion()
	if cv == nil {
		return 0
	}
	return len(cv.Tracks)
}

// ProbeResult carries the probe data GetInfo returns per track, aligned by
// index to the current version's track list. A nil entry means the track's
// media could not be probed.
type ProbeResult struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	HasVideo bool    `json:"has_video"`
}
