package timeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contentizer/internal/media"
	"contentizer/pkg/models"
)

// StreamURLPrefix is the playable-reference prefix handed back for
// derived outputs and uploaded files.
const StreamURLPrefix = "/api/stream/"

// ProjectStore is the persistence contract the service depends on. A
// missing project is reported as (nil, nil), not an error. UpdateProject
// is a compare-and-swap on the project's revision and returns ErrConflict
// when a concurrent writer got there first.
type ProjectStore interface {
	GetProject(projectID string) (*models.Project, error)
	GetProjectByTrackRef(ref string) (*models.Project, error)
	CreateProject(project *models.Project) error
	UpdateProject(project *models.Project) error
	ListProjects(userID string, limit, offset int) ([]models.Project, error)
}

// Inspector is the probing contract the service depends on.
type Inspector interface {
	Probe(location string) (*media.Metadata, error)
	VideoMetadata(location string) (*media.Metadata, error)
	VideoDuration(location string) float64
}

// Operator is the derived-media contract the service depends on.
type Operator interface {
	Trim(input, output string, start, end float64) error
	Concatenate(inputs []string, output string) error
	GenerateThumbnail(location string) string
}

// Service orchestrates timeline edits over a project's track list. It is
// the only component that mutates a project's current version; the store
// owns durability and the operator owns output file lifecycle.
type Service struct {
	store     ProjectStore
	inspector Inspector
	operator  Operator
	sequencer *Sequencer
	root      string
	logger    *logrus.Logger
}

// NewService wires the timeline service with its collaborators. root is
// the storage root all track locations are relative to.
func NewService(store ProjectStore, inspector Inspector, operator Operator, root string, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		inspector: inspector,
		operator:  operator,
		sequencer: NewSequencer(inspector, root, logger),
		root:      root,
		logger:    logger,
	}
}

// Sequencer exposes the service's sequencer, mainly for callers that need
// append placement without a full AddTrack.
func (s *Service) Sequencer() *Sequencer { return s.sequencer }

// AddTrack appends the media file at location to the project's current
// version. The track's start time is derived from the durations of the
// tracks already present, never chosen by the caller. Returns the new
// track and the resulting track count.
func (s *Service) AddTrack(projectID, location string) (*models.Track, int, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return nil, 0, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	resolved, err := ResolveUnderRoot(s.root, location)
	if err != nil {
		return nil, 0, err
	}
	if _, err := os.Stat(resolved); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, location)
	}

	current := project.CurrentVersion()
	if current == nil {
		return nil, 0, fmt.Errorf("%w: project %s has no versions", ErrInvalidState, projectID)
	}

	startTime := s.sequencer.AppendStartTime(current.Tracks)

	meta, err := s.inspector.VideoMetadata(resolved)
	if err != nil {
		if errors.Is(err, media.ErrNoVideoStream) {
			return nil, 0, fmt.Errorf("%w: %s", ErrInvalidMedia, location)
		}
		return nil, 0, err
	}

	duration := meta.Duration
	track := models.Track{
		Location:  location,
		StartTime: startTime,
		Duration:  &duration,
		Type:      models.TrackTypeVideo,
	}

	current.Tracks = append(current.Tracks, track)
	project.LastEdited = time.Now()

	if err := s.store.UpdateProject(project); err != nil {
		return nil, 0, fmt.Errorf("persisting project %s: %w", projectID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"location":   location,
		"start_time": startTime,
		"duration":   duration,
		"tracks":     len(current.Tracks),
	}).Info("Appended track to timeline")

	return &track, len(current.Tracks), nil
}

// Trim produces a new media file containing [start, end) of the source,
// named after the source with a fresh unique suffix, beside it. It never
// mutates a project's track list: register the output with AddTrack if it
// should join a timeline. Returns the playable reference for the output.
func (s *Service) Trim(location string, start, end float64) (string, error) {
	resolved, err := ResolveUnderRoot(s.root, location)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, location)
	}

	output := media.DerivedOutputName(resolved)
	if err := s.operator.Trim(resolved, output, start, end); err != nil {
		return "", err
	}

	return StreamURLPrefix + filepath.Base(output), nil
}

// Concatenate joins the current version's tracks, ordered by start time
// ascending (stable, so insertion order breaks ties), into one output
// file in the project's directory. The output is not registered as a
// track. Returns the playable reference for the joined file.
func (s *Service) Concatenate(projectID, outputName string) (string, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return "", fmt.Errorf("loading project %s: %w", projectID, err)
	}
	if project == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	current := project.CurrentVersion()
	if current == nil || len(current.Tracks) == 0 {
		return "", fmt.Errorf("%w: no videos to concatenate", ErrInvalidState)
	}

	// Timeline order, not insertion order.
	ordered := make([]models.Track, len(current.Tracks))
	copy(ordered, current.Tracks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime < ordered[j].StartTime
	})

	inputs := make([]string, 0, len(ordered))
	for _, track := range ordered {
		resolved, err := ResolveUnderRoot(s.root, track.Location)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, resolved)
	}

	if outputName == "" {
		outputName = fmt.Sprintf("concat_%s.mp4", uuid.New().String())
	}
	output, err := ResolveUnderRoot(s.root, filepath.Join(project.ProjectDirectory, filepath.Base(outputName)))
	if err != nil {
		return "", err
	}

	if err := s.operator.Concatenate(inputs, output); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"tracks":     len(inputs),
		"output":     filepath.Base(output),
	}).Info("Concatenated project timeline")

	return StreamURLPrefix + filepath.Base(output), nil
}

// ProjectInfo pairs a project's metadata with per-track probe results,
// aligned by index to the current version's track list (insertion order).
// A nil probe entry means that track's media could not be probed.
type ProjectInfo struct {
	Project *models.Project       `json:"project"`
	Probes  []*models.ProbeResult `json:"probes"`
}

// GetInfo loads a project and probes every track of its current version
// in track-list order. Re-running it on an unchanged project yields
// identical results.
func (s *Service) GetInfo(projectID string) (*ProjectInfo, error) {
	project, err := s.store.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	var probes []*models.ProbeResult
	if current := project.CurrentVersion(); current != nil {
		probes = make([]*models.ProbeResult, len(current.Tracks))
		for i, track := range current.Tracks {
			resolved, err := ResolveUnderRoot(s.root, track.Location)
			if err != nil {
				continue
			}
			meta, err := s.inspector.Probe(resolved)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"project_id": projectID,
					"location":   track.Location,
					"error":      err.Error(),
				}).Warn("Probe failed during GetInfo")
				continue
			}
			probes[i] = &models.ProbeResult{
				Duration: meta.Duration,
				Width:    meta.Width,
				Height:   meta.Height,
				FPS:      meta.FPS,
				Codec:    meta.Codec,
				HasVideo: meta.HasVideo,
			}
		}
	}

	return &ProjectInfo{Project: project, Probes: probes}, nil
}
