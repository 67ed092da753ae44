package generative

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"contentizer/internal/timeline"
	"contentizer/pkg/models"
)

// Generator is the slice of the Freepik client the pipeline depends on.
type Generator interface {
	GenerateImage(ctx context.Context, destDir, prompt, aspectRatio string) (string, error)
	GenerateVideo(ctx context.Context, destDir, imagePath, prompt, negativePrompt string, duration int) (string, error)
}

// TrackRegistrar registers a generated asset on a project's timeline.
type TrackRegistrar interface {
	AddTrack(projectID, location string) (*models.Track, int, error)
}

// Request describes one directed generation run.
type Request struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Duration       int    `json:"duration,omitempty"`
}

// Result reports the artifacts a run produced and the registered track.
type Result struct {
	ImageLocation string        `json:"image_location"`
	VideoLocation string        `json:"video_location"`
	Track         *models.Track `json:"track"`
	TrackCount    int           `json:"track_count"`
}

// Pipeline chains the generation steps the director drives: generate an
// image from the prompt, generate a video from that image, register the
// video on the project's timeline. Every artifact is passed explicitly
// from one step to the next; there is no shared state between steps.
type Pipeline struct {
	generator Generator
	registrar TrackRegistrar
	store     timeline.ProjectStore
	root      string
	logger    *logrus.Logger
}

// NewPipeline wires the director pipeline.
func NewPipeline(generator Generator, registrar TrackRegistrar, store timeline.ProjectStore, root string, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		generator: generator,
		registrar: registrar,
		store:     store,
		root:      root,
		logger:    logger,
	}
}

// Run executes the image -> video -> add-track chain for a project. The
// generated files land in the project's directory under the storage root,
// so the registered track location stays relative like any other.
func (p *Pipeline) Run(ctx context.Context, projectID string, req Request) (*Result, error) {
	project, err := p.store.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %s", timeline.ErrProjectNotFound, projectID)
	}

	destDir, err := timeline.ResolveUnderRoot(p.root, project.ProjectDirectory)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"prompt":     req.Prompt,
	}).Info("Starting generation pipeline")

	imagePath, err := p.generator.GenerateImage(ctx, destDir, req.Prompt, req.AspectRatio)
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	videoPath, err := p.generator.GenerateVideo(ctx, destDir, imagePath, req.Prompt, req.NegativePrompt, req.Duration)
	if err != nil {
		return nil, fmt.Errorf("video generation: %w", err)
	}

	videoLocation := filepath.Join(project.ProjectDirectory, filepath.Base(videoPath))
	track, count, err := p.registrar.AddTrack(projectID, videoLocation)
	if err != nil {
		return nil, fmt.Errorf("registering generated video: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"video":      videoLocation,
		"tracks":     count,
	}).Info("Generation pipeline completed")

	return &Result{
		ImageLocation: filepath.Join(project.ProjectDirectory, filepath.Base(imagePath)),
		VideoLocation: videoLocation,
		Track:         track,
		TrackCount:    count,
	}, nil
}
