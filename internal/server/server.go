package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"contentizer/internal/cache"
	"contentizer/internal/config"
	"contentizer/internal/database"
	"contentizer/internal/generative"
	"contentizer/internal/media"
	"contentizer/internal/ngrok"
	"contentizer/internal/timeline"
)

// ProjectServer is the HTTP face of the video-project backend. It owns
// the route table and request glue; all timeline semantics live in the
// timeline service.
type ProjectServer struct {
	config       *config.Config
	store        *database.Database
	inspector    *media.Inspector
	operator     *media.Operator
	timeline     *timeline.Service
	pipeline     *generative.Pipeline
	thumbCache   *cache.ThumbnailCache
	ngrokService *ngrok.Service
	watcher      *fsnotify.Watcher
	sessions     *sessionStore
	logger       *logrus.Logger

	httpServer *http.Server
}

// NewProjectServer creates the server and wires its collaborators.
func NewProjectServer(cfg *config.Config, store *database.Database, logger *logrus.Logger) (*ProjectServer, error) {
	inspector, err := media.NewInspector(cfg.Media.FFprobePath, logger)
	if err != nil {
		return nil, err
	}

	operator, err := media.NewOperator(cfg.Media.FFmpegPath, cfg.Storage.ThumbnailsPath,
		cfg.Media.ThumbnailWidth, cfg.Media.ThumbnailPlaceholder, logger)
	if err != nil {
		return nil, err
	}

	timelineService := timeline.NewService(store, inspector, operator, cfg.Storage.AssetsPath, logger)

	// Generative client is optional; the rest of the API works without it.
	var pipeline *generative.Pipeline
	client, err := generative.NewClient(&cfg.Generative, logger)
	if err != nil {
		logger.WithError(err).Warn("Generative client not available")
	} else if client != nil {
		pipeline = generative.NewPipeline(client, timelineService, store, cfg.Storage.AssetsPath, logger)
	}

	ngrokSvc, err := ngrok.NewService(&cfg.Ngrok, logger)
	if err != nil {
		logger.WithError(err).Warn("Ngrok service not available")
		ngrokSvc = nil
	}

	return &ProjectServer{
		config:       cfg,
		store:        store,
		inspector:    inspector,
		operator:     operator,
		timeline:     timelineService,
		pipeline:     pipeline,
		thumbCache:   cache.NewThumbnailCache(),
		ngrokService: ngrokSvc,
		sessions:     newSessionStore(),
		logger:       logger,
	}, nil
}

// Timeline exposes the timeline service, mainly for tests and embedding.
func (ps *ProjectServer) Timeline() *timeline.Service { return ps.timeline }

// Handler builds the full route table wrapped in the middleware chain.
func (ps *ProjectServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ps.handleHealthCheck)
	mux.HandleFunc("/api/auth/login", ps.handleLogin)

	mux.HandleFunc("/api/upload", ps.handleUpload)
	mux.HandleFunc("/api/recent_projects", ps.handleRecentProjects)
	mux.HandleFunc("/api/stream/", ps.handleStream)
	mux.HandleFunc("/api/thumbnail/", ps.handleThumbnail)

	// Timeline edit operations
	mux.HandleFunc("/api/trim", ps.handleTrim)
	mux.HandleFunc("/api/concatenate", ps.handleConcatenate)
	mux.HandleFunc("/api/tracks/add", ps.handleAddTrack)
	mux.HandleFunc("/api/get_info/", ps.handleGetInfo)

	// Generative pipeline
	mux.HandleFunc("/api/generate", ps.handleGenerate)

	var handler http.Handler = mux
	handler = ps.authMiddleware(handler)
	handler = ps.corsMiddleware(handler)
	handler = ps.requestLoggingMiddleware(handler)
	handler = ps.panicRecoveryMiddleware(handler)
	return handler
}

// Start starts the project server and blocks until it stops.
func (ps *ProjectServer) Start() error {
	// Make sure the storage tree exists before anything touches it.
	if err := os.MkdirAll(ps.config.Storage.AssetsPath, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(ps.config.Storage.ThumbnailsPath, 0755); err != nil {
		return err
	}

	// Start storage watcher if enabled
	if ps.config.Storage.WatchForChanges {
		if err := ps.startStorageWatcher(); err != nil {
			ps.logger.WithError(err).Warn("Could not start storage watcher")
		}
	}

	localAddress := "http://" + ps.config.GetAddress()
	ps.logger.WithFields(logrus.Fields{
		"address":      localAddress,
		"assets_path":  ps.config.Storage.AssetsPath,
		"generative":   ps.pipeline != nil,
		"auth_enabled": ps.config.Auth.Enabled,
	}).Info("Contentizer server starting")

	// Start ngrok tunnel if enabled
	if ps.ngrokService != nil {
		if err := ps.ngrokService.StartTunnel(context.Background(), localAddress); err != nil {
			ps.logger.WithError(err).Warn("Could not start ngrok tunnel")
		}
	}

	ps.httpServer = &http.Server{
		Addr:        ps.config.GetAddress(),
		Handler:     ps.Handler(),
		ReadTimeout: time.Duration(ps.config.Server.ReadTimeout) * time.Second,
	}

	err := ps.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the project server.
func (ps *ProjectServer) Shutdown() {
	ps.logger.Info("Shutting down project server...")

	ps.stopStorageWatcher()

	if ps.ngrokService != nil {
		if err := ps.ngrokService.Stop(); err != nil {
			ps.logger.WithError(err).Warn("Error stopping ngrok tunnel")
		}
	}

	if ps.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ps.httpServer.Shutdown(ctx); err != nil {
			ps.logger.WithError(err).Warn("Error shutting down HTTP server")
		}
	}

	ps.logger.Info("Project server shutdown complete")
}

// streamFilename extracts the trailing filename from a stream/thumbnail
// style path like /api/stream/<filename>.
func streamFilename(path, prefix string) string {
	name := strings.TrimPrefix(path, prefix)
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}
