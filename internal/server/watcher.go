package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// startStorageWatcher initializes fsnotify watcher for recursive storage root monitoring.
func (ps *ProjectServer) startStorageWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ps.watcher = watcher

	// Start monitoring in a goroutine
	go ps.watchStorage()

	// Add the storage root and its project directories to the watcher
	err = ps.addDirectoryToWatcher(ps.config.Storage.AssetsPath)
	if err != nil {
		return err
	}

	ps.logger.WithField("assets_path", ps.config.Storage.AssetsPath).Info("Storage watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (ps *ProjectServer) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return ps.watcher.Add(path)
		}
		return nil
	})
}

// watchStorage selects on watcher channels and dispatches events.
func (ps *ProjectServer) watchStorage() {
	defer ps.watcher.Close()

	for {
		select {
		case event, ok := <-ps.watcher.Events:
			if !ok {
				return
			}
			ps.handleStorageEvent(event)

		case err, ok := <-ps.watcher.Errors:
			if !ok {
				return
			}
			ps.logger.WithError(err).Error("Storage watcher error")
		}
	}
}

// handleStorageEvent applies filtering & delegates change/removal actions.
// A changed media file invalidates its cached thumbnail; a removed file
// that is still registered on a project is logged so the dangling track
// is visible.
func (ps *ProjectServer) handleStorageEvent(event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		ps.thumbCache.Delete(fileName)

		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			go ps.reportRemovedFile(event.Name)
		}

	case event.Has(fsnotify.Create):
		// Check if it's a new directory (a freshly created project dir)
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			ps.watcher.Add(event.Name)
			ps.logger.WithField("directory", event.Name).Info("Watching new project directory")
		}
	}
}

// reportRemovedFile logs when a file referenced by a project's timeline
// disappears from storage. Tracks are never auto-removed; probes for the
// missing file will report it and edits will fail loudly instead of
// silently shrinking a timeline.
func (ps *ProjectServer) reportRemovedFile(path string) {
	fileName := filepath.Base(path)

	project, err := ps.store.GetProjectByTrackRef(fileName)
	if err != nil {
		ps.logger.WithError(err).WithField("file", fileName).Error("Error checking removed file against projects")
		return
	}
	if project == nil {
		return
	}

	ps.logger.WithFields(logrus.Fields{
		"file":       fileName,
		"project_id": project.ProjectID,
	}).Warn("Registered media file removed from storage")
}

// stopStorageWatcher closes the watcher (idempotent).
func (ps *ProjectServer) stopStorageWatcher() {
	if ps.watcher != nil {
		ps.watcher.Close()
	}
}
