package timeline

import "errors"

// Error taxonomy for timeline operations. NotFound and InvalidState
// conditions are detected before any external tool runs; toolchain
// failures come through as media package errors carrying the tool's
// diagnostic output.
var (
	// ErrProjectNotFound indicates the referenced project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrFileNotFound indicates the referenced media file does not exist
	// under the storage root.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidLocation indicates a location that is absolute or resolves
	// outside the storage root.
	ErrInvalidLocation = errors.New("location outside storage root")

	// ErrInvalidMedia indicates the file exists but lacks a usable video
	// stream or required metadata.
	ErrInvalidMedia = errors.New("no usable video stream")

	// ErrInvalidState indicates an operation precondition was violated,
	// e.g. concatenating a project with no tracks.
	ErrInvalidState = errors.New("invalid project state")

	// ErrConflict indicates a concurrent writer updated the project
	// between this operation's read and write.
	ErrConflict = errors.New("project was modified concurrently")
)
