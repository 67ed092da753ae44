package media

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operator performs derived media operations (trim, concatenate,
// thumbnail) by invoking ffmpeg. It owns the lifecycle of temporary files
// it creates (concat manifests) and of its outputs until they are handed
// to the caller.
type Operator struct {
	ffmpegPath           string
	thumbnailsDir        string
	thumbnailWidth       int
	thumbnailPlaceholder string
	logger               *logrus.Logger
}

// NewOperator creates an operator bound to an ffmpeg binary. The binary
// is resolved at construction so a missing toolchain fails fast.
func NewOperator(ffmpegPath, thumbnailsDir string, thumbnailWidth int, thumbnailPlaceholder string, logger *logrus.Logger) (*Operator, error) {
	resolved, err := lookupTool(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	return &Operator{
		ffmpegPath:           resolved,
		thumbnailsDir:        thumbnailsDir,
		thumbnailWidth:       thumbnailWidth,
		thumbnailPlaceholder: thumbnailPlaceholder,
		logger:               logger,
	}, nil
}

// Trim writes the interval [start, end) of the input to the output path,
// re-based to start at presentation timestamp 0 so a trimmed clip
// concatenates as if it always started at zero. Stream copy is used for
// speed; trim points not aligned to keyframes may be imprecise, which is
// an accepted trade-off of the copy strategy.
func (op *Operator) Trim(input, output string, start, end float64) error {
	if end <= start {
		return &TrimError{Input: input, Err: fmt.Errorf("end time %.3f must exceed start time %.3f", end, start)}
	}
	if _, err := os.Stat(input); err != nil {
		return &TrimError{Input: input, Err: fmt.Errorf("input file not found: %w", err)}
	}

	cmd := exec.Command(op.ffmpegPath,
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", input,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		output,
	)

	combined, err := cmd.CombinedOutput()
	if err != nil {
		op.logger.WithFields(logrus.Fields{
			"input":  input,
			"output": output,
			"start":  start,
			"end":    end,
			"error":  err.Error(),
		}).Error("ffmpeg trim failed")
		return &TrimError{Input: input, Output: strings.TrimSpace(string(combined)), Err: err}
	}

	op.logger.WithFields(logrus.Fields{
		"input":  input,
		"output": output,
		"start":  start,
		"end":    end,
	}).Info("Trimmed media file")
	return nil
}

// Concatenate joins the input files, in list order, into one output file
// using ffmpeg's concat demuxer with stream copy. All inputs must share a
// compatible codec/container profile; the caller is responsible for
// pre-validating that.
func (op *Operator) Concatenate(inputs []string, output string) error {
	if len(inputs) == 0 {
		return &ConcatError{Err: errors.New("nothing to concatenate")}
	}

	manifest, err := op.writeConcatManifest(inputs)
	if err != nil {
		return &ConcatError{Inputs: inputs, Err: err}
	}
	// The manifest is scoped to this join: removed whether or not the
	// join itself succeeds.
	defer os.Remove(manifest)

	cmd := exec.Command(op.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		output,
	)

	combined, err := cmd.CombinedOutput()
	if err != nil {
		op.logger.WithFields(logrus.Fields{
			"inputs": len(inputs),
			"output": output,
			"error":  err.Error(),
		}).Error("ffmpeg concatenate failed")
		return &ConcatError{Inputs: inputs, Output: strings.TrimSpace(string(combined)), Err: err}
	}

	op.logger.WithFields(logrus.Fields{
		"inputs": len(inputs),
		"output": output,
	}).Info("Concatenated media files")
	return nil
}

// writeConcatManifest writes the concat-demuxer input list, one file
// reference per line, with embedded single quotes escaped.
func (op *Operator) writeConcatManifest(inputs []string) (string, error) {
	file, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create concat manifest: %w", err)
	}

	var sb strings.Builder
	for _, input := range inputs {
		sb.WriteString("file '")
		sb.WriteString(EscapeConcatPath(input))
		sb.WriteString("'\n")
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write concat manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to close concat manifest: %w", err)
	}
	return file.Name(), nil
}

// EscapeConcatPath escapes a path for a single-quoted concat-demuxer
// manifest entry. The demuxer has no in-quote escaping, so a quote is
// written as: close quote, escaped quote, reopen quote.
func EscapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// GenerateThumbnail extracts a frame near the 1-second mark, scaled to
// the configured width with aspect ratio preserved, and writes it as a
// JPEG keyed by the source base name. Thumbnailing is best-effort: any
// failure yields the placeholder reference instead of an error.
func (op *Operator) GenerateThumbnail(location string) string {
	if err := os.MkdirAll(op.thumbnailsDir, 0755); err != nil {
		op.logger.WithError(err).Warn("Could not create thumbnails directory, using placeholder")
		return op.thumbnailPlaceholder
	}

	base := filepath.Base(location)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	thumbPath := filepath.Join(op.thumbnailsDir, name+".jpg")

	cmd := exec.Command(op.ffmpegPath,
		"-y",
		"-ss", "00:00:01",
		"-i", location,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", op.thumbnailWidth),
		thumbPath,
	)

	if combined, err := cmd.CombinedOutput(); err != nil {
		op.logger.WithFields(logrus.Fields{
			"location": location,
			"error":    err.Error(),
			"output":   strings.TrimSpace(string(combined)),
		}).Warn("Thumbnail generation failed, using placeholder")
		return op.thumbnailPlaceholder
	}

	return thumbPath
}

// DerivedOutputName returns a deterministic-plus-unique name for a
// derived file: the source location with a fresh unique suffix and an
// mp4 extension, e.g. "dir/clip.mp4_3f1c....mp4".
func DerivedOutputName(source string) string {
	return fmt.Sprintf("%s_%s.mp4", source, uuid.New().String())
}

// formatSeconds renders a seconds value for ffmpeg arguments without
// exponent notation.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
