package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Metadata holds the probe results for a media file. The video fields are
// only populated when the file carries at least one video stream.
type Metadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	HasVideo bool    `json:"has_video"`
}

// ErrNoVideoStream is returned by VideoMetadata when the probed file has
// no video stream at all.
var ErrNoVideoStream = errors.New("no video stream found")

// Inspector extracts format and stream metadata from media files via
// ffprobe. It performs read-only queries and never mutates files.
type Inspector struct {
	ffprobePath string
	logger      *logrus.Logger
}

// NewInspector creates an inspector bound to an ffprobe binary. The
// binary is resolved at construction so a missing toolchain fails fast.
func NewInspector(ffprobePath string, logger *logrus.Logger) (*Inspector, error) {
	resolved, err := lookupTool(ffprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &Inspector{ffprobePath: resolved, logger: logger}, nil
}

// ffprobe JSON output shapes; only the fields we consume.
type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Probe runs ffprobe against the file at location and returns its
// metadata. The container duration is required; video fields come from
// the first stream whose type is "video".
func (in *Inspector) Probe(location string) (*Metadata, error) {
	cmd := exec.Command(in.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		location,
	)

	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		in.logger.WithFields(logrus.Fields{
			"location": location,
			"error":    err.Error(),
		}).Warn("ffprobe invocation failed")
		return nil, &ProbeError{Location: location, Output: stderr, Err: err}
	}

	var probed probeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return nil, &ProbeError{Location: location, Err: fmt.Errorf("unparseable probe output: %w", err)}
	}

	duration, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil {
		return nil, &ProbeError{Location: location, Err: fmt.Errorf("container duration missing or unparseable: %w", err)}
	}

	meta := &Metadata{Duration: duration}
	for _, stream := range probed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.HasVideo = true
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.Codec = stream.CodecName
		if fps, err := ParseFrameRate(stream.RFrameRate); err == nil {
			meta.FPS = fps
		} else {
			in.logger.WithFields(logrus.Fields{
				"location":   location,
				"frame_rate": stream.RFrameRate,
			}).Warn("Could not parse video frame rate")
		}
		break
	}

	return meta, nil
}

// VideoMetadata probes the file and requires a video stream; it returns
// ErrNoVideoStream for audio-only or still-image containers.
func (in *Inspector) VideoMetadata(location string) (*Metadata, error) {
	meta, err := in.Probe(location)
	if err != nil {
		return nil, err
	}
	if !meta.HasVideo {
		return nil, &ProbeError{Location: location, Err: ErrNoVideoStream}
	}
	return meta, nil
}

// VideoDuration returns the container duration in seconds, or 0 when the
// file cannot be probed. The soft-fail is intentional: it is used only
// for timeline sequencing math, never for user-facing error reporting.
func (in *Inspector) VideoDuration(location string) float64 {
	meta, err := in.Probe(location)
	if err != nil {
		in.logger.WithFields(logrus.Fields{
			"location": location,
			"error":    err.Error(),
		}).Warn("Failed to probe duration, treating as 0")
		return 0
	}
	return meta.Duration
}

// ParseFrameRate evaluates an ffprobe rational like "30000/1001" as a
// true division. Truncating the division would misreport NTSC rates.
func ParseFrameRate(rational string) (float64, error) {
	parts := strings.SplitN(rational, "/", 2)
	if len(parts) == 1 {
		return strconv.ParseFloat(parts[0], 64)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate numerator %q: %w", parts[0], err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate denominator %q: %w", parts[1], err)
	}
	if den == 0 {
		return 0, fmt.Errorf("zero frame rate denominator in %q", rational)
	}
	return num / den, nil
}

// lookupTool resolves a toolchain binary, trying the configured path
// first and then common fallbacks.
func lookupTool(configured, name string) (string, error) {
	candidates := []string{configured, name, name + ".exe", "./" + name}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH. Please install ffmpeg", name)
}
