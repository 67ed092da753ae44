package timeline

import (
	"github.com/sirupsen/logrus"

	"contentizer/pkg/models"
)

// DurationProber is the slice of the media inspector the sequencer needs:
// a duration query that soft-fails to 0 instead of erroring.
type DurationProber interface {
	VideoDuration(location string) float64
}

// Sequencer computes where a new track lands on a project's timeline.
// Appended tracks start where the existing ones end, which keeps the
// timeline sequential (non-overlapping, gap-free) by construction.
type Sequencer struct {
	prober DurationProber
	root   string
	logger *logrus.Logger
}

// NewSequencer creates a sequencer over the given storage root.
func NewSequencer(prober DurationProber, root string, logger *logrus.Logger) *Sequencer {
	return &Sequencer{prober: prober, root: root, logger: logger}
}

// AppendStartTime returns the start time for a track about to be
// appended: the sum of the durations of every existing track. Each track
// is re-probed on every call; a track whose duration cannot be resolved
// contributes 0. O(n) probe calls per append — correctness over speed.
func (s *Sequencer) AppendStartTime(tracks []models.Track) float64 {
	var total float64
	for _, track := range tracks {
		resolved, err := ResolveUnderRoot(s.root, track.Location)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"location": track.Location,
				"error":    err.Error(),
			}).Warn("Skipping unresolvable track location in sequencing")
			continue
		}
		total += s.prober.VideoDuration(resolved)
	}
	return total
}
