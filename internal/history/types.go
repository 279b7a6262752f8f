package history

import (
	"time"

	"github.com/danielpatrickdp/idea-forge/internal/logging"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID         string
	Status        string
	FailureStage  string
	FailureReason string
	Genre         string
	Category      pitch.Category
	GenreDrawn    bool
	WinnerID      string
	WinnerTitle   string
	DocID         string
	DocPath       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// StoredScore is a critic score with the composite persisted beside it.
type StoredScore struct {
	scoring.Score
	Composite float64
}

// RunRecord is everything stored for one run.
type RunRecord struct {
	RunSummary
	Genre     pitch.GenreProfile
	Summary   string
	Pitches   []pitch.Pitch
	Scores    []StoredScore
	Lineages  []pitch.Lineage
	Tropes    pitch.TropeReport
	Decisions []logging.ProvenanceEntry
}

// Winner returns the winning pitch if the run produced one.
func (r RunRecord) Winner() (pitch.Pitch, bool) {
	for _, p := range r.Pitches {
		if p.ID == r.WinnerID {
			return p, true
		}
	}
	return pitch.Pitch{}, false
}
