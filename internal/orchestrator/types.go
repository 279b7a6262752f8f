package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region run-state

// RunState is a position in the run-level state machine.
type RunState string

const (
	StateInit              RunState = "init"
	StateGenreResolved     RunState = "genre_resolved"
	StatePitchesDrafted    RunState = "pitches_drafted"
	StatePitchesScored     RunState = "pitches_scored"
	StatePitchesRevising   RunState = "pitches_revising"
	StateWinnerSelected    RunState = "winner_selected"
	StateTropesAnalyzed    RunState = "tropes_analyzed"
	StateDocumentAssembled RunState = "document_assembled"
	StateDone              RunState = "done"
	StateFailed            RunState = "failed"
)

// #endregion

// #region stage

// Stage names used in logs, trail entries and run errors.
const (
	StageGenre    = "genre"
	StagePitches  = "pitch_generation"
	StageCritique = "critique"
	StageRevision = "revision"
	StageVote     = "vote"
	StageTropes   = "tropes"
	StageRecord   = "record"
	StageAssemble = "assemble"
	StageWrite    = "write"
)

// #endregion

// #region settings

// Settings bound the run.
type Settings struct {
	PitchCount   int
	MinPitches   int
	Threshold    float64
	MaxRevisions int
	MaxRetries   int
	Concurrency  int
	RunTimeout   time.Duration
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		PitchCount:   3,
		MinPitches:   2,
		Threshold:    6.0,
		MaxRevisions: 2,
		MaxRetries:   defaultMaxRetries,
		Concurrency:  4,
		RunTimeout:   5 * time.Minute,
	}
}

// #endregion

// #region request

// Request is what the caller asks for. Every field is optional.
type Request struct {
	Genre  string
	Tone   string
	Themes []string
	Target string // explicit output path for the writer
}

// #endregion

// #region report

// Report is the full record of one run, successful or not.
type Report struct {
	RunID         string
	Status        RunState // StateDone or StateFailed
	FailureStage  string
	FailureReason string
	Genre         pitch.GenreProfile
	GenreDrawn    bool
	States        []RunState
	Pitches       []pitch.Pitch   // lineage order, root first
	Scores        []scoring.Score // every critic score, in pitch order
	Lineages      []pitch.Lineage
	WinnerID      string
	Tropes        pitch.TropeReport
	Summary       string
	Trail         []TrailEntry
	DocID         string
	DocPath       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// #endregion
