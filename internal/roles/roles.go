// Package roles adapts the text-generation service to the seven pipeline
// roles. Each adapter builds a structured request, calls the service once
// and maps the answer onto domain types or a typed failure.
package roles

// #region imports
import (
	"context"
	"errors"

	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region errors

var (
	// ErrGeneration means the service failed or produced nothing usable.
	ErrGeneration = errors.New("generation failure")
	// ErrValidation means the output parsed but broke a field constraint.
	ErrValidation = errors.New("validation failure")
)

// Retryable reports whether err is a failure worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrGeneration) || errors.Is(err, ErrValidation)
}

// #endregion

// #region types

// Candidate is one accepted lineage leaf offered to the voter.
type Candidate struct {
	Pitch        pitch.Pitch
	Score        scoring.Score
	ForcedAccept bool
}

// Vote is the voter's raw answer. WinnerID may be empty or unknown; the
// caller resolves that.
type Vote struct {
	WinnerID  string
	Rationale string
}

// RecordInput is what the recorder summarises.
type RecordInput struct {
	Genre  pitch.GenreProfile
	Winner pitch.Pitch
	Score  scoring.Score
	Tropes pitch.TropeReport
}

// Adapters is the full set of role calls the orchestrator depends on.
type Adapters interface {
	ResolveGenre(ctx context.Context, partial pitch.GenreProfile) (pitch.GenreProfile, error)
	// GeneratePitches returns up to n usable drafts. On a shortfall it returns
	// the usable drafts together with an ErrGeneration.
	GeneratePitches(ctx context.Context, genre pitch.GenreProfile, n int) ([]pitch.Draft, error)
	Critique(ctx context.Context, p pitch.Pitch) (scoring.Score, error)
	Improve(ctx context.Context, p pitch.Pitch, sc scoring.Score) (pitch.Draft, error)
	Vote(ctx context.Context, genre pitch.GenreProfile, candidates []Candidate) (Vote, error)
	AnalyzeTropes(ctx context.Context, p pitch.Pitch) (pitch.TropeReport, error)
	Record(ctx context.Context, in RecordInput) (string, error)
}

// #endregion
