package orchestrator

// #region imports
import (
	"errors"
	"fmt"
)

// #endregion

// #region sentinels

var (
	// ErrExhaustedRetries means every attempt of a retryable call failed.
	ErrExhaustedRetries = errors.New("exhausted retries")
	// ErrEmptyCandidateSet means no accepted lineage reached the voter.
	ErrEmptyCandidateSet = errors.New("empty candidate set")
	// ErrCancelled means the run context was cancelled or timed out.
	ErrCancelled = errors.New("cancelled")
)

// Failure reasons carried by RunError.
const (
	ReasonCancelled         = "cancelled"
	ReasonExhaustedRetries  = "exhausted_retries"
	ReasonEmptyCandidateSet = "empty_candidate_set"
	ReasonError             = "error"
)

// #endregion

// #region run-error

// RunError is the single failure surfaced by a run that reached Failed.
type RunError struct {
	Stage         string
	Reason        string
	LastRationale string
	Err           error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("run failed at %s (%s)", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrCancelled):
		return ReasonCancelled
	case errors.Is(err, ErrEmptyCandidateSet):
		return ReasonEmptyCandidateSet
	case errors.Is(err, ErrExhaustedRetries):
		return ReasonExhaustedRetries
	}
	return ReasonError
}

// #endregion
