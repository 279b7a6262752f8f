package scoring

// #region imports
import (
	"errors"
	"fmt"
	"math"
)

// #endregion

// #region range

const (
	// MinScore is the lowest value a critic sub-score may take.
	MinScore = 0.0
	// MaxScore is the highest value a critic sub-score may take.
	MaxScore = 10.0

	compositeEpsilon = 1e-9
)

// ErrOutOfRange reports a sub-score outside [MinScore, MaxScore].
var ErrOutOfRange = errors.New("scoring: sub-score out of range")

// #endregion

// #region criteria

// Criterion names one of the four fixed evaluation axes.
type Criterion string

const (
	CriterionOriginality      Criterion = "originality"
	CriterionEmotionalClarity Criterion = "emotional_clarity"
	CriterionGenreFit         Criterion = "genre_fit"
	CriterionUniqueness       Criterion = "uniqueness"
)

// Criteria lists the evaluation axes in their canonical order.
var Criteria = []Criterion{
	CriterionOriginality,
	CriterionEmotionalClarity,
	CriterionGenreFit,
	CriterionUniqueness,
}

// #endregion

// #region score

// Score is one critic evaluation of one pitch. The composite is always derived
// from the four sub-scores and never stored on its own.
type Score struct {
	PitchID          string
	Originality      float64
	EmotionalClarity float64
	GenreFit         float64
	Uniqueness       float64
	Rationale        string
}

// Composite returns the unweighted mean of the four sub-scores.
func (s Score) Composite() float64 {
	return (s.Originality + s.EmotionalClarity + s.GenreFit + s.Uniqueness) / 4
}

// Get returns the sub-score for a criterion.
func (s Score) Get(c Criterion) float64 {
	switch c {
	case CriterionOriginality:
		return s.Originality
	case CriterionEmotionalClarity:
		return s.EmotionalClarity
	case CriterionGenreFit:
		return s.GenreFit
	case CriterionUniqueness:
		return s.Uniqueness
	}
	return math.NaN()
}

// Validate checks that every sub-score is a finite number inside the range.
func (s Score) Validate() error {
	for _, c := range Criteria {
		v := s.Get(c)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < MinScore || v > MaxScore {
			return fmt.Errorf("%w: %s=%v", ErrOutOfRange, c, v)
		}
	}
	return nil
}

// Weakest returns the criteria scoring below cutoff, in canonical order.
func (s Score) Weakest(cutoff float64) []Criterion {
	var out []Criterion
	for _, c := range Criteria {
		if s.Get(c) < cutoff {
			out = append(out, c)
		}
	}
	return out
}

// #endregion

// #region compare

// MeetsThreshold reports whether the composite is at or above threshold.
func (s Score) MeetsThreshold(threshold float64) bool {
	return s.Composite() >= threshold-compositeEpsilon
}

// CompareComposite orders two scores by composite: -1 if a < b, 1 if a > b,
// 0 when they are equal within float tolerance.
func CompareComposite(a, b Score) int {
	d := a.Composite() - b.Composite()
	switch {
	case math.Abs(d) <= compositeEpsilon:
		return 0
	case d < 0:
		return -1
	default:
		return 1
	}
}

// SameComposite reports whether a stored composite matches the value derived
// from the sub-scores.
func SameComposite(stored float64, s Score) bool {
	return math.Abs(stored-s.Composite()) <= compositeEpsilon
}

// #endregion
