package orchestrator

// #region imports
import (
	"fmt"

	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region verdict

// Verdict is the revision policy's answer for a freshly scored pitch.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRevise Verdict = "revise"
	VerdictForced Verdict = "forced_accept"
)

// #endregion

// #region evaluate

// EvaluateScore applies the revision policy. revisions is how many revisions
// the lineage already has. Once the budget is used up the lineage is forced
// through whatever its last score was.
func EvaluateScore(sc scoring.Score, revisions int, threshold float64, maxRevisions int) Verdict {
	if revisions > 0 && revisions >= maxRevisions {
		return VerdictForced
	}
	if sc.MeetsThreshold(threshold) {
		return VerdictAccept
	}
	if revisions < maxRevisions {
		return VerdictRevise
	}
	return VerdictForced
}

// explainVerdict is the trail reason for a verdict.
func explainVerdict(v Verdict, title string, sc scoring.Score, revisions int, threshold float64, maxRevisions int) string {
	c := sc.Composite()
	switch v {
	case VerdictAccept:
		return fmt.Sprintf("%q r%d composite %.2f meets threshold %.2f", title, revisions, c, threshold)
	case VerdictRevise:
		return fmt.Sprintf("%q r%d composite %.2f below threshold %.2f, revision %d of %d", title, revisions, c, threshold, revisions+1, maxRevisions)
	default:
		return fmt.Sprintf("%q r%d composite %.2f, revision budget of %d used", title, revisions, c, maxRevisions)
	}
}

// #endregion
