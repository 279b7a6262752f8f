package orchestrator

// #region imports
import (
	"fmt"

	"github.com/danielpatrickdp/idea-forge/internal/roles"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region resolve

// ResolveWinner returns the index of the winning candidate. The voter's pick
// stands when it names a candidate; otherwise the highest composite wins,
// then the earliest lineage. tieBroken reports whether the fallback decided.
// candidates must be non-empty.
func ResolveWinner(v roles.Vote, candidates []roles.Candidate) (idx int, tieBroken bool) {
	if v.WinnerID != "" {
		for i, c := range candidates {
			if c.Pitch.ID == v.WinnerID {
				return i, false
			}
		}
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		switch scoring.CompareComposite(candidates[i].Score, candidates[best].Score) {
		case 1:
			best = i
		case 0:
			if candidates[i].Pitch.Seq < candidates[best].Pitch.Seq {
				best = i
			}
		}
	}
	return best, true
}

func explainVote(v roles.Vote, c roles.Candidate, tieBroken bool) string {
	title := c.Pitch.Draft.Title
	if !tieBroken {
		return fmt.Sprintf("voter chose %q (composite %.2f): %s", title, c.Score.Composite(), v.Rationale)
	}
	if v.WinnerID == "" {
		return fmt.Sprintf("voter gave no clear pick; %q wins on composite %.2f then creation order", title, c.Score.Composite())
	}
	return fmt.Sprintf("voter named unknown candidate %q; %q wins on composite %.2f then creation order", v.WinnerID, title, c.Score.Composite())
}

// #endregion
