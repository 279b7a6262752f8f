package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/idea-forge/internal/artifact"
	"github.com/danielpatrickdp/idea-forge/internal/document"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/roles"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #region fake-adapters

// fakeAdapters answers every role with a well-formed default; tests swap in
// per-role functions.
type fakeAdapters struct {
	mu    sync.Mutex
	calls map[string]int
	drawn int

	genreFn    func(context.Context, pitch.GenreProfile) (pitch.GenreProfile, error)
	pitchesFn  func(context.Context, pitch.GenreProfile, int) ([]pitch.Draft, error)
	critiqueFn func(context.Context, pitch.Pitch) (scoring.Score, error)
	improveFn  func(context.Context, pitch.Pitch, scoring.Score) (pitch.Draft, error)
	voteFn     func(context.Context, pitch.GenreProfile, []roles.Candidate) (roles.Vote, error)
	tropesFn   func(context.Context, pitch.Pitch) (pitch.TropeReport, error)
	recordFn   func(context.Context, roles.RecordInput) (string, error)
}

func newFake() *fakeAdapters {
	return &fakeAdapters{calls: make(map[string]int)}
}

func (f *fakeAdapters) count(role string) {
	f.mu.Lock()
	f.calls[role]++
	f.mu.Unlock()
}

func (f *fakeAdapters) Calls(role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[role]
}

// nextDrafts returns n drafts with titles unique across the fake's lifetime.
func (f *fakeAdapters) nextDrafts(n int) []pitch.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pitch.Draft, n)
	for i := range out {
		f.drawn++
		out[i] = pitch.Draft{
			Title:   fmt.Sprintf("Pitch %d", f.drawn),
			Hook:    fmt.Sprintf("Hook %d", f.drawn),
			Concept: fmt.Sprintf("Concept %d", f.drawn),
		}
	}
	return out
}

func (f *fakeAdapters) ResolveGenre(ctx context.Context, g pitch.GenreProfile) (pitch.GenreProfile, error) {
	f.count("genre")
	if f.genreFn != nil {
		return f.genreFn(ctx, g)
	}
	if g.Tone == "" {
		g.Tone = "wistful"
	}
	if len(g.Themes) < pitch.MinThemes {
		g.Themes = []string{"memory", "belonging"}
	}
	return g, nil
}

func (f *fakeAdapters) GeneratePitches(ctx context.Context, g pitch.GenreProfile, n int) ([]pitch.Draft, error) {
	f.count("pitches")
	if f.pitchesFn != nil {
		return f.pitchesFn(ctx, g, n)
	}
	return f.nextDrafts(n), nil
}

func (f *fakeAdapters) Critique(ctx context.Context, p pitch.Pitch) (scoring.Score, error) {
	f.count("critique")
	if f.critiqueFn != nil {
		return f.critiqueFn(ctx, p)
	}
	return uniform(p.ID, 7), nil
}

func (f *fakeAdapters) Improve(ctx context.Context, p pitch.Pitch, sc scoring.Score) (pitch.Draft, error) {
	f.count("improve")
	if f.improveFn != nil {
		return f.improveFn(ctx, p, sc)
	}
	d := p.Draft
	d.Hook += " (sharper)"
	return d, nil
}

func (f *fakeAdapters) Vote(ctx context.Context, g pitch.GenreProfile, c []roles.Candidate) (roles.Vote, error) {
	f.count("vote")
	if f.voteFn != nil {
		return f.voteFn(ctx, g, c)
	}
	return roles.Vote{WinnerID: c[0].Pitch.ID, Rationale: "first is best"}, nil
}

func (f *fakeAdapters) AnalyzeTropes(ctx context.Context, p pitch.Pitch) (pitch.TropeReport, error) {
	f.count("tropes")
	if f.tropesFn != nil {
		return f.tropesFn(ctx, p)
	}
	return pitch.TropeReport{
		DetectedTropes:  []string{"Chosen One"},
		SuggestedTwists: map[string]string{"Chosen One": "Nobody was chosen."},
	}, nil
}

func (f *fakeAdapters) Record(ctx context.Context, in roles.RecordInput) (string, error) {
	f.count("record")
	if f.recordFn != nil {
		return f.recordFn(ctx, in)
	}
	return "A summary of " + in.Winner.Draft.Title, nil
}

var _ roles.Adapters = (*fakeAdapters)(nil)

func uniform(id string, v float64) scoring.Score {
	return scoring.Score{PitchID: id, Originality: v, EmotionalClarity: v, GenreFit: v, Uniqueness: v, Rationale: fmt.Sprintf("all %.0f", v)}
}

// #endregion fake-adapters

// #region fake-sinks

type fakeWriter struct {
	mu      sync.Mutex
	docs    []document.IdeaDocument
	err     error
	htmlErr error
}

func (w *fakeWriter) Write(doc document.IdeaDocument, target string) (artifact.Written, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return artifact.Written{}, w.err
	}
	w.docs = append(w.docs, doc)
	if target == "" {
		target = "ideas/" + doc.DocID + ".md"
	}
	return artifact.Written{Path: target, HTMLErr: w.htmlErr}, nil
}

type fakeHistory struct {
	reports []Report
}

func (h *fakeHistory) SaveRun(rep Report) error {
	h.reports = append(h.reports, rep)
	return nil
}

// #endregion fake-sinks
