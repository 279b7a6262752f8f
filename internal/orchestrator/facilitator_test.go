package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/idea-forge/internal/catalog"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/roles"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #region helpers

var fixedNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func testSettings() Settings {
	s := DefaultSettings()
	s.RunTimeout = 0
	return s
}

func newTestFacilitator(a roles.Adapters, s Settings, opts ...Option) *Facilitator {
	base := []Option{WithClock(func() time.Time { return fixedNow })}
	return New(a, s, append(base, opts...)...)
}

func mustRunError(t *testing.T, err error) *RunError {
	t.Helper()
	var re *RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RunError, got %T: %v", err, err)
	}
	return re
}

// checkLineages asserts the structural laws every finished run must obey.
func checkLineages(t *testing.T, rep Report, maxRevisions int) {
	t.Helper()
	byID := make(map[string]pitch.Pitch)
	for _, p := range rep.Pitches {
		byID[p.ID] = p
	}
	for _, p := range rep.Pitches {
		if p.ParentID == "" {
			if p.RevisionNumber != 0 {
				t.Errorf("root %s has revision %d", p.ID, p.RevisionNumber)
			}
			continue
		}
		parent, ok := byID[p.ParentID]
		if !ok {
			t.Errorf("pitch %s has unknown parent %s", p.ID, p.ParentID)
			continue
		}
		if p.RevisionNumber != parent.RevisionNumber+1 {
			t.Errorf("pitch %s revision %d, parent revision %d", p.ID, p.RevisionNumber, parent.RevisionNumber)
		}
	}
	scored := make(map[string]bool)
	for _, sc := range rep.Scores {
		scored[sc.PitchID] = true
	}
	for _, lin := range rep.Lineages {
		if lin.Revisions > maxRevisions {
			t.Errorf("lineage %s has %d revisions, max %d", lin.ID, lin.Revisions, maxRevisions)
		}
		if lin.State != pitch.StateDropped && !scored[lin.LeafID()] {
			t.Errorf("lineage %s leaf %s has no score", lin.ID, lin.LeafID())
		}
	}
	for _, sc := range rep.Scores {
		if sc.Validate() != nil {
			t.Errorf("bad score %+v", sc)
		}
	}
}

func hasNote(notes []string, substr string) bool {
	for _, n := range notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// #endregion helpers

// #region happy-path

func TestRun_HappyPath(t *testing.T) {
	fake := newFake()
	w := &fakeWriter{}
	h := &fakeHistory{}
	f := newTestFacilitator(fake, testSettings(), WithWriter(w), WithHistory(h))

	res, err := f.Run(context.Background(), Request{Genre: "Cyberpunk", Tone: "bleak"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := res.Document
	if doc.Status != "winner" || doc.DocType != "idea" {
		t.Errorf("unexpected frontmatter: %+v", doc.Frontmatter)
	}
	if doc.Genre != "Cyberpunk" || doc.Tone != "bleak" {
		t.Errorf("genre/tone: %q %q", doc.Genre, doc.Tone)
	}
	if doc.Category != pitch.CategorySciFi {
		t.Errorf("category: %q", doc.Category)
	}
	if doc.Title != "Pitch 1" || doc.Summary != "A summary of Pitch 1" {
		t.Errorf("title/summary: %q %q", doc.Title, doc.Summary)
	}
	if len(doc.Tropes) != 1 {
		t.Errorf("tropes: %v", doc.Tropes)
	}
	if len(w.docs) != 1 {
		t.Fatalf("writer called %d times", len(w.docs))
	}
	if res.Written.Path == "" || res.Report.DocPath != res.Written.Path {
		t.Errorf("written path not reported: %+v", res.Written)
	}
	if len(h.reports) != 1 || h.reports[0].Status != StateDone {
		t.Errorf("history: %+v", h.reports)
	}

	wantStates := []RunState{StateInit, StateGenreResolved, StatePitchesDrafted, StatePitchesScored,
		StateWinnerSelected, StateTropesAnalyzed, StateDocumentAssembled, StateDone}
	if len(res.Report.States) != len(wantStates) {
		t.Fatalf("states: %v", res.Report.States)
	}
	for i, s := range wantStates {
		if res.Report.States[i] != s {
			t.Errorf("state %d: got %s, want %s", i, res.Report.States[i], s)
		}
	}
	if fake.Calls("improve") != 0 {
		t.Errorf("no revision expected above threshold, got %d", fake.Calls("improve"))
	}
	checkLineages(t, res.Report, 2)
}

func TestRun_ExactlyOneWinner(t *testing.T) {
	fake := newFake()
	scores := map[string]float64{"Pitch 1": 6.5, "Pitch 2": 9, "Pitch 3": 3}
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		return uniform(p.ID, scores[p.Draft.Title]), nil
	}
	fake.voteFn = func(_ context.Context, _ pitch.GenreProfile, c []roles.Candidate) (roles.Vote, error) {
		return roles.Vote{WinnerID: c[1].Pitch.ID, Rationale: "vivid"}, nil
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Space Opera"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := res.Report
	if rep.WinnerID == "" || res.Document.Winner.ID != rep.WinnerID {
		t.Fatalf("winner mismatch: report %q, doc %q", rep.WinnerID, res.Document.Winner.ID)
	}
	if res.Document.Title != "Pitch 2" {
		t.Errorf("voter pick ignored: %q", res.Document.Title)
	}
	forced := 0
	for _, lin := range rep.Lineages {
		if lin.State != pitch.StateAccepted {
			t.Errorf("lineage %s ended %s", lin.ID, lin.State)
		}
		if lin.ForcedAccept {
			forced++
		}
	}
	if forced != 1 {
		t.Errorf("only the 3.0 lineage should be forced, got %d", forced)
	}
	checkLineages(t, rep, 2)
}

// #endregion happy-path

// #region genre-scenarios

func TestRun_GenreDrawnFromCatalog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	want := catalog.Draw(rand.New(rand.NewPCG(7, 11)))

	f := newTestFacilitator(newFake(), testSettings(),
		WithLogger(log), WithRand(rand.New(rand.NewPCG(7, 11))))
	res, err := f.Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report.Genre.Genre != want.Name || res.Document.Genre != want.Name {
		t.Errorf("genre: got %q, want %q", res.Report.Genre.Genre, want.Name)
	}
	if res.Report.Genre.Category != want.Category {
		t.Errorf("category: got %q, want %q", res.Report.Genre.Category, want.Category)
	}
	if !res.Report.GenreDrawn {
		t.Error("report should mark the genre as drawn")
	}
	out := buf.String()
	if !strings.Contains(out, "genre drawn from catalog") || !strings.Contains(out, want.Name) ||
		!strings.Contains(out, "category="+string(want.Category)) {
		t.Errorf("draw not logged at info:\n%s", out)
	}
}

func TestRun_GenreKeepsUserChoice(t *testing.T) {
	tests := []struct {
		genre    string
		category pitch.Category
	}{
		{"cyberpunk", pitch.CategorySciFi},
		{"High Fantasy", pitch.CategoryFantasy},
		{"Cozy Grimdark", pitch.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.genre, func(t *testing.T) {
			fake := newFake()
			fake.genreFn = func(_ context.Context, g pitch.GenreProfile) (pitch.GenreProfile, error) {
				g.Genre = "Something Else"
				g.Tone = "dry"
				g.Themes = []string{"a", "b"}
				return g, nil
			}
			res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: tt.genre})
			if err != nil {
				t.Fatal(err)
			}
			if res.Report.Genre.Genre != tt.genre || res.Report.Genre.Category != tt.category {
				t.Errorf("got %+v", res.Report.Genre)
			}
		})
	}
}

func TestRun_TooManyThemesAreCapped(t *testing.T) {
	fake := newFake()
	req := Request{
		Genre:  "Cyberpunk",
		Tone:   "bleak",
		Themes: []string{"debt", "memory", "Debt", "rain", "neon", "exile", "faith"},
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"debt", "memory", "rain", "neon", "exile"}
	if got := res.Report.Genre.Themes; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("themes: got %v want %v", got, want)
	}
	if n := fake.Calls("genre"); n != 1 {
		t.Errorf("genre calls: got %d want 1", n)
	}
	if !hasNote(res.Document.NoteLines, "dropped: faith") {
		t.Errorf("dropped themes not in notes: %v", res.Document.NoteLines)
	}
}

func TestRun_GenreFailureIsFatal(t *testing.T) {
	fake := newFake()
	fake.genreFn = func(context.Context, pitch.GenreProfile) (pitch.GenreProfile, error) {
		return pitch.GenreProfile{}, roles.ErrGeneration
	}
	w := &fakeWriter{}
	res, err := newTestFacilitator(fake, testSettings(), WithWriter(w)).Run(context.Background(), Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Stage != StageGenre || re.Reason != ReasonExhaustedRetries {
		t.Errorf("unexpected failure: %+v", re)
	}
	if fake.Calls("genre") != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.Calls("genre"))
	}
	if !strings.Contains(re.LastRationale, "Cyberpunk") {
		t.Errorf("last rationale should be attached: %q", re.LastRationale)
	}
	if len(w.docs) != 0 || res.Document.DocID != "" {
		t.Error("no document may be produced on failure")
	}
	if res.Report.Status != StateFailed {
		t.Errorf("status: %s", res.Report.Status)
	}
}

func TestRun_InvalidGenreOutputIsRetried(t *testing.T) {
	fake := newFake()
	fake.genreFn = func(_ context.Context, g pitch.GenreProfile) (pitch.GenreProfile, error) {
		g.Tone = "dry"
		g.Themes = []string{"only one"}
		return g, nil
	}
	_, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if re := mustRunError(t, err); re.Stage != StageGenre {
		t.Errorf("stage: %s", re.Stage)
	}
	if fake.Calls("genre") != 3 {
		t.Errorf("validation failures should be retried, calls=%d", fake.Calls("genre"))
	}
}

// #endregion genre-scenarios

// #region pitch-scenarios

func TestRun_PitchShortfallFails(t *testing.T) {
	fake := newFake()
	fake.pitchesFn = func(context.Context, pitch.GenreProfile, int) ([]pitch.Draft, error) {
		return []pitch.Draft{{Title: "Half", Hook: "h"}}, roles.ErrGeneration
	}
	w := &fakeWriter{}
	res, err := newTestFacilitator(fake, testSettings(), WithWriter(w)).Run(context.Background(), Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Stage != StagePitches || !errors.Is(err, ErrExhaustedRetries) {
		t.Errorf("unexpected failure: %+v", re)
	}
	if fake.Calls("pitches") != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.Calls("pitches"))
	}
	if len(w.docs) != 0 || len(res.Report.Pitches) != 0 {
		t.Error("nothing may be committed or written")
	}
	if fake.Calls("critique") != 0 {
		t.Error("critic must not run")
	}
}

func TestRun_PitchShortfallToppedUp(t *testing.T) {
	fake := newFake()
	fake.pitchesFn = func(_ context.Context, _ pitch.GenreProfile, n int) ([]pitch.Draft, error) {
		return fake.nextDrafts(1), roles.ErrGeneration
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.Lineages) != 3 {
		t.Errorf("expected 3 lineages after top-up, got %d", len(res.Report.Lineages))
	}
	if fake.Calls("pitches") != 3 {
		t.Errorf("expected 3 generator calls, got %d", fake.Calls("pitches"))
	}
}

func TestRun_TopUpSkipsRepeatedDrafts(t *testing.T) {
	fake := newFake()
	a := pitch.Draft{Title: "Salt Choir", Hook: "The sea sings back", Concept: "c"}
	b := pitch.Draft{Title: "Glass Orchard", Hook: "Fruit that remembers", Concept: "c"}
	c := pitch.Draft{Title: "Lantern Debt", Hook: "Light on credit", Concept: "c"}
	batches := [][]pitch.Draft{
		{a, b},
		{{Title: " salt choir ", Hook: "THE SEA SINGS BACK", Concept: "again"}, b},
		{c},
	}
	call := 0
	fake.pitchesFn = func(_ context.Context, _ pitch.GenreProfile, n int) ([]pitch.Draft, error) {
		batch := batches[call]
		call++
		if len(batch) < n {
			return batch, roles.ErrGeneration
		}
		return batch, nil
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var titles []string
	for _, p := range res.Report.Pitches {
		if p.IsRoot() {
			titles = append(titles, p.Draft.Title)
		}
	}
	if got := strings.Join(titles, ","); got != "Salt Choir,Glass Orchard,Lantern Debt" {
		t.Errorf("roots: got %s", got)
	}
	if fake.Calls("pitches") != 3 {
		t.Errorf("expected 3 generator calls, got %d", fake.Calls("pitches"))
	}
}

func TestRun_PitchShortfallAboveMinimum(t *testing.T) {
	fake := newFake()
	first := true
	fake.pitchesFn = func(_ context.Context, _ pitch.GenreProfile, n int) ([]pitch.Draft, error) {
		if first {
			first = false
			return fake.nextDrafts(2), roles.ErrGeneration
		}
		return nil, roles.ErrGeneration
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.Lineages) != 2 {
		t.Errorf("expected 2 lineages, got %d", len(res.Report.Lineages))
	}
	if !hasNote(res.Document.NoteLines, "proceeding with 2 of 3 pitches") {
		t.Errorf("shortfall not noted: %v", res.Document.NoteLines)
	}
}

// #endregion pitch-scenarios

// #region revision-scenarios

func TestRun_LowScoreForcedAfterTwoRevisions(t *testing.T) {
	tests := []struct {
		name       string
		finalScore float64
	}{
		{"still low", 4},
		{"high on second revision", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
				if p.RevisionNumber == 2 {
					return uniform(p.ID, tt.finalScore), nil
				}
				return uniform(p.ID, 4), nil
			}
			s := testSettings()
			s.PitchCount, s.MinPitches = 1, 1
			res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if fake.Calls("improve") != 2 {
				t.Errorf("expected exactly 2 revisions, got %d", fake.Calls("improve"))
			}
			lin := res.Report.Lineages[0]
			if lin.Revisions != 2 || !lin.ForcedAccept {
				t.Errorf("lineage: %+v", lin)
			}
			if res.Document.Winner.RevisionNumber != 2 || !res.Document.ForcedAccept {
				t.Errorf("winner should be the forced r2: %+v", res.Document.Winner)
			}
			if len(res.Document.Lineage) != 3 {
				t.Errorf("document lineage: %d pitches", len(res.Document.Lineage))
			}
			states := res.Report.States
			if !containsState(states, StatePitchesRevising) {
				t.Errorf("revising state missing: %v", states)
			}
			checkLineages(t, res.Report, 2)
		})
	}
}

func TestRun_RevisionReachesThreshold(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		if p.RevisionNumber == 1 {
			return uniform(p.ID, 6), nil
		}
		return uniform(p.ID, 5), nil
	}
	s := testSettings()
	s.PitchCount, s.MinPitches = 1, 1
	res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	lin := res.Report.Lineages[0]
	if lin.Revisions != 1 || lin.ForcedAccept {
		t.Errorf("6.0 meets the threshold after one revision: %+v", lin)
	}
}

func TestRun_ImproverFailureForcesAccept(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		return uniform(p.ID, 3), nil
	}
	fake.improveFn = func(context.Context, pitch.Pitch, scoring.Score) (pitch.Draft, error) {
		return pitch.Draft{}, roles.ErrGeneration
	}
	s := testSettings()
	s.PitchCount, s.MinPitches = 2, 2
	res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("improver failure must not sink the run: %v", err)
	}
	for _, lin := range res.Report.Lineages {
		if !lin.ForcedAccept || lin.Revisions != 0 {
			t.Errorf("lineage: %+v", lin)
		}
	}
	if fake.Calls("improve") != 6 {
		t.Errorf("expected 3 attempts per lineage, got %d", fake.Calls("improve"))
	}
	if !hasNote(res.Document.NoteLines, "improver failed") {
		t.Errorf("failure not in notes: %v", res.Document.NoteLines)
	}
}

func TestRun_RevisionCriticFailureKeepsScoredPitch(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		if p.RevisionNumber > 0 {
			return scoring.Score{}, roles.ErrValidation
		}
		return uniform(p.ID, 2), nil
	}
	s := testSettings()
	s.PitchCount, s.MinPitches = 1, 1
	res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Winner.RevisionNumber != 0 {
		t.Errorf("winner should be the scored root, got r%d", res.Document.Winner.RevisionNumber)
	}
	lin := res.Report.Lineages[0]
	if !lin.ForcedAccept {
		t.Error("lineage should be forced")
	}
	if lin.LeafID() != res.Report.WinnerID {
		t.Errorf("winner %s is not the lineage leaf %s", res.Report.WinnerID, lin.LeafID())
	}
	if len(res.Report.Pitches) != 1 || len(res.Report.Scores) != 1 {
		t.Errorf("unscored revision was kept: pitches=%d scores=%d", len(res.Report.Pitches), len(res.Report.Scores))
	}
	checkLineages(t, res.Report, s.MaxRevisions)
}

func TestRun_CancelledDuringRevisionCritique(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		if p.RevisionNumber > 0 {
			cancel()
		}
		return uniform(p.ID, 2), nil
	}
	s := testSettings()
	s.PitchCount, s.MinPitches = 1, 1
	res, err := newTestFacilitator(fake, s).Run(ctx, Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Reason != ReasonCancelled || re.Stage != StageRevision {
		t.Errorf("unexpected failure: %+v", re)
	}
	if len(res.Report.Pitches) != 1 || len(res.Report.Scores) != 1 {
		t.Errorf("partial revision committed: pitches=%d scores=%d", len(res.Report.Pitches), len(res.Report.Scores))
	}
	for _, p := range res.Report.Pitches {
		if p.RevisionNumber > 0 {
			t.Errorf("revision %s committed after cancellation", p.ID)
		}
	}
}

func TestRun_RootCriticFailureDropsLineage(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		if p.Draft.Title == "Pitch 2" {
			return scoring.Score{}, roles.ErrGeneration
		}
		return uniform(p.ID, 8), nil
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	dropped := 0
	for _, lin := range res.Report.Lineages {
		if lin.State == pitch.StateDropped {
			dropped++
		}
	}
	if dropped != 1 {
		t.Errorf("expected 1 dropped lineage, got %d", dropped)
	}
	if !hasNote(res.Document.NoteLines, `"Pitch 2" could not be scored`) {
		t.Errorf("drop not in notes: %v", res.Document.NoteLines)
	}
}

func TestRun_NoPitchScoredFails(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(context.Context, pitch.Pitch) (scoring.Score, error) {
		return scoring.Score{}, roles.ErrGeneration
	}
	_, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if re := mustRunError(t, err); re.Stage != StageCritique {
		t.Errorf("stage: %s", re.Stage)
	}
}

func TestRun_ZeroRevisionBudget(t *testing.T) {
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		return uniform(p.ID, 1), nil
	}
	s := testSettings()
	s.MaxRevisions = 0
	res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	if fake.Calls("improve") != 0 {
		t.Error("no revisions allowed")
	}
	for _, lin := range res.Report.Lineages {
		if !lin.ForcedAccept {
			t.Errorf("low lineage without budget should be forced: %+v", lin)
		}
	}
}

func containsState(states []RunState, s RunState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

// #endregion revision-scenarios

// #region vote-scenarios

func TestRun_VoterUnknownAnswerUsesTieBreak(t *testing.T) {
	fake := newFake()
	scores := map[string]float64{"Pitch 1": 7, "Pitch 2": 8, "Pitch 3": 8}
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		return uniform(p.ID, scores[p.Draft.Title]), nil
	}
	fake.voteFn = func(context.Context, pitch.GenreProfile, []roles.Candidate) (roles.Vote, error) {
		return roles.Vote{WinnerID: "pitch-that-does-not-exist"}, nil
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Title != "Pitch 2" {
		t.Errorf("tie-break should pick the earliest of the 8.0 pitches, got %q", res.Document.Title)
	}
	if !hasNote(res.Document.NoteLines, "unknown candidate") {
		t.Errorf("tie-break not explained: %v", res.Document.NoteLines)
	}
}

func TestRun_VoterExhaustionFails(t *testing.T) {
	fake := newFake()
	fake.voteFn = func(context.Context, pitch.GenreProfile, []roles.Candidate) (roles.Vote, error) {
		return roles.Vote{}, roles.ErrGeneration
	}
	_, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Stage != StageVote || re.Reason != ReasonExhaustedRetries {
		t.Errorf("unexpected failure: %+v", re)
	}
}

func TestVote_EmptyCandidateSet(t *testing.T) {
	fake := newFake()
	f := newTestFacilitator(fake, testSettings())
	r := f.newRun()

	_, err := r.vote(context.Background(), nil)
	if !errors.Is(err, ErrEmptyCandidateSet) {
		t.Fatalf("expected ErrEmptyCandidateSet, got %v", err)
	}
	if fake.Calls("vote") != 0 {
		t.Error("empty candidate set must never be retried or sent to the voter")
	}
	re := mustRunError(t, r.fail(StageVote, err))
	if re.Reason != ReasonEmptyCandidateSet || r.state != StateFailed {
		t.Errorf("unexpected failure: %+v state=%s", re, r.state)
	}
}

// #endregion vote-scenarios

// #region enrichment-scenarios

func TestRun_TropeFailureDegrades(t *testing.T) {
	fake := newFake()
	fake.tropesFn = func(context.Context, pitch.Pitch) (pitch.TropeReport, error) {
		return pitch.TropeReport{}, roles.ErrGeneration
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("trope failure must not fail the run: %v", err)
	}
	if len(res.Document.Tropes) != 0 || len(res.Document.TropeSuggestions) != 0 {
		t.Errorf("expected empty tropes, got %v", res.Document.Tropes)
	}
	if !strings.Contains(res.Document.Notes, "trope analysis failed") {
		t.Errorf("notes should record the failure: %q", res.Document.Notes)
	}
	if res.Report.Status != StateDone {
		t.Errorf("status: %s", res.Report.Status)
	}
	if fake.Calls("tropes") != 3 {
		t.Errorf("expected 3 analyst attempts, got %d", fake.Calls("tropes"))
	}
}

func TestRun_RecorderFailureFallsBackToConcept(t *testing.T) {
	fake := newFake()
	fake.recordFn = func(context.Context, roles.RecordInput) (string, error) {
		return "", roles.ErrValidation
	}
	res, err := newTestFacilitator(fake, testSettings()).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Summary != res.Document.Winner.Draft.Concept {
		t.Errorf("summary: %q", res.Document.Summary)
	}
	if !hasNote(res.Document.NoteLines, "summary failed") {
		t.Error("recorder failure not noted")
	}
}

func TestRun_HTMLFailureDegrades(t *testing.T) {
	w := &fakeWriter{htmlErr: errors.New("disk full")}
	res, err := newTestFacilitator(newFake(), testSettings(), WithWriter(w)).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if err != nil {
		t.Fatalf("html failure must not fail the run: %v", err)
	}
	if res.Report.Status != StateDone || res.Report.DocPath == "" {
		t.Errorf("report: status %s path %q", res.Report.Status, res.Report.DocPath)
	}
	found := false
	for _, e := range res.Report.Trail {
		if e.Decision == DecisionDegraded && strings.Contains(e.Note(), "disk full") {
			found = true
		}
	}
	if !found {
		t.Errorf("html failure not on the trail: %+v", res.Report.Trail)
	}
}

func TestRun_WriterFailureFails(t *testing.T) {
	w := &fakeWriter{err: errors.New("disk full")}
	_, err := newTestFacilitator(newFake(), testSettings(), WithWriter(w)).Run(context.Background(), Request{Genre: "Cyberpunk"})
	if re := mustRunError(t, err); re.Stage != StageWrite {
		t.Errorf("stage: %s", re.Stage)
	}
}

// #endregion enrichment-scenarios

// #region cancellation

func TestRun_CancelledDuringCritique(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := newFake()
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		cancel()
		return uniform(p.ID, 9), nil
	}
	h := &fakeHistory{}
	res, err := newTestFacilitator(fake, testSettings(), WithHistory(h)).Run(ctx, Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Reason != ReasonCancelled || !errors.Is(err, ErrCancelled) {
		t.Errorf("unexpected failure: %+v", re)
	}
	if len(res.Report.Scores) != 0 {
		t.Errorf("scores from abandoned calls were committed: %v", res.Report.Scores)
	}
	if len(h.reports) != 1 || h.reports[0].FailureReason != ReasonCancelled {
		t.Errorf("cancelled run should still be recorded: %+v", h.reports)
	}
}

func TestRun_Timeout(t *testing.T) {
	fake := newFake()
	fake.improveFn = func(ctx context.Context, _ pitch.Pitch, _ scoring.Score) (pitch.Draft, error) {
		<-ctx.Done()
		return pitch.Draft{}, ctx.Err()
	}
	fake.critiqueFn = func(_ context.Context, p pitch.Pitch) (scoring.Score, error) {
		return uniform(p.ID, 2), nil
	}
	s := testSettings()
	s.RunTimeout = 30 * time.Millisecond
	res, err := newTestFacilitator(fake, s).Run(context.Background(), Request{Genre: "Cyberpunk"})
	re := mustRunError(t, err)
	if re.Reason != ReasonCancelled || re.Stage != StageRevision {
		t.Errorf("unexpected failure: %+v", re)
	}
	for _, p := range res.Report.Pitches {
		if p.RevisionNumber > 0 {
			t.Errorf("no revision may be committed after cancellation: %+v", p)
		}
	}
}

// #endregion cancellation
