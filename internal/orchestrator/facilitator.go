// Package orchestrator runs one idea-generation pass: genre, pitches, critic
// scoring, bounded revisions, voting, trope analysis and document assembly.
package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/idea-forge/internal/artifact"
	"github.com/danielpatrickdp/idea-forge/internal/document"
	"github.com/danielpatrickdp/idea-forge/internal/logging"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/roles"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region collaborators

// Writer stores an assembled document.
type Writer interface {
	Write(doc document.IdeaDocument, target string) (artifact.Written, error)
}

// History persists the report of every run, failed ones included.
type History interface {
	SaveRun(rep Report) error
}

// Result is what a successful run hands back.
type Result struct {
	Document document.IdeaDocument
	Written  artifact.Written
	Report   Report
}

// #endregion

// #region facilitator

// Facilitator coordinates the role adapters. It is safe to call Run
// concurrently; each run owns its own pitch store and trail.
type Facilitator struct {
	adapters roles.Adapters
	settings Settings
	log      *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
	newID    func() string
	writer   Writer
	history  History
}

// Option configures a Facilitator.
type Option func(*Facilitator)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option { return func(f *Facilitator) { f.log = l } }

// WithRand sets the source for catalog draws.
func WithRand(r *rand.Rand) Option { return func(f *Facilitator) { f.rng = r } }

// WithClock sets the clock used for trail entries and document timestamps.
func WithClock(now func() time.Time) Option { return func(f *Facilitator) { f.now = now } }

// WithWriter hands assembled documents to w.
func WithWriter(w Writer) Option { return func(f *Facilitator) { f.writer = w } }

// WithHistory persists every run report to h.
func WithHistory(h History) Option { return func(f *Facilitator) { f.history = h } }

// New returns a Facilitator over the given adapters.
func New(adapters roles.Adapters, s Settings, opts ...Option) *Facilitator {
	f := &Facilitator{
		adapters: adapters,
		settings: s,
		log:      logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.settings.Concurrency < 1 {
		f.settings.Concurrency = 1
	}
	if f.settings.PitchCount < 1 {
		f.settings.PitchCount = 1
	}
	if f.settings.MinPitches < 1 || f.settings.MinPitches > f.settings.PitchCount {
		f.settings.MinPitches = f.settings.PitchCount
	}
	return f
}

// #endregion

// #region run

// Run executes one full pass. On failure the returned Result still carries
// the report, and the error is a *RunError.
func (f *Facilitator) Run(ctx context.Context, req Request) (Result, error) {
	if f.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.settings.RunTimeout)
		defer cancel()
	}
	r := f.newRun()
	res, err := r.execute(ctx, req)
	r.finish(err)
	res.Report = r.report

	if f.history != nil {
		if herr := f.history.SaveRun(res.Report); herr != nil {
			r.log.Warn("save run history", "error", herr)
		}
	}
	return res, err
}

type run struct {
	f      *Facilitator
	log    *slog.Logger
	retry  *RetryEngine
	store  *pitch.Store
	trail  *Trail
	state  RunState
	genre  pitch.GenreProfile
	report Report
}

type critique struct {
	pitch pitch.Pitch
	score scoring.Score
	err   error
}

func (f *Facilitator) newRun() *run {
	id := f.newID()
	log := f.log.With("run", id)
	return &run{
		f:     f,
		log:   log,
		retry: NewRetryEngine(f.settings.MaxRetries, log),
		store: pitch.NewStore(),
		trail: NewTrail(f.now),
		report: Report{
			RunID:     id,
			StartedAt: f.now(),
		},
	}
}

func (r *run) execute(ctx context.Context, req Request) (Result, error) {
	r.transition(StateInit)

	if err := r.resolveGenre(ctx, req); err != nil {
		return Result{}, r.fail(StageGenre, err)
	}
	r.transition(StateGenreResolved)

	if err := r.draftPitches(ctx); err != nil {
		return Result{}, r.fail(StagePitches, err)
	}
	r.transition(StatePitchesDrafted)

	scored, err := r.scoreRoots(ctx)
	if err != nil {
		return Result{}, r.fail(StageCritique, err)
	}
	r.transition(StatePitchesScored)

	if err := r.reviseLineages(ctx, scored); err != nil {
		return Result{}, r.fail(StageRevision, err)
	}

	winner, err := r.vote(ctx, r.candidates())
	if err != nil {
		return Result{}, r.fail(StageVote, err)
	}
	r.transition(StateWinnerSelected)

	tropes, err := r.analyzeTropes(ctx, winner.Pitch)
	if err != nil {
		return Result{}, r.fail(StageTropes, err)
	}
	r.transition(StateTropesAnalyzed)

	summary, err := r.summarize(ctx, winner, tropes)
	if err != nil {
		return Result{}, r.fail(StageRecord, err)
	}

	doc, err := document.Assemble(document.Input{
		Genre:        r.genre,
		Lineage:      r.store.Chain(winner.Pitch.ID),
		Score:        winner.Score,
		ForcedAccept: winner.ForcedAccept,
		Tropes:       tropes,
		Summary:      summary,
		Notes:        r.trail.Notes(),
		CreatedAt:    r.f.now(),
	})
	if err != nil {
		return Result{}, r.fail(StageAssemble, err)
	}
	r.report.DocID = doc.DocID
	r.report.Summary = doc.Summary
	r.transition(StateDocumentAssembled)

	res := Result{Document: doc}
	if r.f.writer != nil {
		written, err := r.f.writer.Write(doc, req.Target)
		if err != nil {
			return Result{}, r.fail(StageWrite, err)
		}
		res.Written = written
		r.report.DocPath = written.Path
		r.log.Info("document written", "path", written.Path)
		if written.HTMLErr != nil {
			r.log.Warn("html rendition not written", "path", written.Path, "error", written.HTMLErr)
			r.note(StageWrite, doc.DocID, DecisionDegraded, fmt.Sprintf("html rendition skipped: %v", written.HTMLErr))
		}
	}
	r.transition(StateDone)
	return res, nil
}

// #endregion

// #region bookkeeping

func (r *run) transition(to RunState) {
	r.log.Info("state transition", "from", r.state, "to", to)
	r.state = to
	r.report.States = append(r.report.States, to)
}

func (r *run) note(stage, subject, decision, reason string) {
	r.trail.Add(stage, subject, decision, reason)
	level := slog.LevelInfo
	switch decision {
	case DecisionDegraded, DecisionDrop, DecisionFailed:
		level = slog.LevelWarn
	case DecisionInfo:
		level = slog.LevelDebug
	}
	r.log.Log(context.Background(), level, "rationale", "stage", stage, "decision", decision, "subject", subject, "reason", reason)
}

func (r *run) fail(stage string, err error) error {
	var lastNote string
	if last, ok := r.trail.Last(); ok {
		lastNote = last.Note()
	}
	reason := reasonFor(err)
	r.note(stage, "", DecisionFailed, err.Error())
	r.transition(StateFailed)
	r.log.Error("run failed", "stage", stage, "reason", reason, "error", err)
	r.report.FailureStage = stage
	r.report.FailureReason = reason
	return &RunError{Stage: stage, Reason: reason, LastRationale: lastNote, Err: err}
}

func (r *run) finish(err error) {
	r.report.Status = StateDone
	if err != nil {
		r.report.Status = StateFailed
	}
	r.report.Genre = r.genre.Clone()
	r.report.Lineages = r.store.Lineages()
	r.report.Pitches = nil
	r.report.Scores = nil
	for _, lin := range r.report.Lineages {
		for _, id := range lin.PitchIDs {
			p, _ := r.store.Pitch(id)
			r.report.Pitches = append(r.report.Pitches, p)
			r.report.Scores = append(r.report.Scores, r.store.Scores(id)...)
		}
	}
	r.report.Trail = r.trail.Entries()
	r.report.FinishedAt = r.f.now()
}

// #endregion

// #region genre

func (r *run) resolveGenre(ctx context.Context, req Request) error {
	choice := ClassifyGenre(req, r.f.rng)
	g0 := choice.Profile
	switch {
	case choice.Drawn:
		r.log.Info("genre drawn from catalog", "name", g0.Genre, "category", g0.Category)
		r.note(StageGenre, "", DecisionInfo, fmt.Sprintf("drew %q (%s) from the catalog", g0.Genre, g0.Category))
	case !choice.Known:
		r.log.Warn("genre not in catalog", "name", g0.Genre, "category", g0.Category)
		r.note(StageGenre, "", DecisionInfo, fmt.Sprintf("requested genre %q is not in the catalog, filed as %s", g0.Genre, g0.Category))
	default:
		r.note(StageGenre, "", DecisionInfo, fmt.Sprintf("requested genre %q (%s)", g0.Genre, g0.Category))
	}
	if len(choice.Dropped) > 0 {
		r.log.Warn("too many themes, keeping the first ones", "max", pitch.MaxThemes, "dropped", choice.Dropped)
		r.note(StageGenre, "", DecisionDegraded, fmt.Sprintf("kept the first %d themes, dropped: %s", pitch.MaxThemes, strings.Join(choice.Dropped, ", ")))
	}

	var resolved pitch.GenreProfile
	err := r.retry.Do(ctx, StageGenre, func(ctx context.Context) error {
		g, err := r.f.adapters.ResolveGenre(ctx, g0.Clone())
		if err != nil {
			return err
		}
		g.Genre = g0.Genre
		g.Category = g0.Category
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%w: %v", roles.ErrValidation, err)
		}
		resolved = g
		return nil
	})
	if err != nil {
		return err
	}
	r.genre = resolved
	r.report.GenreDrawn = choice.Drawn
	r.note(StageGenre, "", DecisionInfo, fmt.Sprintf("tone %q, themes: %s", resolved.Tone, strings.Join(resolved.Themes, ", ")))
	return nil
}

// #endregion

// #region pitches

// draftPitches asks for the configured number of pitches and tops up any
// shortfall on retry. Fewer than MinPitches after the last attempt fails.
func (r *run) draftPitches(ctx context.Context) error {
	want := r.f.settings.PitchCount
	var drafts []pitch.Draft
	var lastErr error
	seen := make(map[string]bool, want)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelled(StagePitches, err)
		}
		need := want - len(drafts)
		r.log.Debug("adapter call", "stage", StagePitches, "attempt", attempt, "need", need)
		ds, err := r.f.adapters.GeneratePitches(ctx, r.genre, need)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(StagePitches, ctxErr)
		}
		dups := 0
		for _, d := range ds {
			if !d.Usable() || len(drafts) >= want {
				continue
			}
			if seen[d.Key()] {
				dups++
				continue
			}
			seen[d.Key()] = true
			drafts = append(drafts, d)
		}
		r.log.Debug("adapter result", "stage", StagePitches, "attempt", attempt, "usable", len(drafts), "duplicates", dups, "error", err)
		if len(drafts) >= want {
			lastErr = nil
			break
		}
		if err == nil {
			err = fmt.Errorf("%w: %d of %d pitches usable", roles.ErrGeneration, len(drafts), want)
		}
		lastErr = err
		if !r.retry.ShouldRetry(err, attempt) {
			break
		}
		r.log.Warn("pitch shortfall, asking again", "have", len(drafts), "want", want, "attempt", attempt)
	}

	if len(drafts) < r.f.settings.MinPitches {
		if roles.Retryable(lastErr) {
			return fmt.Errorf("%w: %d usable pitches, need %d: %w", ErrExhaustedRetries, len(drafts), r.f.settings.MinPitches, lastErr)
		}
		return fmt.Errorf("%d usable pitches, need %d: %w", len(drafts), r.f.settings.MinPitches, lastErr)
	}
	if len(drafts) < want {
		r.note(StagePitches, "", DecisionDegraded, fmt.Sprintf("proceeding with %d of %d pitches: %v", len(drafts), want, lastErr))
	}
	for _, d := range drafts {
		p, err := r.store.AddRoot(d, r.genre)
		if err != nil {
			return err
		}
		r.note(StagePitches, p.ID, DecisionInfo, fmt.Sprintf("drafted %q", d.Title))
	}
	return nil
}

// #endregion

// #region scoring

func (r *run) critique(ctx context.Context, p pitch.Pitch) (scoring.Score, error) {
	var sc scoring.Score
	err := r.retry.Do(ctx, StageCritique, func(ctx context.Context) error {
		s, err := r.f.adapters.Critique(ctx, p)
		if err != nil {
			return err
		}
		if s.PitchID == "" {
			s.PitchID = p.ID
		}
		if s.PitchID != p.ID {
			return fmt.Errorf("%w: score for %s, asked about %s", roles.ErrValidation, s.PitchID, p.ID)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %v", roles.ErrValidation, err)
		}
		sc = s
		return nil
	})
	return sc, err
}

// scoreRoots critiques every root concurrently and commits the scores only
// after all calls have returned. A root the critic cannot score is dropped.
func (r *run) scoreRoots(ctx context.Context) ([]critique, error) {
	lineages := r.store.Lineages()
	results := make([]critique, len(lineages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.f.settings.Concurrency)
	for i, lin := range lineages {
		p, _ := r.store.Pitch(lin.ID)
		g.Go(func() error {
			sc, err := r.critique(gctx, p)
			if errors.Is(err, ErrCancelled) {
				return err
			}
			results[i] = critique{pitch: p, score: sc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(StageCritique, err)
	}

	var scored []critique
	for _, res := range results {
		title := res.pitch.Draft.Title
		if res.err != nil {
			reason := fmt.Sprintf("%q could not be scored: %v", title, res.err)
			if err := r.store.Drop(res.pitch.LineageID, reason); err != nil {
				return nil, err
			}
			r.note(StageCritique, res.pitch.ID, DecisionDrop, reason)
			continue
		}
		if err := r.store.RecordScore(res.score); err != nil {
			return nil, err
		}
		r.note(StageCritique, res.pitch.ID, DecisionInfo, fmt.Sprintf("%q r0 scored %.2f: %s", title, res.score.Composite(), res.score.Rationale))
		scored = append(scored, res)
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("%w: no pitch could be scored", ErrExhaustedRetries)
	}
	return scored, nil
}

// #endregion

// #region revision

// reviseLineages runs every lineage's revision loop, concurrently across
// lineages and sequentially within one.
func (r *run) reviseLineages(ctx context.Context, scored []critique) error {
	s := r.f.settings
	revising := false
	for _, c := range scored {
		if EvaluateScore(c.score, 0, s.Threshold, s.MaxRevisions) == VerdictRevise {
			revising = true
			break
		}
	}
	if revising {
		r.transition(StatePitchesRevising)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for _, c := range scored {
		g.Go(func() error {
			return r.reviseLineage(gctx, c.pitch, c.score)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(StageRevision, err)
	}
	if revising {
		r.transition(StatePitchesScored)
	}
	return nil
}

func (r *run) reviseLineage(ctx context.Context, cur pitch.Pitch, sc scoring.Score) error {
	s := r.f.settings
	for {
		revisions := cur.RevisionNumber
		v := EvaluateScore(sc, revisions, s.Threshold, s.MaxRevisions)
		reason := explainVerdict(v, cur.Draft.Title, sc, revisions, s.Threshold, s.MaxRevisions)
		switch v {
		case VerdictAccept:
			r.note(StageRevision, cur.LineageID, DecisionAccept, reason)
			return r.store.Accept(cur.LineageID, false, reason)
		case VerdictForced:
			r.note(StageRevision, cur.LineageID, DecisionForcedAccept, reason)
			return r.store.Accept(cur.LineageID, true, reason)
		}
		r.note(StageRevision, cur.LineageID, DecisionRevise, reason)
		if err := r.store.SetState(cur.LineageID, pitch.StateNeedsRevision); err != nil {
			return err
		}

		var draft pitch.Draft
		err := r.retry.Do(ctx, StageRevision, func(ctx context.Context) error {
			d, err := r.f.adapters.Improve(ctx, cur, sc)
			if err != nil {
				return err
			}
			if !d.Usable() {
				return fmt.Errorf("%w: revision lacks hook or concept", roles.ErrValidation)
			}
			draft = d
			return nil
		})
		if errors.Is(err, ErrCancelled) {
			return err
		}
		if err != nil {
			reason := fmt.Sprintf("improver failed on %q r%d, keeping it: %v", cur.Draft.Title, revisions, err)
			r.note(StageRevision, cur.LineageID, DecisionForcedAccept, reason)
			return r.store.Accept(cur.LineageID, true, reason)
		}

		// The revision enters the store only together with its score.
		rev, err := r.store.ProposeRevision(cur.ID, draft)
		if err != nil {
			return err
		}
		nsc, err := r.critique(ctx, rev)
		if errors.Is(err, ErrCancelled) {
			return err
		}
		if err != nil {
			reason := fmt.Sprintf("critic failed on %q r%d, discarding it and keeping r%d: %v", rev.Draft.Title, rev.RevisionNumber, revisions, err)
			r.note(StageRevision, cur.LineageID, DecisionForcedAccept, reason)
			return r.store.Accept(cur.LineageID, true, reason)
		}
		if err := r.store.CommitRevision(rev, nsc); err != nil {
			return err
		}
		r.note(StageCritique, rev.ID, DecisionInfo, fmt.Sprintf("%q r%d scored %.2f: %s", rev.Draft.Title, rev.RevisionNumber, nsc.Composite(), nsc.Rationale))
		cur, sc = rev, nsc
	}
}

// #endregion

// #region vote

// candidates lists the latest scored pitch of every accepted lineage in
// creation order.
func (r *run) candidates() []roles.Candidate {
	var out []roles.Candidate
	for _, lin := range r.store.Lineages() {
		if lin.State != pitch.StateAccepted {
			continue
		}
		p, sc, ok := r.store.LatestScored(lin.ID)
		if !ok {
			continue
		}
		out = append(out, roles.Candidate{Pitch: p, Score: sc, ForcedAccept: lin.ForcedAccept})
	}
	return out
}

func (r *run) vote(ctx context.Context, cands []roles.Candidate) (roles.Candidate, error) {
	if len(cands) == 0 {
		return roles.Candidate{}, fmt.Errorf("%w: no accepted lineage reached the voter", ErrEmptyCandidateSet)
	}
	var v roles.Vote
	err := r.retry.Do(ctx, StageVote, func(ctx context.Context) error {
		var err error
		v, err = r.f.adapters.Vote(ctx, r.genre, cands)
		return err
	})
	if err != nil {
		return roles.Candidate{}, err
	}
	idx, tieBroken := ResolveWinner(v, cands)
	w := cands[idx]
	if err := r.store.MarkWinner(w.Pitch.ID); err != nil {
		return roles.Candidate{}, err
	}
	r.report.WinnerID = w.Pitch.ID
	r.note(StageVote, w.Pitch.ID, DecisionWinner, explainVote(v, w, tieBroken))
	return w, nil
}

// #endregion

// #region enrichment

// analyzeTropes only fails on cancellation. Any other failure leaves an
// empty report and a trail entry.
func (r *run) analyzeTropes(ctx context.Context, w pitch.Pitch) (pitch.TropeReport, error) {
	var rep pitch.TropeReport
	err := r.retry.Do(ctx, StageTropes, func(ctx context.Context) error {
		x, err := r.f.adapters.AnalyzeTropes(ctx, w)
		if err != nil {
			return err
		}
		rep = x
		return nil
	})
	if errors.Is(err, ErrCancelled) {
		return pitch.TropeReport{}, err
	}
	if err != nil {
		r.note(StageTropes, w.ID, DecisionDegraded, fmt.Sprintf("trope analysis failed, continuing without tropes: %v", err))
		empty := pitch.TropeReport{PitchID: w.ID, DetectedTropes: []string{}}
		r.report.Tropes = empty
		return empty, nil
	}
	rep.PitchID = w.ID
	rep = rep.Normalize()
	r.report.Tropes = rep
	r.note(StageTropes, w.ID, DecisionInfo, fmt.Sprintf("%d tropes detected: %s", len(rep.DetectedTropes), strings.Join(rep.DetectedTropes, ", ")))
	return rep, nil
}

// summarize only fails on cancellation. An empty summary lets the
// assembler fall back to the pitch concept.
func (r *run) summarize(ctx context.Context, w roles.Candidate, tropes pitch.TropeReport) (string, error) {
	var summary string
	err := r.retry.Do(ctx, StageRecord, func(ctx context.Context) error {
		s, err := r.f.adapters.Record(ctx, roles.RecordInput{Genre: r.genre, Winner: w.Pitch, Score: w.Score, Tropes: tropes})
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if errors.Is(err, ErrCancelled) {
		return "", err
	}
	if err != nil {
		r.note(StageRecord, w.Pitch.ID, DecisionDegraded, fmt.Sprintf("summary failed, using the pitch concept: %v", err))
		return "", nil
	}
	return summary, nil
}

// #endregion
