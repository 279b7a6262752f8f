// Package history keeps every run in SQLite: the pitch tree, critic scores,
// lineage outcomes and the rationale trail.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/idea-forge/internal/logging"
	"github.com/danielpatrickdp/idea-forge/internal/orchestrator"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	failure_stage  TEXT,
	failure_reason TEXT,
	genre          TEXT,
	category       TEXT,
	tone           TEXT,
	themes_json    TEXT,
	genre_drawn    INTEGER NOT NULL DEFAULT 0,
	winner_id      TEXT,
	doc_id         TEXT,
	doc_path       TEXT,
	summary        TEXT,
	tropes_json    TEXT,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pitches (
	pitch_id        TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL,
	lineage_id      TEXT NOT NULL,
	parent_id       TEXT,
	revision_number INTEGER NOT NULL,
	seq             INTEGER NOT NULL,
	title           TEXT,
	text            TEXT NOT NULL,
	draft_json      TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id),
	FOREIGN KEY (parent_id) REFERENCES pitches(pitch_id)
);

CREATE TABLE IF NOT EXISTS scores (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            TEXT NOT NULL,
	pitch_id          TEXT NOT NULL,
	originality       REAL NOT NULL,
	emotional_clarity REAL NOT NULL,
	genre_fit         REAL NOT NULL,
	uniqueness        REAL NOT NULL,
	composite         REAL NOT NULL,
	rationale         TEXT,
	FOREIGN KEY (pitch_id) REFERENCES pitches(pitch_id)
);

CREATE TABLE IF NOT EXISTS lineages (
	run_id        TEXT NOT NULL,
	lineage_id    TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	state         TEXT NOT NULL,
	revisions     INTEGER NOT NULL,
	forced_accept INTEGER NOT NULL,
	decision      TEXT,
	pitch_ids     TEXT NOT NULL,
	PRIMARY KEY (run_id, lineage_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region errors

var (
	// ErrNotFound is returned when a run id is unknown.
	ErrNotFound = errors.New("history: run not found")
	// ErrCompositeMismatch means a stored composite no longer matches its sub-scores.
	ErrCompositeMismatch = errors.New("history: stored composite does not match sub-scores")
)

// #endregion errors

// #region store-struct
// Store persists run reports in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(logging.ProvenanceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate provenance: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region save
// SaveRun writes a run report in one transaction.
func (s *Store) SaveRun(rep orchestrator.Report) error {
	themes, err := json.Marshal(rep.Genre.Themes)
	if err != nil {
		return fmt.Errorf("marshal themes: %w", err)
	}
	tropes, err := json.Marshal(tropesRow{Detected: rep.Tropes.DetectedTropes, Twists: rep.Tropes.SuggestedTwists})
	if err != nil {
		return fmt.Errorf("marshal tropes: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, status, failure_stage, failure_reason, genre, category, tone, themes_json,
		                   genre_drawn, winner_id, doc_id, doc_path, summary, tropes_json, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, string(rep.Status), nullIfEmpty(rep.FailureStage), nullIfEmpty(rep.FailureReason),
		rep.Genre.Genre, string(rep.Genre.Category), rep.Genre.Tone, string(themes),
		boolToInt(rep.GenreDrawn), nullIfEmpty(rep.WinnerID), nullIfEmpty(rep.DocID), nullIfEmpty(rep.DocPath),
		nullIfEmpty(rep.Summary), string(tropes),
		formatTime(rep.StartedAt), formatTime(rep.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range rep.Pitches {
		draft, err := json.Marshal(p.Draft)
		if err != nil {
			return fmt.Errorf("marshal draft: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO pitches (pitch_id, run_id, lineage_id, parent_id, revision_number, seq, title, text, draft_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, rep.RunID, p.LineageID, nullIfEmpty(p.ParentID), p.RevisionNumber, p.Seq,
			p.Draft.Title, p.Text, string(draft), formatTime(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert pitch %s: %w", p.ID, err)
		}
	}

	for _, sc := range rep.Scores {
		_, err = tx.Exec(
			`INSERT INTO scores (run_id, pitch_id, originality, emotional_clarity, genre_fit, uniqueness, composite, rationale)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, sc.PitchID, sc.Originality, sc.EmotionalClarity, sc.GenreFit, sc.Uniqueness,
			sc.Composite(), nullIfEmpty(sc.Rationale),
		)
		if err != nil {
			return fmt.Errorf("insert score for %s: %w", sc.PitchID, err)
		}
	}

	for _, lin := range rep.Lineages {
		ids, err := json.Marshal(lin.PitchIDs)
		if err != nil {
			return fmt.Errorf("marshal lineage: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO lineages (run_id, lineage_id, seq, state, revisions, forced_accept, decision, pitch_ids)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, lin.ID, lin.Seq, string(lin.State), lin.Revisions, boolToInt(lin.ForcedAccept),
			nullIfEmpty(lin.Decision), string(ids),
		)
		if err != nil {
			return fmt.Errorf("insert lineage %s: %w", lin.ID, err)
		}
	}

	for _, e := range rep.Trail {
		err := logging.LogDecision(tx, logging.ProvenanceEntry{
			RunID:     rep.RunID,
			Seq:       e.Seq,
			Stage:     e.Stage,
			Subject:   e.Subject,
			Decision:  e.Decision,
			Reason:    e.Reason,
			CreatedAt: e.At,
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
// #endregion save

// #region list
// ListRuns returns the most recent runs first. limit <= 0 lists all.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	q := summarySelect + ` ORDER BY r.started_at DESC, r.run_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

const summarySelect = `
SELECT r.run_id, r.status, COALESCE(r.failure_stage, ''), COALESCE(r.failure_reason, ''),
       COALESCE(r.genre, ''), COALESCE(r.category, ''), r.genre_drawn,
       COALESCE(r.winner_id, ''), COALESCE(p.title, ''), COALESCE(r.doc_id, ''), COALESCE(r.doc_path, ''),
       r.started_at, r.finished_at
FROM runs r LEFT JOIN pitches p ON p.pitch_id = r.winner_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (RunSummary, error) {
	var sum RunSummary
	var category, started, finished string
	var drawn int
	err := row.Scan(&sum.RunID, &sum.Status, &sum.FailureStage, &sum.FailureReason,
		&sum.Genre, &category, &drawn,
		&sum.WinnerID, &sum.WinnerTitle, &sum.DocID, &sum.DocPath,
		&started, &finished)
	if err != nil {
		return RunSummary{}, err
	}
	sum.Category = pitch.Category(category)
	sum.GenreDrawn = drawn != 0
	sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	sum.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return sum, nil
}
// #endregion list

// #region get
// GetRun loads one run with its pitch tree, scores, lineages and trail.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	sum, err := scanSummary(s.db.QueryRow(summarySelect+` WHERE r.run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	rec.RunSummary = sum

	var tone, themesJSON, tropesJSON string
	var summary sql.NullString
	err = s.db.QueryRow(
		`SELECT COALESCE(tone, ''), COALESCE(themes_json, '[]'), summary, COALESCE(tropes_json, '{}')
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&tone, &themesJSON, &summary, &tropesJSON)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run details %s: %w", runID, err)
	}
	rec.Genre = pitch.GenreProfile{Genre: sum.Genre, Category: sum.Category, Tone: tone}
	if err := json.Unmarshal([]byte(themesJSON), &rec.Genre.Themes); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal themes: %w", err)
	}
	if summary.Valid {
		rec.Summary = summary.String
	}
	var tr tropesRow
	if err := json.Unmarshal([]byte(tropesJSON), &tr); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal tropes: %w", err)
	}
	rec.Tropes = pitch.TropeReport{PitchID: sum.WinnerID, DetectedTropes: tr.Detected, SuggestedTwists: tr.Twists}

	if rec.Pitches, err = s.loadPitches(runID, rec.Genre); err != nil {
		return RunRecord{}, err
	}
	if rec.Scores, err = s.loadScores(runID); err != nil {
		return RunRecord{}, err
	}
	if rec.Lineages, err = s.loadLineages(runID); err != nil {
		return RunRecord{}, err
	}
	if rec.Decisions, err = logging.LoadDecisions(s.db, runID); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func (s *Store) loadPitches(runID string, genre pitch.GenreProfile) ([]pitch.Pitch, error) {
	rows, err := s.db.Query(
		`SELECT pitch_id, lineage_id, COALESCE(parent_id, ''), revision_number, seq, text, draft_json, created_at
		 FROM pitches WHERE run_id = ? ORDER BY seq, revision_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("load pitches: %w", err)
	}
	defer rows.Close()

	var out []pitch.Pitch
	for rows.Next() {
		var p pitch.Pitch
		var draftJSON, created string
		if err := rows.Scan(&p.ID, &p.LineageID, &p.ParentID, &p.RevisionNumber, &p.Seq, &p.Text, &draftJSON, &created); err != nil {
			return nil, fmt.Errorf("scan pitch: %w", err)
		}
		if err := json.Unmarshal([]byte(draftJSON), &p.Draft); err != nil {
			return nil, fmt.Errorf("unmarshal draft: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		p.Genre = genre.Clone()
		out = append(out, p)
	}
	return out, rows.Err()
}

// loadScores fails with ErrCompositeMismatch when a stored composite drifted
// from its sub-scores.
func (s *Store) loadScores(runID string) ([]StoredScore, error) {
	rows, err := s.db.Query(
		`SELECT pitch_id, originality, emotional_clarity, genre_fit, uniqueness, composite, COALESCE(rationale, '')
		 FROM scores WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()

	var out []StoredScore
	for rows.Next() {
		var ss StoredScore
		if err := rows.Scan(&ss.PitchID, &ss.Originality, &ss.EmotionalClarity, &ss.GenreFit, &ss.Uniqueness, &ss.Composite, &ss.Rationale); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if !scoring.SameComposite(ss.Composite, ss.Score) {
			return nil, fmt.Errorf("%w: pitch %s stored %.4f, derived %.4f", ErrCompositeMismatch, ss.PitchID, ss.Composite, ss.Score.Composite())
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *Store) loadLineages(runID string) ([]pitch.Lineage, error) {
	rows, err := s.db.Query(
		`SELECT lineage_id, seq, state, revisions, forced_accept, COALESCE(decision, ''), pitch_ids
		 FROM lineages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load lineages: %w", err)
	}
	defer rows.Close()

	var out []pitch.Lineage
	for rows.Next() {
		var lin pitch.Lineage
		var state, ids string
		var forced int
		if err := rows.Scan(&lin.ID, &lin.Seq, &state, &lin.Revisions, &forced, &lin.Decision, &ids); err != nil {
			return nil, fmt.Errorf("scan lineage: %w", err)
		}
		lin.State = pitch.LineageState(state)
		lin.ForcedAccept = forced != 0
		if err := json.Unmarshal([]byte(ids), &lin.PitchIDs); err != nil {
			return nil, fmt.Errorf("unmarshal lineage pitches: %w", err)
		}
		out = append(out, lin)
	}
	return out, rows.Err()
}
// #endregion get

// #region helpers
type tropesRow struct {
	Detected []string          `json:"detected"`
	Twists   map[string]string `json:"twists,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
