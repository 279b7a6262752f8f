package pitch

// #region imports
import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region lineage-state

// LineageState is the revision-loop position of one lineage.
type LineageState string

const (
	StateDrafted       LineageState = "drafted"
	StateScored        LineageState = "scored"
	StateNeedsRevision LineageState = "needs_revision"
	StateRevised       LineageState = "revised"
	StateAccepted      LineageState = "accepted"
	StateDropped       LineageState = "dropped"
)

// Lineage is a root pitch plus every revision derived from it.
type Lineage struct {
	ID           string // root pitch id
	Seq          int
	State        LineageState
	Revisions    int
	ForcedAccept bool
	Decision     string
	PitchIDs     []string // root first, leaf last
}

// LeafID returns the id of the most recent pitch in the lineage.
func (l Lineage) LeafID() string {
	return l.PitchIDs[len(l.PitchIDs)-1]
}

// #endregion

// #region errors

var (
	ErrUnknownPitch   = errors.New("pitch store: unknown pitch")
	ErrUnknownLineage = errors.New("pitch store: unknown lineage")
	ErrNotLeaf        = errors.New("pitch store: parent already revised")
	ErrWinnerSet      = errors.New("pitch store: winner already marked")
	ErrNotAccepted    = errors.New("pitch store: lineage not accepted")
)

// #endregion

// #region store

// Store holds every pitch and score of one run. Records are append-only:
// once a pitch or score is added it is never modified.
type Store struct {
	mu       sync.RWMutex
	pitches  map[string]Pitch
	scores   map[string][]scoring.Score
	lineages map[string]*Lineage
	nextSeq  int
	winner   string
	now      func() time.Time
	newID    func() string
}

// NewStore returns an empty store for a single run.
func NewStore() *Store {
	return &Store{
		pitches:  make(map[string]Pitch),
		scores:   make(map[string][]scoring.Score),
		lineages: make(map[string]*Lineage),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// #endregion

// #region add

// AddRoot stores a new root pitch and opens a lineage for it.
func (s *Store) AddRoot(d Draft, genre GenreProfile) (Pitch, error) {
	if !d.Usable() {
		return Pitch{}, fmt.Errorf("pitch store: draft %q is not usable", d.Title)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	p := Pitch{
		ID:             id,
		LineageID:      id,
		RevisionNumber: 0,
		Seq:            s.nextSeq,
		Text:           d.Render(),
		Draft:          d,
		Genre:          genre.Clone(),
		CreatedAt:      s.now(),
	}
	s.pitches[id] = p
	s.lineages[id] = &Lineage{
		ID:       id,
		Seq:      s.nextSeq,
		State:    StateDrafted,
		PitchIDs: []string{id},
	}
	s.nextSeq++
	return p, nil
}

// ProposeRevision builds the pitch that would revise parentID without
// storing it. The parent must be the current leaf of its lineage.
func (s *Store) ProposeRevision(parentID string, d Draft) (Pitch, error) {
	if !d.Usable() {
		return Pitch{}, fmt.Errorf("pitch store: revision draft %q is not usable", d.Title)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, err := s.leafLocked(parentID)
	if err != nil {
		return Pitch{}, err
	}
	return Pitch{
		ID:             s.newID(),
		LineageID:      parent.LineageID,
		ParentID:       parent.ID,
		RevisionNumber: parent.RevisionNumber + 1,
		Seq:            parent.Seq,
		Text:           d.Render(),
		Draft:          d,
		Genre:          parent.Genre,
		CreatedAt:      s.now(),
	}, nil
}

// CommitRevision stores a proposed revision together with its score, so a
// lineage leaf always carries a score.
func (s *Store) CommitRevision(p Pitch, sc scoring.Score) error {
	if sc.PitchID != p.ID {
		return fmt.Errorf("pitch store: score for %s committed with revision %s", sc.PitchID, p.ID)
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.pitches[p.ID]; dup {
		return fmt.Errorf("pitch store: revision %s already committed", p.ID)
	}
	parent, err := s.leafLocked(p.ParentID)
	if err != nil {
		return err
	}
	if p.LineageID != parent.LineageID || p.RevisionNumber != parent.RevisionNumber+1 {
		return fmt.Errorf("pitch store: revision %s does not follow %s", p.ID, parent.ID)
	}
	s.pitches[p.ID] = p
	s.scores[p.ID] = []scoring.Score{sc}
	lin := s.lineages[p.LineageID]
	lin.PitchIDs = append(lin.PitchIDs, p.ID)
	lin.Revisions++
	lin.State = StateScored
	return nil
}

func (s *Store) leafLocked(id string) (Pitch, error) {
	p, ok := s.pitches[id]
	if !ok {
		return Pitch{}, fmt.Errorf("%w: %s", ErrUnknownPitch, id)
	}
	if s.lineages[p.LineageID].LeafID() != id {
		return Pitch{}, fmt.Errorf("%w: %s", ErrNotLeaf, id)
	}
	return p, nil
}

// RecordScore appends a score for its pitch and moves the lineage to scored.
func (s *Store) RecordScore(sc scoring.Score) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pitches[sc.PitchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPitch, sc.PitchID)
	}
	s.scores[sc.PitchID] = append(s.scores[sc.PitchID], sc)
	s.lineages[p.LineageID].State = StateScored
	return nil
}

// #endregion

// #region transitions

// SetState moves a lineage to a non-terminal state.
func (s *Store) SetState(lineageID string, st LineageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lin, ok := s.lineages[lineageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLineage, lineageID)
	}
	lin.State = st
	return nil
}

// Accept closes a lineage's revision loop with the recorded decision.
func (s *Store) Accept(lineageID string, forced bool, decision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lin, ok := s.lineages[lineageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLineage, lineageID)
	}
	lin.State = StateAccepted
	lin.ForcedAccept = forced
	lin.Decision = decision
	return nil
}

// Drop removes a lineage from voting with the recorded decision. Its pitches
// stay in the store.
func (s *Store) Drop(lineageID, decision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lin, ok := s.lineages[lineageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLineage, lineageID)
	}
	lin.State = StateDropped
	lin.Decision = decision
	return nil
}

// MarkWinner records the single winning pitch of the run.
func (s *Store) MarkWinner(pitchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.winner != "" {
		return fmt.Errorf("%w: %s", ErrWinnerSet, s.winner)
	}
	p, ok := s.pitches[pitchID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPitch, pitchID)
	}
	if s.lineages[p.LineageID].State != StateAccepted {
		return fmt.Errorf("%w: %s", ErrNotAccepted, p.LineageID)
	}
	s.winner = pitchID
	return nil
}

// #endregion

// #region queries

// Pitch returns a stored pitch by id.
func (s *Store) Pitch(id string) (Pitch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pitches[id]
	return p, ok
}

// Scores returns every score recorded for a pitch, oldest first.
func (s *Store) Scores(pitchID string) []scoring.Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scoring.Score(nil), s.scores[pitchID]...)
}

// LatestScored returns the most recent pitch of a lineage that has a score,
// together with that score.
func (s *Store) LatestScored(lineageID string) (Pitch, scoring.Score, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lin, ok := s.lineages[lineageID]
	if !ok {
		return Pitch{}, scoring.Score{}, false
	}
	for i := len(lin.PitchIDs) - 1; i >= 0; i-- {
		id := lin.PitchIDs[i]
		if sc := s.scores[id]; len(sc) > 0 {
			return s.pitches[id], sc[len(sc)-1], true
		}
	}
	return Pitch{}, scoring.Score{}, false
}

// Lineage returns a copy of one lineage.
func (s *Store) Lineage(id string) (Lineage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lin, ok := s.lineages[id]
	if !ok {
		return Lineage{}, false
	}
	return copyLineage(lin), true
}

// Lineages returns copies of every lineage in creation order.
func (s *Store) Lineages() []Lineage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lineage, 0, len(s.lineages))
	for _, lin := range s.lineages {
		out = append(out, copyLineage(lin))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Chain returns the pitches from the lineage root up to and including pitchID.
func (s *Store) Chain(pitchID string) []Pitch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chain []Pitch
	for id := pitchID; id != ""; {
		p, ok := s.pitches[id]
		if !ok {
			break
		}
		chain = append(chain, p)
		id = p.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Winner returns the winning pitch once one has been marked.
func (s *Store) Winner() (Pitch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.winner == "" {
		return Pitch{}, false
	}
	return s.pitches[s.winner], true
}

// Len returns the number of stored pitches, revisions included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pitches)
}

func copyLineage(lin *Lineage) Lineage {
	c := *lin
	c.PitchIDs = append([]string(nil), lin.PitchIDs...)
	return c
}

// #endregion
