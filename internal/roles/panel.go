package roles

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielpatrickdp/idea-forge/internal/logging"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
	"github.com/danielpatrickdp/idea-forge/internal/textgen"
)

// #endregion

// #region panel

// Panel implements Adapters on top of one text-generation service.
type Panel struct {
	svc textgen.Service
	log *slog.Logger
}

// NewPanel returns a Panel. A nil logger discards output.
func NewPanel(svc textgen.Service, log *slog.Logger) *Panel {
	if log == nil {
		log = logging.Discard()
	}
	return &Panel{svc: svc, log: log}
}

var _ Adapters = (*Panel)(nil)

// call sends one request and decodes the JSON answer into out.
func (p *Panel) call(ctx context.Context, req textgen.Request, out any) error {
	logging.SuperDebug(ctx, p.log, "role call", "role", req.Role, "input", req.Input)

	resp, err := p.svc.Generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrGeneration, req.Role, err)
	}
	if !resp.OK || strings.TrimSpace(resp.Output) == "" {
		return fmt.Errorf("%w: %s: empty output", ErrGeneration, req.Role)
	}
	logging.SuperDebug(ctx, p.log, "role output", "role", req.Role, "output", resp.Output)

	if err := decodeJSON(resp.Output, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrGeneration, req.Role, err)
	}
	return nil
}

// decodeJSON tolerates markdown fences and prose around one JSON object.
func decodeJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON in output")
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}

// #endregion

// #region genre

type genreOutput struct {
	Tone   string   `json:"tone"`
	Themes []string `json:"themes"`
}

// ResolveGenre fills in tone and themes the caller left empty. Values the
// caller supplied are kept.
func (p *Panel) ResolveGenre(ctx context.Context, partial pitch.GenreProfile) (pitch.GenreProfile, error) {
	g := partial.Clone()
	g.Themes = cleanThemes(g.Themes)
	if g.Complete() {
		return g, g.Validate()
	}

	var out genreOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleGenreVibe,
		Input: map[string]any{
			"genre":    g.Genre,
			"category": string(g.Category),
			"tone":     g.Tone,
			"themes":   g.Themes,
		},
		Constraints: map[string]any{
			"themes": fmt.Sprintf("%d-%d short phrases", pitch.MinThemes, pitch.MaxThemes),
			"format": `{"tone": string, "themes": [string]}`,
		},
	}, &out)
	if err != nil {
		return pitch.GenreProfile{}, err
	}

	if strings.TrimSpace(g.Tone) == "" {
		g.Tone = strings.TrimSpace(out.Tone)
	}
	if len(g.Themes) < pitch.MinThemes {
		g.Themes = cleanThemes(append(g.Themes, out.Themes...))
	}
	if len(g.Themes) > pitch.MaxThemes {
		g.Themes = g.Themes[:pitch.MaxThemes]
	}
	if err := g.Validate(); err != nil {
		return pitch.GenreProfile{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return g, nil
}

func cleanThemes(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// #endregion

// #region pitches

type pitchesOutput struct {
	Pitches []pitch.Draft `json:"pitches"`
}

// GeneratePitches asks for n pitch drafts and keeps the usable ones.
func (p *Panel) GeneratePitches(ctx context.Context, genre pitch.GenreProfile, n int) ([]pitch.Draft, error) {
	if n <= 0 {
		return nil, nil
	}
	var out pitchesOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RolePitchGenerator,
		Input: map[string]any{
			"genre":  genre.Genre,
			"tone":   genre.Tone,
			"themes": genre.Themes,
			"count":  n,
		},
		Constraints: map[string]any{
			"count":  n,
			"format": `{"pitches": [{"title", "hook", "concept", "conflict", "twist"}]}`,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	drafts := make([]pitch.Draft, 0, n)
	for _, d := range out.Pitches {
		if !d.Usable() {
			continue
		}
		if seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		drafts = append(drafts, d)
		if len(drafts) == n {
			break
		}
	}
	if len(drafts) < n {
		return drafts, fmt.Errorf("%w: %d of %d pitches usable", ErrGeneration, len(drafts), n)
	}
	return drafts, nil
}

// #endregion

// #region critic

type critiqueOutput struct {
	Scores struct {
		Originality      *float64 `json:"originality"`
		EmotionalClarity *float64 `json:"emotional_clarity"`
		GenreFit         *float64 `json:"genre_fit"`
		Uniqueness       *float64 `json:"uniqueness"`
	} `json:"scores"`
	Rationale string `json:"rationale"`
}

// Critique scores a pitch on the four criteria.
func (p *Panel) Critique(ctx context.Context, pt pitch.Pitch) (scoring.Score, error) {
	var out critiqueOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleCritic,
		Input: map[string]any{
			"title":           pt.Draft.Title,
			"text":            pt.Text,
			"genre":           pt.Genre.Genre,
			"tone":            pt.Genre.Tone,
			"themes":          pt.Genre.Themes,
			"revision_number": pt.RevisionNumber,
		},
		Constraints: map[string]any{
			"criteria": "originality, emotional_clarity, genre_fit, uniqueness",
			"scale":    fmt.Sprintf("%g-%g", scoring.MinScore, scoring.MaxScore),
			"format":   `{"scores": {criterion: number}, "rationale": string}`,
		},
	}, &out)
	if err != nil {
		return scoring.Score{}, err
	}

	fields := []struct {
		name scoring.Criterion
		v    *float64
	}{
		{scoring.CriterionOriginality, out.Scores.Originality},
		{scoring.CriterionEmotionalClarity, out.Scores.EmotionalClarity},
		{scoring.CriterionGenreFit, out.Scores.GenreFit},
		{scoring.CriterionUniqueness, out.Scores.Uniqueness},
	}
	for _, f := range fields {
		if f.v == nil {
			return scoring.Score{}, fmt.Errorf("%w: critic omitted %s", ErrValidation, f.name)
		}
	}
	sc := scoring.Score{
		PitchID:          pt.ID,
		Originality:      *out.Scores.Originality,
		EmotionalClarity: *out.Scores.EmotionalClarity,
		GenreFit:         *out.Scores.GenreFit,
		Uniqueness:       *out.Scores.Uniqueness,
		Rationale:        strings.TrimSpace(out.Rationale),
	}
	if err := sc.Validate(); err != nil {
		return scoring.Score{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return sc, nil
}

// #endregion

// #region improver

// Improve asks for a revised draft that targets the weakest criteria.
func (p *Panel) Improve(ctx context.Context, pt pitch.Pitch, sc scoring.Score) (pitch.Draft, error) {
	weak := sc.Weakest(sc.Composite())
	if len(weak) == 0 {
		weak = scoring.Criteria
	}
	focus := make([]string, len(weak))
	for i, c := range weak {
		focus[i] = string(c)
	}

	var out pitch.Draft
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleImprover,
		Input: map[string]any{
			"title":    pt.Draft.Title,
			"hook":     pt.Draft.Hook,
			"concept":  pt.Draft.Concept,
			"conflict": pt.Draft.Conflict,
			"twist":    pt.Draft.Twist,
			"genre":    pt.Genre.Genre,
			"scores": map[string]float64{
				string(scoring.CriterionOriginality):      sc.Originality,
				string(scoring.CriterionEmotionalClarity): sc.EmotionalClarity,
				string(scoring.CriterionGenreFit):         sc.GenreFit,
				string(scoring.CriterionUniqueness):       sc.Uniqueness,
			},
			"critique": sc.Rationale,
		},
		Constraints: map[string]any{
			"focus":  strings.Join(focus, ", "),
			"format": `{"title", "hook", "concept", "conflict", "twist"}`,
		},
	}, &out)
	if err != nil {
		return pitch.Draft{}, err
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = pt.Draft.Title
	}
	if !out.Usable() {
		return pitch.Draft{}, fmt.Errorf("%w: revision lacks hook or concept", ErrValidation)
	}
	return out, nil
}

// #endregion

// #region voter

type voteOutput struct {
	WinnerID  string `json:"winner_id"`
	Rationale string `json:"rationale"`
}

// Vote asks the voter to pick one candidate.
func (p *Panel) Vote(ctx context.Context, genre pitch.GenreProfile, candidates []Candidate) (Vote, error) {
	if len(candidates) == 0 {
		return Vote{}, fmt.Errorf("%w: no candidates", ErrValidation)
	}
	list := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, map[string]any{
			"id":            c.Pitch.ID,
			"title":         c.Pitch.Draft.Title,
			"text":          c.Pitch.Text,
			"composite":     c.Score.Composite(),
			"forced_accept": c.ForcedAccept,
		})
	}
	var out voteOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleVoter,
		Input: map[string]any{
			"genre":      genre.Genre,
			"tone":       genre.Tone,
			"candidates": list,
		},
		Constraints: map[string]any{
			"format": `{"winner_id": one of the candidate ids, "rationale": string}`,
		},
	}, &out)
	if err != nil {
		return Vote{}, err
	}
	return Vote{WinnerID: strings.TrimSpace(out.WinnerID), Rationale: strings.TrimSpace(out.Rationale)}, nil
}

// #endregion

// #region tropes

type tropeOutput struct {
	DetectedTropes  []string          `json:"detected_tropes"`
	SuggestedTwists map[string]string `json:"suggested_twists"`
}

// AnalyzeTropes lists familiar tropes in the pitch with a twist for each.
func (p *Panel) AnalyzeTropes(ctx context.Context, pt pitch.Pitch) (pitch.TropeReport, error) {
	var out tropeOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleTropeAnalyst,
		Input: map[string]any{
			"title": pt.Draft.Title,
			"text":  pt.Text,
			"genre": pt.Genre.Genre,
		},
		Constraints: map[string]any{
			"format": `{"detected_tropes": [string], "suggested_twists": {trope: suggestion}}`,
		},
	}, &out)
	if err != nil {
		return pitch.TropeReport{}, err
	}
	rep := pitch.TropeReport{
		PitchID:         pt.ID,
		DetectedTropes:  out.DetectedTropes,
		SuggestedTwists: out.SuggestedTwists,
	}
	return rep.Normalize(), nil
}

// #endregion

// #region recorder

type recordOutput struct {
	Summary string `json:"summary"`
}

// Record writes a short prose summary of the finished idea.
func (p *Panel) Record(ctx context.Context, in RecordInput) (string, error) {
	var out recordOutput
	err := p.call(ctx, textgen.Request{
		Role: textgen.RoleRecorder,
		Input: map[string]any{
			"title":     in.Winner.Draft.Title,
			"text":      in.Winner.Text,
			"genre":     in.Genre.Genre,
			"tone":      in.Genre.Tone,
			"themes":    in.Genre.Themes,
			"composite": in.Score.Composite(),
			"tropes":    in.Tropes.DetectedTropes,
		},
		Constraints: map[string]any{
			"length": "one paragraph",
			"format": `{"summary": string}`,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(out.Summary)
	if s == "" {
		return "", fmt.Errorf("%w: empty summary", ErrValidation)
	}
	return s, nil
}

// #endregion
