// Package document assembles the final idea document from a finished run
// and renders it as YAML frontmatter plus a markdown body. Assembly is pure.
package document

// #region imports
import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/danielpatrickdp/idea-forge/internal/pitch"
	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region constants

const (
	DocType    = "idea"
	StatusWin  = "winner"
	Version    = "v1"
	TagAI      = "AI_generated"
	Untitled   = "Untitled"
	idTimeForm = "20060102150405"
	maxIDTitle = 30
)

// #endregion

// #region types

// TropeSuggestion pairs a detected trope with a fresh twist on it.
type TropeSuggestion struct {
	Trope      string `yaml:"trope"`
	Suggestion string `yaml:"suggestion"`
}

// Frontmatter is the YAML header. Field order is the wire order.
type Frontmatter struct {
	DocType          string            `yaml:"doc_type"`
	DocID            string            `yaml:"doc_id"`
	Status           string            `yaml:"status"`
	Version          string            `yaml:"version"`
	Tags             []string          `yaml:"tags"`
	Title            string            `yaml:"title"`
	ElevatorPitch    string            `yaml:"elevator_pitch"`
	Genre            string            `yaml:"genre"`
	Tone             string            `yaml:"tone"`
	Themes           []string          `yaml:"themes"`
	Summary          string            `yaml:"summary"`
	Notes            string            `yaml:"notes"`
	Tropes           []string          `yaml:"tropes"`
	TropeSuggestions []TropeSuggestion `yaml:"trope_suggestions"`
}

// IdeaDocument is the assembled artifact of one run.
type IdeaDocument struct {
	Frontmatter

	Category     pitch.Category
	Winner       pitch.Pitch
	Lineage      []pitch.Pitch // root first, winner last
	Score        scoring.Score
	ForcedAccept bool
	NoteLines    []string
	CreatedAt    time.Time
}

// Input is everything the assembler needs.
type Input struct {
	Genre        pitch.GenreProfile
	Lineage      []pitch.Pitch
	Score        scoring.Score
	ForcedAccept bool
	Tropes       pitch.TropeReport
	Summary      string
	Notes        []string
	CreatedAt    time.Time
}

// #endregion

// #region assemble

// Assemble builds the document. The same input always yields the same
// document.
func Assemble(in Input) (IdeaDocument, error) {
	if len(in.Lineage) == 0 {
		return IdeaDocument{}, fmt.Errorf("document: empty winner lineage")
	}
	winner := in.Lineage[len(in.Lineage)-1]
	if in.Score.PitchID != winner.ID {
		return IdeaDocument{}, fmt.Errorf("document: score is for %s, winner is %s", in.Score.PitchID, winner.ID)
	}
	if err := in.Genre.Validate(); err != nil {
		return IdeaDocument{}, fmt.Errorf("document: %w", err)
	}

	title := ExtractTitle(winner.Text)
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		summary = strings.TrimSpace(winner.Draft.Concept)
	}
	elevator := strings.TrimSpace(winner.Draft.Hook)
	if elevator == "" {
		elevator = firstParagraph(winner.Text)
	}
	tropes := in.Tropes.Normalize()

	fm := Frontmatter{
		DocType:          DocType,
		DocID:            DocID(title, in.CreatedAt),
		Status:           StatusWin,
		Version:          Version,
		Tags:             Tags(in.Genre),
		Title:            title,
		ElevatorPitch:    elevator,
		Genre:            in.Genre.Genre,
		Tone:             in.Genre.Tone,
		Themes:           append([]string(nil), in.Genre.Themes...),
		Summary:          summary,
		Notes:            strings.Join(in.Notes, "\n"),
		Tropes:           append([]string{}, tropes.DetectedTropes...),
		TropeSuggestions: suggestions(tropes),
	}
	return IdeaDocument{
		Frontmatter:  fm,
		Category:     in.Genre.Category,
		Winner:       winner,
		Lineage:      append([]pitch.Pitch(nil), in.Lineage...),
		Score:        in.Score,
		ForcedAccept: in.ForcedAccept,
		NoteLines:    append([]string(nil), in.Notes...),
		CreatedAt:    in.CreatedAt,
	}, nil
}

// suggestions follows detected-trope order so output never depends on map
// iteration.
func suggestions(r pitch.TropeReport) []TropeSuggestion {
	out := []TropeSuggestion{}
	for _, t := range r.DetectedTropes {
		if s, ok := r.SuggestedTwists[t]; ok {
			out = append(out, TropeSuggestion{Trope: t, Suggestion: s})
		}
	}
	return out
}

func firstParagraph(text string) string {
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" && !strings.HasPrefix(para, "#") {
			return para
		}
	}
	return ""
}

// #endregion

// #region title

var (
	headingTitle = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)
	labelTitle   = regexp.MustCompile(`(?mi)^title:\s*(.+?)\s*$`)
)

// ExtractTitle finds a "# Heading" or "Title:" line in pitch text.
func ExtractTitle(text string) string {
	for _, re := range []*regexp.Regexp{headingTitle, labelTitle} {
		if m := re.FindStringSubmatch(text); m != nil {
			if t := strings.Trim(strings.TrimSpace(m[1]), `"*`); t != "" {
				return t
			}
		}
	}
	return Untitled
}

// #endregion

// #region ids-tags

// DocID is idea_<title letters and digits, lowercased, at most 30>_<timestamp>.
func DocID(title string, at time.Time) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if b.Len() >= maxIDTitle {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("idea_%s_%s", slug, at.UTC().Format(idTimeForm))
}

// Tags lists genre, tone and themes as lowercase snake words plus the
// AI_generated marker, without duplicates.
func Tags(g pitch.GenreProfile) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = tagify(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		tags = append(tags, s)
	}
	add(g.Genre)
	add(g.Tone)
	for _, th := range g.Themes {
		add(th)
	}
	if !seen[TagAI] {
		tags = append(tags, TagAI)
	}
	return tags
}

func tagify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// #endregion
