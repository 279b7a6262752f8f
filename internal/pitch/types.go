package pitch

// #region imports
import (
	"fmt"
	"strings"
	"time"
)

// #endregion

// #region category

// Category is the broad shelf a subgenre belongs to.
type Category string

const (
	CategorySciFi   Category = "sci-fi"
	CategoryFantasy Category = "fantasy"
	CategoryOther   Category = "other"
)

// ParseCategory maps loose spellings onto a Category. Unknown values map to CategoryOther.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sci-fi", "scifi", "science_fiction", "science fiction", "sf":
		return CategorySciFi
	case "fantasy":
		return CategoryFantasy
	}
	return CategoryOther
}

// #endregion

// #region genre-profile

const (
	MinThemes = 2
	MaxThemes = 5
)

// GenreProfile is resolved once per run and never changed afterwards.
type GenreProfile struct {
	Genre    string
	Category Category
	Tone     string
	Themes   []string
}

// Complete reports whether tone and themes are both filled in.
func (g GenreProfile) Complete() bool {
	return strings.TrimSpace(g.Tone) != "" && len(g.Themes) >= MinThemes
}

// Validate enforces the shape every resolved profile must have.
func (g GenreProfile) Validate() error {
	if strings.TrimSpace(g.Genre) == "" {
		return fmt.Errorf("genre profile: genre is required")
	}
	if strings.TrimSpace(g.Tone) == "" {
		return fmt.Errorf("genre profile: tone is required")
	}
	if n := len(g.Themes); n < MinThemes || n > MaxThemes {
		return fmt.Errorf("genre profile: need %d-%d themes, got %d", MinThemes, MaxThemes, n)
	}
	for i, th := range g.Themes {
		if strings.TrimSpace(th) == "" {
			return fmt.Errorf("genre profile: theme %d is empty", i)
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with g.
func (g GenreProfile) Clone() GenreProfile {
	g.Themes = append([]string(nil), g.Themes...)
	return g
}

// #endregion

// #region draft

// Draft is the structured content a pitch is rendered from.
type Draft struct {
	Title    string `json:"title"`
	Hook     string `json:"hook"`
	Concept  string `json:"concept"`
	Conflict string `json:"conflict"`
	Twist    string `json:"twist"`
}

// Usable reports whether the draft carries enough content to be critiqued.
func (d Draft) Usable() bool {
	return strings.TrimSpace(d.Hook) != "" && strings.TrimSpace(d.Concept) != ""
}

// Key identifies a draft for duplicate detection: title and hook, trimmed
// and case-folded.
func (d Draft) Key() string {
	return strings.ToLower(strings.TrimSpace(d.Title)) + "|" + strings.ToLower(strings.TrimSpace(d.Hook))
}

// Render formats the draft as pitch text with one marker per line.
func (d Draft) Render() string {
	var b strings.Builder
	if t := strings.TrimSpace(d.Title); t != "" {
		fmt.Fprintf(&b, "# %s\n\n", t)
	}
	writeField(&b, "Hook", d.Hook)
	writeField(&b, "Concept", d.Concept)
	writeField(&b, "Conflict", d.Conflict)
	writeField(&b, "Twist", d.Twist)
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

// #endregion

// #region pitch

// Pitch is one immutable candidate. Revisions are new Pitches pointing at
// their parent; parents are never edited.
type Pitch struct {
	ID             string
	LineageID      string
	ParentID       string
	RevisionNumber int
	Seq            int
	Text           string
	Draft          Draft
	Genre          GenreProfile
	CreatedAt      time.Time
}

// IsRoot reports whether the pitch starts a lineage.
func (p Pitch) IsRoot() bool {
	return p.ParentID == ""
}

// #endregion

// #region trope-report

// TropeReport is the trope analysis for the winning pitch.
type TropeReport struct {
	PitchID         string
	DetectedTropes  []string
	SuggestedTwists map[string]string
}

// Empty reports whether no tropes were detected.
func (r TropeReport) Empty() bool {
	return len(r.DetectedTropes) == 0
}

// Normalize trims and de-duplicates detected tropes (case-insensitive, first
// spelling kept) and drops suggestions for tropes that were not detected.
func (r TropeReport) Normalize() TropeReport {
	seen := make(map[string]string)
	var tropes []string
	for _, t := range r.DetectedTropes {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = t
		tropes = append(tropes, t)
	}
	var twists map[string]string
	for k, v := range r.SuggestedTwists {
		name, ok := seen[strings.ToLower(strings.TrimSpace(k))]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		if twists == nil {
			twists = make(map[string]string)
		}
		twists[name] = v
	}
	return TropeReport{PitchID: r.PitchID, DetectedTropes: tropes, SuggestedTwists: twists}
}

// #endregion
