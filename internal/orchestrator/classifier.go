package orchestrator

// #region imports
import (
	"math/rand/v2"
	"strings"

	"github.com/danielpatrickdp/idea-forge/internal/catalog"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
)

// #endregion

// #region classify

// GenreChoice is the partial profile a run starts from.
type GenreChoice struct {
	Profile pitch.GenreProfile
	Drawn   bool // picked from the catalog
	Known   bool // found in the catalog
	Dropped []string // themes beyond pitch.MaxThemes
}

// ClassifyGenre builds the starting profile. An empty genre is drawn
// uniformly from the catalog; a given one keeps its spelling and takes its
// category from the catalog when listed there. Themes are deduplicated and
// capped at pitch.MaxThemes in the order given.
func ClassifyGenre(req Request, rng *rand.Rand) GenreChoice {
	themes := uniqueThemes(req.Themes)
	var dropped []string
	if len(themes) > pitch.MaxThemes {
		themes, dropped = themes[:pitch.MaxThemes], themes[pitch.MaxThemes:]
	}
	profile := pitch.GenreProfile{
		Tone:   strings.TrimSpace(req.Tone),
		Themes: themes,
	}
	choice := GenreChoice{Dropped: dropped}
	name := strings.TrimSpace(req.Genre)
	if name == "" {
		e := catalog.Draw(rng)
		profile.Genre = e.Name
		profile.Category = e.Category
		choice.Profile, choice.Drawn, choice.Known = profile, true, true
		return choice
	}
	profile.Genre = name
	if e, ok := catalog.Lookup(name); ok {
		profile.Category = e.Category
		choice.Profile, choice.Known = profile, true
		return choice
	}
	profile.Category = pitch.CategoryOther
	choice.Profile = profile
	return choice
}

func uniqueThemes(in []string) []string {
	seen := make(map[string]bool, len(in))
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
