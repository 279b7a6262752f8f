// Package catalog holds the curated subgenre list used when a run does not
// name its own genre.
package catalog

// #region imports
import (
	"math/rand/v2"
	"strings"

	"github.com/danielpatrickdp/idea-forge/internal/pitch"
)

// #endregion

// #region entry

// Entry is one subgenre with its category tag.
type Entry struct {
	Name     string
	Category pitch.Category
}

// #endregion

// #region entries

var sciFi = []string{
	"Cyberpunk", "Solarpunk", "Biopunk", "Nanopunk", "Dieselpunk",
	"Space Opera", "Hard Science Fiction", "Military Science Fiction", "First Contact", "Generation Ship",
	"Time Travel", "Alternate History", "Post-Apocalyptic", "Dying Earth", "Climate Fiction",
	"Dystopian", "Utopian", "Artificial Intelligence", "Mind Uploading", "Transhumanism",
	"Planetary Romance", "Colonization", "Terraforming", "Alien Invasion", "Uplift",
	"Parallel Worlds", "Virtual Reality", "Genetic Engineering", "Cloning", "Robot Fiction",
	"Space Western", "Tech Noir", "Mundane Science Fiction", "Lunar Colony", "Mars Colony",
	"Asteroid Mining", "Deep Sea Science Fiction", "Pandemic Fiction", "Singularity", "Quantum Fiction",
	"Steampunk", "Atompunk", "Retrofuturism", "Cosmic Horror Science Fiction", "Post-Cyberpunk",
	"Near-Future Thriller", "Corporate Dystopia", "Megastructure", "Interstellar War", "Post-Human",
}

var fantasy = []string{
	"High Fantasy", "Low Fantasy", "Epic Fantasy", "Sword and Sorcery", "Dark Fantasy",
	"Urban Fantasy", "Grimdark", "Gaslamp Fantasy", "Flintlock Fantasy", "Portal Fantasy",
	"Mythic Fantasy", "Fairy Tale Retelling", "Arthurian Fantasy", "Celtic Fantasy", "Norse Fantasy",
	"Wuxia", "Xianxia", "Cultivation Fantasy", "Silkpunk", "Magical Realism",
	"Cozy Fantasy", "Romantasy", "Heroic Fantasy", "Court Intrigue Fantasy", "Fantasy of Manners",
	"Gothic Fantasy", "Weird West", "Weird Fiction", "New Weird", "Bangsian Fantasy",
	"Historical Fantasy", "Prehistoric Fantasy", "Nautical Fantasy", "Desert Fantasy", "Arctic Fantasy",
	"Dragon Fantasy", "Fae Fantasy", "Witchcraft Fantasy", "Necromancy Fantasy", "Demon Hunter Fantasy",
	"Monster Hunter Fantasy", "Heist Fantasy", "Academy Fantasy", "Progression Fantasy", "LitRPG",
	"Mythpunk", "Hopepunk", "Fantasy Noir", "Sword and Planet", "Animal Fantasy",
}

var entries = build()

func build() []Entry {
	out := make([]Entry, 0, len(sciFi)+len(fantasy))
	for _, n := range sciFi {
		out = append(out, Entry{Name: n, Category: pitch.CategorySciFi})
	}
	for _, n := range fantasy {
		out = append(out, Entry{Name: n, Category: pitch.CategoryFantasy})
	}
	return out
}

// #endregion

// #region access

// Entries returns a copy of the catalog in its fixed order.
func Entries() []Entry {
	return append([]Entry(nil), entries...)
}

// Len returns the number of catalog entries.
func Len() int {
	return len(entries)
}

// Draw picks one entry uniformly at random.
func Draw(rng *rand.Rand) Entry {
	if rng == nil {
		return entries[rand.IntN(len(entries))]
	}
	return entries[rng.IntN(len(entries))]
}

// Lookup finds an entry by name, ignoring case and surrounding space.
func Lookup(name string) (Entry, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, e := range entries {
		if strings.ToLower(e.Name) == key {
			return e, true
		}
	}
	return Entry{}, false
}

// #endregion
