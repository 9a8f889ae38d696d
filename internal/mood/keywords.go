package mood

import (
	"slices"
	"strings"
)

// MaxSuggestions caps the number of moods suggested for a piece of text.
const MaxSuggestions = 3

// Suggestion is a mood proposed for free text.
type Suggestion struct {
	MoodID string `json:"moodId"`
	Label  string `json:"label"`
}

// keywordFamilies maps family IDs to the words that select them.
var keywordFamilies = []struct {
	family   string
	keywords []string
}{
	{"focus", []string{"focus", "work", "study", "exam", "stress", "concentrate", "code", "read", "project"}},
	{"relax", []string{"relax", "chill", "cozy", "rain", "calm", "peace", "tea", "lazy", "sunday", "wind down", "unwind"}},
	{"sleep", []string{"sleep", "tired", "night", "bed", "rest", "dream", "midnight", "insomnia"}},
	{"creative", []string{"creative", "idea", "draw", "write", "design", "inspire", "brainstorm", "sketch"}},
	{"energy", []string{"energy", "workout", "run", "commute", "wake", "morning", "exercise", "motivation"}},
	{"chill", []string{"lofi", "hip hop", "vinyl", "nostalgia", "vibe"}},
}

// defaultFamilies is used when no keyword matches.
var defaultFamilies = []string{"focus", "relax"}

// MatchFamilies returns the family IDs whose keywords occur in text.
func MatchFamilies(text string) []string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil
	}
	var matched []string
	for _, kf := range keywordFamilies {
		for _, kw := range kf.keywords {
			if strings.Contains(t, kw) {
				matched = append(matched, kf.family)
				break
			}
		}
	}
	if len(matched) == 0 {
		return append([]string(nil), defaultFamilies...)
	}
	return matched
}

// SuggestFromText picks up to MaxSuggestions random moods from the families
// the text mentions. Empty text yields no suggestions.
func SuggestFromText(c *Catalog, text string, r Rand) []Suggestion {
	families := MatchFamilies(text)
	if len(families) == 0 {
		return []Suggestion{}
	}

	var pool []Mood
	for _, m := range c.all {
		if slices.Contains(families, m.FamilyID) {
			pool = append(pool, m)
		}
	}

	// Partial Fisher-Yates: only the first MaxSuggestions slots are needed.
	n := min(MaxSuggestions, len(pool))
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	out := make([]Suggestion, 0, n)
	for _, m := range pool[:n] {
		out = append(out, Suggestion{MoodID: m.ID, Label: m.Label})
	}
	return out
}
