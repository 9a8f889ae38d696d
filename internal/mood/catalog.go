package mood

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Catalog indexes the mood taxonomy and the journey definitions.
// A Catalog is immutable once built and safe for concurrent reads.
type Catalog struct {
	families []Family
	all      []Mood
	byID     map[string]Mood
	byBand   map[Band][]Mood
	journeys []Journey
	byJourn  map[string]Journey
}

// document is the on-disk and on-wire shape of a catalog.
type document struct {
	Families []Family  `yaml:"families" json:"families"`
	Journeys []Journey `yaml:"journeys" json:"journeys"`
}

// NewCatalog builds an index over families and journeys.
// Moods that fail validation are dropped; the first occurrence of a mood ID wins.
func NewCatalog(families []Family, journeys []Journey) *Catalog {
	c := &Catalog{
		byID:    make(map[string]Mood),
		byBand:  make(map[Band][]Mood),
		byJourn: make(map[string]Journey),
	}

	for _, f := range families {
		kept := Family{ID: f.ID, Label: f.Label}
		for _, m := range f.Moods {
			if m.Validate() != nil {
				continue
			}
			if _, dup := c.byID[m.ID]; dup {
				continue
			}
			m.FamilyID = f.ID
			m.Tracks = append([]string(nil), m.Tracks...)
			kept.Moods = append(kept.Moods, m)
			c.all = append(c.all, m)
			c.byID[m.ID] = m
			c.byBand[m.Band] = append(c.byBand[m.Band], m)
		}
		c.families = append(c.families, kept)
	}

	for _, j := range journeys {
		if j.ID == "" {
			continue
		}
		if _, dup := c.byJourn[j.ID]; dup {
			continue
		}
		j.Steps = append([]Step(nil), j.Steps...)
		c.journeys = append(c.journeys, j)
		c.byJourn[j.ID] = j
	}

	return c
}

// ParseYAML decodes a catalog document.
func ParseYAML(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return NewCatalog(doc.Families, doc.Journeys), nil
}

// Fallback returns the bundled static catalog.
func Fallback() *Catalog {
	c, err := ParseYAML(fallbackYAML)
	if err != nil {
		panic(fmt.Sprintf("mood: bundled catalog is invalid: %v", err))
	}
	return c
}

// MarshalYAML renders the catalog in the same shape it is parsed from.
func (c *Catalog) MarshalYAML() (any, error) {
	return document{Families: c.Families(), Journeys: c.Journeys()}, nil
}

// Families returns the families in catalog order.
func (c *Catalog) Families() []Family {
	return append([]Family(nil), c.families...)
}

// Moods returns every mood in catalog order.
func (c *Catalog) Moods() []Mood {
	return append([]Mood(nil), c.all...)
}

// Len returns the number of playable moods.
func (c *Catalog) Len() int {
	return len(c.all)
}

// Mood looks up a mood by ID.
func (c *Catalog) Mood(id string) (Mood, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// InBand returns the moods of band b, or every mood when the band is empty.
func (c *Catalog) InBand(b Band) []Mood {
	if pool := c.byBand[b]; len(pool) > 0 {
		return append([]Mood(nil), pool...)
	}
	return c.Moods()
}

// Default returns the mood used when a referenced mood ID is unknown.
func (c *Catalog) Default() (Mood, bool) {
	if len(c.all) == 0 {
		return Mood{}, false
	}
	return c.all[0], true
}

// Journeys returns the journeys in catalog order.
func (c *Catalog) Journeys() []Journey {
	return append([]Journey(nil), c.journeys...)
}

// Journey looks up a journey by ID.
func (c *Catalog) Journey(id string) (Journey, bool) {
	j, ok := c.byJourn[id]
	return j, ok
}
