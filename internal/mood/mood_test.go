package mood

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand returns scripted values so picks are predictable.
type fixedRand struct {
	ints   []int
	floats []float64
}

func (f *fixedRand) IntN(n int) int {
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[0]
	f.ints = f.ints[1:]
	return v % n
}

func (f *fixedRand) Float64() float64 {
	if len(f.floats) == 0 {
		return 0
	}
	v := f.floats[0]
	f.floats = f.floats[1:]
	return v
}

func testCatalog() *Catalog {
	return NewCatalog([]Family{
		{
			ID:    "focus",
			Label: "Focus",
			Moods: []Mood{
				{ID: "low-a", Band: BandLow, Label: "Low A", Tracks: []string{"t1", "t2"}},
				{ID: "mid-a", Band: BandMid, Label: "Mid A", Tracks: []string{"t3"}},
			},
		},
		{
			ID:    "relax",
			Label: "Relax",
			Moods: []Mood{
				{ID: "mid-b", Band: BandMid, Label: "Mid B", Tracks: []string{"t4", "t5", "t6"}},
				{ID: "broken", Band: "loud", Label: "Broken", Tracks: []string{"t7"}},
				{ID: "empty", Band: BandHigh, Label: "Empty"},
			},
		},
	}, []Journey{
		{ID: "j1", Label: "Journey", Steps: []Step{{MoodID: "low-a", Minutes: 1}}},
		{ID: "j1", Label: "Duplicate"},
	})
}

func TestNewCatalog_DropsInvalidMoods(t *testing.T) {
	c := testCatalog()

	assert.Equal(t, 3, c.Len())
	_, ok := c.Mood("broken")
	assert.False(t, ok, "invalid band should be dropped")
	_, ok = c.Mood("empty")
	assert.False(t, ok, "mood without tracks should be dropped")

	m, ok := c.Mood("mid-b")
	require.True(t, ok)
	assert.Equal(t, "relax", m.FamilyID)

	j, ok := c.Journey("j1")
	require.True(t, ok)
	assert.Equal(t, "Journey", j.Label, "first journey with an ID wins")
	assert.Len(t, c.Journeys(), 1)
}

func TestCatalog_InBand(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name string
		band Band
		want []string
	}{
		{name: "low band", band: BandLow, want: []string{"low-a"}},
		{name: "mid band", band: BandMid, want: []string{"mid-a", "mid-b"}},
		{name: "empty band falls back to whole catalog", band: BandHigh, want: []string{"low-a", "mid-a", "mid-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range c.InBand(tt.band) {
				got = append(got, m.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("InBand(%s) mismatch (-want +got):\n%s", tt.band, diff)
			}
		})
	}
}

func TestFallback_IsUsable(t *testing.T) {
	c := Fallback()

	require.Greater(t, c.Len(), 50)
	for _, b := range Bands {
		assert.NotEmpty(t, c.InBand(b), "band %s", b)
	}

	def, ok := c.Default()
	require.True(t, ok)
	assert.Equal(t, "low-deep-focus", def.ID)

	for _, j := range c.Journeys() {
		require.NotEmpty(t, j.Steps, "journey %s", j.ID)
		for _, s := range j.Steps {
			_, ok := c.Mood(s.MoodID)
			assert.True(t, ok, "journey %s references unknown mood %s", j.ID, s.MoodID)
		}
	}
}

func TestMood_Pick(t *testing.T) {
	m := Mood{ID: "mid-b", Band: BandMid, Label: "Mid B", Tracks: []string{"t4", "t5", "t6"}}

	sel := m.Pick(&fixedRand{ints: []int{2}})

	assert.Equal(t, "t6", sel.TrackID)
	assert.Equal(t, Profile{
		DominantBand: BandMid,
		MoodID:       "mid-b",
		Label:        "Mid B",
		RecipeID:     "mid-b__2",
		Peaks:        map[Band]float64{},
	}, sel.Profile)
}

func TestDominantBand(t *testing.T) {
	tests := []struct {
		name  string
		peaks map[Band]float64
		want  Band
	}{
		{name: "low highest", peaks: map[Band]float64{BandLow: 0.6, BandMid: 0.2, BandHigh: 0.3}, want: BandLow},
		{name: "mid highest", peaks: map[Band]float64{BandLow: 0.2, BandMid: 0.65, BandHigh: 0.3}, want: BandMid},
		{name: "high highest", peaks: map[Band]float64{BandLow: 0.2, BandMid: 0.1, BandHigh: 0.59}, want: BandHigh},
		{name: "tie resolves to first band", peaks: map[Band]float64{BandLow: 0.4, BandMid: 0.4, BandHigh: 0.4}, want: BandLow},
		{name: "empty peaks", peaks: nil, want: BandMid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DominantBand(tt.peaks); got != tt.want {
				t.Errorf("DominantBand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRandomPeaks_WithinRanges(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		peaks := RandomPeaks(r)
		require.Len(t, peaks, 3)
		for b, v := range peaks {
			pr := heuristicRanges[b]
			assert.GreaterOrEqual(t, v, pr.min)
			assert.Less(t, v, pr.min+pr.spread)
		}
	}
}

func TestHeuristic_SelectsFromDominantBand(t *testing.T) {
	c := testCatalog()
	// low=0.2+0.9*0.5=0.65, mid=0.1, high=0.1 -> low band
	r := &fixedRand{floats: []float64{0.9, 0, 0}, ints: []int{0, 1}}

	sel, ok := Heuristic(c, r)
	require.True(t, ok)

	assert.Equal(t, BandLow, sel.Profile.DominantBand)
	assert.Equal(t, "low-a", sel.Profile.MoodID)
	assert.Equal(t, "t2", sel.TrackID)
	assert.Len(t, sel.Profile.Peaks, 3)
}

func TestHeuristic_EmptyCatalog(t *testing.T) {
	_, ok := Heuristic(NewCatalog(nil, nil), DefaultRand())
	assert.False(t, ok)
}

func TestSuggestFromText(t *testing.T) {
	c := Fallback()
	r := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		name         string
		text         string
		wantFamilies []string
		wantLen      int
	}{
		{name: "empty text", text: "   ", wantLen: 0},
		{name: "sleep keywords", text: "So TIRED, need bed", wantFamilies: []string{"sleep"}, wantLen: 3},
		{name: "no match uses defaults", text: "xyzzy", wantFamilies: []string{"focus", "relax"}, wantLen: 3},
		{name: "multiple families", text: "study then workout", wantFamilies: []string{"focus", "energy"}, wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestFromText(c, tt.text, r)
			require.Len(t, got, tt.wantLen)

			seen := map[string]bool{}
			for _, s := range got {
				m, ok := c.Mood(s.MoodID)
				require.True(t, ok)
				assert.Contains(t, tt.wantFamilies, m.FamilyID)
				assert.Equal(t, m.Label, s.Label)
				assert.False(t, seen[s.MoodID], "duplicate suggestion %s", s.MoodID)
				seen[s.MoodID] = true
			}
		})
	}
}

func TestParseYAML_RoundTripShape(t *testing.T) {
	c, err := ParseYAML([]byte(`
families:
  - id: f
    label: F
    moods:
      - id: m
        band: high
        label: M
        tracks: [a, b]
journeys:
  - id: j
    label: J
    steps:
      - moodId: m
        minutes: 0
`))
	require.NoError(t, err)

	j, ok := c.Journey("j")
	require.True(t, ok)
	assert.Equal(t, []Step{{MoodID: "m", Minutes: 0}}, j.Steps)
	assert.Zero(t, j.Steps[0].Duration())

	_, err = ParseYAML([]byte("families: {not: a list}"))
	assert.Error(t, err)
}
