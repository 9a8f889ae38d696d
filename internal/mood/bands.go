package mood

import (
	"math"

	"github.com/muesli/clusters"
)

// peakRange is the [min, min+spread) window a heuristic band score is drawn from.
type peakRange struct {
	min    float64
	spread float64
}

// heuristicRanges mirrors the spread the capture heuristic has always used:
// low skews slightly higher so quiet rooms lean calm.
var heuristicRanges = map[Band]peakRange{
	BandLow:  {min: 0.2, spread: 0.5},
	BandMid:  {min: 0.1, spread: 0.6},
	BandHigh: {min: 0.1, spread: 0.5},
}

// prototypes places each band on its own axis; the nearest prototype to a
// peak vector is the band with the highest score.
var prototypes = map[Band]clusters.Coordinates{
	BandLow:  {1, 0, 0},
	BandMid:  {0, 1, 0},
	BandHigh: {0, 0, 1},
}

// RandomPeaks derives three pseudo-random band scores.
func RandomPeaks(r Rand) map[Band]float64 {
	peaks := make(map[Band]float64, len(Bands))
	for _, b := range Bands {
		pr := heuristicRanges[b]
		peaks[b] = pr.min + r.Float64()*pr.spread
	}
	return peaks
}

// coordinates converts peaks to a vector in Bands order.
func coordinates(peaks map[Band]float64) clusters.Coordinates {
	c := make(clusters.Coordinates, len(Bands))
	for i, b := range Bands {
		c[i] = peaks[b]
	}
	return c
}

// DominantBand returns the band whose prototype is closest to peaks.
// Ties resolve in Bands order. Empty peaks yield BandMid.
func DominantBand(peaks map[Band]float64) Band {
	if len(peaks) == 0 {
		return BandMid
	}
	point := coordinates(peaks)
	best := BandMid
	bestDist := math.Inf(1)
	for _, b := range Bands {
		d := point.Distance(prototypes[b])
		if d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

// Heuristic is the local fallback classifier: it scores the bands, picks
// the dominant one and selects a mood and track from that band.
// Returns false only when the catalog has no moods at all.
func Heuristic(c *Catalog, r Rand) (Selection, bool) {
	peaks := RandomPeaks(r)
	band := DominantBand(peaks)

	m, ok := PickMood(c.InBand(band), r)
	if !ok {
		return Selection{}, false
	}

	sel := m.Pick(r)
	sel.Profile.DominantBand = band
	sel.Profile.Peaks = peaks
	return sel, true
}
