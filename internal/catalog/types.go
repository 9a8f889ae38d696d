package catalog

import (
	"errors"
	"fmt"

	"github.com/justestif/moodmap/internal/mood"
)

// ErrUnavailable is the single failure signal for every collaborator call:
// transport errors, non-success statuses and malformed payloads all wrap it.
var ErrUnavailable = errors.New("collaborator unavailable")

// ErrInvalidVerdict is wrapped when a classification response is missing a
// required field.
var ErrInvalidVerdict = errors.New("invalid classification result")

// Verdict is a classification result.
type Verdict struct {
	MoodBand mood.Band `json:"moodBand"`
	MoodID   string    `json:"moodId"`
	Label    string    `json:"label"`
	RecipeID string    `json:"recipeId,omitempty"`
	TrackID  string    `json:"trackId,omitempty"`
	TrackURL string    `json:"trackUrl,omitempty"`
}

// Track returns the remote track identifier, preferring trackId.
func (v Verdict) Track() string {
	if v.TrackID != "" {
		return v.TrackID
	}
	return v.TrackURL
}

// Validate checks that band, mood ID, label and track are all present.
func (v Verdict) Validate() error {
	switch {
	case !v.MoodBand.Valid():
		return fmt.Errorf("%w: band %q", ErrInvalidVerdict, v.MoodBand)
	case v.MoodID == "":
		return fmt.Errorf("%w: missing moodId", ErrInvalidVerdict)
	case v.Label == "":
		return fmt.Errorf("%w: missing label", ErrInvalidVerdict)
	case v.Track() == "":
		return fmt.Errorf("%w: missing track", ErrInvalidVerdict)
	}
	return nil
}

// Selection converts a valid verdict into the profile and track to play.
func (v Verdict) Selection() mood.Selection {
	return mood.Selection{
		Profile: mood.Profile{
			DominantBand: v.MoodBand,
			MoodID:       v.MoodID,
			Label:        v.Label,
			RecipeID:     v.RecipeID,
			Peaks:        map[mood.Band]float64{},
		},
		TrackID: v.Track(),
	}
}

// moodsResponse is the JSON response for GET /moods.
type moodsResponse struct {
	Families []mood.Family `json:"families"`
}

// journeysResponse is the JSON response for GET /journeys.
type journeysResponse struct {
	Journeys []mood.Journey `json:"journeys"`
}

// analyzeRequest is the JSON body for POST /analyze.
type analyzeRequest struct {
	AudioBase64 string `json:"audioBase64"`
}

// suggestRequest is the JSON body for POST /suggest-moods.
type suggestRequest struct {
	Text string `json:"text"`
}

// suggestResponse is the JSON response for POST /suggest-moods.
type suggestResponse struct {
	Suggestions []mood.Suggestion `json:"suggestions"`
}

// apiError is the error body the backend returns with non-2xx statuses.
type apiError struct {
	Error string `json:"error"`
}
