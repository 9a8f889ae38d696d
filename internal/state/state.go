// Package state defines the session phases and the table of legal
// transitions between them.
package state

import (
	"errors"
	"fmt"
)

// Phase is the current stage of a session.
type Phase int

const (
	Idle Phase = iota
	Listening
	Analyzing
	Ready
	Playing
)

var phaseNames = [...]string{
	Idle:      "idle",
	Listening: "listening",
	Analyzing: "analyzing",
	Ready:     "ready",
	Playing:   "playing",
}

func (p Phase) String() string {
	if p < Idle || p > Playing {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase name for JSON and logs.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Label is the user-facing line shown for each phase.
func (p Phase) Label() string {
	switch p {
	case Listening:
		return "Listening to your space…"
	case Analyzing:
		return "Reading the room…"
	case Ready:
		return "Your soundscape is ready"
	case Playing:
		return "Now playing"
	default:
		return "Tap to sync"
	}
}

// Event is an intent or internal signal that may move the phase.
type Event int

const (
	StartSync Event = iota
	CaptureDone
	CaptureFailed
	Classified
	Select
	Play
	Stop
	SleepTimerFired
	JourneyEnded
	PlaybackFailed
)

var eventNames = [...]string{
	StartSync:       "start sync",
	CaptureDone:     "capture done",
	CaptureFailed:   "capture failed",
	Classified:      "classified",
	Select:          "select",
	Play:            "play",
	Stop:            "stop",
	SleepTimerFired: "sleep timer fired",
	JourneyEnded:    "journey ended",
	PlaybackFailed:  "playback failed",
}

func (e Event) String() string {
	if e < StartSync || e > PlaybackFailed {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

var (
	// ErrIllegalTransition is returned when an event is not allowed from the current phase.
	ErrIllegalTransition = errors.New("illegal phase transition")

	// ErrSyncInProgress is returned when a sync is requested while one is outstanding.
	ErrSyncInProgress = errors.New("sync already in progress")
)

type edge struct {
	from  Phase
	event Event
}

// transitions is the complete set of legal moves. Anything absent is rejected.
var transitions = map[edge]Phase{
	{Idle, StartSync}:    Listening,
	{Ready, StartSync}:   Listening,
	{Playing, StartSync}: Listening,

	{Listening, CaptureDone}:   Analyzing,
	{Listening, CaptureFailed}: Idle,
	{Analyzing, Classified}:    Ready,

	{Idle, Select}:    Ready,
	{Ready, Select}:   Ready,
	{Playing, Select}: Ready,

	{Ready, Play}: Playing,

	{Playing, Stop}:            Ready,
	{Playing, SleepTimerFired}: Ready,
	{Playing, JourneyEnded}:    Ready,
	{Ready, JourneyEnded}:      Ready,
	{Playing, PlaybackFailed}:  Ready,
}

// Next returns the phase reached by applying ev in from.
// A sync request while Listening or Analyzing yields ErrSyncInProgress;
// every other missing edge yields ErrIllegalTransition.
func Next(from Phase, ev Event) (Phase, error) {
	if to, ok := transitions[edge{from, ev}]; ok {
		return to, nil
	}
	if ev == StartSync && (from == Listening || from == Analyzing) {
		return from, ErrSyncInProgress
	}
	return from, fmt.Errorf("%s from %s: %w", ev, from, ErrIllegalTransition)
}

// Allowed reports whether ev is legal in from.
func Allowed(from Phase, ev Event) bool {
	_, ok := transitions[edge{from, ev}]
	return ok
}

// Busy reports whether a sync is outstanding.
func (p Phase) Busy() bool {
	return p == Listening || p == Analyzing
}
