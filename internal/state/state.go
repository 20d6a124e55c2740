// Package state tracks what the overlay shows and classifies updates.
package state

import (
	"time"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/normalize"
)

// Transition classifies the effect of an update
type Transition int

const (
	NoChange Transition = iota
	TrackChanged
	// StatusChanged also covers a switch to another player showing the same track
	StatusChanged
	SourceLost
)

func (t Transition) String() string {
	switch t {
	case NoChange:
		return "NoChange"
	case TrackChanged:
		return "TrackChanged"
	case StatusChanged:
		return "StatusChanged"
	case SourceLost:
		return "SourceLost"
	default:
		return "Transition(?)"
	}
}

// TrackState holds the last known track and status.
// It is not safe for concurrent use; the engine loop owns it.
type TrackState struct {
	now     func() time.Time
	current domain.OverlayState
	dirty   bool
}

// New creates a TrackState in the NoPlayer state.
// A nil clock defaults to time.Now.
func New(now func() time.Time) *TrackState {
	if now == nil {
		now = time.Now
	}
	return &TrackState{now: now}
}

// Update applies the result of one poll.
// A nil selection means no player qualified; a nil track with a selection
// stands for a player that reported no usable metadata.
func (s *TrackState) Update(selected *domain.PlayerHandle, track *domain.Track) Transition {
	if selected == nil {
		if !s.current.HasPlayer {
			return NoChange
		}
		s.current = domain.OverlayState{LastChangeAt: s.now()}
		return SourceLost
	}

	t := normalize.Placeholder()
	if track != nil {
		t = *track
	}

	if !s.current.HasPlayer || !s.current.Track.Equal(t) {
		s.current = domain.OverlayState{
			HasPlayer:    true,
			PlayerID:     selected.ID,
			Track:        t,
			Status:       selected.Status,
			LastChangeAt: s.now(),
		}
		return TrackChanged
	}

	// same track from another player only needs a republish, like a status change
	if s.current.Status != selected.Status || s.current.PlayerID != selected.ID {
		s.current.Status = selected.Status
		s.current.PlayerID = selected.ID
		return StatusChanged
	}
	return NoChange
}

// Current returns a copy of the overlay state.
func (s *TrackState) Current() domain.OverlayState {
	c := s.current
	c.Track.Artist = append([]string(nil), c.Track.Artist...)
	return c
}

// ForceRelayout asks for a relayout on the next TakeRelayout call, for events
// TrackState does not own (box resize, font change).
func (s *TrackState) ForceRelayout() {
	s.dirty = true
}

// TakeRelayout reports whether text must be laid out again after t,
// consuming any pending ForceRelayout.
func (s *TrackState) TakeRelayout(t Transition) bool {
	need := s.dirty || t == TrackChanged || t == SourceLost
	s.dirty = false
	return need
}
