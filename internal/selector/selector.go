// Package selector picks the one player the overlay follows.
package selector

import (
	"strings"

	"github.com/genricoloni/marquee/internal/domain"
)

// Policy holds the selection settings. The zero value accepts every player.
type Policy struct {
	// Players restricts selection to these players, matched against the bus
	// name either in full or by the player component after the MPRIS prefix
	// ("spotify" matches org.mpris.MediaPlayer2.spotify and
	// org.mpris.MediaPlayer2.spotify.instance12)
	Players []string
}

func priority(s domain.PlaybackStatus) int {
	switch s {
	case domain.StatusPlaying:
		return 2
	case domain.StatusPaused:
		return 1
	default:
		return 0
	}
}

// Select returns the ID of the handle to follow.
// Playing beats Paused, ties go to the first handle in discovery order, and
// current is kept as long as it still holds the top priority.
func (p Policy) Select(handles []domain.PlayerHandle, current string) (string, bool) {
	best := 0
	first := ""
	currentPrio := -1

	for _, h := range handles {
		if !p.allowed(h.ID) {
			continue
		}
		prio := priority(h.Status)
		if h.ID == current {
			currentPrio = prio
		}
		if prio > best {
			best = prio
			first = h.ID
		}
	}

	if best == 0 {
		return "", false
	}
	if currentPrio == best {
		return current, true
	}
	return first, true
}

// Find returns the handle with the given ID.
func Find(handles []domain.PlayerHandle, id string) (domain.PlayerHandle, bool) {
	for _, h := range handles {
		if h.ID == id {
			return h, true
		}
	}
	return domain.PlayerHandle{}, false
}

const busPrefix = "org.mpris.MediaPlayer2."

func (p Policy) allowed(id string) bool {
	if len(p.Players) == 0 {
		return true
	}
	// only the player component counts, never the fixed prefix
	name, ok := strings.CutPrefix(id, busPrefix)
	for _, want := range p.Players {
		if id == want {
			return true
		}
		if ok && (name == want || strings.HasPrefix(name, want+".")) {
			return true
		}
	}
	return false
}
