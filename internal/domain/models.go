package domain

import (
	"strings"
	"time"
)

// PlaybackStatus represents the current state of the media player
type PlaybackStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlaybackStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlaybackStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlaybackStatus = "Stopped"
	// StatusUnknown covers missing or non-compliant status values
	StatusUnknown PlaybackStatus = "Unknown"
)

// ParsePlaybackStatus maps an MPRIS PlaybackStatus string onto PlaybackStatus.
func ParsePlaybackStatus(s string) PlaybackStatus {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	case "Stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// ValueKind tags the three shapes a metadata property can take on the bus.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindString
	KindStringList
)

// RawValue is a loosely-typed metadata property. Exactly one of the payload
// fields is meaningful, selected by Kind.
type RawValue struct {
	kind ValueKind
	str  string
	list []string
}

// StringValue wraps a single string property.
func StringValue(s string) RawValue {
	return RawValue{kind: KindString, str: s}
}

// StringListValue wraps a string-array property.
func StringListValue(l []string) RawValue {
	return RawValue{kind: KindStringList, list: append([]string(nil), l...)}
}

// UnknownValue marks a property whose type we do not understand.
func UnknownValue() RawValue {
	return RawValue{kind: KindUnknown}
}

// Kind returns the tag of the value.
func (v RawValue) Kind() ValueKind { return v.kind }

// String returns the payload of a KindString value.
func (v RawValue) String() string { return v.str }

// Strings returns a copy of the payload of a KindStringList value.
func (v RawValue) Strings() []string { return append([]string(nil), v.list...) }

// RawMetadata is a property bag as read from a player, keyed by property name
// without its namespace prefix ("title", "artist", "album", ...).
type RawMetadata map[string]RawValue

// Track is the normalized record of the currently playing item
type Track struct {
	Title string
	// Artist is never empty once produced by the normalizer
	Artist []string
	// Album is empty when the player did not report one
	Album string
}

// Equal reports field equality.
func (t Track) Equal(o Track) bool {
	if t.Title != o.Title || t.Album != o.Album || len(t.Artist) != len(o.Artist) {
		return false
	}
	for i := range t.Artist {
		if t.Artist[i] != o.Artist[i] {
			return false
		}
	}
	return true
}

// ArtistLine joins the artists for display.
func (t Track) ArtistLine(sep string) string {
	return strings.Join(t.Artist, sep)
}

// PlayerHandle identifies one media player on the bus and its playback status
type PlayerHandle struct {
	// ID is the well-known bus name, e.g. org.mpris.MediaPlayer2.spotify
	ID     string
	Status PlaybackStatus
}

// Snapshot is the result of a single poll of the bus.
type Snapshot struct {
	// Handles in discovery order
	Handles []PlayerHandle
	// Selected is nil when no player qualifies
	Selected *PlayerHandle
	// Metadata of the selected player
	Metadata RawMetadata
	// Err is set when the poll degraded to an empty handle set
	Err error
	At  time.Time
}

// OverlayState is what the overlay currently shows.
// HasPlayer == false is the NoPlayer variant; PlayerID, Track and Status are then zero.
type OverlayState struct {
	HasPlayer    bool
	PlayerID     string
	Track        Track
	Status       PlaybackStatus
	LastChangeAt time.Time
}

// Box is a widget area in pixels
type Box struct {
	Width  int
	Height int
}

// FontStyle is a set of style flags.
type FontStyle uint8

const (
	StyleBold FontStyle = 1 << iota
	StyleItalic
)

// FontSpec selects a font family and style
type FontSpec struct {
	Family string
	Style  FontStyle
}

// FittedText is a string together with the size needed to render it inside a box.
type FittedText struct {
	Content   string
	FontSize  int
	Truncated bool
}

// Frame is an immutable unit of render output.
type Frame struct {
	Version uint64
	// Visible is false in the NoPlayer state when no idle text is configured
	Visible bool
	Title   FittedText
	Artist  FittedText
	Status  PlaybackStatus
	Box     Box

	// State is the overlay state the frame was laid out from
	State OverlayState
}

// ScreenResolution holds the display dimensions
type ScreenResolution struct {
	Width  int
	Height int
}
