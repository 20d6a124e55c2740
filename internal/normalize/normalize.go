// Package normalize turns loosely-typed player metadata into a Track.
package normalize

import (
	"strings"

	"github.com/genricoloni/marquee/internal/domain"
)

const (
	// DefaultSeparator joins multiple artists (and list-typed titles)
	DefaultSeparator = ", "
	UnknownTitle     = "Unknown Title"
	UnknownArtist    = "Unknown Artist"
)

// Property names after the namespace prefix has been stripped
const (
	PropTitle  = "title"
	PropArtist = "artist"
	PropAlbum  = "album"
)

// Normalize builds a Track from raw metadata. Missing or malformed fields
// fall back to placeholders; it never fails.
func Normalize(raw domain.RawMetadata, sep string) domain.Track {
	if sep == "" {
		sep = DefaultSeparator
	}
	return domain.Track{
		Title:  title(raw, sep),
		Artist: artists(raw),
		Album:  album(raw),
	}
}

// Placeholder is the track shown for a player that reported no metadata.
func Placeholder() domain.Track {
	return Normalize(nil, "")
}

func title(raw domain.RawMetadata, sep string) string {
	v, ok := raw[PropTitle]
	if !ok {
		return UnknownTitle
	}
	switch v.Kind() {
	case domain.KindString:
		return v.String()
	case domain.KindStringList:
		return strings.Join(v.Strings(), sep)
	case domain.KindUnknown:
		return UnknownTitle
	}
	return UnknownTitle
}

func artists(raw domain.RawMetadata) []string {
	var out []string
	if v, ok := raw[PropArtist]; ok {
		switch v.Kind() {
		case domain.KindStringList:
			for _, a := range v.Strings() {
				if a != "" {
					out = append(out, a)
				}
			}
		case domain.KindString:
			if s := v.String(); s != "" {
				out = []string{s}
			}
		case domain.KindUnknown:
		}
	}
	if len(out) == 0 {
		return []string{UnknownArtist}
	}
	return out
}

func album(raw domain.RawMetadata) string {
	if v, ok := raw[PropAlbum]; ok && v.Kind() == domain.KindString {
		return v.String()
	}
	return ""
}
