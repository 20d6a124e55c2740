package layout

import "github.com/genricoloni/marquee/internal/domain"

// Overlay describes how a track is arranged in the widget
type Overlay struct {
	// Separator joins multiple artists
	Separator string
	// IdleText is shown when no player is selected; empty hides the overlay
	IdleText string
	// Padding is kept free on every side of the box
	Padding int
}

// Lines holds the fitted text for the two overlay rows
type Lines struct {
	Visible bool
	Title   domain.FittedText
	Artist  domain.FittedText
}

// LayoutState fits the title into the upper half of the padded box and the
// artist line into the lower half.
func (e *Engine) LayoutState(st domain.OverlayState, box domain.Box, o Overlay) Lines {
	titleBox, artistBox := split(box, o.Padding)

	if !st.HasPlayer {
		if o.IdleText == "" {
			return Lines{}
		}
		return Lines{Visible: true, Title: e.Fit(o.IdleText, titleBox)}
	}

	return Lines{
		Visible: true,
		Title:   e.Fit(st.Track.Title, titleBox),
		Artist:  e.Fit(st.Track.ArtistLine(o.Separator), artistBox),
	}
}

func split(box domain.Box, padding int) (top, bottom domain.Box) {
	w := max(box.Width-2*padding, 0)
	h := max(box.Height-2*padding, 0)
	top = domain.Box{Width: w, Height: h - h/2}
	bottom = domain.Box{Width: w, Height: h / 2}
	return top, bottom
}
