// Package display probes the screen the overlay is shown on.
package display

import (
	"github.com/genricoloni/marquee/internal/domain"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// NewScreenResolution detects the primary screen resolution at startup.
// Without an active display (headless, no X server) it reports a zero size.
func NewScreenResolution(logger *zap.Logger) *domain.ScreenResolution {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		logger.Warn("No active displays detected, widget size will not be clamped")
		return &domain.ScreenResolution{}
	}

	// Use primary monitor (index 0)
	bounds := screenshot.GetDisplayBounds(0)
	res := &domain.ScreenResolution{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	logger.Info("Screen resolution detected",
		zap.Int("width", res.Width),
		zap.Int("height", res.Height))

	return res
}

// ClampBox shrinks box so it never exceeds the screen. A zero resolution
// leaves the box unchanged.
func ClampBox(box domain.Box, res *domain.ScreenResolution) domain.Box {
	if res == nil {
		return box
	}
	if res.Width > 0 && box.Width > res.Width {
		box.Width = res.Width
	}
	if res.Height > 0 && box.Height > res.Height {
		box.Height = res.Height
	}
	return box
}
