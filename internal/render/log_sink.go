package render

import (
	"context"

	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/zap"
)

// LogSink writes each frame to the log. It stands in for a window when the
// daemon runs headless.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging at Info level
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

// Paint logs the fitted text of f
func (s *LogSink) Paint(_ context.Context, f domain.Frame) error {
	if !f.Visible {
		s.logger.Info("Overlay hidden", zap.Uint64("version", f.Version))
		return nil
	}

	s.logger.Info("Overlay painted",
		zap.Uint64("version", f.Version),
		zap.String("status", string(f.Status)),
		zap.String("title", f.Title.Content),
		zap.Int("titleSize", f.Title.FontSize),
		zap.Bool("titleTruncated", f.Title.Truncated),
		zap.String("artist", f.Artist.Content),
		zap.Int("artistSize", f.Artist.FontSize),
		zap.Bool("artistTruncated", f.Artist.Truncated),
		zap.Int("width", f.Box.Width),
		zap.Int("height", f.Box.Height))
	return nil
}
