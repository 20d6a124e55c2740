package render

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/genricoloni/marquee/internal/config"
	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/zap"
)

// HookSink runs a user command when the displayed track changes
type HookSink struct {
	logger  *zap.Logger
	binary  string
	args    []string
	timeout time.Duration
	sep     string

	last    domain.Track
	lastID  string
	hasLast bool
}

// NewHookSink creates a hook sink from the [hook] section.
// It fails when the command binary is not in PATH.
func NewHookSink(logger *zap.Logger, cfg config.Config) (*HookSink, error) {
	if len(cfg.Hook.Command) == 0 {
		return nil, fmt.Errorf("no hook command configured")
	}

	binary := cfg.Hook.Command[0]
	if !commandExists(binary) {
		return nil, fmt.Errorf("hook command %q not found in PATH", binary)
	}

	logger.Info("Track change hook enabled",
		zap.String("binary", binary),
		zap.Strings("args", cfg.Hook.Command[1:]))

	return &HookSink{
		logger:  logger,
		binary:  binary,
		args:    cfg.Hook.Command[1:],
		timeout: cfg.HookTimeout(),
		sep:     cfg.ArtistSeparator,
	}, nil
}

// commandExists checks if a binary exists in PATH
func commandExists(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

func (s *HookSink) Name() string { return "hook" }

// Paint runs the hook when f shows a different track or player than the last
// frame it fired for. Frames without a player are ignored.
func (s *HookSink) Paint(ctx context.Context, f domain.Frame) error {
	st := f.State
	if !st.HasPlayer {
		s.hasLast = false
		return nil
	}
	if s.hasLast && s.lastID == st.PlayerID && s.last.Equal(st.Track) {
		return nil
	}
	s.last = st.Track
	s.lastID = st.PlayerID
	s.hasLast = true

	args := expandArgs(s.args, st, s.sep)

	s.logger.Debug("Running track change hook",
		zap.String("command", s.binary),
		zap.Strings("args", args))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run hook %s: %w (output: %s)",
			s.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// expandArgs substitutes track placeholders in every argument
func expandArgs(args []string, st domain.OverlayState, sep string) []string {
	r := strings.NewReplacer(
		"{title}", st.Track.Title,
		"{artist}", st.Track.ArtistLine(sep),
		"{album}", st.Track.Album,
		"{status}", string(st.Status),
		"{player}", st.PlayerID,
	)

	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}
