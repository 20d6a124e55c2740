package engine

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/genricoloni/marquee/internal/config"
	"github.com/genricoloni/marquee/internal/display"
	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/layout"
	"github.com/genricoloni/marquee/internal/normalize"
	"github.com/genricoloni/marquee/internal/state"
	"go.uber.org/zap"
)

// ConfigUpdates delivers reloaded configurations
type ConfigUpdates interface {
	Updates() <-chan config.Config
}

// Engine runs the overlay pipeline.
// Text is laid out again only when a transition or a resize/config event requires it.
type Engine struct {
	logger  *zap.Logger
	source  domain.Source
	state   *state.TrackState
	layout  *layout.Engine
	screen  *domain.ScreenResolution
	updates ConfigUpdates

	// owned by the loop goroutine
	cfg       config.Config
	box       domain.Box
	lines     layout.Lines
	version   uint64
	relayouts int

	frame  atomic.Pointer[domain.Frame]
	resize chan domain.Box

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new orchestration engine
func NewEngine(
	logger *zap.Logger,
	cfg config.Config,
	screen *domain.ScreenResolution,
	src domain.Source,
	st *state.TrackState,
	lay *layout.Engine,
	updates ConfigUpdates,
) *Engine {
	e := &Engine{
		logger:  logger,
		cfg:     cfg,
		screen:  screen,
		source:  src,
		state:   st,
		layout:  lay,
		updates: updates,
		box:     display.ClampBox(cfg.BoxSize(), screen),
		resize:  make(chan domain.Box, 1),
	}
	e.frame.Store(&domain.Frame{Box: e.box})
	return e
}

// Start lays out the idle state and launches the event loop.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...",
		zap.Int("width", e.box.Width),
		zap.Int("height", e.box.Height))

	e.state.ForceRelayout()
	e.refresh(state.NoChange)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	e.wg.Add(1)
	go e.runLoop(loopCtx)
	return nil
}

// Stop ends the event loop
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns the most recently published frame. Safe from any goroutine.
func (e *Engine) Frame() domain.Frame {
	return *e.frame.Load()
}

// Resize notifies the engine that the widget box changed size. Safe from any
// goroutine; only the latest pending size is kept.
func (e *Engine) Resize(box domain.Box) {
	select {
	case <-e.resize:
	default:
	}
	e.resize <- box
}

// runLoop is the single goroutine that owns track state and the layout cache
func (e *Engine) runLoop(ctx context.Context) {
	defer e.wg.Done()

	var configs <-chan config.Config
	if e.updates != nil {
		configs = e.updates.Updates()
	}
	snapshots := e.source.Snapshots()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case snap, ok := <-snapshots:
			if !ok {
				e.logger.Info("Snapshot channel closed")
				return
			}
			e.process(snap)

		case box := <-e.resize:
			e.applyResize(box)

		case cfg := <-configs:
			e.applyConfig(cfg)
		}
	}
}

// process runs one snapshot through normalize -> update -> layout
func (e *Engine) process(snap domain.Snapshot) state.Transition {
	if snap.Err != nil {
		// transient, the next tick retries
		e.logger.Debug("Bus read failed, treating as no player", zap.Error(snap.Err))
	}

	var track *domain.Track
	if snap.Selected != nil {
		t := normalize.Normalize(snap.Metadata, e.cfg.ArtistSeparator)
		track = &t
	}

	tr := e.state.Update(snap.Selected, track)
	switch tr {
	case state.TrackChanged:
		cur := e.state.Current()
		e.logger.Info("Track changed",
			zap.String("player", cur.PlayerID),
			zap.String("title", cur.Track.Title),
			zap.String("artist", cur.Track.ArtistLine(e.cfg.ArtistSeparator)),
			zap.String("album", cur.Track.Album),
			zap.String("status", string(cur.Status)))
	case state.StatusChanged:
		cur := e.state.Current()
		e.logger.Info("Playback status changed",
			zap.String("player", cur.PlayerID),
			zap.String("status", string(cur.Status)))
	case state.SourceLost:
		e.logger.Info("Player lost")
	}

	e.refresh(tr)
	return tr
}

// refresh publishes a new frame when tr or a forced relayout requires it
func (e *Engine) refresh(tr state.Transition) {
	if e.state.TakeRelayout(tr) {
		e.lines = e.layout.LayoutState(e.state.Current(), e.box, e.overlay())
		e.relayouts++

		stats := e.layout.Stats()
		e.logger.Debug("Text laid out",
			zap.String("title", e.lines.Title.Content),
			zap.Int("titleSize", e.lines.Title.FontSize),
			zap.String("artist", e.lines.Artist.Content),
			zap.Int("artistSize", e.lines.Artist.FontSize),
			zap.Int("cacheEntries", stats.Entries),
			zap.Uint64("cacheHits", stats.Hits),
			zap.Uint64("cacheMisses", stats.Misses))
	} else if tr != state.StatusChanged {
		return
	}

	cur := e.state.Current()
	e.version++
	e.frame.Store(&domain.Frame{
		Version: e.version,
		Visible: e.lines.Visible,
		Title:   e.lines.Title,
		Artist:  e.lines.Artist,
		Status:  cur.Status,
		Box:     e.box,
		State:   cur,
	})
}

func (e *Engine) applyResize(box domain.Box) {
	box = display.ClampBox(box, e.screen)
	if box == e.box {
		return
	}
	e.logger.Debug("Widget resized",
		zap.Int("width", box.Width),
		zap.Int("height", box.Height))
	e.box = box
	e.state.ForceRelayout()
	e.refresh(state.NoChange)
}

// applyConfig switches to a reloaded configuration
func (e *Engine) applyConfig(cfg config.Config) {
	if err := layout.CheckFamily(cfg.Font.Family); err != nil {
		e.logger.Error("Ignoring reloaded configuration", zap.Error(err))
		return
	}

	old := e.cfg
	e.cfg = cfg

	if cfg.PollInterval != old.PollInterval {
		e.source.SetInterval(cfg.PollEvery())
	}
	if !slices.Equal(cfg.Players, old.Players) {
		e.logger.Info("Player allow-list changed", zap.Strings("players", cfg.Players))
		e.source.SetPlayers(cfg.Players)
	}

	relayout := false
	if cfg.FontSpec() != old.FontSpec() {
		e.layout.SetFont(cfg.FontSpec())
		relayout = true
	}
	if cfg.Font.MinSize != old.Font.MinSize || cfg.Font.MaxSize != old.Font.MaxSize {
		e.layout.SetRange(cfg.Font.MinSize, cfg.Font.MaxSize)
		relayout = true
	}
	if cfg.ArtistSeparator != old.ArtistSeparator || cfg.Idle() != old.Idle() || cfg.Box.Padding != old.Box.Padding {
		relayout = true
	}
	if box := display.ClampBox(cfg.BoxSize(), e.screen); box != e.box {
		e.box = box
		relayout = true
	}

	if relayout {
		e.state.ForceRelayout()
		e.refresh(state.NoChange)
	}
}

func (e *Engine) overlay() layout.Overlay {
	return layout.Overlay{
		Separator: e.cfg.ArtistSeparator,
		IdleText:  e.cfg.Idle(),
		Padding:   e.cfg.Box.Padding,
	}
}
