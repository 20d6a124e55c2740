// Package render drives the repaint cadence and hands changed frames to sinks.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/marquee/internal/config"
	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/zap"
)

// Sink consumes frames. Paint is only called when the frame version changed.
type Sink interface {
	Name() string
	Paint(ctx context.Context, f domain.Frame) error
}

// Driver polls the latest frame on its own cadence
type Driver struct {
	logger *zap.Logger
	source domain.FrameSource
	every  time.Duration
	sinks  []Sink

	painted uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDriver creates a render driver repainting every cfg.RepaintEvery()
func NewDriver(logger *zap.Logger, cfg config.Config, src domain.FrameSource, sinks []Sink) *Driver {
	return &Driver{
		logger: logger,
		source: src,
		every:  cfg.RepaintEvery(),
		sinks:  sinks,
	}
}

// Start launches the repaint loop. It returns immediately (non-blocking).
func (d *Driver) Start(ctx context.Context) error {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	d.logger.Info("Render driver starting",
		zap.Duration("every", d.every),
		zap.Strings("sinks", names))

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	d.wg.Add(1)
	go d.run(loopCtx)
	return nil
}

// Stop ends the repaint loop
func (d *Driver) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.repaint(ctx)
		}
	}
}

// repaint hands the current frame to every sink if it is newer than the
// last painted one. It reports whether anything was painted.
func (d *Driver) repaint(ctx context.Context) bool {
	f := d.source.Frame()
	if f.Version == d.painted {
		return false
	}
	d.painted = f.Version

	for _, s := range d.sinks {
		if err := s.Paint(ctx, f); err != nil {
			d.logger.Warn("Sink failed to paint frame",
				zap.String("sink", s.Name()),
				zap.Uint64("version", f.Version),
				zap.Error(err))
		}
	}
	return true
}
