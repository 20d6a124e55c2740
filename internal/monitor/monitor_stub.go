//go:build !linux
// +build !linux

package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/selector"
	"go.uber.org/zap"
)

var errUnsupported = errors.New("MPRIS monitoring is only supported on Linux systems")

// Options configures an MprisSource
type Options struct {
	Interval time.Duration
	Policy   selector.Policy
}

// MprisSource stub for non-Linux platforms: it never finds a player
type MprisSource struct {
	logger  *zap.Logger
	mailbox *Mailbox
}

// NewMprisSource creates a stub source that reports no players on non-Linux platforms
func NewMprisSource(logger *zap.Logger, _ Options) *MprisSource {
	return &MprisSource{logger: logger, mailbox: NewMailbox()}
}

// Poll always returns an empty snapshot
func (m *MprisSource) Poll(context.Context) domain.Snapshot {
	return domain.Snapshot{Err: errUnsupported, At: time.Now()}
}

// Start posts a single empty snapshot so the overlay settles in the idle state
func (m *MprisSource) Start(ctx context.Context) error {
	m.logger.Warn("MPRIS is not available on this platform, the overlay will stay idle")
	m.mailbox.Put(m.Poll(ctx))
	return nil
}

// Stop is a no-op on non-Linux platforms
func (m *MprisSource) Stop(context.Context) error {
	return nil
}

// SetInterval is a no-op on non-Linux platforms
func (m *MprisSource) SetInterval(time.Duration) {}

// SetPlayers is a no-op on non-Linux platforms
func (m *MprisSource) SetPlayers([]string) {}

// Snapshots returns the mailbox
func (m *MprisSource) Snapshots() <-chan domain.Snapshot {
	return m.mailbox.C()
}
