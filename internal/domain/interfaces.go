package domain

import (
	"context"
	"time"
)

// Source defines the interface for reading media players off the bus
// Implementations should handle D-Bus/MPRIS communication
type Source interface {
	// Poll performs one synchronous read of the bus.
	// Bus failures are reported in Snapshot.Err, never as a panic or a blocked call
	Poll(ctx context.Context) Snapshot

	// Start launches the background poller. It returns immediately
	Start(ctx context.Context) error

	// Stop cancels in-flight bus calls and waits for the poller to exit
	Stop(ctx context.Context) error

	// Snapshots returns the single-slot mailbox the poller writes into
	Snapshots() <-chan Snapshot

	// SetInterval changes the poll interval of a running poller
	SetInterval(d time.Duration)

	// SetPlayers replaces the player allow-list. Empty accepts every player
	SetPlayers(players []string)
}

// Measurer measures the rendered pixel width of a string
type Measurer interface {
	// Measure returns the advance width of text at the given pixel size
	Measure(text string, size int, font FontSpec) float64
}

// FrameSource gives the render driver read access to the latest frame
type FrameSource interface {
	// Frame returns the most recently published frame
	Frame() Frame
}
