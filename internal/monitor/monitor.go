//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/selector"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	statusProperty  = playerInterface + ".PlaybackStatus"
	metaProperty    = playerInterface + ".Metadata"

	defaultInterval = time.Second
	signalBuffer    = 10
)

var errNotConnected = errors.New("not connected to session bus")

// Options configures an MprisSource
type Options struct {
	// Interval between two polls
	Interval time.Duration
	// Policy decides which player is followed
	Policy selector.Policy
}

// MprisSource polls MPRIS players on the session bus
type MprisSource struct {
	logger  *zap.Logger
	dial    func() (DBusClient, error)
	policy  selector.Policy
	now     func() time.Time
	mailbox *Mailbox

	wake     chan struct{}
	interval chan time.Duration
	// attach hands the signal channel of each new connection to monitorSignals
	attach chan chan *dbus.Signal

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	conn        DBusClient        // Interface for testability
	wg          sync.WaitGroup    // Tracks worker goroutines
	playerNames map[string]string // Maps unique bus names (:1.45) to well-known names (org.mpris.MediaPlayer2.spotify)

	// poll state, only touched under pollMu
	pollMu   sync.Mutex
	order    []string
	selected string

	// owned by the worker once started
	period time.Duration
}

// NewMprisSource creates a new MPRIS source
func NewMprisSource(logger *zap.Logger, opts Options) *MprisSource {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &MprisSource{
		logger:      logger,
		dial:        func() (DBusClient, error) { return NewStdDBusClient() },
		policy:      opts.Policy,
		now:         time.Now,
		mailbox:     NewMailbox(),
		wake:        make(chan struct{}, 1),
		interval:    make(chan time.Duration, 1),
		attach:      make(chan chan *dbus.Signal, 1),
		playerNames: make(map[string]string),
		period:      opts.Interval,
	}
}

// Snapshots returns the mailbox the worker writes into
func (m *MprisSource) Snapshots() <-chan domain.Snapshot {
	return m.mailbox.C()
}

// Start launches the polling worker and the signal listener.
// It returns immediately; a missing session bus is retried on every tick.
func (m *MprisSource) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	// the fx start context ends once startup is done, so detach from it
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("MPRIS source started", zap.Duration("interval", m.period))

	m.wg.Add(2)
	go m.monitorSignals(workerCtx)
	go m.run(workerCtx)
	return nil
}

// Stop cancels in-flight bus calls and waits for the worker to exit,
// giving up when ctx expires
func (m *MprisSource) Stop(ctx context.Context) error {
	m.mu.Lock()
	wasRunning := m.running
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.mu.Unlock()

	if wasRunning {
		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			m.logger.Warn("MPRIS worker did not exit in time, abandoning it")
			return ctx.Err()
		}
	}

	m.mu.Lock()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
		m.conn = nil
	}
	m.mu.Unlock()

	m.logger.Info("MPRIS source shutdown complete")
	return nil
}

// SetInterval changes the poll interval of a running worker
func (m *MprisSource) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-m.interval:
	default:
	}
	m.interval <- d
}

// SetPlayers replaces the allow-list used from the next poll on
func (m *MprisSource) SetPlayers(players []string) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	m.policy = selector.Policy{Players: slices.Clone(players)}
}

// run polls on every tick and whenever a bus signal asks for it
func (m *MprisSource) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	m.mailbox.Put(m.Poll(ctx))

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Polling worker stopped")
			return
		case d := <-m.interval:
			m.period = d
			ticker.Reset(d)
			m.logger.Info("Poll interval changed", zap.Duration("interval", d))
		case <-ticker.C:
			m.mailbox.Put(m.Poll(ctx))
		case <-m.wake:
			m.mailbox.Put(m.Poll(ctx))
		}
	}
}

// connection returns the bus connection, dialing it on first use
func (m *MprisSource) connection() (DBusClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}
	if m.dial == nil {
		return nil, errNotConnected
	}

	conn, err := m.dial()
	if err != nil {
		return nil, fmt.Errorf("session bus connection failed: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisObjectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		// polling still works, only the early wake-up is lost
		m.logger.Warn("Failed to add PropertiesChanged match signal", zap.Error(err))
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	}
	// godbus closes registered channels on Close, so every connection gets its own
	signals := make(chan *dbus.Signal, signalBuffer)
	conn.Signal(signals)
	select {
	case <-m.attach:
	default:
	}
	m.attach <- signals

	m.conn = conn
	m.logger.Info("Connected to session bus")
	return conn, nil
}

// Poll reads every MPRIS player once and returns the snapshot.
// Errors degrade to an empty handle set.
func (m *MprisSource) Poll(ctx context.Context) domain.Snapshot {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	conn, err := m.connection()
	if err != nil {
		return m.fail(err)
	}

	names, err := conn.ListNames(ctx)
	if err != nil {
		// the bus daemon itself failed to answer, redial on the next tick
		if ctx.Err() == nil {
			m.dropConnection()
		}
		return m.fail(fmt.Errorf("failed to list bus names: %w", err))
	}
	m.updateOrder(ctx, conn, names)

	handles := make([]domain.PlayerHandle, 0, len(m.order))
	for _, name := range m.order {
		variant, err := conn.GetProperty(ctx, name, mprisObjectPath, statusProperty)
		if err != nil {
			// the player most likely quit between ListNames and now
			m.logger.Debug("Failed to get playback status, skipping player",
				zap.String("player", name),
				zap.Error(err))
			continue
		}
		status := domain.StatusUnknown
		if s, ok := variant.Value().(string); ok {
			status = domain.ParsePlaybackStatus(s)
		}
		handles = append(handles, domain.PlayerHandle{ID: name, Status: status})
	}

	snap := domain.Snapshot{Handles: handles, At: m.now()}

	id, ok := m.policy.Select(handles, m.selected)
	if !ok {
		m.selected = ""
		return snap
	}
	if id != m.selected {
		m.logger.Info("Following player", zap.String("player", id))
	}
	m.selected = id

	variant, err := conn.GetProperty(ctx, id, mprisObjectPath, metaProperty)
	if err != nil {
		return m.fail(fmt.Errorf("failed to get metadata of %s: %w", id, err))
	}

	// SAFE CAST: Some players may return nil or unexpected types if not playing anything
	meta, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, using placeholders", zap.String("player", id))
	}

	h, _ := selector.Find(handles, id)
	snap.Selected = &h
	snap.Metadata = convertMetadata(meta)
	return snap
}

// fail builds the empty snapshot reported for a failed tick
func (m *MprisSource) fail(err error) domain.Snapshot {
	m.logger.Debug("Bus poll failed", zap.Error(err))
	return domain.Snapshot{Err: err, At: m.now()}
}

func (m *MprisSource) dropConnection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.logger.Debug("Failed to close D-Bus connection", zap.Error(err))
	}
	m.conn = nil
}

// updateOrder keeps players in the order they were first seen
func (m *MprisSource) updateOrder(ctx context.Context, conn DBusClient, names []string) {
	present := make(map[string]bool)
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			present[name] = true
		}
	}

	kept := m.order[:0]
	known := make(map[string]bool)
	for _, name := range m.order {
		if present[name] {
			kept = append(kept, name)
			known[name] = true
		} else {
			m.logger.Info("MPRIS player removed", zap.String("player", name))
		}
	}
	m.order = kept

	for _, name := range names {
		if !present[name] || known[name] {
			continue
		}
		known[name] = true
		m.order = append(m.order, name)
		m.logger.Info("Detected MPRIS player", zap.String("name", name))

		// Get the unique bus name for this well-known name
		if uniqueName, err := conn.GetNameOwner(ctx, name); err == nil {
			m.mu.Lock()
			m.playerNames[uniqueName] = name
			m.mu.Unlock()
			m.logger.Debug("Mapped player name",
				zap.String("unique", uniqueName),
				zap.String("wellKnown", name))
		}
	}
}

// monitorSignals listens for D-Bus signals and wakes the poller on relevant ones
func (m *MprisSource) monitorSignals(ctx context.Context) {
	defer m.wg.Done() // Signal completion when goroutine exits

	// nil until the first connection is dialed
	var signals <-chan *dbus.Signal

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Signal monitoring goroutine stopped")
			return
		case ch := <-m.attach:
			signals = ch
		case sig, ok := <-signals:
			if !ok {
				m.logger.Debug("Signal channel closed, waiting for reconnect")
				signals = nil
				continue
			}
			if sig == nil {
				continue
			}
			var relevant bool
			if sig.Name == "org.freedesktop.DBus.NameOwnerChanged" {
				relevant = m.handleNameOwnerChanged(sig)
			} else {
				relevant = m.handleSignal(sig)
			}
			if relevant {
				m.requestPoll()
			}
		}
	}
}

// requestPoll asks the worker for an early poll; repeated requests collapse
func (m *MprisSource) requestPoll() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// handleNameOwnerChanged tracks player lifecycle and reports MPRIS changes
func (m *MprisSource) handleNameOwnerChanged(sig *dbus.Signal) bool {
	if len(sig.Body) < 3 {
		return false
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return false // Not an MPRIS player
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	m.mu.Lock()
	defer m.mu.Unlock()

	if oldOwner != "" {
		delete(m.playerNames, oldOwner)
	}
	if newOwner != "" {
		m.playerNames[newOwner] = name
	}

	m.logger.Debug("MPRIS player ownership changed",
		zap.String("player", name),
		zap.String("oldUnique", oldOwner),
		zap.String("newUnique", newOwner))
	return true
}

// handleSignal reports whether a PropertiesChanged signal touches
// Metadata or PlaybackStatus of a player
func (m *MprisSource) handleSignal(sig *dbus.Signal) bool {
	// PropertiesChanged signal has 3 arguments:
	// 1. Interface name (string)
	// 2. Changed properties (map[string]Variant)
	// 3. Invalidated properties ([]string)
	if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
		return false
	}
	if len(sig.Body) < 2 {
		return false
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerInterface {
		return false
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}

	_, hasMetadata := changedProps["Metadata"]
	_, hasStatus := changedProps["PlaybackStatus"]
	if !hasMetadata && !hasStatus {
		return false
	}

	m.logger.Debug("Received PropertiesChanged signal",
		zap.String("sender", sig.Sender),
		zap.String("player", m.getPlayerName(sig.Sender)),
		zap.Bool("metadata", hasMetadata),
		zap.Bool("status", hasStatus))
	return true
}

// getPlayerName returns the well-known player name for a unique bus name
// Falls back to the unique name if no mapping exists
func (m *MprisSource) getPlayerName(uniqueName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if wellKnown, ok := m.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}
