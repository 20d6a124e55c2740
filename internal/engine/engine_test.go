package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/genricoloni/marquee/internal/config"
	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/layout"
	"github.com/genricoloni/marquee/internal/state"
	"go.uber.org/zap"
)

// fakeSource hands out whatever the test puts in its mailbox
type fakeSource struct {
	ch       chan domain.Snapshot
	interval time.Duration
	players  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan domain.Snapshot, 1)}
}

func (f *fakeSource) Poll(context.Context) domain.Snapshot { return domain.Snapshot{} }
func (f *fakeSource) Start(context.Context) error          { return nil }
func (f *fakeSource) Stop(context.Context) error           { return nil }
func (f *fakeSource) Snapshots() <-chan domain.Snapshot    { return f.ch }
func (f *fakeSource) SetInterval(d time.Duration)          { f.interval = d }
func (f *fakeSource) SetPlayers(p []string)                { f.players = p }

type fakeUpdates struct {
	ch chan config.Config
}

func (f *fakeUpdates) Updates() <-chan config.Config { return f.ch }

// runeMeasurer gives every rune a width of size/2
type runeMeasurer struct{}

func (runeMeasurer) Measure(text string, size int, _ domain.FontSpec) float64 {
	return float64(utf8.RuneCountInString(text)*size) / 2
}

func newTestEngine(t *testing.T, cfg config.Config) (*Engine, *fakeSource, *fakeUpdates) {
	t.Helper()
	src := newFakeSource()
	updates := &fakeUpdates{ch: make(chan config.Config, 1)}
	lay := layout.NewEngine(zap.NewNop(), runeMeasurer{}, layout.Options{
		Font:    cfg.FontSpec(),
		MinSize: cfg.Font.MinSize,
		MaxSize: cfg.Font.MaxSize,
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := state.New(func() time.Time { return now })
	e := NewEngine(zap.NewNop(), cfg, &domain.ScreenResolution{Width: 1920, Height: 1080}, src, st, lay, updates)
	return e, src, updates
}

func playing(id string, status domain.PlaybackStatus, title, artist string) domain.Snapshot {
	h := domain.PlayerHandle{ID: id, Status: status}
	return domain.Snapshot{
		Handles:  []domain.PlayerHandle{h},
		Selected: &h,
		Metadata: domain.RawMetadata{
			"title":  domain.StringValue(title),
			"artist": domain.StringListValue([]string{artist}),
		},
	}
}

func TestProcessScenario(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())

	steps := []struct {
		name          string
		snap          domain.Snapshot
		want          state.Transition
		wantRelayouts int
		wantVersion   uint64
	}{
		{"No players", domain.Snapshot{}, state.NoChange, 0, 0},
		{"Player appears", playing("A", domain.StatusPlaying, "Song", "X"), state.TrackChanged, 1, 1},
		{"Same track", playing("A", domain.StatusPlaying, "Song", "X"), state.NoChange, 1, 1},
		{"Paused", playing("A", domain.StatusPaused, "Song", "X"), state.StatusChanged, 1, 2},
		{"Player gone", domain.Snapshot{}, state.SourceLost, 2, 3},
	}

	for _, step := range steps {
		got := e.process(step.snap)
		if got != step.want {
			t.Fatalf("%s: want %s, got %s", step.name, step.want, got)
		}
		if e.relayouts != step.wantRelayouts {
			t.Errorf("%s: want %d relayouts, got %d", step.name, step.wantRelayouts, e.relayouts)
		}
		if v := e.Frame().Version; v != step.wantVersion {
			t.Errorf("%s: want frame version %d, got %d", step.name, step.wantVersion, v)
		}

		switch step.name {
		case "Player appears":
			f := e.Frame()
			if !f.Visible || f.Title.Content != "Song" || f.Artist.Content != "X" {
				t.Errorf("unexpected frame %+v", f)
			}
			if f.Status != domain.StatusPlaying {
				t.Errorf("want Playing, got %s", f.Status)
			}
		case "Paused":
			if s := e.Frame().Status; s != domain.StatusPaused {
				t.Errorf("want Paused, got %s", s)
			}
		case "Player gone":
			f := e.Frame()
			if f.Title.Content != "Nothing playing" || f.Artist.Content != "" {
				t.Errorf("expected idle frame, got %+v", f)
			}
		}
	}
}

func TestProcessPlayerSwitchRepublishes(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())

	e.process(playing("org.mpris.MediaPlayer2.A", domain.StatusPlaying, "Song", "X"))
	got := e.process(playing("org.mpris.MediaPlayer2.B", domain.StatusPlaying, "Song", "X"))
	if got != state.StatusChanged {
		t.Fatalf("want StatusChanged, got %s", got)
	}

	f := e.Frame()
	if f.Version != 2 {
		t.Errorf("want frame version 2, got %d", f.Version)
	}
	if f.State.PlayerID != "org.mpris.MediaPlayer2.B" {
		t.Errorf("frame must follow the new player, got %s", f.State.PlayerID)
	}
	if e.relayouts != 1 {
		t.Errorf("same text must not relayout, got %d relayouts", e.relayouts)
	}
}

func TestProcessBusErrorActsAsNoPlayer(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())

	e.process(playing("A", domain.StatusPlaying, "Song", "X"))
	got := e.process(domain.Snapshot{Err: errors.New("bus gone")})
	if got != state.SourceLost {
		t.Errorf("want SourceLost, got %s", got)
	}
}

func TestProcessPlaceholders(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())

	h := domain.PlayerHandle{ID: "A", Status: domain.StatusPlaying}
	e.process(domain.Snapshot{Handles: []domain.PlayerHandle{h}, Selected: &h})

	f := e.Frame()
	if f.Title.Content != "Unknown Title" || f.Artist.Content != "Unknown Artist" {
		t.Errorf("expected placeholders, got %q / %q", f.Title.Content, f.Artist.Content)
	}
}

func TestApplyResize(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())
	e.process(playing("A", domain.StatusPlaying, "Song", "X"))

	e.applyResize(domain.Box{Width: 200, Height: 40})
	if e.relayouts != 2 {
		t.Errorf("resize must relayout once, got %d relayouts", e.relayouts)
	}
	if b := e.Frame().Box; b != (domain.Box{Width: 200, Height: 40}) {
		t.Errorf("frame box not updated: %+v", b)
	}

	e.applyResize(domain.Box{Width: 200, Height: 40})
	if e.relayouts != 2 {
		t.Errorf("unchanged size must not relayout, got %d relayouts", e.relayouts)
	}

	if got := e.process(playing("A", domain.StatusPlaying, "Song", "X")); got != state.NoChange {
		t.Errorf("want NoChange after resize, got %s", got)
	}
	if e.relayouts != 2 {
		t.Errorf("forced relayout must be consumed once, got %d relayouts", e.relayouts)
	}
}

func TestApplyResizeClampsToScreen(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())
	e.applyResize(domain.Box{Width: 5000, Height: 40})
	if w := e.Frame().Box.Width; w != 1920 {
		t.Errorf("want width clamped to 1920, got %d", w)
	}
}

func TestApplyConfig(t *testing.T) {
	e, src, _ := newTestEngine(t, config.Default())
	e.process(playing("A", domain.StatusPlaying, "Song", "X"))

	cfg := config.Default()
	cfg.Font.Family = "Go Mono"
	cfg.PollInterval = 250
	e.applyConfig(cfg)

	if e.layout.Font().Family != "Go Mono" {
		t.Errorf("font not switched: %+v", e.layout.Font())
	}
	if src.interval != 250*time.Millisecond {
		t.Errorf("poll interval not forwarded: %v", src.interval)
	}
	if e.relayouts != 2 {
		t.Errorf("font change must relayout, got %d relayouts", e.relayouts)
	}

	// same config again is a no-op
	e.applyConfig(cfg)
	if e.relayouts != 2 {
		t.Errorf("unchanged config must not relayout, got %d relayouts", e.relayouts)
	}
}

func TestApplyConfigForwardsPlayers(t *testing.T) {
	e, src, _ := newTestEngine(t, config.Default())

	cfg := config.Default()
	cfg.Players = []string{"spotify", "vlc"}
	e.applyConfig(cfg)

	if fmt.Sprint(src.players) != "[spotify vlc]" {
		t.Errorf("allow-list not forwarded: %v", src.players)
	}
	if e.relayouts != 0 {
		t.Errorf("allow-list change must not relayout, got %d relayouts", e.relayouts)
	}

	src.players = nil
	e.applyConfig(cfg)
	if src.players != nil {
		t.Errorf("unchanged allow-list must not be forwarded again: %v", src.players)
	}
}

func TestApplyConfigRejectsUnknownFamily(t *testing.T) {
	e, _, _ := newTestEngine(t, config.Default())

	cfg := config.Default()
	cfg.Font.Family = "Comic Sans"
	cfg.ArtistSeparator = " / "
	e.applyConfig(cfg)

	if e.cfg.ArtistSeparator != ", " {
		t.Errorf("rejected config must not be applied, got separator %q", e.cfg.ArtistSeparator)
	}
}

func TestStartStop(t *testing.T) {
	e, src, updates := newTestEngine(t, config.Default())

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f := e.Frame(); !f.Visible || f.Title.Content != "Nothing playing" {
		t.Errorf("expected idle frame after start, got %+v", f)
	}

	src.ch <- playing("A", domain.StatusPlaying, "Song", "X")
	waitFor(t, func() bool { return e.Frame().Title.Content == "Song" })

	e.Resize(domain.Box{Width: 100, Height: 30})
	waitFor(t, func() bool { return e.Frame().Box.Width == 100 })

	cfg := config.Default()
	cfg.IdleText = new(string)
	updates.ch <- cfg
	src.ch <- domain.Snapshot{}
	waitFor(t, func() bool { return !e.Frame().Visible })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timeout: condition not met")
}
