package layout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/zap"
)

// countingMeasurer gives every rune a width of size/2 and counts calls
type countingMeasurer struct {
	calls int
}

func (m *countingMeasurer) Measure(text string, size int, _ domain.FontSpec) float64 {
	m.calls++
	return float64(utf8.RuneCountInString(text)*size) / 2
}

func newTestEngine(minSize, maxSize int) (*Engine, *countingMeasurer) {
	m := &countingMeasurer{}
	e := NewEngine(zap.NewNop(), m, Options{
		Font:    domain.FontSpec{Family: "Go"},
		MinSize: minSize,
		MaxSize: maxSize,
	})
	return e, m
}

func TestFit(t *testing.T) {
	tests := []struct {
		name      string
		min, max  int
		text      string
		box       domain.Box
		wantSize  int
		wantText  string
		truncated bool
	}{
		{
			name:     "Fits at max size",
			min:      8,
			max:      18,
			text:     "Song",
			box:      domain.Box{Width: 100, Height: 40},
			wantSize: 18,
			wantText: "Song",
		},
		{
			name: "Shrinks to largest fitting size",
			min:  8,
			max:  18,
			// 10 runes: width = 5*size, fits while size <= 12
			text:     "abcdefghij",
			box:      domain.Box{Width: 60, Height: 40},
			wantSize: 12,
			wantText: "abcdefghij",
		},
		{
			name:     "Exact fit at a boundary",
			min:      8,
			max:      18,
			text:     "abcdefghij",
			box:      domain.Box{Width: 65, Height: 40},
			wantSize: 13,
			wantText: "abcdefghij",
		},
		{
			name:     "Box height caps the size",
			min:      8,
			max:      18,
			text:     "Hi",
			box:      domain.Box{Width: 500, Height: 10},
			wantSize: 10,
			wantText: "Hi",
		},
		{
			name:     "Box height below minimum keeps minimum",
			min:      8,
			max:      18,
			text:     "Hi",
			box:      domain.Box{Width: 500, Height: 4},
			wantSize: 8,
			wantText: "Hi",
		},
		{
			name:     "Degenerate range",
			min:      12,
			max:      12,
			text:     "Hi",
			box:      domain.Box{Width: 500, Height: 40},
			wantSize: 12,
			wantText: "Hi",
		},
		{
			name: "Truncated at minimum size",
			min:  8,
			max:  18,
			// 4px per rune at size 8: 10 runes fit in 40px, so 9 chars + ellipsis
			text:      "abcdefghijklmnopqrstuvwxyz",
			box:       domain.Box{Width: 40, Height: 40},
			wantSize:  8,
			wantText:  "abcdefghi" + Ellipsis,
			truncated: true,
		},
		{
			name:      "Trailing space trimmed before ellipsis",
			min:       8,
			max:       8,
			text:      "abcd efgh",
			box:       domain.Box{Width: 24, Height: 40},
			wantSize:  8,
			wantText:  "abcd" + Ellipsis,
			truncated: true,
		},
		{
			name:      "Only ellipsis remains",
			min:       8,
			max:       18,
			text:      "abcdef",
			box:       domain.Box{Width: 3, Height: 40},
			wantSize:  8,
			wantText:  Ellipsis,
			truncated: true,
		},
		{
			name:     "Empty text",
			min:      8,
			max:      18,
			text:     "",
			box:      domain.Box{Width: 10, Height: 40},
			wantSize: 18,
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(tt.min, tt.max)
			got := e.Fit(tt.text, tt.box)
			if got.FontSize != tt.wantSize {
				t.Errorf("FontSize: want %d, got %d", tt.wantSize, got.FontSize)
			}
			if got.Content != tt.wantText {
				t.Errorf("Content: want %q, got %q", tt.wantText, got.Content)
			}
			if got.Truncated != tt.truncated {
				t.Errorf("Truncated: want %v, got %v", tt.truncated, got.Truncated)
			}
		})
	}
}

func TestFitTruncatedWidthFits(t *testing.T) {
	e, m := newTestEngine(8, 18)
	box := domain.Box{Width: 100, Height: 40}
	got := e.Fit(strings.Repeat("long title ", 20), box)

	if !strings.HasSuffix(got.Content, Ellipsis) {
		t.Fatalf("expected ellipsis suffix, got %q", got.Content)
	}
	if w := m.Measure(got.Content, got.FontSize, e.Font()); w > float64(box.Width) {
		t.Errorf("truncated text is %.1fpx wide, box is %d", w, box.Width)
	}
}

func TestTruncateKeepsGraphemes(t *testing.T) {
	e, _ := newTestEngine(8, 8)
	// each "é" is one grapheme but two runes; the flag is two runes too
	text := strings.Repeat("e\u0301", 6) + "\U0001F1EE\U0001F1F9" + "tail"
	ends := map[int]bool{0: true}
	for _, end := range graphemeEnds(text) {
		ends[end] = true
	}

	for width := 4; width <= 80; width += 4 {
		got := e.Fit(text, domain.Box{Width: width, Height: 40})
		if !got.Truncated {
			continue
		}
		if !utf8.ValidString(got.Content) {
			t.Fatalf("width %d: invalid UTF-8 %q", width, got.Content)
		}
		prefix := strings.TrimSuffix(got.Content, Ellipsis)
		if !strings.HasPrefix(text, prefix) || !ends[len(prefix)] {
			t.Errorf("width %d: %q does not end on a grapheme boundary", width, got.Content)
		}
	}
}

func TestMeasureCache(t *testing.T) {
	e, m := newTestEngine(8, 18)

	first := e.Measure("Song", 12)
	second := e.Measure("Song", 12)
	if first != second {
		t.Errorf("cached width differs: %v vs %v", first, second)
	}
	if m.calls != 1 {
		t.Errorf("expected 1 measurement call, got %d", m.calls)
	}

	stats := e.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestFitUsesCache(t *testing.T) {
	e, m := newTestEngine(8, 18)
	box := domain.Box{Width: 60, Height: 40}

	first := e.Fit("abcdefghij", box)
	calls := m.calls
	second := e.Fit("abcdefghij", box)

	if first != second {
		t.Errorf("Fit is not deterministic: %+v vs %+v", first, second)
	}
	if m.calls != calls {
		t.Errorf("second Fit measured %d times, expected 0", m.calls-calls)
	}
}

func TestSetFontInvalidatesCache(t *testing.T) {
	e, m := newTestEngine(8, 18)
	e.Measure("Song", 12)

	e.SetFont(domain.FontSpec{Family: "Go"})
	e.Measure("Song", 12)
	if m.calls != 1 {
		t.Errorf("same font must keep the cache, got %d calls", m.calls)
	}

	e.SetRange(10, 20)
	e.Measure("Song", 12)
	if m.calls != 1 {
		t.Errorf("range change must keep the cache, got %d calls", m.calls)
	}

	e.SetFont(domain.FontSpec{Family: "Go", Style: domain.StyleBold})
	if e.Stats().Entries != 0 {
		t.Error("style change must empty the cache")
	}
	e.Measure("Song", 12)
	if m.calls != 2 {
		t.Errorf("expected a fresh measurement after font change, got %d calls", m.calls)
	}

	e.SetFont(domain.FontSpec{Family: "Go Mono", Style: domain.StyleBold})
	e.Measure("Song", 12)
	if m.calls != 3 {
		t.Errorf("expected a fresh measurement after family change, got %d calls", m.calls)
	}
}

func TestSetRangeNormalizes(t *testing.T) {
	e, _ := newTestEngine(0, 0)
	if e.minSize != defaultMinSize || e.maxSize != defaultMaxSize {
		t.Errorf("zero range: got [%d,%d]", e.minSize, e.maxSize)
	}
	e.SetRange(14, 10)
	if e.minSize != 14 || e.maxSize != 14 {
		t.Errorf("inverted range: got [%d,%d]", e.minSize, e.maxSize)
	}
}

func TestLayoutState(t *testing.T) {
	e, _ := newTestEngine(8, 18)
	box := domain.Box{Width: 220, Height: 60}
	o := Overlay{Separator: ", ", IdleText: "Nothing playing", Padding: 10}

	idle := e.LayoutState(domain.OverlayState{}, box, o)
	if !idle.Visible || idle.Title.Content != "Nothing playing" || idle.Artist.Content != "" {
		t.Errorf("idle layout: got %+v", idle)
	}

	hidden := e.LayoutState(domain.OverlayState{}, box, Overlay{})
	if hidden.Visible {
		t.Error("expected hidden overlay without idle text")
	}

	st := domain.OverlayState{
		HasPlayer: true,
		Track:     domain.Track{Title: "Song", Artist: []string{"A", "B"}},
		Status:    domain.StatusPlaying,
	}
	lines := e.LayoutState(st, box, o)
	if lines.Title.Content != "Song" || lines.Artist.Content != "A, B" {
		t.Errorf("track layout: got %+v", lines)
	}
	// inner box is 200x40, each row gets 20px of height
	if lines.Title.FontSize != 18 || lines.Artist.FontSize != 18 {
		t.Errorf("expected size 18 on both rows, got %d/%d", lines.Title.FontSize, lines.Artist.FontSize)
	}
}

func TestSplit(t *testing.T) {
	top, bottom := split(domain.Box{Width: 100, Height: 41}, 5)
	if top.Width != 90 || top.Height != 16 || bottom.Height != 15 {
		t.Errorf("split: got %+v / %+v", top, bottom)
	}

	top, bottom = split(domain.Box{Width: 4, Height: 4}, 5)
	if top.Width != 0 || top.Height != 0 || bottom.Height != 0 {
		t.Errorf("split of tiny box: got %+v / %+v", top, bottom)
	}
}
