// Package layout fits strings into fixed-size boxes by scaling the font size
// and, when even the smallest size is too wide, truncating with an ellipsis.
package layout

import (
	"strings"

	"github.com/genricoloni/marquee/internal/domain"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"
)

// Ellipsis is appended to truncated text
const Ellipsis = "…"

const (
	defaultMinSize = 8
	defaultMaxSize = 18
)

// Options configures an Engine
type Options struct {
	Font    domain.FontSpec
	MinSize int
	MaxSize int
}

type cacheKey struct {
	text   string
	size   int
	family string
	style  domain.FontStyle
}

// Stats reports measurement cache activity
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Engine computes FittedText. It keeps a measurement cache and is not safe
// for concurrent use.
type Engine struct {
	logger   *zap.Logger
	measurer domain.Measurer
	font     domain.FontSpec
	minSize  int
	maxSize  int

	cache  map[cacheKey]float64
	hits   uint64
	misses uint64
}

// NewEngine creates a layout engine measuring through m
func NewEngine(logger *zap.Logger, m domain.Measurer, opts Options) *Engine {
	e := &Engine{
		logger:   logger,
		measurer: m,
		font:     opts.Font,
		cache:    make(map[cacheKey]float64),
	}
	e.SetRange(opts.MinSize, opts.MaxSize)
	return e
}

// Font returns the font currently used for measurement
func (e *Engine) Font() domain.FontSpec {
	return e.font
}

// SetFont switches the font. The cache is dropped when family or style change.
func (e *Engine) SetFont(f domain.FontSpec) {
	if f == e.font {
		return
	}
	e.logger.Info("Font changed, dropping measurement cache",
		zap.String("family", f.Family),
		zap.Int("entries", len(e.cache)))
	e.font = f
	e.Invalidate()
}

// SetRange changes the font-size range. Measurements stay valid.
func (e *Engine) SetRange(minSize, maxSize int) {
	if minSize <= 0 {
		minSize = defaultMinSize
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	e.minSize, e.maxSize = minSize, maxSize
}

// Invalidate empties the measurement cache
func (e *Engine) Invalidate() {
	e.cache = make(map[cacheKey]float64)
}

// Stats returns cache counters
func (e *Engine) Stats() Stats {
	return Stats{Entries: len(e.cache), Hits: e.hits, Misses: e.misses}
}

// Measure returns the width of text at size, consulting the cache first
func (e *Engine) Measure(text string, size int) float64 {
	k := cacheKey{text: text, size: size, family: e.font.Family, style: e.font.Style}
	if w, ok := e.cache[k]; ok {
		e.hits++
		return w
	}
	e.misses++
	w := e.measurer.Measure(text, size, e.font)
	e.cache[k] = w
	return w
}

// Fit returns the largest font size at which text fits box.Width. If the
// minimum size still overflows, the text is shortened by whole graphemes and
// ends in Ellipsis. The size never exceeds box.Height when that is set.
func (e *Engine) Fit(text string, box domain.Box) domain.FittedText {
	lo, hi := e.minSize, e.maxSize
	if box.Height > 0 && box.Height < hi {
		hi = max(box.Height, lo)
	}
	width := float64(box.Width)

	if e.Measure(text, lo) > width {
		return domain.FittedText{
			Content:   e.truncate(text, lo, width),
			FontSize:  lo,
			Truncated: true,
		}
	}

	best := lo
	for l, h := lo+1, hi; l <= h; {
		mid := l + (h-l)/2
		if e.Measure(text, mid) <= width {
			best = mid
			l = mid + 1
		} else {
			h = mid - 1
		}
	}
	return domain.FittedText{Content: text, FontSize: best}
}

// truncate drops trailing graphemes until text+Ellipsis fits at size
func (e *Engine) truncate(text string, size int, width float64) string {
	bounds := graphemeEnds(text)
	// the last boundary is the full string, which is known not to fit
	for i := len(bounds) - 2; i >= 0; i-- {
		prefix := strings.TrimRight(text[:bounds[i]], " \t")
		if prefix == "" {
			break
		}
		candidate := prefix + Ellipsis
		if e.Measure(candidate, size) <= width {
			return candidate
		}
	}
	return Ellipsis
}

// graphemeEnds returns the byte offset at which each grapheme cluster ends
func graphemeEnds(text string) []int {
	var ends []int
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		_, to := g.Positions()
		ends = append(ends, to)
	}
	return ends
}
