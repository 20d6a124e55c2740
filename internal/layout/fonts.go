package layout

import (
	"fmt"
	"sort"
	"sync"

	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
	"golang.org/x/image/font/opentype"
)

// BasicFamily is the built-in 7x13 bitmap font, scaled linearly
const BasicFamily = "basic"

const basicFontHeight = 13

// ttf data indexed by style: regular, bold, italic, bold italic
var families = map[string][4][]byte{
	"Go":           {goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF},
	"Go Mono":      {gomono.TTF, gomonobold.TTF, gomonoitalic.TTF, gomonobolditalic.TTF},
	"Go Smallcaps": {gosmallcaps.TTF, gosmallcaps.TTF, gosmallcapsitalic.TTF, gosmallcapsitalic.TTF},
}

// Families lists the supported font family names
func Families() []string {
	names := []string{BasicFamily}
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckFamily reports an error for an unsupported family name
func CheckFamily(name string) error {
	if name == BasicFamily {
		return nil
	}
	if _, ok := families[name]; !ok {
		return fmt.Errorf("unknown font family %q (available: %v)", name, Families())
	}
	return nil
}

type faceKey struct {
	font domain.FontSpec
	size int
}

// FontMeasurer measures text with real font metrics
type FontMeasurer struct {
	logger *zap.Logger

	mu     sync.Mutex
	parsed map[domain.FontSpec]*opentype.Font
	faces  map[faceKey]font.Face
}

// NewFontMeasurer creates a measurer and checks that the configured family is available
func NewFontMeasurer(logger *zap.Logger, f domain.FontSpec) (*FontMeasurer, error) {
	if err := CheckFamily(f.Family); err != nil {
		return nil, err
	}
	return &FontMeasurer{
		logger: logger,
		parsed: make(map[domain.FontSpec]*opentype.Font),
		faces:  make(map[faceKey]font.Face),
	}, nil
}

// Measure returns the advance width of text in pixels
func (m *FontMeasurer) Measure(text string, size int, f domain.FontSpec) float64 {
	if f.Family == BasicFamily {
		adv := font.MeasureString(basicfont.Face7x13, text)
		return float64(adv) / 64 * float64(size) / basicFontHeight
	}

	face, err := m.face(f, size)
	if err != nil {
		m.logger.Warn("Falling back to basic font",
			zap.String("family", f.Family),
			zap.Int("size", size),
			zap.Error(err))
		return m.Measure(text, size, domain.FontSpec{Family: BasicFamily})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(font.MeasureString(face, text)) / 64
}

func (m *FontMeasurer) face(f domain.FontSpec, size int) (font.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := faceKey{font: f, size: size}
	if face, ok := m.faces[k]; ok {
		return face, nil
	}

	parsed, ok := m.parsed[f]
	if !ok {
		data, known := families[f.Family]
		if !known {
			return nil, fmt.Errorf("unknown font family %q", f.Family)
		}
		var err error
		parsed, err = opentype.Parse(data[styleIndex(f.Style)])
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %q: %w", f.Family, err)
		}
		m.parsed[f] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	m.faces[k] = face
	return face, nil
}

func styleIndex(s domain.FontStyle) int {
	i := 0
	if s&domain.StyleBold != 0 {
		i |= 1
	}
	if s&domain.StyleItalic != 0 {
		i |= 2
	}
	return i
}
