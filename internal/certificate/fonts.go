package certificate

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontKind selects one of the fixed text styles.
type FontKind int

const (
	FontSans FontKind = iota
	FontSansSmall
	FontSansComplex
	FontSerif
	FontSerifComplex
	FontSerifSmall
	FontScript
	FontScriptComplex

	fontKindCount
)

// fontStyle is the rendering payload of a FontKind. basePx is the face size
// in pixels at scale 1.0.
type fontStyle struct {
	key    string
	label  string
	file   string
	basePx float64
}

var fontFiles = map[string][]byte{
	"goregular":    goregular.TTF,
	"gomedium":     gomedium.TTF,
	"gomono":       gomono.TTF,
	"gomonobold":   gomonobold.TTF,
	"goitalic":     goitalic.TTF,
	"gobolditalic": gobolditalic.TTF,
}

// Go Mono is the slab-serif member of the Go font family, so it stands in
// for the serif styles.
var fontStyles = [fontKindCount]fontStyle{
	FontSans:          {"sans", "Normal size sans-serif font", "goregular", 22},
	FontSansSmall:     {"sans-small", "Small size sans-serif font", "goregular", 12},
	FontSansComplex:   {"sans-complex", "Complex size sans-serif font", "gomedium", 22},
	FontSerif:         {"serif", "Normal size serif font", "gomono", 22},
	FontSerifComplex:  {"serif-complex", "Complex size serif font", "gomonobold", 22},
	FontSerifSmall:    {"serif-small", "Small size serif font", "gomono", 15},
	FontScript:        {"script", "Hand-writing style font", "goitalic", 22},
	FontScriptComplex: {"script-complex", "Complex Hand-writing style font", "gobolditalic", 22},
}

// FontKinds lists every kind in display order.
func FontKinds() []FontKind {
	kinds := make([]FontKind, 0, fontKindCount)
	for k := FontKind(0); k < fontKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is one of the declared kinds.
func (k FontKind) Valid() bool { return k >= 0 && k < fontKindCount }

// String returns the short key, e.g. "serif-small".
func (k FontKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("FontKind(%d)", int(k))
	}
	return fontStyles[k].key
}

// Label returns the human-readable name offered to users.
func (k FontKind) Label() string {
	if !k.Valid() {
		return ""
	}
	return fontStyles[k].label
}

// ParseFontKind accepts either the short key or the label, case-insensitively.
// An empty string selects FontSans.
func ParseFontKind(s string) (FontKind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FontSans, nil
	}
	for k, st := range fontStyles {
		if strings.EqualFold(s, st.key) || strings.EqualFold(s, st.label) {
			return FontKind(k), nil
		}
	}
	return 0, newError(InvalidFont, fmt.Sprintf("unknown font %q", s), nil)
}

// TextSize is the measured extent of a text run: its ink width and its
// height above the baseline.
type TextSize struct {
	Width  int
	Height int
}

// Measurer measures the rendered box of a name for a given style.
type Measurer interface {
	Measure(text string, kind FontKind, scale float64, weight int) (TextSize, error)
}

// Fonts parses the bundled font files once and hands out faces on demand.
// Parsed fonts are never mutated, so a Fonts is safe for concurrent use;
// faces are created per call and closed by the caller.
type Fonts struct {
	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

// NewFonts parses every bundled font up front so a broken font file fails at
// startup rather than on the first request.
func NewFonts() (*Fonts, error) {
	f := &Fonts{parsed: make(map[string]*opentype.Font)}
	for _, k := range FontKinds() {
		if _, err := f.font(k); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Fonts) font(kind FontKind) (*opentype.Font, error) {
	if !kind.Valid() {
		return nil, newError(InvalidFont, fmt.Sprintf("unknown font kind %d", int(kind)), nil)
	}
	st := fontStyles[kind]

	f.mu.Lock()
	defer f.mu.Unlock()
	// Several kinds share a file, so parse each file once.
	if parsed, ok := f.parsed[st.file]; ok {
		return parsed, nil
	}
	parsed, err := opentype.Parse(fontFiles[st.file])
	if err != nil {
		return nil, newError(RenderFailure, "parse font "+st.file, err)
	}
	f.parsed[st.file] = parsed
	return parsed, nil
}

// Face returns a face for kind at the given scale. The caller must Close it.
func (f *Fonts) Face(kind FontKind, scale float64) (font.Face, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, newError(InvalidScale, fmt.Sprintf("scale %v must be positive", scale), nil)
	}
	parsed, err := f.font(kind)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    fontStyles[kind].basePx * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, newError(RenderFailure, fmt.Sprintf("create %s face at scale %.1f", kind, scale), err)
	}
	return face, nil
}

// Measure returns the ink plus brush box of text: the glyph ink box with
// weight-1 pixels added to its width and to its height above the baseline,
// which is how Draw's brush grows the ink.
func (f *Fonts) Measure(text string, kind FontKind, scale float64, weight int) (TextSize, error) {
	face, err := f.Face(kind, scale)
	if err != nil {
		return TextSize{}, err
	}
	defer face.Close()
	return measureWithFace(face, text, weight), nil
}

func measureWithFace(face font.Face, text string, weight int) TextSize {
	bounds, _ := font.BoundString(face, text)
	extra := max(weight, 1) - 1
	return TextSize{
		Width:  (bounds.Max.X - bounds.Min.X).Ceil() + extra,
		Height: (-bounds.Min.Y).Ceil() + extra,
	}
}
