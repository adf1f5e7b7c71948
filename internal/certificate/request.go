package certificate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxNameLength  = 100
	DefaultMaxOffset      = 5000.0
	DefaultMaxUploadBytes = 10 << 20
	DefaultMaxDimension   = 16384
	DefaultMaxPixels      = 64 << 20

	MinScale  = 0.5
	MaxScale  = 7.0
	ScaleStep = 0.5

	MinWeight = 1
	MaxWeight = 5
)

// Limits bounds user input and decoded images.
type Limits struct {
	MaxNameLength  int
	MaxOffset      float64
	MaxUploadBytes int
	MaxDimension   int
	MaxPixels      int64
}

// DefaultLimits returns the limits used when configuration leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		MaxNameLength:  DefaultMaxNameLength,
		MaxOffset:      DefaultMaxOffset,
		MaxUploadBytes: DefaultMaxUploadBytes,
		MaxDimension:   DefaultMaxDimension,
		MaxPixels:      DefaultMaxPixels,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxNameLength <= 0 {
		l.MaxNameLength = d.MaxNameLength
	}
	if l.MaxOffset <= 0 {
		l.MaxOffset = d.MaxOffset
	}
	if l.MaxUploadBytes <= 0 {
		l.MaxUploadBytes = d.MaxUploadBytes
	}
	if l.MaxDimension <= 0 {
		l.MaxDimension = d.MaxDimension
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = d.MaxPixels
	}
	return l
}

// Scales returns every accepted font scale in ascending order.
func Scales() []float64 {
	var out []float64
	for s := MinScale; s <= MaxScale; s += ScaleStep {
		out = append(out, s)
	}
	return out
}

// Form carries the raw submission exactly as received.
type Form struct {
	Name     string
	Font     string
	Scale    string
	Weight   string
	X        string
	Y        string
	Template []byte
}

// Request is a validated submission. Only Validate should build one.
type Request struct {
	Name     string
	Font     FontKind
	Scale    float64
	Weight   int
	XOffset  float64
	YOffset  float64
	Template []byte
}

// Validate checks every field of f against lim and returns the first
// rejection. It has no side effects.
func Validate(f Form, lim Limits) (Request, error) {
	lim = lim.withDefaults()

	// The name is drawn as entered; surrounding spaces only count against
	// the length limit.
	name := f.Name
	if strings.TrimSpace(name) == "" {
		return Request{}, newError(InvalidName, "name is required", nil)
	}
	if n := utf8.RuneCountInString(name); n > lim.MaxNameLength {
		return Request{}, newError(InvalidName, fmt.Sprintf("name has %d characters, at most %d allowed", n, lim.MaxNameLength), nil)
	}

	x, err := parseOffset("x", f.X, lim.MaxOffset)
	if err != nil {
		return Request{}, err
	}
	y, err := parseOffset("y", f.Y, lim.MaxOffset)
	if err != nil {
		return Request{}, err
	}

	kind, err := ParseFontKind(f.Font)
	if err != nil {
		return Request{}, err
	}

	scale, err := parseScale(f.Scale)
	if err != nil {
		return Request{}, err
	}

	weight, err := parseWeight(f.Weight)
	if err != nil {
		return Request{}, err
	}

	if len(f.Template) == 0 {
		return Request{}, newError(InvalidUpload, "certificate template is required", nil)
	}
	if len(f.Template) > lim.MaxUploadBytes {
		return Request{}, newError(InvalidUpload, fmt.Sprintf("template is %d bytes, at most %d allowed", len(f.Template), lim.MaxUploadBytes), ErrUploadTooLarge)
	}

	return Request{
		Name:     name,
		Font:     kind,
		Scale:    scale,
		Weight:   weight,
		XOffset:  x,
		YOffset:  y,
		Template: f.Template,
	}, nil
}

func parseOffset(axis, raw string, limit float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newError(InvalidCoordinate, fmt.Sprintf("%s offset %q is not a number", axis, raw), nil)
	}
	if v < -limit || v > limit {
		return 0, newError(InvalidCoordinate, fmt.Sprintf("%s offset %v outside [-%v, %v]", axis, v, limit, limit), nil)
	}
	return v, nil
}

func parseScale(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MinScale, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !ValidScale(v) {
		return 0, newError(InvalidScale, fmt.Sprintf("scale %q must be one of %v..%v in steps of %v", raw, MinScale, MaxScale, ScaleStep), nil)
	}
	return v, nil
}

// ValidScale reports whether s is one of Scales().
func ValidScale(s float64) bool {
	steps := s / ScaleStep
	return s >= MinScale && s <= MaxScale && steps == math.Trunc(steps)
}

func parseWeight(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MinWeight, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < MinWeight || v > MaxWeight {
		return 0, newError(InvalidWeight, fmt.Sprintf("weight %q must be an integer between %d and %d", raw, MinWeight, MaxWeight), nil)
	}
	return v, nil
}
