package certificate

import (
	"context"
	"image"
)

// Options configures a Renderer.
type Options struct {
	Limits Limits
	// SpoolToDisk routes encoding through a unique temp file in SpoolDir
	// instead of an in-memory buffer.
	SpoolToDisk bool
	SpoolDir    string
}

// Result is a finished certificate.
type Result struct {
	PNG      []byte
	FileName string
	Width    int
	Height   int
	Anchor   Anchor
}

// Renderer runs the decode, place, draw and encode pipeline. It holds no
// per-request state and may be shared across goroutines.
type Renderer struct {
	fonts    *Fonts
	measurer Measurer
	limits   Limits
	spool    *Spool
}

// NewRenderer builds a Renderer drawing with fonts.
func NewRenderer(fonts *Fonts, opts Options) *Renderer {
	r := &Renderer{
		fonts:    fonts,
		measurer: fonts,
		limits:   opts.Limits.withDefaults(),
	}
	if opts.SpoolToDisk {
		r.spool = &Spool{Dir: opts.SpoolDir}
	}
	return r
}

// Limits returns the effective input limits.
func (r *Renderer) Limits() Limits { return r.limits }

// Render produces a certificate for a validated request. It stops at the
// first failing stage and returns that stage's *Error.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := Decode(req.Template, r.limits)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()

	size, err := r.measurer.Measure(req.Name, req.Font, req.Scale, req.Weight)
	if err != nil {
		return nil, asKind(err, RenderFailure, "measure text")
	}
	anchor := Place(b.Dx(), b.Dy(), size, req.XOffset, req.YOffset)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := r.fonts.Draw(src, req.Name, anchor, req.Font, req.Scale, req.Weight)
	if err != nil {
		return nil, asKind(err, RenderFailure, "draw text")
	}

	data, err := r.encode(out)
	if err != nil {
		return nil, err
	}

	return &Result{
		PNG:      data,
		FileName: DownloadName(req.Name),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Anchor:   anchor,
	}, nil
}

func (r *Renderer) encode(img image.Image) ([]byte, error) {
	if r.spool != nil {
		return r.spool.RoundTrip(img)
	}
	return Encode(img)
}

// asKind keeps an existing *Error and wraps anything else as kind.
func asKind(err error, kind Kind, msg string) error {
	if KindOf(err) != 0 {
		return err
	}
	return newError(kind, msg, err)
}
