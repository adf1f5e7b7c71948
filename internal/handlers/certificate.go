package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"certcenter/internal/certificate"
	u "certcenter/internal/utils"
)

// CertificateService bundles configuration and the renderer behind the
// HTTP endpoints.
type CertificateService struct {
	Config   *u.Config
	Renderer *certificate.Renderer
}

// NewCertificateService creates a new CertificateService instance.
func NewCertificateService(cfg u.Config, r *certificate.Renderer) *CertificateService {
	return &CertificateService{Config: &cfg, Renderer: r}
}

// LimitsFromConfig maps the render section of the configuration onto the
// renderer's limits.
func LimitsFromConfig(cfg u.RenderConfig) certificate.Limits {
	return certificate.Limits{
		MaxNameLength:  cfg.MaxNameLength,
		MaxOffset:      cfg.MaxOffset,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxDimension:   cfg.MaxDimension,
		MaxPixels:      cfg.MaxPixels,
	}
}

// NewRendererFromConfig parses the bundled fonts and builds a renderer.
func NewRendererFromConfig(cfg u.Config) (*certificate.Renderer, error) {
	fonts, err := certificate.NewFonts()
	if err != nil {
		return nil, err
	}
	return certificate.NewRenderer(fonts, certificate.Options{
		Limits:      LimitsFromConfig(cfg.Render),
		SpoolToDisk: cfg.Render.SpoolToDisk,
		SpoolDir:    cfg.Render.SpoolDir,
	}), nil
}

// HandleRender validates the multipart submission, renders the certificate
// and sends it as a PNG download.
func (svc *CertificateService) HandleRender(c *fiber.Ctx) error {
	started := time.Now()
	requestID := c.GetRespHeader(fiber.HeaderXRequestID)

	form, err := svc.readForm(c)
	if err != nil {
		return svc.fail(c, err)
	}
	req, err := certificate.Validate(form, svc.Renderer.Limits())
	if err != nil {
		return svc.fail(c, err)
	}

	res, err := svc.Renderer.Render(c.UserContext(), req)
	if err != nil {
		return svc.fail(c, err)
	}

	u.Info("Certificate rendered",
		"request_id", requestID,
		"font", req.Font,
		"scale", req.Scale,
		"weight", req.Weight,
		"width", res.Width,
		"height", res.Height,
		"anchor_x", res.Anchor.X,
		"anchor_y", res.Anchor.Y,
		"bytes", len(res.PNG),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	disposition := "attachment"
	if c.QueryBool("inline") {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentType, certificate.MIMEType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, res.FileName))
	c.Set("X-Certificate-Width", strconv.Itoa(res.Width))
	c.Set("X-Certificate-Height", strconv.Itoa(res.Height))
	return c.Send(res.PNG)
}

// readForm collects the raw fields. The template is read with a cap one
// byte above the limit so oversized uploads are detected without buffering
// them whole.
func (svc *CertificateService) readForm(c *fiber.Ctx) (certificate.Form, error) {
	form := certificate.Form{
		Name:   c.FormValue("name"),
		Font:   c.FormValue("font"),
		Scale:  c.FormValue("scale"),
		Weight: c.FormValue("weight"),
		X:      c.FormValue("x"),
		Y:      c.FormValue("y"),
	}

	fh, err := c.FormFile("template")
	if err != nil {
		// Missing file: leave Template empty and let Validate report it.
		return form, nil
	}
	limit := svc.Renderer.Limits().MaxUploadBytes
	if fh.Size > int64(limit) {
		return form, &certificate.Error{
			Kind: certificate.InvalidUpload,
			Msg:  fmt.Sprintf("template is %d bytes, at most %d allowed", fh.Size, limit),
			Err:  certificate.ErrUploadTooLarge,
		}
	}
	data, err := readUpload(fh, limit)
	if err != nil {
		return form, &certificate.Error{Kind: certificate.InvalidUpload, Msg: "read template upload", Err: err}
	}
	form.Template = data
	return form, nil
}

func readUpload(fh *multipart.FileHeader, limit int) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(limit)+1))
}

// StatusFor maps a pipeline error onto an HTTP status.
func StatusFor(err error) int {
	switch kind := certificate.KindOf(err); {
	case errors.Is(err, certificate.ErrUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case kind.IsValidation():
		return fiber.StatusBadRequest
	case kind == certificate.DecodeFailure:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func (svc *CertificateService) fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	kind := certificate.KindOf(err)
	msg := err.Error()
	if kind == 0 {
		// Not one of ours (e.g. a canceled context): keep the detail in logs.
		msg = "Certificate generation failed"
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	if status >= fiber.StatusInternalServerError {
		u.Error("Certificate generation failed", "request_id", requestID, "kind", kind, "error", err)
	} else {
		u.Warn("Certificate request rejected", "request_id", requestID, "kind", kind, "error", err)
	}

	body := fiber.Map{"code": status, "message": msg}
	if kind != 0 {
		body["kind"] = kind.String()
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}

// HandleFonts describes the accepted inputs so a form can populate its
// selectors.
func (svc *CertificateService) HandleFonts(c *fiber.Ctx) error {
	type fontInfo struct {
		Key   string `json:"key"`
		Label string `json:"label"`
	}
	kinds := certificate.FontKinds()
	fonts := make([]fontInfo, 0, len(kinds))
	for _, k := range kinds {
		fonts = append(fonts, fontInfo{Key: k.String(), Label: k.Label()})
	}

	lim := svc.Renderer.Limits()
	return c.JSON(fiber.Map{
		"fonts":            fonts,
		"scales":           certificate.Scales(),
		"weight":           fiber.Map{"min": certificate.MinWeight, "max": certificate.MaxWeight},
		"max_offset":       lim.MaxOffset,
		"max_name_length":  lim.MaxNameLength,
		"max_upload_bytes": lim.MaxUploadBytes,
		"formats":          []string{"png", "jpeg"},
	})
}
