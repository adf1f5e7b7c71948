package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certcenter/internal/certificate"
	u "certcenter/internal/utils"
)

func testCfg() u.Config {
	cfg := u.DefaultConfig()
	cfg.Render.MaxUploadBytes = 64 << 10
	return cfg
}

func testService(t *testing.T, cfg u.Config) *CertificateService {
	t.Helper()
	r, err := NewRendererFromConfig(cfg)
	require.NoError(t, err)
	return NewCertificateService(cfg, r)
}

func templatePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, fields map[string]string, template []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if template != nil {
		part, err := w.CreateFormFile("template", "template.png")
		require.NoError(t, err)
		_, err = part.Write(template)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Kind    string `json:"kind"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleRender_Success(t *testing.T) {
	svc := testService(t, testCfg())
	app := fiber.New()
	app.Post("/certificate", svc.HandleRender)

	req := multipartRequest(t, "/certificate", map[string]string{
		"name":   "Jane O'Brien!!",
		"font":   "Hand-writing style font",
		"scale":  "2.5",
		"weight": "3",
		"x":      "-40",
		"y":      "25",
	}, templatePNG(t, 500, 300))

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Jane_OBrien_certificate.png"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "500", resp.Header.Get("X-Certificate-Width"))
	assert.Equal(t, "300", resp.Header.Get("X-Certificate-Height"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestHandleRender_InlineDisposition(t *testing.T) {
	svc := testService(t, testCfg())
	app := fiber.New()
	app.Post("/certificate", svc.HandleRender)

	req := multipartRequest(t, "/certificate?inline=true", map[string]string{"name": "???"}, templatePNG(t, 50, 20))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `inline; filename="certificate.png"`, resp.Header.Get("Content-Disposition"))
}

func TestHandleRender_Rejections(t *testing.T) {
	cfg := testCfg()
	svc := testService(t, cfg)
	app := fiber.New()
	app.Post("/certificate", svc.HandleRender)

	valid := templatePNG(t, 40, 20)
	tests := []struct {
		name     string
		fields   map[string]string
		template []byte
		code     int
		kind     string
	}{
		{"missing name", map[string]string{}, valid, fiber.StatusBadRequest, "InvalidName"},
		{"long name", map[string]string{"name": strings.Repeat("n", 101)}, valid, fiber.StatusBadRequest, "InvalidName"},
		{"x out of range", map[string]string{"name": "A", "x": "5001"}, valid, fiber.StatusBadRequest, "InvalidCoordinate"},
		{"unknown font", map[string]string{"name": "A", "font": "gothic"}, valid, fiber.StatusBadRequest, "InvalidFont"},
		{"bad scale", map[string]string{"name": "A", "scale": "9"}, valid, fiber.StatusBadRequest, "InvalidScale"},
		{"bad weight", map[string]string{"name": "A", "weight": "6"}, valid, fiber.StatusBadRequest, "InvalidWeight"},
		{"no upload", map[string]string{"name": "A"}, nil, fiber.StatusBadRequest, "InvalidUpload"},
		{"empty upload", map[string]string{"name": "A"}, []byte{}, fiber.StatusBadRequest, "InvalidUpload"},
		{"oversized upload", map[string]string{"name": "A"}, make([]byte, cfg.Render.MaxUploadBytes+1), fiber.StatusRequestEntityTooLarge, "InvalidUpload"},
		{"not an image", map[string]string{"name": "A"}, []byte("not-an-image"), fiber.StatusUnprocessableEntity, "DecodeFailure"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(multipartRequest(t, "/certificate", tc.fields, tc.template), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.kind, body.Error.Kind)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestHandleRender_SpoolLeavesNoFiles(t *testing.T) {
	cfg := testCfg()
	cfg.Render.SpoolToDisk = true
	cfg.Render.SpoolDir = t.TempDir()
	svc := testService(t, cfg)
	app := fiber.New()
	app.Post("/certificate", svc.HandleRender)

	ok := multipartRequest(t, "/certificate", map[string]string{"name": "Alan"}, templatePNG(t, 120, 60))
	resp, err := app.Test(ok, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	bad := multipartRequest(t, "/certificate", map[string]string{"name": "Alan"}, []byte("junk"))
	resp, err = app.Test(bad, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	entries, err := os.ReadDir(cfg.Render.SpoolDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleFonts(t *testing.T) {
	svc := testService(t, testCfg())
	app := fiber.New()
	app.Get("/fonts", svc.HandleFonts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fonts", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Fonts []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"fonts"`
		Scales    []float64 `json:"scales"`
		MaxOffset float64   `json:"max_offset"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Fonts, 8)
	assert.Equal(t, "sans", body.Fonts[0].Key)
	assert.Equal(t, "Normal size sans-serif font", body.Fonts[0].Label)
	assert.Len(t, body.Scales, 14)
	assert.Equal(t, 5000.0, body.MaxOffset)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&certificate.Error{Kind: certificate.InvalidName}, fiber.StatusBadRequest},
		{&certificate.Error{Kind: certificate.InvalidUpload, Err: certificate.ErrUploadTooLarge}, fiber.StatusRequestEntityTooLarge},
		{&certificate.Error{Kind: certificate.DecodeFailure}, fiber.StatusUnprocessableEntity},
		{&certificate.Error{Kind: certificate.RenderFailure}, fiber.StatusInternalServerError},
		{&certificate.Error{Kind: certificate.PersistFailure}, fiber.StatusInternalServerError},
		{context.Canceled, fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}

func TestLimitsFromConfig(t *testing.T) {
	lim := LimitsFromConfig(u.DefaultConfig().Render)
	assert.Equal(t, certificate.DefaultLimits(), lim)
}
