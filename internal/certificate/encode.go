package certificate

import (
	"bytes"
	"errors"
	"image"
	"io/fs"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rs/xid"
)

// MIMEType is the content type of every encoded certificate.
const MIMEType = "image/png"

// Encode serializes img as PNG in memory.
func Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, newError(EncodeFailure, "nothing to encode", nil)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, newError(EncodeFailure, "encode png", err)
	}
	return buf.Bytes(), nil
}

// Spool materializes an encoded certificate through the filesystem. Each
// call writes to its own temp file named with a fresh xid and removes it
// before returning.
type Spool struct {
	// Dir is the parent directory; empty means os.TempDir().
	Dir string
}

// RoundTrip writes img as PNG to a unique temp file, reads it back and
// deletes the file on every exit path. A failed delete is reported as
// PersistFailure even if everything else succeeded.
func (s Spool) RoundTrip(img image.Image) (data []byte, err error) {
	if img == nil {
		return nil, newError(EncodeFailure, "nothing to encode", nil)
	}

	f, err := os.CreateTemp(s.Dir, "certificate-"+xid.New().String()+"-*.png")
	if err != nil {
		return nil, newError(PersistFailure, "create spool file", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			data = nil
			err = newError(PersistFailure, "remove spool file", rmErr)
		}
	}()

	if encErr := imaging.Encode(f, img, imaging.PNG); encErr != nil {
		f.Close()
		return nil, newError(EncodeFailure, "encode png", encErr)
	}
	if err := f.Close(); err != nil {
		return nil, newError(PersistFailure, "close spool file", err)
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, newError(PersistFailure, "read spool file", err)
	}
	return data, nil
}
