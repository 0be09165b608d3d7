package totp

import (
	"bytes"
	"errors"
	"image/png"

	"github.com/pquerna/otp"
)

// DefaultQRSize is the edge length in pixels of rendered QR codes.
const DefaultQRSize = 256

// QRRenderer rasterizes provisioning URIs into PNG images.
type QRRenderer struct {
	Size int
}

// Render encodes uri as a square PNG QR code.
func (r QRRenderer) Render(uri string) ([]byte, error) {
	size := r.Size
	if size <= 0 {
		size = DefaultQRSize
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, err
	}
	if key.Type() != "totp" {
		return nil, errors.New("provisioning uri is not a totp uri")
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
