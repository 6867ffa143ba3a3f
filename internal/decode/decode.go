// Package decode extracts QR payloads from captured frames.
package decode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // frame formats accepted from capture devices
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts a symbol payload from a frame. A frame with no readable
// symbol is a normal outcome, not an error, so Decode reports it with the
// second return value.
type Decoder interface {
	Decode(img image.Image) (payload string, ok bool)
}

// QRDecoder decodes QR symbols. The zero value is not usable; construct with
// NewQRDecoder.
type QRDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder creates a QR decoder tuned for label scanning. TRY_HARDER
// trades a little CPU per frame for tolerance of blur and skew.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode scans the frame for a QR symbol and returns its text payload.
// Any decode failure means the frame held no readable symbol.
func (d *QRDecoder) Decode(img image.Image) (string, bool) {
	if img == nil {
		return "", false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil || result == nil {
		return "", false
	}
	return result.GetText(), true
}

// ParseFrame decodes raw PNG or JPEG frame bytes into an image.
func ParseFrame(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame image: %w", err)
	}
	return img, nil
}
