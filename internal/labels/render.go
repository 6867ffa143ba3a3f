package labels

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered label edge length in pixels when the
// configuration does not specify one.
const DefaultSize = 512

// Render produces a PNG QR label encoding the given payload. Medium error
// correction keeps the symbol scannable on worn or partly occluded labels
// without inflating module count.
func Render(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("label payload must not be empty")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding label: %w", err)
	}
	return png, nil
}
