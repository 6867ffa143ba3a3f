package decode

import (
	"image"
	"testing"

	qrgen "github.com/skip2/go-qrcode"
)

// qrImage renders a QR symbol carrying the given payload.
func qrImage(t *testing.T, payload string) image.Image {
	t.Helper()
	qr, err := qrgen.New(payload, qrgen.Medium)
	if err != nil {
		t.Fatalf("generating QR fixture: %v", err)
	}
	return qr.Image(256)
}

func TestDecodeRoundTrip(t *testing.T) {
	d := NewQRDecoder()

	payloads := []string{
		"LOC-ab3D9kX7Q2mN",
		"https://app.example/location/LOC-ab3D9kX7Q2mN",
	}
	for _, want := range payloads {
		got, ok := d.Decode(qrImage(t, want))
		if !ok {
			t.Errorf("Decode found no symbol for payload %q", want)
			continue
		}
		if got != want {
			t.Errorf("Decode = %q, want %q", got, want)
		}
	}
}

func TestDecodeBlankFrame(t *testing.T) {
	d := NewQRDecoder()

	blank := image.NewGray(image.Rect(0, 0, 128, 128))
	if got, ok := d.Decode(blank); ok {
		t.Errorf("Decode found %q in a blank frame", got)
	}
	if _, ok := d.Decode(nil); ok {
		t.Error("Decode reported a symbol in a nil frame")
	}
}

func TestParseFrame(t *testing.T) {
	png, err := qrgen.Encode("LOC-ab3D9kX7Q2mN", qrgen.Medium, 256)
	if err != nil {
		t.Fatalf("generating PNG fixture: %v", err)
	}

	img, err := ParseFrame(png)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("frame width = %d, want 256", img.Bounds().Dx())
	}

	if _, err := ParseFrame([]byte("junk")); err == nil {
		t.Error("ParseFrame accepted non-image bytes")
	}
}
