package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := SaveJPEG(img, path, 90); err != nil {
		t.Fatalf("SaveJPEG failed: %v", err)
	}
	return path
}

func TestCollage_EmptyInputIsNoop(t *testing.T) {
	img, err := Collage(nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Collage(nil) error: %v", err)
	}
	if img != nil {
		t.Fatal("Collage(nil) should return a nil image")
	}
}

func TestCollage_Layout(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		{Path: writeJPEG(t, dir, "a.jpg", solidImage(400, 300, color.RGBA{200, 40, 40, 255})), Clock: "09:15"},
		{Path: writeJPEG(t, dir, "b.jpg", solidImage(800, 600, color.RGBA{40, 200, 40, 255})), Clock: "14:02"},
		{Path: writeJPEG(t, dir, "c.jpg", solidImage(200, 100, color.RGBA{40, 40, 200, 255})), Clock: "18:40"},
	}
	opts := Options{PanelWidth: 300, Padding: 10}

	strip, err := Collage(items, opts)
	if err != nil {
		t.Fatalf("Collage failed: %v", err)
	}

	if got := strip.Bounds().Dx(); got != 300+2*10 {
		t.Errorf("width = %d, want %d", got, 320)
	}
	// Panels scale to 300 wide keeping aspect: 225 + 225 + 150 high,
	// plus four padding bands.
	wantH := 10 + 225 + 10 + 225 + 10 + 150 + 10
	if got := strip.Bounds().Dy(); got != wantH {
		t.Errorf("height = %d, want %d", got, wantH)
	}
}

func TestCollage_Deterministic(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		{Path: writeJPEG(t, dir, "a.jpg", solidImage(300, 200, color.RGBA{10, 120, 240, 255})), Clock: "08:00"},
		{Path: writeJPEG(t, dir, "b.jpg", solidImage(300, 200, color.RGBA{240, 120, 10, 255})), Clock: "20:30"},
	}
	opts := Options{PanelWidth: 200, Padding: 8}

	first, err := Collage(items, opts)
	if err != nil {
		t.Fatalf("Collage failed: %v", err)
	}
	second, err := Collage(items, opts)
	if err != nil {
		t.Fatalf("Collage failed: %v", err)
	}

	var a, b bytes.Buffer
	if err := jpeg.Encode(&a, first, nil); err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(&b, second, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("same ordered input must produce identical strips")
	}
}

func TestCollage_MissingFile(t *testing.T) {
	_, err := Collage([]Item{{Path: "/nonexistent/frame.jpg"}}, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for unreadable panel")
	}
}

func TestEncodeJPEGUnder_RespectsCap(t *testing.T) {
	// Noise-free solid images compress tiny; use a gradient to add entropy.
	img := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	for x := 0; x < 1200; x++ {
		for y := 0; y < 900; y++ {
			img.Set(x, y, color.RGBA{uint8(x * y % 251), uint8(x % 256), uint8(y % 256), 255})
		}
	}

	const maxBytes = 64 * 1024
	b, err := EncodeJPEGUnder(img, maxBytes)
	if err != nil {
		t.Fatalf("EncodeJPEGUnder failed: %v", err)
	}
	if len(b) > maxBytes {
		t.Errorf("encoded %d bytes, cap %d", len(b), maxBytes)
	}
	if _, err := jpeg.Decode(bytes.NewReader(b)); err != nil {
		t.Errorf("output not a valid JPEG: %v", err)
	}
}

func TestEncodeFileUnder(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "in.jpg", solidImage(640, 480, color.RGBA{90, 90, 90, 255}))

	b, err := EncodeFileUnder(path, 512*1024)
	if err != nil {
		t.Fatalf("EncodeFileUnder failed: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("empty output")
	}

	if _, err := EncodeFileUnder(filepath.Join(dir, "missing.jpg"), 1024); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte{0xff, 0xd8, 0xff})
	const prefix = "data:image/jpeg;base64,"
	if uri[:len(prefix)] != prefix {
		t.Errorf("uri = %q", uri)
	}
}

func TestSaveJPEG_BadPath(t *testing.T) {
	err := SaveJPEG(solidImage(10, 10, color.RGBA{}), "/nonexistent/dir/out.jpg", 90)
	if err == nil {
		t.Error("expected error for unwritable path")
	}
}
