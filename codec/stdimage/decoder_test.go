package stdimage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/deepzoom/iiifd/codec"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

// decodeAll drains a RegionDecoder through repeated DecodeInto calls and
// assembles the result into an *image.RGBA, mirroring what the transcode
// pipeline's encode worker does with the streamed chunks.
func decodeAll(t *testing.T, rd codec.RegionDecoder) *image.RGBA {
	t.Helper()
	w, h := rd.OutputSize()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := make([]byte, w*rd.ChunkHeight()*4)
	offset := 0
	for {
		n, done, err := rd.DecodeInto(context.Background(), buf)
		if err != nil {
			t.Fatalf("DecodeInto: %v", err)
		}
		offset += copy(img.Pix[offset:], buf[:n])
		if done {
			break
		}
	}
	return img
}

func TestInfoReportsDimensions(t *testing.T) {
	raw := encodeTestJPEG(t, 200, 100)
	d := New(JPEG)
	info, err := d.Info(context.Background(), bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Width != 200 || info.Height != 100 {
		t.Fatalf("got %dx%d, want 200x100", info.Width, info.Height)
	}
	if info.MaxResolutions != 1 {
		t.Errorf("MaxResolutions = %d, want 1", info.MaxResolutions)
	}
}

func TestOpenRegionCropsToRequestedArea(t *testing.T) {
	raw := encodeTestPNG(t, 100, 100)
	d := New(PNG)

	rd, err := d.OpenRegion(context.Background(), bytes.NewReader(raw),
		codec.AbsoluteRegion{X: 10, Y: 10, W: 40, H: 20}, codec.PreferredSize{})
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	w, h := rd.OutputSize()
	if w != 40 || h != 20 {
		t.Fatalf("OutputSize() = (%d,%d), want (40,20)", w, h)
	}

	img := decodeAll(t, rd)
	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 20 {
		t.Fatalf("decoded size = %dx%d, want 40x20", bounds.Dx(), bounds.Dy())
	}
}

func TestOpenRegionResamplesToPreferredSize(t *testing.T) {
	raw := encodeTestPNG(t, 100, 100)
	d := New(PNG)

	rd, err := d.OpenRegion(context.Background(), bytes.NewReader(raw),
		codec.AbsoluteRegion{X: 0, Y: 0, W: 100, H: 100}, codec.PreferredSize{W: 25, H: 25})
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}

	img := decodeAll(t, rd)
	bounds := img.Bounds()
	if bounds.Dx() != 25 || bounds.Dy() != 25 {
		t.Fatalf("decoded size = %dx%d, want 25x25", bounds.Dx(), bounds.Dy())
	}
}

func TestDecodeIntoStreamsMultipleChunks(t *testing.T) {
	raw := encodeTestPNG(t, 64, 50)
	d := New(PNG)

	rd, err := d.OpenRegion(context.Background(), bytes.NewReader(raw),
		codec.AbsoluteRegion{X: 0, Y: 0, W: 64, H: 50}, codec.PreferredSize{})
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	if rd.ChunkHeight() != chunkHeight {
		t.Fatalf("ChunkHeight() = %d, want %d", rd.ChunkHeight(), chunkHeight)
	}

	buf := make([]byte, 64*rd.ChunkHeight()*4)
	calls := 0
	totalBytes := 0
	for {
		n, done, err := rd.DecodeInto(context.Background(), buf)
		if err != nil {
			t.Fatalf("DecodeInto: %v", err)
		}
		calls++
		totalBytes += n
		if done {
			break
		}
		if calls > 10 {
			t.Fatal("DecodeInto never reported done")
		}
	}
	if calls < 2 {
		t.Fatalf("want multiple DecodeInto calls for a 50-row image chunked at %d rows, got %d", chunkHeight, calls)
	}
	if want := 64 * 50 * 4; totalBytes != want {
		t.Fatalf("totalBytes = %d, want %d", totalBytes, want)
	}
}
