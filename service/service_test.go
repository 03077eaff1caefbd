package service

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/codec/jpegenc"
	"github.com/deepzoom/iiifd/config"
	"github.com/deepzoom/iiifd/iiif"
	"github.com/deepzoom/iiifd/storage"
	"github.com/deepzoom/iiifd/transcode"
)

// fakeJP2Bytes carries a real JP2 signature box so codec.DetectFormat
// resolves it the same way it would a genuine source file, independent of
// whatever name the request uses.
var fakeJP2Bytes = string([]byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20, 0x0D, 0x0A, 0x87, 0x0A}) + "rest-of-fake-jp2-bytes"

type fakeAdapter struct {
	obj *storage.Object
	err error
}

func (f *fakeAdapter) Open(ctx context.Context, identifier string) (*storage.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Object{
		Name:         f.obj.Name,
		Size:         f.obj.Size,
		LastModified: f.obj.LastModified,
		Content:      io.NopCloser(strings.NewReader(fakeJP2Bytes)),
	}, nil
}

func (f *fakeAdapter) Stat(ctx context.Context, identifier string) (*storage.Object, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Object{Name: f.obj.Name, Size: f.obj.Size, LastModified: f.obj.LastModified}, nil
}

type fakeDecoder struct {
	info codec.ImageInfo
}

func (d *fakeDecoder) Info(ctx context.Context, r io.Reader) (codec.ImageInfo, error) {
	return d.info, nil
}

func (d *fakeDecoder) OpenRegion(ctx context.Context, r io.Reader, region codec.AbsoluteRegion, scaledTo codec.PreferredSize) (codec.RegionDecoder, error) {
	return &fakeRegionDecoder{w: region.W, h: region.H}, nil
}

type fakeRegionDecoder struct {
	w, h int
	row  int
}

func (f *fakeRegionDecoder) OutputSize() (int, int) { return f.w, f.h }

func (f *fakeRegionDecoder) ChunkHeight() int { return f.h }

func (f *fakeRegionDecoder) DecodeInto(ctx context.Context, buf []byte) (int, bool, error) {
	if f.row >= f.h {
		return 0, true, nil
	}
	img := &image.RGBA{Pix: buf, Stride: f.w * 4, Rect: image.Rect(0, 0, f.w, f.h)}
	img.Set(0, 0, color.RGBA{R: 1, A: 255})
	f.row = f.h
	return f.w * f.h * 4, true, nil
}

type fakeEncoder struct{}

func (fakeEncoder) CanEncode(iiif.Format) bool { return true }

func (fakeEncoder) Encode(ctx context.Context, src image.Image, opts jpegenc.Options) ([]byte, error) {
	return []byte("encoded-bytes"), nil
}

func newTestService(t *testing.T, lastModified time.Time) *Service {
	t.Helper()
	registry := codec.NewRegistry()
	registry.Register("jp2", &fakeDecoder{info: codec.ImageInfo{Width: 1000, Height: 800}})

	return &Service{
		Storage: &fakeAdapter{obj: &storage.Object{Name: "page1.jp2", Size: 14, LastModified: lastModified}},
		Decoders: registry,
		Pipeline: transcode.New(fakeEncoder{}, transcode.Config{}),
		Config:   config.Default(),
	}
}

func TestCallInfoDocument(t *testing.T) {
	s := newTestService(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	req := &iiif.Request{Identifier: "page1.jp2", Kind: iiif.KindInfo}

	resp, err := s.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.ContentType != "application/ld+json" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.InfoJSON, &doc); err != nil {
		t.Fatalf("invalid info.json: %v", err)
	}
	if doc["width"].(float64) != 1000 {
		t.Errorf("width = %v, want 1000", doc["width"])
	}
}

func TestCallImageStreamsBody(t *testing.T) {
	s := newTestService(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	req := &iiif.Request{
		Identifier: "page1.jp2",
		Kind:       iiif.KindImage,
		Parameters: iiif.Parameters{
			Region:  iiif.Region{Kind: iiif.RegionFull},
			Size:    iiif.Size{Kind: iiif.ScaleMax},
			Format:  iiif.FormatJpg,
			Quality: iiif.QualityDefault,
		},
	}

	resp, err := s.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(got) != "encoded-bytes" {
		t.Errorf("body = %q, want encoded-bytes", got)
	}
}

func TestCallNotModifiedShortCircuits(t *testing.T) {
	modTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestService(t, modTime)

	after := modTime.Add(time.Hour)
	req := &iiif.Request{Identifier: "page1.jp2", Kind: iiif.KindInfo, LastAccessTime: &after}

	resp, err := s.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.NotModified {
		t.Error("want NotModified response")
	}
}

func TestCallResolvesDecoderFromContentForExtensionlessIdentifier(t *testing.T) {
	s := newTestService(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Storage = &fakeAdapter{obj: &storage.Object{Name: "abcd1234", Size: 14, LastModified: time.Now()}}
	req := &iiif.Request{Identifier: "abcd1234", Kind: iiif.KindInfo}

	resp, err := s.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(resp.InfoJSON, &doc); err != nil {
		t.Fatalf("invalid info.json: %v", err)
	}
	if doc["width"].(float64) != 1000 {
		t.Errorf("width = %v, want 1000", doc["width"])
	}
}

func TestCallNotFound(t *testing.T) {
	s := newTestService(t, time.Time{})
	s.Storage = &fakeAdapter{err: apperrors.New(apperrors.CategoryNotFound, "stat", apperrors.ErrNotFound)}

	_, err := s.Call(context.Background(), &iiif.Request{Identifier: "missing.jp2", Kind: iiif.KindInfo})
	if !apperrors.IsCategory(err, apperrors.CategoryNotFound) {
		t.Fatalf("want CategoryNotFound, got %v", err)
	}
}
