package service

import (
	"testing"

	"github.com/deepzoom/iiifd/codec"
)

func TestBuildInfoDocumentIncludesTilesWhenNative(t *testing.T) {
	info := codec.ImageInfo{Width: 1000, Height: 800, TileWidth: 256, TileHeight: 256, MaxResolutions: 3}
	doc := buildInfoDocument("https://example.org/iiif", "page1.jp2", info, 0, "")

	if len(doc.Tiles) != 1 {
		t.Fatalf("want 1 tile entry, got %d", len(doc.Tiles))
	}
	want := []int{1, 2, 4}
	for i, sf := range doc.Tiles[0].ScaleFactors {
		if sf != want[i] {
			t.Errorf("scaleFactors[%d] = %d, want %d", i, sf, want[i])
		}
	}
}

func TestBuildInfoDocumentIncludesSizesFromPreferredSizes(t *testing.T) {
	info := codec.ImageInfo{
		Width: 1024, Height: 768, MaxResolutions: 3,
		PreferredSizes: []codec.PreferredSize{{W: 1024, H: 768}, {W: 512, H: 384}, {W: 256, H: 192}},
	}
	doc := buildInfoDocument("https://example.org/iiif", "abcd1234", info, 0, "")

	want := []codec.PreferredSize{{W: 1024, H: 768}, {W: 512, H: 384}, {W: 256, H: 192}}
	if len(doc.Sizes) != len(want) {
		t.Fatalf("want %d sizes entries, got %d", len(want), len(doc.Sizes))
	}
	for i, w := range want {
		if doc.Sizes[i].Width != w.W || doc.Sizes[i].Height != w.H || doc.Sizes[i].Type != "Size" {
			t.Errorf("sizes[%d] = %+v, want {Size %d %d}", i, doc.Sizes[i], w.W, w.H)
		}
	}
}

func TestBuildInfoDocumentOmitsSizesWhenDecoderReportsNone(t *testing.T) {
	doc := buildInfoDocument("https://example.org/iiif", "page1.jp2", codec.ImageInfo{Width: 1000, Height: 800}, 0, "")
	if doc.Sizes != nil {
		t.Fatalf("want nil Sizes, got %+v", doc.Sizes)
	}
}

func TestBuildInfoDocumentOmitsTilesWithoutNativeGrid(t *testing.T) {
	info := codec.ImageInfo{Width: 1000, Height: 800}
	doc := buildInfoDocument("https://example.org/iiif", "page1.jp2", info, 0, "")
	if doc.Tiles != nil {
		t.Fatalf("want nil Tiles, got %+v", doc.Tiles)
	}
}

func TestBuildInfoDocumentID(t *testing.T) {
	doc := buildInfoDocument("https://example.org/iiif", "page1.jp2", codec.ImageInfo{}, 0, "")
	if doc.ID != "https://example.org/iiif/page1.jp2" {
		t.Errorf("ID = %q", doc.ID)
	}
}
