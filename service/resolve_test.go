package service

import (
	"testing"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/iiif"
)

func TestResolveRegionFull(t *testing.T) {
	r, err := resolveRegion(iiif.Region{Kind: iiif.RegionFull}, 1000, 800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := codec.AbsoluteRegion{X: 0, Y: 0, W: 1000, H: 800}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestResolveRegionSquareCentersOnShorterAxis(t *testing.T) {
	r, err := resolveRegion(iiif.Region{Kind: iiif.RegionSquare}, 1000, 800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := codec.AbsoluteRegion{X: 100, Y: 0, W: 800, H: 800}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestResolveRegionPercentage(t *testing.T) {
	r, err := resolveRegion(iiif.Region{Kind: iiif.RegionPercentage, X: 10, Y: 10, W: 50, H: 50}, 1000, 800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := codec.AbsoluteRegion{X: 100, Y: 80, W: 500, H: 400}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestResolveRegionAbsoluteClipsToBounds(t *testing.T) {
	r, err := resolveRegion(iiif.Region{Kind: iiif.RegionAbsolute, X: 900, Y: 700, W: 500, H: 500}, 1000, 800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := codec.AbsoluteRegion{X: 900, Y: 700, W: 100, H: 100}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestResolveRegionOutOfBounds(t *testing.T) {
	_, err := resolveRegion(iiif.Region{Kind: iiif.RegionAbsolute, X: 1000, Y: 0, W: 10, H: 10}, 1000, 800)
	if !apperrors.IsCategory(err, apperrors.CategoryParse) {
		t.Fatalf("want CategoryParse error, got %v", err)
	}
}

func TestResolveSizeMax(t *testing.T) {
	region := codec.AbsoluteRegion{W: 400, H: 300}
	w, h, err := resolveSize(iiif.Size{Kind: iiif.ScaleMax}, region, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 400 || h != 300 {
		t.Fatalf("got (%d,%d), want (400,300)", w, h)
	}
}

func TestResolveSizeFixedWidthPreservesAspect(t *testing.T) {
	region := codec.AbsoluteRegion{W: 400, H: 200}
	w, h, err := resolveSize(iiif.Size{Kind: iiif.ScaleFixedWidth, W: 200}, region, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 200 || h != 100 {
		t.Fatalf("got (%d,%d), want (200,100)", w, h)
	}
}

func TestResolveSizeUpscaleRejectedByDefault(t *testing.T) {
	region := codec.AbsoluteRegion{W: 100, H: 100}
	_, _, err := resolveSize(iiif.Size{Kind: iiif.ScaleFixed, W: 200, H: 200}, region, 0)
	if !apperrors.IsCategory(err, apperrors.CategoryParse) {
		t.Fatalf("want upscale-disabled error, got %v", err)
	}
}

func TestResolveSizeUpscalePermittedWithFlag(t *testing.T) {
	region := codec.AbsoluteRegion{W: 100, H: 100}
	w, h, err := resolveSize(iiif.Size{Upscale: true, Kind: iiif.ScaleFixed, W: 200, H: 200}, region, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 200 || h != 200 {
		t.Fatalf("got (%d,%d), want (200,200)", w, h)
	}
}

func TestResolveSizeRespectsMaxDimension(t *testing.T) {
	region := codec.AbsoluteRegion{W: 4000, H: 3000}
	_, _, err := resolveSize(iiif.Size{Kind: iiif.ScaleMax}, region, 2000)
	if !apperrors.IsCategory(err, apperrors.CategoryParse) {
		t.Fatalf("want dimension-capped error, got %v", err)
	}
}

func TestResolveSizeAspectPreservingFitsInsideBox(t *testing.T) {
	region := codec.AbsoluteRegion{W: 800, H: 400}
	w, h, err := resolveSize(iiif.Size{Kind: iiif.ScaleAspectPreserving, W: 100, H: 100}, region, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 100 || h != 50 {
		t.Fatalf("got (%d,%d), want (100,50)", w, h)
	}
}
