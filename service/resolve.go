package service

import (
	"math"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/iiif"
)

// resolveRegion turns the IIIF region grammar into absolute pixel
// coordinates clamped to the source image, per spec §4.1's region
// semantics: "square" centers the largest possible square on the longer
// axis, percentages are fractions of the full source dimensions, and any
// resolved rectangle extending past the source bounds is clipped rather
// than rejected — except when clipping would leave nothing (x/y already
// at or past the source edge), which is an error.
func resolveRegion(r iiif.Region, sourceW, sourceH int) (codec.AbsoluteRegion, error) {
	var rect codec.AbsoluteRegion

	switch r.Kind {
	case iiif.RegionFull:
		rect = codec.AbsoluteRegion{X: 0, Y: 0, W: sourceW, H: sourceH}

	case iiif.RegionSquare:
		side := sourceW
		if sourceH < side {
			side = sourceH
		}
		rect = codec.AbsoluteRegion{
			X: (sourceW - side) / 2,
			Y: (sourceH - side) / 2,
			W: side,
			H: side,
		}

	case iiif.RegionPercentage:
		rect = codec.AbsoluteRegion{
			X: int(r.X / 100 * float64(sourceW)),
			Y: int(r.Y / 100 * float64(sourceH)),
			W: int(math.Ceil(r.W / 100 * float64(sourceW))),
			H: int(math.Ceil(r.H / 100 * float64(sourceH))),
		}

	case iiif.RegionAbsolute:
		rect = codec.AbsoluteRegion{X: int(r.X), Y: int(r.Y), W: int(r.W), H: int(r.H)}
	}

	if rect.X >= sourceW || rect.Y >= sourceH {
		return codec.AbsoluteRegion{}, apperrors.New(apperrors.CategoryParse, "resolve_region", apperrors.ErrRegionOutOfBounds)
	}

	if rect.X+rect.W > sourceW {
		rect.W = sourceW - rect.X
	}
	if rect.Y+rect.H > sourceH {
		rect.H = sourceH - rect.Y
	}
	if rect.W <= 0 || rect.H <= 0 {
		return codec.AbsoluteRegion{}, apperrors.New(apperrors.CategoryParse, "resolve_region", apperrors.ErrEmptyRegion)
	}

	return rect, nil
}

// resolveSize turns the IIIF size grammar plus the resolved region into a
// target pixel size, honoring the upscale flag (spec §4.2: a "^" prefix
// permits the output to exceed the region's dimensions; without it, any
// computed size larger than the region is an error rather than silently
// clamped, since silently downgrading a client's explicit request would
// violate the format's "what you ask for is what you get" contract).
// maxDimension caps both axes when positive (spec §5's configured size
// limit); 0 disables the cap.
func resolveSize(s iiif.Size, region codec.AbsoluteRegion, maxDimension int) (int, int, error) {
	var w, h int

	switch s.Kind {
	case iiif.ScaleMax:
		w, h = region.W, region.H

	case iiif.ScalePercentage:
		w = int(math.Round(float64(region.W) * s.Percent / 100))
		h = int(math.Round(float64(region.H) * s.Percent / 100))

	case iiif.ScaleFixedWidth:
		w = int(s.W)
		h = int(math.Round(float64(region.H) * float64(w) / float64(region.W)))

	case iiif.ScaleFixedHeight:
		h = int(s.H)
		w = int(math.Round(float64(region.W) * float64(h) / float64(region.H)))

	case iiif.ScaleFixed:
		w, h = int(s.W), int(s.H)

	case iiif.ScaleAspectPreserving:
		wantW, wantH := float64(s.W), float64(s.H)
		scale := math.Min(wantW/float64(region.W), wantH/float64(region.H))
		w = int(math.Round(float64(region.W) * scale))
		h = int(math.Round(float64(region.H) * scale))
	}

	if w <= 0 || h <= 0 {
		return 0, 0, apperrors.New(apperrors.CategoryParse, "resolve_size", apperrors.ErrZeroDimension)
	}

	if !s.Upscale && (w > region.W || h > region.H) {
		return 0, 0, apperrors.New(apperrors.CategoryParse, "resolve_size", apperrors.ErrUpscaleDisabled)
	}

	if maxDimension > 0 && (w > maxDimension || h > maxDimension) {
		return 0, 0, apperrors.New(apperrors.CategoryParse, "resolve_size", apperrors.ErrDimensionCapped)
	}

	return w, h, nil
}
