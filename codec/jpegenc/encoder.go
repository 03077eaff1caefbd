// Package jpegenc is the C4 transcode pipeline's native encoder backend,
// adapted from the teacher's adapters/vips.Backend (the govips-backed
// Decoder+Encoder). That backend decoded and encoded the same bytes; here
// the pixel source is whatever codec.RegionDecoder produced (JPEG 2000,
// stdlib image formats, ...) and this package only ever encodes, applying
// the resize/mirror/rotate/grayscale steps the IIIF request demands before
// export (cropping is done by the region decoders).
//
// govips has no incremental/scanline export API, so Encode performs one
// full in-memory export and the caller (transcode) is responsible for
// chunking the result onto its bounded output queue — a deliberate
// departure from literal scanline streaming, documented in DESIGN.md.
package jpegenc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/iiif"
)

// BackendConfig configures the shared libvips runtime. Construct exactly
// one Backend per process and call Shutdown at exit, same lifecycle as
// the teacher's vips.Backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend encodes already-decoded pixels into one of the IIIF-requested
// output formats via libvips. Safe for concurrent use.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initializes libvips and returns a ready Backend.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// Options carries the geometry and quality parameters the transcode
// pipeline has already resolved from the IIIF request.
type Options struct {
	Width, Height int // target pixel size; 0,0 means keep the decoder's native output size
	RotateDegrees float64
	Mirror        bool
	Grayscale     bool
	Quality       int // 1-100; 0 = backend default
	Format        iiif.Format
}

// CanEncode reports whether this backend supports producing format; gif,
// tif, jp2, and pdf are accepted by the IIIF grammar but not implemented
// here (see DESIGN.md), and Encode returns a CategoryEncode error for
// them.
func (b *Backend) CanEncode(format iiif.Format) bool {
	switch format {
	case iiif.FormatJpg, iiif.FormatPng, iiif.FormatWebp:
		return true
	}
	return false
}

// Encode applies geometry transforms to src and returns the encoded
// bytes. It is CPU-bound and blocking; callers run it on the transcode
// pipeline's bounded encode-worker pool, never inline on a request
// goroutine.
func (b *Backend) Encode(ctx context.Context, src image.Image, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode", err)
	}
	if !b.CanEncode(opts.Format) {
		return nil, apperrors.New(apperrors.CategoryEncode, "jpegenc.encode", fmt.Errorf("unsupported output format: %s", opts.Format))
	}

	// Bridge from image.Image into libvips: encode to PNG in memory
	// (lossless, format-agnostic) and let vips decode it back into its
	// own pipeline. This mirrors the teacher's buffer-mediated handoff
	// in adapters/vips.Backend.Decode, just with the stdlib image
	// package standing in for the original encoded bytes.
	var bridge bytes.Buffer
	if err := png.Encode(&bridge, src); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.bridge", err)
	}

	ref, err := govips.NewImageFromBuffer(bridge.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.load", err)
	}
	defer ref.Close()

	if opts.Width > 0 && opts.Height > 0 && (opts.Width != ref.Width() || opts.Height != ref.Height()) {
		hScale := float64(opts.Width) / float64(ref.Width())
		vScale := float64(opts.Height) / float64(ref.Height())
		if err := ref.ResizeWithVScale(hScale, vScale, govips.KernelLanczos3); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.resize", err)
		}
	}

	if opts.Mirror {
		if err := ref.Flip(govips.DirectionHorizontal); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.mirror", err)
		}
	}
	if opts.RotateDegrees != 0 {
		if err := rotateArbitrary(ref, opts.RotateDegrees); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.rotate", err)
		}
	}
	if opts.Grayscale {
		if err := ref.ToColorSpace(govips.InterpretationBW); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.grayscale", err)
		}
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	switch opts.Format {
	case iiif.FormatJpg:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		buf, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.jpeg", err)
		}
		return buf, nil

	case iiif.FormatPng:
		ep := govips.NewPngExportParams()
		buf, _, err := ref.ExportPng(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.png", err)
		}
		return buf, nil

	case iiif.FormatWebp:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		buf, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpegenc.encode.webp", err)
		}
		return buf, nil

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "jpegenc.encode", fmt.Errorf("unsupported output format: %s", opts.Format))
	}
}

// rotateArbitrary rotates by the nearest supported right-angle when
// degrees is a multiple of 90, and falls back to vips' similarity
// transform (which resamples, unlike the lossless right-angle rotate)
// for arbitrary angles.
func rotateArbitrary(ref *govips.ImageRef, degrees float64) error {
	switch degrees {
	case 90:
		return ref.Rotate(govips.Angle90)
	case 180:
		return ref.Rotate(govips.Angle180)
	case 270:
		return ref.Rotate(govips.Angle270)
	case 0:
		return nil
	default:
		return ref.Similarity(1.0, degrees, &govips.ColorRGBA{R: 255, G: 255, B: 255, A: 0}, 0, 0)
	}
}
