// Package stdimage implements codec.Decoder for source images already in
// a single-resolution, non-tiled format — JPEG, PNG, and (lossy) WebP —
// adapted from the teacher's adapters/decoder package, which held one
// CanDecode/Decode pair per format behind core.Decoder. That interface
// decoded a whole image in one call with no notion of region or
// resolution level; here OpenRegion crops with image/draw after a full
// decode, since none of these formats carry JPEG 2000's internal
// resolution pyramid.
package stdimage

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
)

// Format selects which standard decoder JPEG, PNG, or WebP to use.
type Format int

const (
	JPEG Format = iota
	PNG
	WebP
)

// Decoder adapts the stdlib image/jpeg, image/png, and golang.org/x/image/webp
// decoders to codec.Decoder. Unlike jp2.Decoder there is no native
// resolution pyramid to exploit, so OpenRegion always decodes the full
// image and crops/resamples in software.
type Decoder struct {
	format Format
}

// New creates a Decoder for the given source format.
func New(format Format) *Decoder { return &Decoder{format: format} }

func (d *Decoder) decode(r io.Reader) (image.Image, error) {
	switch d.format {
	case JPEG:
		return jpeg.Decode(r)
	case PNG:
		return png.Decode(r)
	case WebP:
		// golang.org/x/image/webp only decodes lossy WebP, matching the
		// teacher's adapters/decoder/webp.go note; lossless/animated
		// WebP sources are rejected with CategoryDecode below.
		return webp.Decode(r)
	default:
		return nil, fmt.Errorf("stdimage: unknown format %d", d.format)
	}
}

func (d *Decoder) Info(ctx context.Context, r io.Reader) (codec.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return codec.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "stdimage.info", err)
	}
	img, err := d.decode(r)
	if err != nil {
		return codec.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "stdimage.info", err)
	}
	bounds := img.Bounds()
	return codec.ImageInfo{
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		MaxResolutions: 1,
		PreferredSizes: []codec.PreferredSize{{W: bounds.Dx(), H: bounds.Dy()}},
	}, nil
}

// chunkHeight is always the 16-row fallback: none of these formats carry
// a native tile grid for DecodeInto's band size to follow.
const chunkHeight = 16

type regionDecoder struct {
	full    image.Image
	area    image.Rectangle
	targetW int
	targetH int

	// cropped and row are DecodeInto's cursor state, built once on the
	// first call and then drained one scanline band at a time.
	cropped image.Image
	row     int
}

func (d *Decoder) OpenRegion(ctx context.Context, r io.Reader, region codec.AbsoluteRegion, scaledTo codec.PreferredSize) (codec.RegionDecoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "stdimage.open_region", err)
	}
	img, err := d.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "stdimage.open_region", err)
	}

	targetW, targetH := region.W, region.H
	if scaledTo.W > 0 && scaledTo.H > 0 {
		targetW, targetH = scaledTo.W, scaledTo.H
	}

	return &regionDecoder{
		full:    img,
		area:    image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H),
		targetW: targetW,
		targetH: targetH,
	}, nil
}

func (rd *regionDecoder) OutputSize() (int, int) { return rd.targetW, rd.targetH }

func (rd *regionDecoder) ChunkHeight() int { return chunkHeight }

// prepare crops and resamples the full source image to the final output
// geometry exactly once; image/draw and golang.org/x/image/draw offer no
// scanline-incremental entry points, so DecodeInto streams off this cached
// result instead of the raw format.
func (rd *regionDecoder) prepare() {
	cropped := image.NewRGBA(image.Rect(0, 0, rd.area.Dx(), rd.area.Dy()))
	draw.Draw(cropped, cropped.Bounds(), rd.full, rd.area.Min, draw.Src)

	if rd.targetW <= 0 || rd.targetH <= 0 || (rd.targetW == cropped.Bounds().Dx() && rd.targetH == cropped.Bounds().Dy()) {
		rd.cropped = cropped
		rd.targetW, rd.targetH = cropped.Bounds().Dx(), cropped.Bounds().Dy()
		return
	}

	resized := image.NewRGBA(image.Rect(0, 0, rd.targetW, rd.targetH))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), cropped, cropped.Bounds(), xdraw.Src, nil)
	rd.cropped = resized
}

func (rd *regionDecoder) DecodeInto(ctx context.Context, buf []byte) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, apperrors.Wrap(apperrors.CategoryDecode, "stdimage.decode", err)
	}

	if rd.cropped == nil {
		rd.prepare()
	}

	if rd.row >= rd.targetH {
		return 0, true, nil
	}

	rows := chunkHeight
	if rd.row+rows > rd.targetH {
		rows = rd.targetH - rd.row
	}

	dst := &image.RGBA{Pix: buf, Stride: rd.targetW * 4, Rect: image.Rect(0, 0, rd.targetW, rows)}
	draw.Draw(dst, dst.Bounds(), rd.cropped, image.Pt(0, rd.row), draw.Src)

	n := rows * rd.targetW * 4
	rd.row += rows
	return n, rd.row >= rd.targetH, nil
}
