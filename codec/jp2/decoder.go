// Package jp2 implements codec.Decoder for JPEG 2000 sources using the
// pure-Go github.com/mrjoshuak/go-jpeg2000 codec — no cgo, no libopenjpeg
// system dependency. Resolution-level selection below is grounded on the
// cgo openjpeg wrapper's desiredProgressionLevel logic: pick the coarsest
// resolution level whose dimensions still meet or exceed the requested
// output size, so the decoder does most of the downscaling instead of a
// software resize of the full-resolution image.
package jp2

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
	xdraw "golang.org/x/image/draw"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
)

// minChunkRows is the floor on DecodeInto's scanline band height when the
// source carries no tile grid as wide as the output, matching the "16
// rows otherwise" fallback.
const minChunkRows = 16

// Decoder adapts jpeg2000.Decode/DecodeMetadata to codec.Decoder. The
// underlying library decodes a whole io.Reader per call and does not
// expose incremental/seekable access, so OpenRegion buffers the source
// once and reuses the buffer for both metadata and pixel decode.
type Decoder struct{}

// New creates a JPEG 2000 Decoder.
func New() *Decoder { return &Decoder{} }

func (d *Decoder) Info(ctx context.Context, r io.Reader) (codec.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return codec.ImageInfo{}, apperrors.Wrap(apperrors.CategoryDecode, "jp2.info", err)
	}

	meta, err := jpeg2000.DecodeMetadata(r)
	if err != nil {
		return codec.ImageInfo{}, apperrors.New(apperrors.CategoryDecode, "jp2.info", fmt.Errorf("reading jp2 metadata: %w", err))
	}

	levels := dwtLevels(meta.NumResolutions)
	return codec.ImageInfo{
		Width:          meta.Width,
		Height:         meta.Height,
		TileWidth:      meta.TileWidth,
		TileHeight:     meta.TileHeight,
		MaxResolutions: levels,
		PreferredSizes: preferredSizes(meta.Width, meta.Height, levels),
	}, nil
}

// preferredSizes lists the whole-image dimensions available at each DWT
// reduction level, full resolution first, matching the halving
// reducedDimensions already applies to regions.
func preferredSizes(width, height, levels int) []codec.PreferredSize {
	sizes := make([]codec.PreferredSize, 0, levels)
	for reduce := 0; reduce < levels; reduce++ {
		w, h := reducedDimensions(width, height, reduce)
		sizes = append(sizes, codec.PreferredSize{W: w, H: h})
	}
	return sizes
}

// dwtLevels normalizes NumResolutions (resolution levels including the
// base) to a minimum of 1 so callers never divide by zero when a decoder
// can't report multi-resolution support.
func dwtLevels(numResolutions int) int {
	if numResolutions < 1 {
		return 1
	}
	return numResolutions
}

type regionDecoder struct {
	source []byte
	area   image.Rectangle
	reduce int
	outW   int // dimensions the decoder itself will produce, at reduce DWT levels
	outH   int
	// targetW/targetH are the exact pixel size the IIIF request asked for.
	// The DWT reduction above only gets within a power of two of this, so
	// decodeFull applies a final precise resample when they differ.
	targetW int
	targetH int

	chunkHeight int

	// img and row are DecodeInto's cursor state: the underlying codec
	// decodes the whole region in one call (decodeFull), and DecodeInto
	// hands it to the caller one scanline band at a time.
	img image.Image
	row int
}

func (d *Decoder) OpenRegion(ctx context.Context, r io.Reader, region codec.AbsoluteRegion, scaledTo codec.PreferredSize) (codec.RegionDecoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jp2.open_region", err)
	}

	source, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jp2.open_region.read", err)
	}

	meta, err := jpeg2000.DecodeMetadata(bytes.NewReader(source))
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "jp2.open_region", fmt.Errorf("reading jp2 metadata: %w", err))
	}

	reduce := selectReduction(region.W, region.H, scaledTo.W, scaledTo.H, dwtLevels(meta.NumResolutions))
	outW, outH := reducedDimensions(region.W, region.H, reduce)

	targetW, targetH := outW, outH
	if scaledTo.W > 0 && scaledTo.H > 0 {
		targetW, targetH = scaledTo.W, scaledTo.H
	}

	return &regionDecoder{
		source:      source,
		area:        image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H),
		reduce:      reduce,
		outW:        outW,
		outH:        outH,
		targetW:     targetW,
		targetH:     targetH,
		chunkHeight: chunkHeightFor(meta.TileWidth, meta.TileHeight, meta.Width, reduce),
	}, nil
}

// chunkHeightFor picks DecodeInto's scanline band height: the tile's own
// height, reduced the same number of DWT levels as the region, when the
// tile grid spans the full source width (so a band never straddles a
// tile-column boundary); 16 rows otherwise.
func chunkHeightFor(tileWidth, tileHeight, fullWidth, reduce int) int {
	if tileWidth > 0 && tileHeight > 0 && tileWidth == fullWidth {
		if _, th := reducedDimensions(tileWidth, tileHeight, reduce); th > 0 {
			return th
		}
	}
	return minChunkRows
}

// selectReduction picks the largest resolution-reduction factor (number
// of DWT levels to skip) that still produces an image at least as large
// as the requested target, bounded by the format's available levels.
// Mirrors the cgo openjpeg wrapper's desiredProgressionLevel: prefer
// decoding less data over decoding full-resolution and discarding it in
// a software resize.
func selectReduction(regionW, regionH, targetW, targetH, maxLevels int) int {
	if targetW <= 0 || targetH <= 0 {
		return 0
	}
	reduce := 0
	for reduce+1 < maxLevels {
		w, h := reducedDimensions(regionW, regionH, reduce+1)
		if w < targetW || h < targetH {
			break
		}
		reduce++
	}
	return reduce
}

func reducedDimensions(w, h, reduce int) (int, int) {
	for i := 0; i < reduce; i++ {
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func (rd *regionDecoder) OutputSize() (int, int) { return rd.targetW, rd.targetH }

func (rd *regionDecoder) ChunkHeight() int { return rd.chunkHeight }

// decodeFull runs the underlying codec's one-shot region decode and caches
// the result; go-jpeg2000 exposes no scanline API; DecodeInto's chunking
// happens on top of the cached image instead.
func (rd *regionDecoder) decodeFull(ctx context.Context) error {
	area := rd.area
	cfg := &jpeg2000.Config{
		DecodeArea:       &area,
		ReduceResolution: rd.reduce,
	}

	img, err := jpeg2000.DecodeConfig(bytes.NewReader(rd.source), cfg)
	if err != nil {
		return apperrors.New(apperrors.CategoryDecode, "jp2.decode", fmt.Errorf("decoding jp2 region: %w", err))
	}

	bounds := img.Bounds()
	if rd.targetW > 0 && rd.targetH > 0 && (bounds.Dx() != rd.targetW || bounds.Dy() != rd.targetH) {
		dst := image.NewRGBA(image.Rect(0, 0, rd.targetW, rd.targetH))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
		rd.img = dst
		return nil
	}
	rd.img = img
	return nil
}

func (rd *regionDecoder) DecodeInto(ctx context.Context, buf []byte) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, apperrors.Wrap(apperrors.CategoryDecode, "jp2.decode", err)
	}

	if rd.img == nil {
		if err := rd.decodeFull(ctx); err != nil {
			return 0, false, err
		}
	}

	if rd.row >= rd.targetH {
		return 0, true, nil
	}

	rows := rd.chunkHeight
	if rd.row+rows > rd.targetH {
		rows = rd.targetH - rd.row
	}

	dst := &image.RGBA{Pix: buf, Stride: rd.targetW * 4, Rect: image.Rect(0, 0, rd.targetW, rows)}
	draw.Draw(dst, dst.Bounds(), rd.img, image.Pt(0, rd.row), draw.Src)

	n := rows * rd.targetW * 4
	rd.row += rows
	return n, rd.row >= rd.targetH, nil
}
