// Package codec is the C3 Image Handle: it turns a decoded-format byte
// stream into pixel data for a specific region and reduced resolution,
// the way the teacher's core.Decoder did for its format family, but
// IIIF-shaped around region/scale-factor selection instead of a flat
// Decode() call.
package codec

import (
	"context"
	"io"
)

// ImageInfo is the subset of source-image metadata the service layer
// needs to resolve IIIF region/size grammar into pixel coordinates and to
// populate the info.json response (spec §4.6).
type ImageInfo struct {
	Width  int
	Height int

	// TileWidth/TileHeight are non-zero when the source format stores a
	// native tile grid (e.g. JPEG 2000); the info.json "tiles" property
	// is only emitted when both are non-zero.
	TileWidth  int
	TileHeight int

	// MaxResolutions is the count of discrete resolution levels the
	// decoder can natively produce (DWT levels for JPEG 2000). A decoder
	// that can't report this returns 1.
	MaxResolutions int

	// PreferredSizes lists the whole-image dimensions a client can
	// request cheaply, one per native resolution level (full size first,
	// halved at each further level). Populated by decoders that expose
	// Info's MaxResolutions; info.json's "sizes" property is built from
	// this list.
	PreferredSizes []PreferredSize
}

// AbsoluteRegion is a pixel-space rectangle already resolved from any of
// the IIIF region grammars (full/square/absolute/percentage); the codec
// layer only ever sees absolute pixel coordinates.
type AbsoluteRegion struct {
	X, Y, W, H int
}

// PreferredSize is the output pixel size the transcode pipeline wants;
// decoders that support internal downscaling (resolution-level decoding)
// use it to pick the cheapest resolution level that is still >= the
// requested size, rather than decoding full resolution and downscaling
// in software.
type PreferredSize struct {
	W, H int
}

// Decoder opens a source image and exposes region-aware decoding. r must
// support the access pattern the concrete decoder needs; jp2.Decoder
// reads the whole stream into memory in OpenRegion.
type Decoder interface {
	// Info reads just enough of r to report the source image's
	// dimensions and format capabilities.
	Info(ctx context.Context, r io.Reader) (ImageInfo, error)

	// OpenRegion prepares decoding of the given region, downscaled to
	// approximately scaledTo using any resolution levels the format
	// offers natively. The caller must not reuse r until the returned
	// RegionDecoder is done with it.
	OpenRegion(ctx context.Context, r io.Reader, region AbsoluteRegion, scaledTo PreferredSize) (RegionDecoder, error)
}

// RegionDecoder produces the decoded pixels for one previously-opened
// region, one horizontal band of scanlines at a time so the transcode
// pipeline never has to hold more than ChunkHeight rows in flight between
// the decode and encode workers.
type RegionDecoder interface {
	// OutputSize is the pixel size DecodeInto will actually produce; it
	// may differ slightly from the PreferredSize passed to OpenRegion
	// because resolution-level decoding only offers power-of-two steps.
	OutputSize() (w, h int)

	// ChunkHeight is the number of scanlines each DecodeInto call fills:
	// the source format's native tile height, reduced to the decoded
	// resolution, when tiles span the full source width; 16 rows
	// otherwise.
	ChunkHeight() int

	// DecodeInto fills buf, which must be at least
	// OutputSize().w * ChunkHeight() * 4 bytes (RGBA8), with the next
	// band of scanlines and reports how many bytes it wrote. done is
	// true once every row of the region has been produced; callers stop
	// calling DecodeInto at that point. The underlying codec may still
	// perform its decode in one shot internally, but DecodeInto hands
	// the result to the caller incrementally so the pipeline's channels
	// carry bounded chunks instead of one whole-image object.
	DecodeInto(ctx context.Context, buf []byte) (n int, done bool, err error)
}
