// Package iiif implements the IIIF Image API 3.0 level 0 URL grammar: the
// Request data model (§3) and the parser that turns a URL path into one
// (§4.1). Modeled after the teacher's core.Format/core.Metadata constant
// tables (core/types.go), generalized to IIIF's region/size/rotation/
// quality/format vocabulary instead of raw codec formats.
package iiif

import (
	"fmt"
	"time"
)

// Format identifies the IIIF output image format requested via the URL
// extension.
type Format string

const (
	FormatJpg Format = "jpg"
	FormatTif Format = "tif"
	FormatPng Format = "png"
	FormatGif Format = "gif"
	FormatJp2 Format = "jp2"
	FormatPdf Format = "pdf"
	FormatWebp Format = "webp"
)

// MediaType returns the canonical media type for f.
func (f Format) MediaType() string {
	switch f {
	case FormatJpg:
		return "image/jpeg"
	case FormatTif:
		return "image/tiff"
	case FormatPng:
		return "image/png"
	case FormatGif:
		return "image/gif"
	case FormatJp2:
		return "image/jp2"
	case FormatPdf:
		return "application/pdf"
	case FormatWebp:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func formatFromExtension(ext string) (Format, bool) {
	switch Format(ext) {
	case FormatJpg, FormatTif, FormatPng, FormatGif, FormatJp2, FormatPdf, FormatWebp:
		return Format(ext), true
	}
	return "", false
}

// Quality selects the color rendering requested for the output image.
type Quality string

const (
	QualityColor   Quality = "color"
	QualityGray    Quality = "gray"
	QualityBitonal Quality = "bitonal"
	QualityDefault Quality = "default"
)

func qualityFromString(s string) (Quality, bool) {
	switch Quality(s) {
	case QualityColor, QualityGray, QualityBitonal, QualityDefault:
		return Quality(s), true
	}
	return "", false
}

// RegionKind distinguishes the four region grammars of spec §4.1.
type RegionKind int

const (
	RegionFull RegionKind = iota
	RegionSquare
	RegionAbsolute
	RegionPercentage
)

// Region is the parsed "region" path segment.
type Region struct {
	Kind RegionKind

	// Absolute: pixel rectangle. Percentage: fraction of the source image in [0,100].
	X, Y, W, H float64
}

// ScaleKind distinguishes the six size grammars of spec §4.2.
type ScaleKind int

const (
	ScaleMax ScaleKind = iota
	ScalePercentage
	ScaleFixedWidth
	ScaleFixedHeight
	ScaleFixed
	ScaleAspectPreserving
)

// Size is the parsed "size" path segment.
type Size struct {
	Upscale bool
	Kind    ScaleKind
	Percent float64
	W, H    uint32
}

// Rotation is the parsed "rotation" path segment. Degrees is in [0, 360).
type Rotation struct {
	Degrees float64
	Mirror  bool
}

// Parameters bundles the five transcoding directives of an Image request.
type Parameters struct {
	Region   Region
	Size     Size
	Rotation Rotation
	Quality  Quality
	Format   Format
}

// Kind distinguishes the two request grammars of spec §3.
type Kind int

const (
	KindInfo Kind = iota
	KindImage
)

// Request is the fully parsed representation of one incoming IIIF URL,
// built by ParseRequestPath and discarded after the response is shaped.
type Request struct {
	Identifier string
	Kind       Kind
	Parameters Parameters // zero value when Kind == KindInfo

	// LastAccessTime is the optional If-Modified-Since instant; set by the
	// HTTP adapter, not by the path parser.
	LastAccessTime *time.Time
}

// ParseError is the single tagged error type returned by every parsing
// function in this package (spec §4.1).
type ParseError struct {
	Element string // which grammar element failed, e.g. "region", "rotation"
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("iiif: invalid %s: %s", e.Element, e.Reason)
}

func newParseError(element, reason string) *ParseError {
	return &ParseError{Element: element, Reason: reason}
}
