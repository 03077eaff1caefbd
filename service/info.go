package service

import (
	"fmt"

	"github.com/deepzoom/iiifd/codec"
)

// infoDocument is the exact JSON shape of an IIIF Image API 3.0 info.json
// response (spec §4.6). Level 0 conformance means the server advertises
// no extraQualities/extraFeatures beyond the baseline and a single
// "level0" profile entry.
type infoDocument struct {
	Context  string `json:"@context"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Protocol string `json:"protocol"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	Sizes []infoSize `json:"sizes,omitempty"`
	Tiles []infoTile `json:"tiles,omitempty"`

	MaxWidth  int `json:"maxWidth,omitempty"`
	MaxHeight int `json:"maxHeight,omitempty"`

	Profile string `json:"profile"`

	Rights string `json:"rights,omitempty"`
}

type infoSize struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type infoTile struct {
	Type         string `json:"type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	ScaleFactors []int  `json:"scaleFactors"`
}

// buildInfoDocument assembles the info.json payload for identifier from
// the decoder-reported image metadata and server configuration.
func buildInfoDocument(baseURL, identifier string, info codec.ImageInfo, maxDimension int, rightsURI string) *infoDocument {
	doc := &infoDocument{
		Context:  "http://iiif.io/api/image/3/context.json",
		ID:       fmt.Sprintf("%s/%s", baseURL, identifier),
		Type:     "ImageService3",
		Protocol: "http://iiif.io/api/image",
		Width:    info.Width,
		Height:   info.Height,
		Profile:  "level0",
		Rights:   rightsURI,
	}

	if maxDimension > 0 {
		doc.MaxWidth = maxDimension
		doc.MaxHeight = maxDimension
	}

	if len(info.PreferredSizes) > 0 {
		sizes := make([]infoSize, len(info.PreferredSizes))
		for i, s := range info.PreferredSizes {
			sizes[i] = infoSize{Type: "Size", Width: s.W, Height: s.H}
		}
		doc.Sizes = sizes
	}

	if info.TileWidth > 0 && info.TileHeight > 0 {
		scaleFactors := make([]int, info.MaxResolutions)
		factor := 1
		for i := range scaleFactors {
			scaleFactors[i] = factor
			factor *= 2
		}
		doc.Tiles = []infoTile{{
			Type:         "Tile",
			Width:        info.TileWidth,
			Height:       info.TileHeight,
			ScaleFactors: scaleFactors,
		}}
	}

	return doc
}
