package jpegenc

import (
	"testing"

	"github.com/deepzoom/iiifd/iiif"
)

func TestCanEncode(t *testing.T) {
	b := &Backend{}
	cases := map[iiif.Format]bool{
		iiif.FormatJpg:  true,
		iiif.FormatPng:  true,
		iiif.FormatWebp: true,
		iiif.FormatTif:  false,
		iiif.FormatGif:  false,
		iiif.FormatJp2:  false,
		iiif.FormatPdf:  false,
	}
	for format, want := range cases {
		if got := b.CanEncode(format); got != want {
			t.Errorf("CanEncode(%s) = %v, want %v", format, got, want)
		}
	}
}
