package iiif

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Canonical renders r back into its canonical URL path (spec §8, Testable
// Property #1: parsing a canonical path and re-rendering it must reproduce
// the same path byte-for-byte). Canonical form emits each region kind as
// parsed ("full", "square", "pct:x,y,w,h" or "x,y,w,h"), never emits a
// redundant "^" when upscale was not requested, and always renders
// rotation degrees without a trailing ".0" when the value is integral.
func (r *Request) Canonical() string {
	id := encodeIdentifier(r.Identifier)
	if r.Kind == KindInfo {
		return "/" + id + "/info.json"
	}

	p := r.Parameters
	return fmt.Sprintf("/%s/%s/%s/%s/%s.%s",
		id,
		renderRegion(p.Region),
		renderSize(p.Size),
		renderRotation(p.Rotation),
		string(p.Quality),
		string(p.Format),
	)
}

func encodeIdentifier(id string) string {
	// PathEscape leaves '@' as is; encode it so every reserved character
	// (/ ? # [ ] @ %) comes back percent-encoded.
	return strings.ReplaceAll(url.PathEscape(id), "@", "%40")
}

func renderRegion(r Region) string {
	switch r.Kind {
	case RegionFull:
		return "full"
	case RegionSquare:
		return "square"
	case RegionPercentage:
		return "pct:" + joinFloats(r.X, r.Y, r.W, r.H)
	default: // RegionAbsolute
		return joinFloats(r.X, r.Y, r.W, r.H)
	}
}

func joinFloats(vals ...float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderSize(s Size) string {
	var prefix string
	if s.Upscale {
		prefix = "^"
	}

	switch s.Kind {
	case ScaleMax:
		return prefix + "max"
	case ScalePercentage:
		return prefix + "pct:" + formatFloat(s.Percent)
	case ScaleFixedWidth:
		return prefix + strconv.FormatUint(uint64(s.W), 10) + ","
	case ScaleFixedHeight:
		return prefix + "," + strconv.FormatUint(uint64(s.H), 10)
	case ScaleAspectPreserving:
		return prefix + "!" + strconv.FormatUint(uint64(s.W), 10) + "," + strconv.FormatUint(uint64(s.H), 10)
	default: // ScaleFixed
		return prefix + strconv.FormatUint(uint64(s.W), 10) + "," + strconv.FormatUint(uint64(s.H), 10)
	}
}

func renderRotation(r Rotation) string {
	var prefix string
	if r.Mirror {
		prefix = "!"
	}
	return prefix + formatFloat(r.Degrees)
}
