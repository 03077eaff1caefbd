package iiif

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseRequestPath decodes path (the URL-prefix-stripped remainder) into a
// Request, following the two grammars of spec §4.1:
//
//	Info:  "/" identifier "/info.json"
//	Image: "/" identifier "/" region "/" size "/" rotation "/" quality "." format
func ParseRequestPath(path string) (*Request, error) {
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, newParseError("identifier", "missing identifier segment")
	}

	identifier, err := decodeIdentifier(segments[0])
	if err != nil {
		return nil, err
	}

	rest := segments[1:]
	if len(rest) == 1 && rest[0] == "info.json" {
		return &Request{Identifier: identifier, Kind: KindInfo}, nil
	}
	if len(rest) != 4 {
		return nil, newParseError("path", "expected 4 segments after the identifier for an image request")
	}

	region, err := parseRegion(rest[0])
	if err != nil {
		return nil, err
	}
	size, err := parseSize(rest[1])
	if err != nil {
		return nil, err
	}
	rotation, err := parseRotation(rest[2])
	if err != nil {
		return nil, err
	}
	quality, format, err := parseQualityFormat(rest[3])
	if err != nil {
		return nil, err
	}

	return &Request{
		Identifier: identifier,
		Kind:       KindImage,
		Parameters: Parameters{
			Region:   region,
			Size:     size,
			Rotation: rotation,
			Quality:  quality,
			Format:   format,
		},
	}, nil
}

// decodeIdentifier percent-decodes identifier per RFC 3986, the reserved
// set spec §6 names: / ? # [ ] @ %.
func decodeIdentifier(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", newParseError("identifier", "invalid percent-encoding: "+err.Error())
	}
	return normalizeIdentifier(decoded)
}

// normalizeIdentifier guards against identifiers that arrive as percent-
// encoded UTF-16 (some upstream proxies re-encode non-ASCII path segments
// this way) by round-tripping anything that isn't already valid UTF-8
// through a BOM-sniffing UTF-16 decoder. Identifiers that are already
// valid UTF-8 — the overwhelming common case — pass through untouched.
func normalizeIdentifier(s string) (string, error) {
	if utf8.ValidString(s) {
		return s, nil
	}
	decoded, _, err := transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), s)
	if err != nil {
		return "", newParseError("identifier", "invalid character encoding: "+err.Error())
	}
	return decoded, nil
}

func parseRegion(s string) (Region, error) {
	switch s {
	case "full":
		return Region{Kind: RegionFull}, nil
	case "square":
		return Region{Kind: RegionSquare}, nil
	}

	if strings.HasPrefix(s, "pct:") {
		vals, err := splitFloats("region", s[len("pct:"):], 4)
		if err != nil {
			return Region{}, err
		}
		for _, v := range vals {
			if v < 0 || v > 100 {
				return Region{}, newParseError("region", "percentage values must lie in [0,100]")
			}
		}
		return Region{Kind: RegionPercentage, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	}

	vals, err := splitFloats("region", s, 4)
	if err != nil {
		return Region{}, err
	}
	for _, v := range vals {
		if v < 0 || v != float64(uint32(v)) {
			return Region{}, newParseError("region", "absolute region values must be non-negative integers")
		}
	}
	if vals[2] == 0 || vals[3] == 0 {
		return Region{}, newParseError("region", "absolute region width and height must be non-zero")
	}
	return Region{Kind: RegionAbsolute, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

func splitFloats(element, s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, newParseError(element, "expected "+strconv.Itoa(n)+" comma-separated values")
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, newParseError(element, "malformed numeric value: "+p)
		}
		out[i] = v
	}
	return out, nil
}

func parseSize(s string) (Size, error) {
	var upscale bool
	if strings.HasPrefix(s, "^") {
		upscale = true
		s = s[1:]
	}

	if s == "max" {
		return Size{Upscale: upscale, Kind: ScaleMax}, nil
	}

	if strings.HasPrefix(s, "pct:") {
		pct, err := strconv.ParseFloat(s[len("pct:"):], 64)
		if err != nil {
			return Size{}, newParseError("size", "malformed percentage: "+s)
		}
		if pct <= 0 {
			return Size{}, newParseError("size", "percentage must be positive")
		}
		return Size{Upscale: upscale, Kind: ScalePercentage, Percent: pct}, nil
	}

	bestFit := strings.HasPrefix(s, "!")
	if bestFit {
		s = s[1:]
	}

	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return Size{}, newParseError("size", "malformed size: "+s)
	}
	wStr, hStr := parts[0], parts[1]

	switch {
	case wStr == "" && hStr == "":
		return Size{}, newParseError("size", "at least one of width/height must be given")
	case hStr == "" && !bestFit:
		w, err := parsePositiveUint32("size", wStr)
		if err != nil {
			return Size{}, err
		}
		return Size{Upscale: upscale, Kind: ScaleFixedWidth, W: w}, nil
	case wStr == "" && !bestFit:
		h, err := parsePositiveUint32("size", hStr)
		if err != nil {
			return Size{}, err
		}
		return Size{Upscale: upscale, Kind: ScaleFixedHeight, H: h}, nil
	default:
		w, err := parsePositiveUint32("size", wStr)
		if err != nil {
			return Size{}, err
		}
		h, err := parsePositiveUint32("size", hStr)
		if err != nil {
			return Size{}, err
		}
		if bestFit {
			return Size{Upscale: upscale, Kind: ScaleAspectPreserving, W: w, H: h}, nil
		}
		return Size{Upscale: upscale, Kind: ScaleFixed, W: w, H: h}, nil
	}
}

func parsePositiveUint32(element, s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, newParseError(element, "malformed numeric value: "+s)
	}
	if n == 0 {
		return 0, newParseError(element, "dimension must be non-zero")
	}
	return uint32(n), nil
}

func parseRotation(s string) (Rotation, error) {
	mirror := strings.HasPrefix(s, "!")
	if mirror {
		s = s[1:]
	}
	degrees, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rotation{}, newParseError("rotation", "malformed numeric value: "+s)
	}
	if degrees < 0 || degrees >= 360 {
		return Rotation{}, newParseError("rotation", "degrees must lie in [0,360)")
	}
	return Rotation{Degrees: degrees, Mirror: mirror}, nil
}

func parseQualityFormat(s string) (Quality, Format, error) {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return "", "", newParseError("format", "missing format extension")
	}
	qStr, fStr := s[:idx], s[idx+1:]

	quality, ok := qualityFromString(qStr)
	if !ok {
		return "", "", newParseError("quality", "unknown quality literal: "+qStr)
	}
	format, ok := formatFromExtension(fStr)
	if !ok {
		return "", "", newParseError("format", "unknown format extension: "+fStr)
	}
	return quality, format, nil
}
