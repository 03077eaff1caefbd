package codec

import "net/http"

// jp2Signature is the ISO/IEC 15444-1 JP2 signature box: a 12-byte box of
// length 0x0000000C, type "jP  " (0x6A502020), and fixed content
// 0x0D0A870A.
var jp2Signature = [12]byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20, 0x0D, 0x0A, 0x87, 0x0A}

// j2kSignature is the start-of-codestream marker for a bare .j2k
// codestream with no JP2 box wrapper.
var j2kSignature = [4]byte{0xFF, 0x4F, 0xFF, 0x51}

// DetectFormat sniffs the first bytes of a source image and reports the
// Registry format tag they belong to ("jp2", "jpeg", "png", "webp"), or ""
// when nothing recognized matches. Grounded on the teacher's
// utils.DetectFormat (magic-byte checks with a net/http.DetectContentType
// fallback), extended with the JP2 signatures since JPEG 2000 is this
// server's primary source format and carries no stdlib/DetectContentType
// support.
func DetectFormat(data []byte) string {
	if hasPrefix(data, jp2Signature[:]) || hasPrefix(data, j2kSignature[:]) {
		return "jp2"
	}
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg"
	}
	if len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png"
	}
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return "webp"
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	}
	return ""
}

func hasPrefix(data, sig []byte) bool {
	if len(data) < len(sig) {
		return false
	}
	for i, b := range sig {
		if data[i] != b {
			return false
		}
	}
	return true
}
