package imageprocessing

import (
	"bytes"
	"encoding/base64"
	"image"
	"log/slog"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const mimeSVG = "image/svg+xml"

// DetectMimeType sniffs the media type of stored photo bytes. Raster formats are
// recognised by their registered decoders, SVG by parsing it; anything else falls
// back to net/http content sniffing.
func DetectMimeType(data []byte) string {
	if isSVGData(data) {
		if _, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode); err == nil {
			return mimeSVG
		}
	}

	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return "image/" + format
	}

	mimeType := http.DetectContentType(data)
	slog.Debug("DetectMimeType: no image decoder matched", "input_size_bytes", len(data), "sniffed", mimeType)
	return mimeType
}

// EncodeBase64 turns raw photo bytes into text that can be embedded in HTML.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// ToDataURI returns a "data:<mime>;base64,<payload>" URI for an <img> src.
func ToDataURI(data []byte) string {
	return "data:" + DetectMimeType(data) + ";base64," + EncodeBase64(data)
}

// isSVGData checks the first bytes for an SVG root element or namespace.
func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	// Only inspect the first ~4KB for detection
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}
