package imagehost

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// resolutionSuffix matches size markers the source site appends to image
// URLs, e.g. "-1200Wx1200H" or "-800x600". They must not leak into the
// stable file name: the same image at another resolution would otherwise
// get a different identity.
var resolutionSuffix = regexp.MustCompile(`(?i)-\d+[WH]?x\d+[WH]?`)

// FileName builds the deterministic re-hosted name {skuId}_{sequence}.{ext}.
// The extension is inferred from the source URL and normalized; anything
// unrecognized falls back to .jpg.
func FileName(skuID int64, sequence int, sourceURL string) string {
	return fmt.Sprintf("%d_%d%s", skuID, sequence, extensionOf(sourceURL))
}

func extensionOf(sourceURL string) string {
	raw := sourceURL
	if parsed, err := url.Parse(sourceURL); err == nil {
		raw = parsed.Path
	}
	ext := resolutionSuffix.ReplaceAllString(path.Ext(raw), "")

	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png":
		return ".png"
	case ".webp":
		return ".webp"
	case ".gif":
		return ".gif"
	case ".svg":
		return ".svg"
	default:
		return ".jpg"
	}
}

func contentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
