package convert

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EntryKind classifies an archive entry for the pipeline.
type EntryKind int

const (
	// KindOpaque entries (metadata, text, unknown blobs) pass through
	// untouched.
	KindOpaque EntryKind = iota
	// KindImage entries are raster images to transcode.
	KindImage
	// KindTarget entries are already in the target format.
	KindTarget
)

// Extensions treated as convertible without sniffing.
var convertibleExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

var sniffableMIME = map[string]EntryKind{
	"image/jpeg": KindImage,
	"image/png":  KindImage,
	"image/gif":  KindImage,
	"image/bmp":  KindImage,
	"image/tiff": KindImage,
	"image/webp": KindTarget,
}

// ClassifyEntry decides how the pipeline treats an archive entry. Extension
// is the fast path; entries with unknown extensions are sniffed by content so
// misnamed pages are still converted.
func ClassifyEntry(name string, data []byte) EntryKind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".webp":
		return KindTarget
	case convertibleExt[ext]:
		return KindImage
	case ext != "":
		return KindOpaque
	}

	if kind, ok := sniffableMIME[mimetype.Detect(data).String()]; ok {
		return kind
	}
	return KindOpaque
}
