package pages

import (
	"encoding/json"
	"strings"
)

// ImagePosition enumerates the horizontal alignments an image may take.
type ImagePosition string

const (
	// PositionLeft aligns an image against the left edge of the page column.
	PositionLeft ImagePosition = "left"
	// PositionCenter centers an image within the page column.
	PositionCenter ImagePosition = "center"
	// PositionRight aligns an image against the right edge of the page column.
	PositionRight ImagePosition = "right"
)

const (
	// DefaultImageWidth is assigned to freshly uploaded images.
	DefaultImageWidth = 300
	// MaxDisplayWidth caps the rendered width regardless of the stored value.
	MaxDisplayWidth = 600
)

// ImageLayout describes one image's placement within a page. The stored
// width records the editor's intent; the rendered width is clamped
// separately so oversized values never break the public layout.
type ImageLayout struct {
	FileName string `json:"name"`
	Width    int    `json:"width"`
	Position string `json:"position"`
}

// DefaultImageLayout returns the placement assigned to a new upload.
func DefaultImageLayout(fileName string) ImageLayout {
	return ImageLayout{
		FileName: fileName,
		Width:    DefaultImageWidth,
		Position: string(PositionCenter),
	}
}

// NormalizePosition maps arbitrary stored values onto the supported
// alignment set. Unknown values fall back to left rather than failing.
func NormalizePosition(value string) ImagePosition {
	switch ImagePosition(strings.ToLower(strings.TrimSpace(value))) {
	case PositionCenter:
		return PositionCenter
	case PositionRight:
		return PositionRight
	default:
		return PositionLeft
	}
}

// DisplayWidth clamps a stored width to the render ceiling. Non-positive
// widths take the upload default so a malformed value still renders.
func DisplayWidth(storedWidth int) int {
	width := storedWidth
	if width <= 0 {
		width = DefaultImageWidth
	}
	if width > MaxDisplayWidth {
		return MaxDisplayWidth
	}
	return width
}

// DedupeImageLayouts drops repeated file names from a layout list, keeping
// the first occurrence. A file appears at most once on a page; the upload
// path already replaces in place, this guards drafts arriving from outside.
func DedupeImageLayouts(layouts []ImageLayout) []ImageLayout {
	seen := make(map[string]struct{}, len(layouts))
	deduped := make([]ImageLayout, 0, len(layouts))
	for _, layout := range layouts {
		if _, ok := seen[layout.FileName]; ok {
			continue
		}
		seen[layout.FileName] = struct{}{}
		deduped = append(deduped, layout)
	}
	return deduped
}

// EncodeImageLayouts serializes an ordered layout list for storage. A nil
// list encodes as an empty JSON array so the column is never null.
func EncodeImageLayouts(layouts []ImageLayout) (string, error) {
	if layouts == nil {
		layouts = []ImageLayout{}
	}
	encoded, err := json.Marshal(layouts)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeImageLayouts parses a stored layout list, preserving order.
// Malformed or empty input yields an empty list; a page must always render.
func DecodeImageLayouts(raw string) []ImageLayout {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []ImageLayout{}
	}
	var layouts []ImageLayout
	if err := json.Unmarshal([]byte(trimmed), &layouts); err != nil {
		return []ImageLayout{}
	}
	if layouts == nil {
		return []ImageLayout{}
	}
	return layouts
}
