package domain

import (
	"math"
	"strconv"
)

type EmbedType string

const (
	EmbedFile  EmbedType = "File"
	EmbedImage EmbedType = "Image"
	EmbedGif   EmbedType = "Gif"
)

// Embed data keys.
const (
	EmbedURI      = "Uri"
	EmbedFilename = "Filename"
	EmbedFileSize = "FileSize"
	EmbedPreview  = "Preview"
	EmbedWidth    = "Width"
	EmbedHeight   = "Height"
)

type Embed struct {
	Type EmbedType         `json:"type"`
	Data map[string]string `json:"data"`
}

func FileEmbed(uri, filename string, size int64) *Embed {
	return &Embed{
		Type: EmbedFile,
		Data: map[string]string{
			EmbedURI:      uri,
			EmbedFilename: filename,
			EmbedFileSize: strconv.FormatInt(size, 10),
		},
	}
}

func ImageEmbed(t EmbedType, uri, preview string, width, height int) *Embed {
	return &Embed{
		Type: t,
		Data: map[string]string{
			EmbedURI:     uri,
			EmbedPreview: preview,
			EmbedWidth:   strconv.Itoa(width),
			EmbedHeight:  strconv.Itoa(height),
		},
	}
}

// Preview is a downscaled rendition stored next to the original blob.
type Preview struct {
	ID     FileID
	URI    string
	Width  int
	Height int
}

// ScaleToFit returns w×h scaled by min(maxW/w, maxH/h) when it exceeds the box,
// and w×h unchanged otherwise.
func ScaleToFit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}
