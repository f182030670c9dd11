package app

import "strings"

type Category int

const (
	CategoryDefault Category = iota
	CategoryImage
	CategoryGif
	CategoryVideo
	CategoryAudio
	CategoryDocument
	CategoryArchive
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryGif:
		return "gif"
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	case CategoryDocument:
		return "document"
	case CategoryArchive:
		return "archive"
	default:
		return "default"
	}
}

var categories = map[string]Category{
	"png":  CategoryImage,
	"jpg":  CategoryImage,
	"jpeg": CategoryImage,
	"bmp":  CategoryImage,
	"webp": CategoryImage,
	"gif":  CategoryGif,
	"mp4":  CategoryVideo,
	"webm": CategoryVideo,
	"mov":  CategoryVideo,
	"mkv":  CategoryVideo,
	"mp3":  CategoryAudio,
	"wav":  CategoryAudio,
	"ogg":  CategoryAudio,
	"flac": CategoryAudio,
	"m4a":  CategoryAudio,
	"pdf":  CategoryDocument,
	"txt":  CategoryDocument,
	"md":   CategoryDocument,
	"doc":  CategoryDocument,
	"docx": CategoryDocument,
	"odt":  CategoryDocument,
	"xls":  CategoryDocument,
	"xlsx": CategoryDocument,
	"csv":  CategoryDocument,
	"ppt":  CategoryDocument,
	"pptx": CategoryDocument,
	"zip":  CategoryArchive,
	"rar":  CategoryArchive,
	"7z":   CategoryArchive,
	"tar":  CategoryArchive,
	"gz":   CategoryArchive,
}

// Classify maps a filename to a category by its lower-cased extension.
func Classify(filename string) Category {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return CategoryDefault
	}
	if c, ok := categories[strings.ToLower(filename[i+1:])]; ok {
		return c
	}
	return CategoryDefault
}
