package domain

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxFilenameLen = 255

// PreviewSuffix marks blobs holding a generated preview of another file.
const PreviewSuffix = ".preview"

type FileID string

// FileMeta tracks a resumable upload. Received grows with each appended chunk
// until it equals Size.
type FileMeta struct {
	ID          FileID    `json:"id"`
	Owner       UserID    `json:"owner"`
	ChannelID   RoomID    `json:"channelId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Received    int64     `json:"received"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewFileMeta(owner UserID, channel RoomID, filename, contentType string, size, maxSize int64) (*FileMeta, error) {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return nil, Validation("missing filename")
	}
	if len(filename) > MaxFilenameLen {
		return nil, Validation("filename too long")
	}
	if size <= 0 {
		return nil, Validation("file size must be positive")
	}
	if maxSize > 0 && size > maxSize {
		return nil, Validation("file too large")
	}
	if channel == "" {
		return nil, Validation("missing channel")
	}
	return &FileMeta{
		ID:          FileID(uuid.NewString()),
		Owner:       owner,
		ChannelID:   channel,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (f *FileMeta) URI() string { return FileURI(f.ID, f.Filename) }

func FileURI(id FileID, name string) string {
	return "/files/" + url.PathEscape(string(id)) + "/" + url.PathEscape(name)
}

// PreviewSource returns the file a preview blob id was generated from.
func PreviewSource(id FileID) (FileID, bool) {
	src, ok := strings.CutSuffix(string(id), PreviewSuffix)
	return FileID(src), ok && src != ""
}
