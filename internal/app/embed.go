package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPreviewWidth  = 700
	DefaultPreviewHeight = 500

	sniffLen = 3072
)

// EmbedPipeline turns a completed upload into the embed attached to its message.
type EmbedPipeline struct {
	Blobs     core.BlobStore
	Previews  core.PreviewGenerator
	MaxWidth  int
	MaxHeight int
}

func NewEmbedPipeline(blobs core.BlobStore, previews core.PreviewGenerator, maxW, maxH int) *EmbedPipeline {
	if maxW <= 0 {
		maxW = DefaultPreviewWidth
	}
	if maxH <= 0 {
		maxH = DefaultPreviewHeight
	}
	return &EmbedPipeline{Blobs: blobs, Previews: previews, MaxWidth: maxW, MaxHeight: maxH}
}

// ClassifyAndEmbed builds an Image or Gif embed for uploads that declare an
// image type, by content type or extension, and whose bytes sniff as one.
// Everything else gets a File embed. Oversized images get a generated
// preview; Width and Height describe what the client should lay out.
func (p *EmbedPipeline) ClassifyAndEmbed(ctx context.Context, f *domain.FileMeta) (*domain.Embed, error) {
	uri := f.URI()
	if !DeclaredImage(f) {
		return domain.FileEmbed(uri, f.Filename, f.Size), nil
	}

	img, err := p.sniff(ctx, f.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("module", "app.embed").Str("file", string(f.ID)).Msg("not a decodable image, embedding as file")
		return domain.FileEmbed(uri, f.Filename, f.Size), nil
	}

	if img.gif {
		dw, dh := domain.ScaleToFit(img.width, img.height, p.MaxWidth, p.MaxHeight)
		return domain.ImageEmbed(domain.EmbedGif, uri, uri, dw, dh), nil
	}
	if img.width <= p.MaxWidth && img.height <= p.MaxHeight {
		return domain.ImageEmbed(domain.EmbedImage, uri, uri, img.width, img.height), nil
	}

	pv, err := p.Previews.Generate(ctx, f, p.MaxWidth, p.MaxHeight)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("module", "app.embed").Str("file", string(f.ID)).Msg("preview failed, using original")
		dw, dh := domain.ScaleToFit(img.width, img.height, p.MaxWidth, p.MaxHeight)
		return domain.ImageEmbed(domain.EmbedImage, uri, uri, dw, dh), nil
	}
	return domain.ImageEmbed(domain.EmbedImage, uri, pv.URI, pv.Width, pv.Height), nil
}

// DeclaredImage reports whether an upload claims to be an image.
func DeclaredImage(f *domain.FileMeta) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "image/") {
		return true
	}
	switch Classify(f.Filename) {
	case CategoryImage, CategoryGif:
		return true
	}
	return false
}

type imageInfo struct {
	gif           bool
	width, height int
}

// sniff reads the head of the blob and decodes only the image header.
func (p *EmbedPipeline) sniff(ctx context.Context, id domain.FileID) (imageInfo, error) {
	rc, err := p.Blobs.Open(ctx, id)
	if err != nil {
		return imageInfo{}, err
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return imageInfo{}, err
	}
	mt := mimetype.Detect(head)
	if !strings.HasPrefix(mt.String(), "image/") {
		return imageInfo{}, fmt.Errorf("content is %s", mt)
	}
	cfg, _, err := image.DecodeConfig(br)
	if err != nil {
		return imageInfo{}, err
	}
	return imageInfo{gif: mt.Is("image/gif"), width: cfg.Width, height: cfg.Height}, nil
}
