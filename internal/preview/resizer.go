// Package preview renders downscaled image previews into the blob store.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

const jpegQuality = 85

type Resizer struct {
	Blobs core.BlobStore
}

func NewResizer(blobs core.BlobStore) *Resizer {
	return &Resizer{Blobs: blobs}
}

// Generate decodes src, scales it to fit maxW×maxH and stores the result under
// "<src id>.preview". PNG sources stay PNG to keep transparency; the rest become JPEG.
func (r *Resizer) Generate(ctx context.Context, src *domain.FileMeta, maxW, maxH int) (domain.Preview, error) {
	rc, err := r.Blobs.Open(ctx, src.ID)
	if err != nil {
		return domain.Preview{}, err
	}
	img, format, err := image.Decode(rc)
	rc.Close()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Preview{}, ctx.Err()
		}
		return domain.Preview{}, fmt.Errorf("decode %s: %w", src.ID, err)
	}
	b := img.Bounds()
	w, h := domain.ScaleToFit(b.Dx(), b.Dy(), maxW, maxH)
	if err := ctx.Err(); err != nil {
		return domain.Preview{}, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	if err := ctx.Err(); err != nil {
		return domain.Preview{}, err
	}

	var (
		buf  bytes.Buffer
		name string
	)
	if format == "png" {
		name = "preview.png"
		err = png.Encode(&buf, dst)
	} else {
		name = "preview.jpg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return domain.Preview{}, fmt.Errorf("encode preview: %w", err)
	}

	id := src.ID + domain.PreviewSuffix
	if err := r.Blobs.Put(ctx, id, buf.Bytes()); err != nil {
		return domain.Preview{}, err
	}
	log.Debug().Str("module", "preview").Str("file", string(src.ID)).Int("width", w).Int("height", h).Msg("preview stored")
	return domain.Preview{ID: id, URI: domain.FileURI(id, name), Width: w, Height: h}, nil
}
