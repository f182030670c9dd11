package preview

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/voicechat/internal/core/mock"
	"github.com/dkeye/voicechat/internal/domain"
)

func reader(b []byte) io.ReadCloser { return io.NopCloser(bytes.NewReader(b)) }

func TestGenerateScalesToFit(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mock.NewMockBlobStore(ctrl)

	var src bytes.Buffer
	require.NoError(t, jpeg.Encode(&src, image.NewRGBA(image.Rect(0, 0, 1400, 1000)), nil))

	var stored []byte
	blobs.EXPECT().Open(gomock.Any(), domain.FileID("f1")).Return(reader(src.Bytes()), nil)
	blobs.EXPECT().Put(gomock.Any(), domain.FileID("f1.preview"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.FileID, data []byte) error {
			stored = data
			return nil
		})

	pv, err := NewResizer(blobs).Generate(context.Background(), &domain.FileMeta{ID: "f1", Filename: "big.jpg"}, 700, 500)
	require.NoError(t, err)
	assert.Equal(t, 700, pv.Width)
	assert.Equal(t, 500, pv.Height)
	assert.Equal(t, "/files/f1.preview/preview.jpg", pv.URI)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 700, cfg.Width)
	assert.Equal(t, 500, cfg.Height)
}

func TestGenerateKeepsPNG(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mock.NewMockBlobStore(ctrl)

	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, image.NewNRGBA(image.Rect(0, 0, 500, 2000))))
	blobs.EXPECT().Open(gomock.Any(), gomock.Any()).Return(reader(src.Bytes()), nil)
	blobs.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	pv, err := NewResizer(blobs).Generate(context.Background(), &domain.FileMeta{ID: "f2", Filename: "tall.png"}, 700, 500)
	require.NoError(t, err)
	assert.Equal(t, 125, pv.Width)
	assert.Equal(t, 500, pv.Height)
	assert.Equal(t, "/files/f2.preview/preview.png", pv.URI)
}

func TestGenerateRejectsGarbage(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mock.NewMockBlobStore(ctrl)
	blobs.EXPECT().Open(gomock.Any(), gomock.Any()).Return(reader([]byte("not an image")), nil)

	_, err := NewResizer(blobs).Generate(context.Background(), &domain.FileMeta{ID: "f3"}, 700, 500)
	assert.Error(t, err)
}
