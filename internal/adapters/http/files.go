package http

import (
	"bufio"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// Resumable upload headers, following the tus protocol.
const (
	headerUploadOffset = "Upload-Offset"
	headerUploadLength = "Upload-Length"
)

// sniffLen is how much of a download is buffered to detect its type.
const sniffLen = 3072

func (a *API) createUpload(c *gin.Context) {
	var req struct {
		ChannelID   domain.RoomID `json:"channelId"`
		Filename    string        `json:"filename"`
		Size        int64         `json:"size"`
		ContentType string        `json:"contentType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.Validation("bad_payload"))
		return
	}
	f, err := a.Orch.CreateUpload(c.Request.Context(), CurrentUser(c), req.ChannelID, req.Filename, req.ContentType, req.Size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", "/api/files/"+string(f.ID))
	c.Header(headerUploadOffset, "0")
	c.JSON(http.StatusCreated, f)
}

func (a *API) uploadOffset(c *gin.Context) {
	f, err := a.Orch.Upload(c.Request.Context(), CurrentUser(c), domain.FileID(c.Param("id")))
	if err != nil {
		c.AbortWithStatus(statusOf(err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header(headerUploadOffset, strconv.FormatInt(f.Received, 10))
	c.Header(headerUploadLength, strconv.FormatInt(f.Size, 10))
	c.Status(http.StatusOK)
}

func (a *API) appendUpload(c *gin.Context) {
	offset, err := strconv.ParseInt(c.GetHeader(headerUploadOffset), 10, 64)
	if err != nil || offset < 0 {
		abortWithError(c, domain.Validation("missing or invalid Upload-Offset"))
		return
	}
	id := domain.FileID(c.Param("id"))
	f, err := a.Orch.Upload(c.Request.Context(), CurrentUser(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	// One extra byte lets an oversized chunk reach the size check.
	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, f.Size-offset+1))
	if err != nil {
		abortWithError(c, domain.Validation("unreadable body"))
		return
	}
	f, err = a.Orch.AppendUpload(c.Request.Context(), CurrentUser(c), id, offset, chunk)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header(headerUploadOffset, strconv.FormatInt(f.Received, 10))
	c.Status(http.StatusNoContent)
}

func (a *API) deleteUpload(c *gin.Context) {
	if err := a.Orch.DeleteUpload(c.Request.Context(), CurrentUser(c), domain.FileID(c.Param("id"))); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// download streams a completed file or preview. Images display inline and
// everything else is offered as an attachment.
func (a *API) download(c *gin.Context) {
	id := domain.FileID(c.Param("id"))
	f, rc, size, err := a.Orch.OpenFile(c.Request.Context(), CurrentUser(c), id)
	if errors.Is(err, domain.ErrUnauthorized) {
		abortWithStatus(c, http.StatusNotFound, domain.NotFound("file not found"))
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer rc.Close()

	body := bufio.NewReaderSize(rc, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, err)
		return
	}
	mt := mimetype.Detect(head)
	name := f.Filename
	if _, isPreview := domain.PreviewSource(id); isPreview {
		name = "preview" + mt.Extension()
	}
	disposition := "attachment"
	if strings.HasPrefix(mt.String(), "image/") {
		disposition = "inline"
	}
	c.DataFromReader(http.StatusOK, size, mt.String(), body, map[string]string{
		"Content-Disposition":    mime.FormatMediaType(disposition, map[string]string{"filename": name}),
		"X-Content-Type-Options": "nosniff",
	})
}
