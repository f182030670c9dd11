package orch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateUpload declares a resumable upload into channel.
func (o *Orchestrator) CreateUpload(ctx context.Context, user domain.UserID, channel domain.RoomID, filename, contentType string, size int64) (*domain.FileMeta, error) {
	if err := o.Channels.Hydrate(ctx, user); err != nil {
		return nil, err
	}
	if !o.Channels.IsMember(user, channel) {
		return nil, domain.Unauthorized("not a channel member")
	}
	f, err := domain.NewFileMeta(user, channel, filename, contentType, size, o.MaxUpload)
	if err != nil {
		return nil, err
	}
	if err := o.Blobs.Create(ctx, f.ID); err != nil {
		return nil, err
	}
	if err := o.Files.CreateFile(ctx, f); err != nil {
		if derr := o.Blobs.Delete(ctx, f.ID); derr != nil {
			log.Warn().Err(derr).Str("module", "orch").Str("file", string(f.ID)).Msg("remove orphan blob")
		}
		return nil, err
	}
	log.Info().Str("module", "orch").Str("file", string(f.ID)).Str("user", string(user)).Int64("size", size).Msg("upload created")
	return f, nil
}

// Upload returns the upload state of id for its owner. Until the upload
// completes, Received is read from the blob so a failed progress update never
// hides bytes that were stored.
func (o *Orchestrator) Upload(ctx context.Context, user domain.UserID, id domain.FileID) (*domain.FileMeta, error) {
	f, err := o.Files.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Owner != user {
		return nil, domain.Unauthorized("not the uploader")
	}
	if !f.Completed {
		n, err := o.Blobs.Size(ctx, id)
		if err != nil {
			return nil, err
		}
		f.Received = n
	}
	return f, nil
}

// AppendUpload writes chunk at offset. Once every declared byte is stored the
// upload is completed: the embed is built, the message posted, and only then
// is the file marked completed. A completion that failed is retried by an
// empty append at the declared size.
func (o *Orchestrator) AppendUpload(ctx context.Context, user domain.UserID, id domain.FileID, offset int64, chunk []byte) (*domain.FileMeta, error) {
	f, err := o.Upload(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if f.Completed {
		return nil, domain.Conflict("upload already completed")
	}
	if offset+int64(len(chunk)) > f.Size {
		return nil, domain.Validation("chunk exceeds declared size")
	}
	if f.Received < f.Size {
		n, err := o.Blobs.Append(ctx, id, offset, chunk)
		if err != nil {
			return nil, err
		}
		f.Received = n
		if err := o.Files.UpdateFileProgress(ctx, id, n, false); err != nil {
			return nil, err
		}
	} else if offset != f.Size {
		return nil, domain.Conflict(fmt.Sprintf("offset mismatch: have %d", f.Received))
	}
	if f.Received < f.Size {
		return f, nil
	}

	if err := o.CompleteUpload(ctx, f); err != nil {
		return nil, err
	}
	f.Completed = true
	return f, nil
}

// CompleteUpload builds the embed for a fully received upload, posts it as a
// message from the uploader and marks the file completed. Once the message
// exists the remaining writes ignore cancellation of ctx.
func (o *Orchestrator) CompleteUpload(ctx context.Context, f *domain.FileMeta) error {
	embed, err := o.Embeds.ClassifyAndEmbed(ctx, f)
	if err != nil {
		return err
	}
	msg, err := domain.NewMessage(f.Owner, f.ChannelID, "", embed, o.MaxMessageLen, o.now())
	if err != nil {
		return err
	}
	commit := context.WithoutCancel(ctx)
	o.publishMessage(commit, msg)
	if err := o.Files.UpdateFileProgress(commit, f.ID, f.Size, true); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("file", string(f.ID)).Str("embed", string(embed.Type)).Msg("upload completed")
	return nil
}

// DeleteUpload removes an upload and its bytes.
func (o *Orchestrator) DeleteUpload(ctx context.Context, user domain.UserID, id domain.FileID) error {
	if _, err := o.Upload(ctx, user, id); err != nil {
		return err
	}
	if err := o.Blobs.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return o.Files.DeleteFile(ctx, id)
}

// OpenFile streams a completed file, or a preview of one, to a member of the
// channel it was posted in. The caller closes the reader.
func (o *Orchestrator) OpenFile(ctx context.Context, user domain.UserID, id domain.FileID) (*domain.FileMeta, io.ReadCloser, int64, error) {
	metaID := id
	if src, ok := domain.PreviewSource(id); ok {
		metaID = src
	}
	f, err := o.Files.GetFile(ctx, metaID)
	if err != nil {
		return nil, nil, 0, err
	}
	if !f.Completed {
		return nil, nil, 0, domain.NotFound("file not found")
	}
	if err := o.Channels.Hydrate(ctx, user); err != nil {
		return nil, nil, 0, err
	}
	if !o.Channels.IsMember(user, f.ChannelID) {
		return nil, nil, 0, domain.Unauthorized("not a channel member")
	}
	size, err := o.Blobs.Size(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}
	rc, err := o.Blobs.Open(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}
	return f, rc, size, nil
}
