package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/pkg/blob"
	"github.com/Gopher0727/SocialSync/internal/pkg/media"
	"github.com/Gopher0727/SocialSync/utils/snowflake"
)

// Upload is one attached file as received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// StoredObject is an upload that reached the blob store.
type StoredObject struct {
	URL       string
	Path      string
	MediaType string
}

// Uploader compresses uploads and writes them to the blob store.
type Uploader struct {
	processor *media.Processor
	store     blob.Store
	ids       *snowflake.Generator
}

func NewUploader(processor *media.Processor, store blob.Store, ids *snowflake.Generator) *Uploader {
	return &Uploader{processor: processor, store: store, ids: ids}
}

func (u *Uploader) process(op string, up Upload) (*media.File, error) {
	f, err := u.processor.Process(up.Body)
	if err != nil {
		if errors.Is(err, media.ErrUnsupported) || errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrEmpty) {
			return nil, apperr.E(apperr.KindValidation, op, fmt.Sprintf("%s: %v", up.Filename, err), err)
		}
		return nil, apperr.Store(op, err)
	}
	return f, nil
}

func (u *Uploader) put(ctx context.Context, op, objectPath string, f *media.File) (*StoredObject, error) {
	url, err := u.store.Upload(ctx, objectPath, f.ContentType, bytes.NewReader(f.Data))
	if err != nil {
		return nil, apperr.ExternalService(op, err)
	}
	return &StoredObject{URL: url, Path: objectPath, MediaType: f.MediaType}, nil
}

// PutMeetingMedia 路径 meetings/<uploaderID>/<snowflake><ext>。
// 任一文件失败时删除本批已上传的对象。
func (u *Uploader) PutMeetingMedia(ctx context.Context, uploaderID string, uploads []Upload) ([]*StoredObject, error) {
	const op = "service.Uploader.PutMeetingMedia"

	files := make([]*media.File, 0, len(uploads))
	for _, up := range uploads {
		f, err := u.process(op, up)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	stored := make([]*StoredObject, 0, len(files))
	for _, f := range files {
		id, err := u.ids.NextString()
		if err != nil {
			u.Discard(ctx, stored)
			return nil, apperr.Store(op, err)
		}
		obj, err := u.put(ctx, op, fmt.Sprintf("meetings/%s/%s%s", uploaderID, id, f.Ext), f)
		if err != nil {
			u.Discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, obj)
	}
	return stored, nil
}

// PutAvatar 覆盖 avatars/<userID><ext>
func (u *Uploader) PutAvatar(ctx context.Context, userID string, up Upload) (*StoredObject, error) {
	const op = "service.Uploader.PutAvatar"
	f, err := u.process(op, up)
	if err != nil {
		return nil, err
	}
	if f.MediaType != model.MediaTypeImage {
		return nil, apperr.Validation(op, "avatar must be an image")
	}
	return u.put(ctx, op, fmt.Sprintf("avatars/%s%s", userID, f.Ext), f)
}

// Discard deletes stored objects, ignoring failures.
func (u *Uploader) Discard(ctx context.Context, objects []*StoredObject) {
	for _, o := range objects {
		_ = u.store.Delete(ctx, o.Path)
	}
}
