package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

// DefaultPrefix is the key prefix for uploaded files.
const DefaultPrefix = "uploads"

// ErrTooLarge is returned for files above the size ceiling.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// Library records stored objects in the media library.
type Library interface {
	Create(ctx context.Context, item *content.MediaItem) error
}

// File is one file of an upload batch.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Rejection is a file refused before upload.
type Rejection struct {
	Name   string      `json:"name"`
	Size   int64       `json:"size"`
	Limit  int64       `json:"limit"`
	Notice locale.Text `json:"notice"`
}

// Failure is a file whose upload or recording failed.
type Failure struct {
	Name   string      `json:"name"`
	Error  string      `json:"error"`
	Notice locale.Text `json:"notice"`
}

// Result reports every file of a batch in one of three lists.
type Result struct {
	Uploaded []content.MediaItem `json:"uploaded"`
	Rejected []Rejection         `json:"rejected"`
	Failed   []Failure           `json:"failed"`
}

// URLs returns the public URLs of the uploaded files in batch order.
func (r Result) URLs() []string {
	urls := make([]string, 0, len(r.Uploaded))
	for _, item := range r.Uploaded {
		urls = append(urls, item.URL)
	}

	return urls
}

// Uploader validates, stores and records files.
type Uploader struct {
	log     logrus.FieldLogger
	objects ObjectStore
	library Library
	maxSize int64
	prefix  string
	now     func() time.Time
}

// NewUploader creates an uploader that refuses files above maxSize bytes.
func NewUploader(
	log logrus.FieldLogger,
	objects ObjectStore,
	library Library,
	maxSize int64,
) *Uploader {
	return &Uploader{
		log:     log.WithField("component", "uploader"),
		objects: objects,
		library: library,
		maxSize: maxSize,
		prefix:  DefaultPrefix,
		now:     time.Now,
	}
}

// MaxSize returns the per-file size ceiling in bytes.
func (u *Uploader) MaxSize() int64 {
	return u.maxSize
}

// Upload processes files one after another. Oversized files are rejected
// individually; a failed file is reported and the batch continues.
// Files already stored stay stored.
func (u *Uploader) Upload(ctx context.Context, files []File) Result {
	res := Result{
		Uploaded: []content.MediaItem{},
		Rejected: []Rejection{},
		Failed:   []Failure{},
	}

	for _, f := range files {
		if f.Size > u.maxSize {
			res.Rejected = append(res.Rejected, u.reject(f))

			continue
		}

		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, failure(f.Name, err))

			continue
		}

		item, err := u.uploadOne(ctx, f)
		if err != nil {
			u.log.WithError(err).WithField("file", f.Name).Warn("Upload failed")

			res.Failed = append(res.Failed, failure(f.Name, err))

			continue
		}

		res.Uploaded = append(res.Uploaded, *item)
	}

	u.log.WithFields(logrus.Fields{
		"uploaded": len(res.Uploaded),
		"rejected": len(res.Rejected),
		"failed":   len(res.Failed),
	}).Info("Upload batch completed")

	return res
}

func (u *Uploader) uploadOne(ctx context.Context, f File) (*content.MediaItem, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	return u.Put(ctx, Object{
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		Body:        rc,
		Source:      content.MediaUploaded,
	})
}

// Object is a single file to store and record.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
	Source      content.MediaSource
	Prompt      string
	Alt         locale.Text
}

// Put stores obj under a fresh key and records it. The stored object is
// removed again when recording fails.
func (u *Uploader) Put(ctx context.Context, obj Object) (*content.MediaItem, error) {
	if obj.Size > u.maxSize {
		return nil, ErrTooLarge
	}

	key := NewKey(u.prefix, obj.Name, u.now())
	contentType := detectContentType(obj.Name, obj.ContentType)

	// Guard against a declared size smaller than the body.
	body := io.LimitReader(obj.Body, u.maxSize+1)

	if err := u.objects.Upload(ctx, key, body, obj.Size, contentType); err != nil {
		return nil, fmt.Errorf("storing %s: %w", obj.Name, err)
	}

	item := &content.MediaItem{
		Key:         key,
		Name:        obj.Name,
		URL:         u.objects.PublicURL(key),
		ContentType: contentType,
		Size:        obj.Size,
		Alt:         obj.Alt,
		Source:      obj.Source,
		Prompt:      obj.Prompt,
	}

	item.Normalize()

	if err := item.Validate().Err(); err != nil {
		u.cleanup(key)

		return nil, err
	}

	if err := u.library.Create(ctx, item); err != nil {
		u.cleanup(key)

		return nil, fmt.Errorf("recording %s: %w", obj.Name, err)
	}

	return item, nil
}

// Delete removes the object behind item.
func (u *Uploader) Delete(ctx context.Context, item *content.MediaItem) error {
	return u.objects.Remove(ctx, item.Key)
}

func (u *Uploader) cleanup(key string) {
	if err := u.objects.Remove(context.Background(), key); err != nil {
		u.log.WithError(err).WithField("key", key).Warn("Failed to remove orphaned object")
	}
}

func (u *Uploader) reject(f File) Rejection {
	limit := units.HumanSize(float64(u.maxSize))

	return Rejection{
		Name:  f.Name,
		Size:  f.Size,
		Limit: u.maxSize,
		Notice: locale.New(
			fmt.Sprintf("الملف %s أكبر من الحد المسموح (%s)", f.Name, limit),
			fmt.Sprintf("%s is larger than the %s limit", f.Name, limit),
		),
	}
}

func failure(name string, err error) Failure {
	return Failure{
		Name:  name,
		Error: err.Error(),
		Notice: locale.New(
			fmt.Sprintf("تعذر رفع الملف %s", name),
			fmt.Sprintf("%s could not be uploaded", name),
		),
	}
}
