package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/imagegen"
	"github.com/healthassoc/bayan/pkg/locale"
	"github.com/healthassoc/bayan/pkg/media"
)

const (
	maxBatchFiles  = 20
	maxUploadBody  = 256 << 20
	maxFormField   = 64 << 10
	uploadTempGlob = "bayan-upload-*"
)

type uploadResponse struct {
	media.Result
	// URLs is the bound field value: the current URLs with the uploaded
	// ones appended (mode=multi) or replaced (mode=single).
	URLs []string `json:"urls"`
}

var (
	tooManyFilesMessage = locale.New("عدد الملفات كبير جداً", "Too many files in one upload")
	noFilesMessage      = locale.New("لم يتم اختيار أي ملف", "No file selected")
	uploadTooBigMessage = locale.New("حجم الطلب كبير جداً", "The upload request is too large")
)

var errTooManyFiles = errors.New("too many files")

// uploadBatch is a multipart upload read part by part. Files within the
// size ceiling are spooled to temp files; larger ones keep only their
// size so the uploader rejects them.
type uploadBatch struct {
	files   []media.File
	fields  map[string][]string
	spooled []string
}

func (b *uploadBatch) cleanup() error {
	var errs []error

	for _, path := range b.spooled {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func isFilePart(p *multipart.Part) bool {
	name := p.FormName()

	return p.FileName() != "" && (name == "files" || name == "file")
}

// readUploadBatch streams the multipart body. A part above maxSize is
// drained and recorded with its full size; it never fails the batch.
func readUploadBatch(mr *multipart.Reader, maxSize int64) (*uploadBatch, error) {
	b := &uploadBatch{fields: map[string][]string{}}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return b, nil
		}

		if err != nil {
			return b, err
		}

		if !isFilePart(part) {
			if err := b.readField(part); err != nil {
				return b, err
			}

			continue
		}

		if len(b.files) == maxBatchFiles {
			return b, errTooManyFiles
		}

		if err := b.spool(part, maxSize); err != nil {
			return b, err
		}
	}
}

func (b *uploadBatch) readField(part *multipart.Part) error {
	defer func() { _ = part.Close() }()

	if part.FileName() != "" {
		_, err := io.Copy(io.Discard, part)

		return err
	}

	value, err := io.ReadAll(io.LimitReader(part, maxFormField))
	if err != nil {
		return err
	}

	b.fields[part.FormName()] = append(b.fields[part.FormName()], string(value))

	return nil
}

func (b *uploadBatch) spool(part *multipart.Part, maxSize int64) error {
	defer func() { _ = part.Close() }()

	tmp, err := os.CreateTemp("", uploadTempGlob)
	if err != nil {
		return fmt.Errorf("creating upload temp file: %w", err)
	}

	path := tmp.Name()
	b.spooled = append(b.spooled, path)

	n, err := io.Copy(tmp, io.LimitReader(part, maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	f := media.File{
		Name:        part.FileName(),
		Size:        n,
		ContentType: part.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}

	if n > maxSize {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return err
		}

		f.Size += rest
		f.Open = func() (io.ReadCloser, error) { return nil, media.ErrTooLarge }

		if err := os.Remove(path); err == nil {
			b.spooled = b.spooled[:len(b.spooled)-1]
		}
	}

	b.files = append(b.files, f)

	return nil
}

// handleUploadMedia stores every file of a multipart batch. Oversized
// files are rejected one by one; the rest are uploaded in order.
func (s *server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart body"})

		return
	}

	batch, err := readUploadBatch(mr, s.uploader.MaxSize())

	defer func() {
		if err := batch.cleanup(); err != nil {
			s.log.WithError(err).Debug("Failed to remove upload temp files")
		}
	}()

	var tooBig *http.MaxBytesError

	switch {
	case errors.Is(err, errTooManyFiles):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "too many files", Code: "too_many_files", Message: &tooManyFilesMessage,
		})

		return
	case errors.As(err, &tooBig):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: "request body too large", Code: "request_too_large", Message: &uploadTooBigMessage,
		})

		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart body"})

		return
	case len(batch.files) == 0:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no files", Code: "no_files", Message: &noFilesMessage})

		return
	}

	res := s.uploader.Upload(r.Context(), batch.files)

	for _, item := range res.Uploaded {
		s.recordActivity(r, content.ActionCreate, content.KindMedia, item.ID, map[string]any{
			"name":   item.Name,
			"source": string(item.Source),
		})
	}

	s.metrics.uploads.WithLabelValues("uploaded").Add(float64(len(res.Uploaded)))
	s.metrics.uploads.WithLabelValues("rejected").Add(float64(len(res.Rejected)))
	s.metrics.uploads.WithLabelValues("failed").Add(float64(len(res.Failed)))

	mode := media.Multi
	if modes := batch.fields["mode"]; len(modes) > 0 && modes[0] == "single" {
		mode = media.Single
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Result: res,
		URLs:   media.Bind(mode, batch.fields["current"], res.URLs()),
	})
}

func (s *server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	items, total, err := s.store.Media().List(r.Context(), q)
	if err != nil {
		s.writeInternal(w, "Failed to list media", err)

		return
	}

	writeJSON(w, http.StatusOK, listResponse[content.MediaItem]{Items: items, Total: total})
}

// handleDeleteMedia removes the stored object and then its library row.
func (s *server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	item, err := s.store.Media().Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "media", err)

		return
	}

	if err := s.uploader.Delete(r.Context(), item); err != nil {
		s.writeInternal(w, "Failed to remove media object", err)

		return
	}

	if err := s.store.Media().Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, "media", err)

		return
	}

	s.recordActivity(r, content.ActionDelete, content.KindMedia, id, map[string]any{"key": item.Key})

	writeJSON(w, http.StatusOK, statusOK)
}

var (
	generationRateLimitedMessage = locale.New(
		"تم تجاوز حد توليد الصور، يرجى المحاولة لاحقاً",
		"Image generation limit reached, please try again later",
	)
	generationPaymentMessage = locale.New(
		"نفد رصيد توليد الصور، يرجى التواصل مع المسؤول",
		"Image generation credits are exhausted, please contact an administrator",
	)
	generationFailedMessage = locale.New(
		"تعذر توليد الصورة، حاول مرة أخرى",
		"The image could not be generated, please try again",
	)
	generationDisabledMessage = locale.New(
		"توليد الصور غير مفعل",
		"Image generation is not enabled",
	)
)

// handleGenerateMedia draws an image and adds it to the media library.
func (s *server) handleGenerateMedia(w http.ResponseWriter, r *http.Request) {
	var req imagegen.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := s.images.Generate(r.Context(), req)
	if err != nil {
		s.writeGenerateError(w, err)

		return
	}

	s.metrics.generations.WithLabelValues("ok").Inc()

	s.recordActivity(r, content.ActionCreate, content.KindMedia, item.ID, map[string]any{
		"source":   string(item.Source),
		"category": req.Category,
	})

	writeJSON(w, http.StatusCreated, item)
}

func (s *server) writeGenerateError(w http.ResponseWriter, err error) {
	var (
		status int
		resp   errorResponse
	)

	switch {
	case errors.Is(err, imagegen.ErrEmptyRequest):
		s.metrics.generations.WithLabelValues("invalid").Inc()
		writeValidation(w, content.ValidationErrors{"prompt": err.Error()})

		return
	case errors.Is(err, imagegen.ErrNotConfigured):
		status = http.StatusServiceUnavailable
		resp = errorResponse{Error: err.Error(), Code: "not_configured", Message: &generationDisabledMessage}
	case errors.Is(err, imagegen.ErrRateLimited):
		status = http.StatusTooManyRequests
		resp = errorResponse{Error: err.Error(), Code: "rate_limited", Message: &generationRateLimitedMessage}
	case errors.Is(err, imagegen.ErrPaymentRequired):
		status = http.StatusPaymentRequired
		resp = errorResponse{Error: err.Error(), Code: "payment_required", Message: &generationPaymentMessage}
	default:
		s.log.WithError(err).Warn("Image generation failed")

		status = http.StatusBadGateway
		resp = errorResponse{Error: "image generation failed", Code: "generation_failed", Message: &generationFailedMessage}
	}

	s.metrics.generations.WithLabelValues(resp.Code).Inc()
	writeJSON(w, status, resp)
}
