package photo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/photoarchive/service/internal/derivative"
	"github.com/photoarchive/service/internal/middleware"
	"github.com/photoarchive/service/internal/response"
)

// multipartMemory is the in-memory threshold before multipart parts spill to disk.
const multipartMemory = 8 << 20

// Handler holds HTTP handlers for photo endpoints.
type Handler struct {
	svc            *Service
	uploadDir      string
	maxUploadBytes int64
	defaultLimit   int
	logger         *slog.Logger
}

// NewHandler creates a new photo Handler. Uploads are staged in uploadDir.
func NewHandler(svc *Service, uploadDir string, maxUploadBytes int64, defaultLimit int, logger *slog.Logger) (*Handler, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:            svc,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		defaultLimit:   defaultLimit,
		logger:         logger,
	}, nil
}

// Upload godoc
//
//	@Summary		Upload photo
//	@Description	Stores the image and a 300x300 thumbnail and records a published photo. Set draft=true to keep it unpublished.
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image		formData	file	true	"Image file"
//	@Param			title		formData	string	true	"Title"
//	@Param			description	formData	string	false	"Description"
//	@Param			tags		formData	[]string	false	"Tags"
//	@Param			year		formData	int		false	"Event year"
//	@Param			month		formData	int		false	"Event month"
//	@Param			meeting_id	formData	string	false	"Meeting reference"
//	@Param			draft		formData	bool	false	"Keep as draft"
//	@Success		201	{object}	response.Envelope{data=Photo}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/photos [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, false, "Photo uploaded successfully")
}

// UploadDraft godoc
//
//	@Summary		Upload draft photo
//	@Description	Same as Upload but the photo is always stored as a draft.
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image	formData	file	true	"Image file"
//	@Param			title	formData	string	true	"Title"
//	@Success		201	{object}	response.Envelope{data=Photo}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		413	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/photos/drafts [post]
func (h *Handler) UploadDraft(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, true, "Draft created!")
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, forceDraft bool, message string) {
	if r.ContentLength > h.maxUploadBytes {
		response.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	desc, err := descriptorFromForm(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "image file is required")
		return
	}
	defer file.Close()

	path, err := h.stage(file, header)
	if err != nil {
		h.logger.Error("stage upload failed", "err", err)
		response.InternalError(w, "")
		return
	}

	isDraft := forceDraft || formBool(r.FormValue("draft"))
	p, err := h.svc.Ingest(r.Context(), desc, path, isDraft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("photo uploaded", "id", p.ID, "draft", isDraft, "uploaded_by", middleware.UserID(r.Context()))
	response.Created(w, message, p)
}

// List godoc
//
//	@Summary		List photos
//	@Description	Published, non-private photos, newest first unless sortBy=oldest.
//	@Tags			photos
//	@Produce		json
//	@Param			sortBy	query		string	false	"oldest for ascending creation order"
//	@Param			limit	query		int		false	"Page size"
//	@Param			page	query		int		false	"1-based page number"
//	@Success		200		{object}	ListResponse
//	@Failure		500		{object}	response.Envelope
//	@Router			/photos [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := ParseListOptions(q.Get("sortBy"), q.Get("limit"), q.Get("page"), h.defaultLimit)

	page, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, ListResponse{
		Status:  http.StatusOK,
		Message: "Photos fetched successfully",
		Photos:  page,
	})
}

// ListResponse is the listing envelope. The page travels under "photos"
// rather than the generic "data" key.
type ListResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Photos  *Page  `json:"photos"`
}

// stage copies the uploaded part into uploadDir. The caller owns the returned file.
func (h *Handler) stage(src multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	path := dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return path, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var perr *Error
	if !errors.As(err, &perr) {
		h.logger.Error("unexpected error", "err", err)
		response.InternalError(w, "")
		return
	}

	switch {
	case perr.Kind == KindValidation:
		response.BadRequest(w, perr.Err.Error())
	case errors.Is(perr, derivative.ErrTooLarge):
		response.TooLarge(w, "image dimensions exceed the allowed size")
	default:
		h.logger.Error("request failed", "op", perr.Op, "kind", perr.Kind, "step", perr.Step, "err", perr.Err)
		response.InternalError(w, perr.Op+" failed")
	}
}

// descriptorFromForm reads the descriptor fields. Tags may be repeated or comma separated.
func descriptorFromForm(r *http.Request) (Descriptor, error) {
	desc := Descriptor{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		MeetingID:   r.FormValue("meeting_id"),
	}

	for _, v := range r.MultipartForm.Value["tags"] {
		desc.Tags = append(desc.Tags, strings.Split(v, ",")...)
	}

	var err error
	if desc.Year, err = formInt(r, "year"); err != nil {
		return Descriptor{}, err
	}
	if desc.Month, err = formInt(r, "month"); err != nil {
		return Descriptor{}, err
	}
	return desc, nil
}

func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func formBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
