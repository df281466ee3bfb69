package upload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/uploadee/relay/internal/middleware"
	"github.com/uploadee/relay/internal/response"
	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/uploadee"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	maxMemory         = 8 << 20
)

// Handler holds HTTP handlers for relay endpoints.
type Handler struct {
	svc      *Service
	maxBytes int64
	logger   *slog.Logger
}

// NewHandler creates a new upload Handler accepting files of up to maxBytes.
func NewHandler(svc *Service, maxBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, maxBytes: maxBytes, logger: logger}
}

// Routes registers the relay endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// Create godoc
//
//	@Summary		Relay a file to upload.ee
//	@Description	Uploads the submitted file to upload.ee and returns the public download link.
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File to relay"
//	@Success		201		{object}	response.Envelope{data=Upload}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Failure		504		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	limit := h.maxBytes + multipartOverhead
	if r.ContentLength > limit {
		h.tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(w)
			return
		}
		response.BadRequest(w, "expected multipart/form-data with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		h.tooLarge(w)
		return
	}

	u, err := h.svc.Relay(r.Context(), Input{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		RequestedBy: middleware.Subject(r.Context()),
	})
	if err != nil {
		h.relayError(w, err)
		return
	}

	response.Created(w, u)
}

// Get godoc
//
//	@Summary		Get a relayed upload
//	@Description	Returns the recorded outcome of one relay.
//	@Tags			uploads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Upload record ID"
//	@Success		200	{object}	response.Envelope{data=Upload}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		503	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/uploads/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.lookupError(w, err)
		return
	}
	response.OK(w, u)
}

// List godoc
//
//	@Summary		List relayed uploads
//	@Description	Returns the most recent relays, newest first.
//	@Tags			uploads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Maximum number of records (1-100)"	default(20)
//	@Success		200		{object}	response.Envelope{data=[]Upload}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		503		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			response.BadRequest(w, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	uploads, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	response.OK(w, uploads)
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	response.TooLarge(w, "file exceeds "+humanize.IBytes(uint64(h.maxBytes)))
}

func (h *Handler) relayError(w http.ResponseWriter, err error) {
	var statusErr *session.StatusError
	switch {
	case errors.Is(err, ErrInvalidFileName),
		errors.Is(err, uploadee.ErrInvalidArgument),
		errors.Is(err, uploadee.ErrFileNotFound):
		response.BadRequest(w, err.Error())
	case errors.Is(err, uploadee.ErrUpload):
		response.BadGateway(w, err.Error())
	case session.IsTimeout(err):
		response.GatewayTimeout(w, "upload.ee did not respond in time")
	case errors.As(err, &statusErr):
		response.BadGateway(w, "upload.ee returned "+statusErr.Status)
	case errors.Is(err, context.Canceled):
		response.ServiceUnavailable(w, "request cancelled")
	default:
		h.logger.Error("relay", "error", err)
		response.InternalError(w)
	}
}

func (h *Handler) lookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "upload not found")
	case errors.Is(err, ErrHistoryDisabled):
		response.ServiceUnavailable(w, err.Error())
	default:
		h.logger.Error("upload lookup", "error", err)
		response.InternalError(w)
	}
}
