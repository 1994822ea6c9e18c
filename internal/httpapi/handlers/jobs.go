package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"driftcast/internal/httpkit"
	"driftcast/internal/models"
	appErr "driftcast/internal/pkg/errors"
	"driftcast/internal/renderspec"
	"driftcast/internal/store"
)

type createRenderJobRequest struct {
	Spec         map[string]any `json:"spec"`
	RequestedBy  string         `json:"requestedBy"`
	ScheduledFor *time.Time     `json:"scheduledFor,omitempty"`
}

// PostRenderJob validates the spec and inserts a PENDING job. An invalid spec
// never reaches the table.
func (h *Handler) PostRenderJob(w http.ResponseWriter, r *http.Request) {
	var req createRenderJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if req.RequestedBy == "" {
		httpkit.WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "requestedBy is required", nil)
		return
	}

	spec, err := renderspec.Parse(req.Spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if spec == nil {
		httpkit.WriteErr(w, http.StatusBadRequest, string(appErr.CodeInvalidSpec), "spec is required", nil)
		return
	}

	raw, err := renderspec.Serialize(spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	job := &models.RenderJob{
		ID:           uuid.NewString(),
		Spec:         raw,
		RequestedBy:  req.RequestedBy,
		Status:       models.JobPending,
		ScheduledFor: req.ScheduledFor,
	}
	if err := h.store.RenderJobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			httpkit.WriteErr(w, http.StatusConflict, "CONFLICT", "job already exists", nil)
			return
		}
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusCreated, job)
}

func (h *Handler) GetRenderJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	job, err := h.store.RenderJobs.Get(r.Context(), id)
	if errors.Is(err, store.ErrRenderJobNotFound) {
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "render job not found", nil)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) ListRenderJobs(w http.ResponseWriter, r *http.Request) {
	requestedBy := r.URL.Query().Get("requestedBy")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			httpkit.WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 200", nil)
			return
		}
		limit = n
	}

	jobs, err := h.store.RenderJobs.List(r.Context(), requestedBy, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type createUploadJobRequest struct {
	MediaItemID  int64      `json:"mediaItemId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Privacy      string     `json:"privacy"`
	RequestedBy  string     `json:"requestedBy"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// PostUploadJob queues a rendered media item for publishing.
func (h *Handler) PostUploadJob(w http.ResponseWriter, r *http.Request) {
	var req createUploadJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", nil)
		return
	}
	if req.RequestedBy == "" || req.Title == "" || req.MediaItemID == 0 {
		httpkit.WriteErr(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"mediaItemId, title and requestedBy are required", nil)
		return
	}

	if _, err := h.store.Media.Get(r.Context(), req.MediaItemID); err != nil {
		if errors.Is(err, store.ErrMediaNotFound) {
			httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "media item not found", nil)
			return
		}
		h.writeError(w, r, err)
		return
	}

	job := &models.UploadJob{
		ID:           uuid.NewString(),
		MediaItemID:  req.MediaItemID,
		Title:        req.Title,
		Description:  req.Description,
		Privacy:      req.Privacy,
		RequestedBy:  req.RequestedBy,
		Status:       models.JobPending,
		ScheduledFor: req.ScheduledFor,
	}
	if err := h.store.UploadJobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			httpkit.WriteErr(w, http.StatusConflict, "CONFLICT", "job already exists", nil)
			return
		}
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusCreated, job)
}

func (h *Handler) GetUploadJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	job, err := h.store.UploadJobs.Get(r.Context(), id)
	if errors.Is(err, store.ErrUploadJobNotFound) {
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "upload job not found", nil)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.log.FromContext(r.Context())

	status := appErr.GetHTTPStatus(err)
	if status >= 500 {
		log.LogError(r.Context(), "request failed", err)
	}
	httpkit.WriteErr(w, status, string(appErr.GetCode(err)), err.Error(), appErr.GetFields(err))
}
