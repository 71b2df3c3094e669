package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/service"
)

// MemoryHandler serves the trip journal and its media uploads.
type MemoryHandler struct {
	memories *service.MemoryService
	logger   *slog.Logger
}

func NewMemoryHandler(memories *service.MemoryService, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memories: memories, logger: logger}
}

type memoryRequest struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Content   string   `json:"content" validate:"required,max=10000"`
	MediaURLs []string `json:"mediaUrls" validate:"max=20"`
}

func (req memoryRequest) input() service.MemoryInput {
	return service.MemoryInput{Date: req.Date, Content: req.Content, MediaURLs: req.MediaURLs}
}

// HandleList returns the journal, optionally for one day.
//
// HTTP: GET /api/trips/{tripID}/memories?date=2026-08-02
func (h *MemoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	memories, err := h.memories.List(r.Context(), callerID(r), chi.URLParam(r, "tripID"), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memories)
}

// HTTP: POST /api/trips/{tripID}/memories
func (h *MemoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	memory, err := h.memories.Create(r.Context(), callerID(r), chi.URLParam(r, "tripID"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, memory)
}

// HTTP: PUT /api/memories/{memoryID}
func (h *MemoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	memory, err := h.memories.Update(r.Context(), callerID(r), chi.URLParam(r, "memoryID"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

// HTTP: DELETE /api/memories/{memoryID}
func (h *MemoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.Delete(r.Context(), callerID(r), chi.URLParam(r, "memoryID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpload stores a photo or video and returns its public URL, which
// the client then attaches to a memory.
//
// HTTP: POST /api/trips/{tripID}/media (multipart/form-data, field "file")
func (h *MemoryHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, memoryFormLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	tripID := chi.URLParam(r, "tripID")
	obj, err := h.memories.UploadMedia(r.Context(), callerID(r), tripID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("memory media uploaded",
		slog.String("tripID", tripID),
		slog.String("object", obj.Name),
		slog.Int64("bytes", obj.Size),
	)
	writeJSON(w, http.StatusCreated, obj)
}
