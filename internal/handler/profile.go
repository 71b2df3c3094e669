package handler

import (
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/service"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Me(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// HandleUpdate changes the display name.
//
// HTTP: PATCH /api/me
// REQUEST BODY: {"name": "Grandma"}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.profiles.Update(r.Context(), callerID(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleAvatar replaces the avatar with an uploaded image.
//
// HTTP: POST /api/me/avatar (multipart/form-data, field "file")
func (h *ProfileHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, avatarFormLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	p, err := h.profiles.UploadAvatar(r.Context(), callerID(r), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("avatar updated", slog.String("userID", p.ID))
	writeJSON(w, http.StatusOK, p)
}

// Multipart form ceilings: the bucket limit plus room for form overhead.
// The media store enforces the exact bucket limit.
const (
	avatarFormLimit = 3 << 20
	memoryFormLimit = 11 << 20
)

// formFile pulls the "file" part out of a multipart upload.
func formFile(w http.ResponseWriter, r *http.Request, limit int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, apperror.ValidationFailed("file", "upload is too large or not multipart/form-data")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apperror.ValidationFailed("file", "file is required")
	}
	return file, header, nil
}
