package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/service"
)

// ExploreHandler serves curated suggestions. Admins author them; any
// member can promote one into the wishlist.
type ExploreHandler struct {
	explore *service.ExploreService
	logger  *slog.Logger
}

func NewExploreHandler(explore *service.ExploreService, logger *slog.Logger) *ExploreHandler {
	return &ExploreHandler{explore: explore, logger: logger}
}

type exploreRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,oneof=Attractions Events Restaurants Other"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	URL         string `json:"url" validate:"omitempty,url"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

// HTTP: GET /api/trips/{tripID}/explore
func (h *ExploreHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.explore.List(r.Context(), callerID(r), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: POST /api/trips/{tripID}/explore
func (h *ExploreHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req exploreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.explore.Create(r.Context(), callerID(r), chi.URLParam(r, "tripID"), service.ExploreInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.Category(req.Category),
		Date:        req.Date,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HTTP: DELETE /api/explore/{itemID}
func (h *ExploreHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.explore.Delete(r.Context(), callerID(r), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePromote copies a suggestion into the wishlist.
//
// HTTP: POST /api/explore/{itemID}/promote
func (h *ExploreHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	item, err := h.explore.Promote(r.Context(), callerID(r), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
