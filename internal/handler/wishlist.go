package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/service"
)

type WishlistHandler struct {
	wishlist *service.WishlistService
	logger   *slog.Logger
}

func NewWishlistHandler(wishlist *service.WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, logger: logger}
}

type wishlistRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"omitempty,oneof=Attractions Events Restaurants Other"`
}

func (req wishlistRequest) input() service.WishlistInput {
	return service.WishlistInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.Category(req.Category),
	}
}

// HTTP: GET /api/trips/{tripID}/wishlist
func (h *WishlistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.wishlist.List(r.Context(), callerID(r), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HTTP: POST /api/trips/{tripID}/wishlist
func (h *WishlistHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.wishlist.Add(r.Context(), callerID(r), chi.URLParam(r, "tripID"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HTTP: PUT /api/wishlist/{itemID}
func (h *WishlistHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req wishlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.wishlist.Update(r.Context(), callerID(r), chi.URLParam(r, "itemID"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type completedRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// HTTP: PUT /api/wishlist/{itemID}/completed
// REQUEST BODY: {"completed": true}
func (h *WishlistHandler) HandleSetCompleted(w http.ResponseWriter, r *http.Request) {
	var req completedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.wishlist.SetCompleted(r.Context(), callerID(r), chi.URLParam(r, "itemID"), *req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HTTP: DELETE /api/wishlist/{itemID}
func (h *WishlistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.wishlist.Delete(r.Context(), callerID(r), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
