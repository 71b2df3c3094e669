package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
	"github.com/sakif/family-trips/internal/service"
)

// TripHandler serves trips and their memberships.
type TripHandler struct {
	trips  *service.TripService
	logger *slog.Logger
}

func NewTripHandler(trips *service.TripService, logger *slog.Logger) *TripHandler {
	return &TripHandler{trips: trips, logger: logger}
}

type createTripRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Destination string `json:"destination" validate:"required,max=200"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// HandleCreate creates a trip with the caller as its admin.
//
// HTTP: POST /api/trips
// REQUEST BODY: {"name":"Beach Week","destination":"Outer Banks","startDate":"2026-08-01","endDate":"2026-08-07"}
func (h *TripHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	trip, err := h.trips.Create(r.Context(), callerID(r), service.CreateTripInput{
		Name:        req.Name,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// HandleList lists the caller's trips.
//
// HTTP: GET /api/trips?scope=owned|joined&limit=N&offset=N
//
// scope defaults to "joined", which includes trips the caller created
// because creators hold an admin membership.
func (h *TripHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var trips []model.Trip
	switch scope := r.URL.Query().Get("scope"); scope {
	case "owned":
		trips, err = h.trips.ListOwned(r.Context(), callerID(r), opts)
	case "", "joined":
		trips, err = h.trips.ListJoined(r.Context(), callerID(r), opts)
	default:
		err = apperror.ValidationFailed("scope", "scope must be one of: owned joined")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

// HandleGet returns one trip.
//
// HTTP: GET /api/trips/{tripID}
func (h *TripHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.Get(r.Context(), callerID(r), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type updateSettingsRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Destination *string `json:"destination" validate:"omitempty,max=200"`
	StartDate   *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	AlbumURL    *string `json:"albumUrl" validate:"omitempty,url"`
}

// HandleUpdateSettings changes trip settings. Creator only.
//
// HTTP: PATCH /api/trips/{tripID}
// Omitted fields are left unchanged.
func (h *TripHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	trip, err := h.trips.UpdateSettings(r.Context(), callerID(r), chi.URLParam(r, "tripID"), model.TripSettings{
		Name:        req.Name,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AlbumURL:    req.AlbumURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type joinRequest struct {
	InviteCode string `json:"inviteCode" validate:"required"`
}

// HandleJoin adds the caller to the trip behind an invite code.
//
// HTTP: POST /api/trips/join
// REQUEST BODY: {"inviteCode": "ABC123"}
func (h *TripHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	member, err := h.trips.JoinByInviteCode(r.Context(), callerID(r), req.InviteCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// HandleMembers lists a trip's members.
//
// HTTP: GET /api/trips/{tripID}/members
func (h *TripHandler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.trips.Members(r.Context(), callerID(r), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// HandleMembersForTrips returns membership rows for several trips at once,
// which the dashboard uses to count members.
//
// HTTP: GET /api/members?tripIds=a,b,c
func (h *TripHandler) HandleMembersForTrips(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("tripIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, []model.TripMember{})
		return
	}
	members, err := h.trips.MembersForTrips(r.Context(), callerID(r), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type travelInfoRequest struct {
	ArrivalDate   string `json:"arrivalDate" validate:"omitempty,datetime=2006-01-02"`
	ArrivalTime   string `json:"arrivalTime" validate:"omitempty,datetime=15:04"`
	DepartureDate string `json:"departureDate" validate:"omitempty,datetime=2006-01-02"`
	DepartureTime string `json:"departureTime" validate:"omitempty,datetime=15:04"`
	TravelMethod  string `json:"travelMethod" validate:"max=50"`
	TravelDetails string `json:"travelDetails" validate:"max=1000"`
}

// HandleUpdateTravel saves the caller's own travel details.
//
// HTTP: PUT /api/trips/{tripID}/members/me
func (h *TripHandler) HandleUpdateTravel(w http.ResponseWriter, r *http.Request) {
	var req travelInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	member, err := h.trips.UpdateTravelInfo(r.Context(), callerID(r), chi.URLParam(r, "tripID"), model.TravelInfo(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// listOptions parses ?limit= and ?offset=. The repository clamps the values.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("limit", "limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
