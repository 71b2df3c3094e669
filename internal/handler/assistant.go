package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/family-trips/internal/service"
)

// AssistantHandler exposes the trip assistant and the weather summary.
type AssistantHandler struct {
	assistant *service.AssistantService
	logger    *slog.Logger
}

func NewAssistantHandler(assistant *service.AssistantService, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// HandleAsk answers a question about a trip.
//
// HTTP: POST /api/trips/{tripID}/assistant
// REQUEST BODY: {"question": "What's on for Tuesday?"}
// RESPONSE: {"text": "...", "functionCalls": [...], "functionResults": [...]}
func (h *AssistantHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	answer, err := h.assistant.Ask(r.Context(), callerID(r), chi.URLParam(r, "tripID"), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type weatherRequest struct {
	Destination string `json:"destination" validate:"required,max=200"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// HandleWeather summarizes the weather for a destination and date range.
//
// HTTP: POST /api/weather
// RESPONSE: {"summary": "..."}
func (h *AssistantHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	var req weatherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.assistant.Weather(r.Context(), service.WeatherRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
