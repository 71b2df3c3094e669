package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/assistant"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// AssistantService answers questions about a trip with the help of a
// generative model. The model may request trip functions; the service runs
// them against the trip's own data and returns their results next to the
// model's text.
type AssistantService struct {
	access   tripAccess
	members  repository.MemberRepository
	explore  repository.ExploreRepository
	wishlist repository.WishlistRepository
	memories repository.MemoryRepository
	model    assistant.Model
	logger   *slog.Logger
}

func NewAssistantService(
	trips repository.TripRepository,
	members repository.MemberRepository,
	explore repository.ExploreRepository,
	wishlist repository.WishlistRepository,
	memories repository.MemoryRepository,
	llm assistant.Model,
	logger *slog.Logger,
) *AssistantService {
	return &AssistantService{
		access:   tripAccess{trips: trips, members: members},
		members:  members,
		explore:  explore,
		wishlist: wishlist,
		memories: memories,
		model:    llm,
		logger:   logger,
	}
}

// FunctionResult is the outcome of one function the model asked for.
// Exactly one of Result and Error is set.
type FunctionResult struct {
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Answer is returned to the client for a trip question.
type Answer struct {
	Text            string                   `json:"text"`
	FunctionCalls   []assistant.FunctionCall `json:"functionCalls"`
	FunctionResults []FunctionResult         `json:"functionResults"`
}

// WeatherRequest asks for a weather outlook. Date narrows it to one day.
type WeatherRequest struct {
	Destination string `json:"destination"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Date        string `json:"date,omitempty"`
}

// Activities groups everything planned or suggested for a trip.
type Activities struct {
	Explore  []model.ExploreItem  `json:"explore"`
	Wishlist []model.WishlistItem `json:"wishlist"`
}

// Ask sends the question, together with the trip and its members, to the
// model and runs any functions it requests. A failing function is reported
// in its FunctionResult and does not fail the whole answer.
func (s *AssistantService) Ask(ctx context.Context, userID, tripID, question string) (*Answer, error) {
	trip, _, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	question, err = required("question", question)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service/assistant: listing members: %w", err)
	}

	system, err := tripContext(trip, members)
	if err != nil {
		return nil, err
	}
	reply, err := s.model.Complete(ctx, assistant.Request{
		System: system,
		Prompt: question,
		Tools:  assistant.TripTools,
	})
	if err != nil {
		return nil, fmt.Errorf("service/assistant: %w", err)
	}

	answer := &Answer{
		Text:            reply.Text,
		FunctionCalls:   reply.FunctionCalls,
		FunctionResults: make([]FunctionResult, 0, len(reply.FunctionCalls)),
	}
	if answer.FunctionCalls == nil {
		answer.FunctionCalls = []assistant.FunctionCall{}
	}
	for _, call := range reply.FunctionCalls {
		result, err := s.run(ctx, trip, members, call)
		fr := FunctionResult{Name: call.Name, Result: result}
		if err != nil {
			s.logger.Warn("assistant function failed",
				slog.String("function", call.Name),
				slog.String("tripID", tripID),
				slog.String("error", err.Error()),
			)
			fr = FunctionResult{Name: call.Name, Error: err.Error()}
		}
		answer.FunctionResults = append(answer.FunctionResults, fr)
	}

	s.logger.Info("assistant answered",
		slog.String("tripID", tripID),
		slog.Int("functionCalls", len(reply.FunctionCalls)),
	)
	return answer, nil
}

// Weather asks the model for a short weather outlook.
func (s *AssistantService) Weather(ctx context.Context, req WeatherRequest) (string, error) {
	destination, err := required("destination", req.Destination)
	if err != nil {
		return "", err
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		return "", err
	}

	var prompt string
	if req.Date != "" {
		if _, err := parseDate("date", req.Date); err != nil {
			return "", err
		}
		prompt = fmt.Sprintf(
			"Give a short, family-friendly weather outlook for %s on %s. Mention temperature range, rain chances and what to pack.",
			destination, req.Date)
	} else {
		prompt = fmt.Sprintf(
			"Give a short, family-friendly summary of the typical weather in %s between %s and %s. Mention temperature range, rain chances and what to pack.",
			destination, req.StartDate, req.EndDate)
	}

	reply, err := s.model.Complete(ctx, assistant.Request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("service/assistant: weather: %w", err)
	}
	summary := strings.TrimSpace(reply.Text)
	if summary == "" {
		return "", fmt.Errorf("service/assistant: weather: model returned an empty summary")
	}
	return summary, nil
}

func (s *AssistantService) run(ctx context.Context, trip *model.Trip, members []model.TripMember, call assistant.FunctionCall) (any, error) {
	date := call.Args["date"]
	if date != "" {
		if _, err := parseDate("date", date); err != nil {
			return nil, err
		}
	}

	switch call.Name {
	case assistant.FuncTripWeather:
		summary, err := s.Weather(ctx, WeatherRequest{
			Destination: trip.Destination,
			StartDate:   trip.StartDate,
			EndDate:     trip.EndDate,
			Date:        date,
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"summary": summary}, nil

	case assistant.FuncTripActivities:
		return s.activities(ctx, trip.ID, date, model.Category(call.Args["category"]))

	case assistant.FuncTripMemories:
		memories, err := s.memories.ListMemories(ctx, trip.ID, date)
		if err != nil {
			return nil, fmt.Errorf("listing memories: %w", err)
		}
		return memories, nil

	case assistant.FuncTripTravelInfo:
		id := call.Args["memberId"]
		if id == "" {
			return members, nil
		}
		for _, m := range members {
			if m.ID == id || m.UserID == id {
				return []model.TripMember{m}, nil
			}
		}
		return nil, apperror.NotFound("trip member", id)
	}
	return nil, fmt.Errorf("unknown function %q", call.Name)
}

// activities returns explore items and wishlist entries, filtered by date
// and category. Wishlist items carry no date, so the date filter only
// narrows explore items; undated explore items always match.
func (s *AssistantService) activities(ctx context.Context, tripID, date string, category model.Category) (*Activities, error) {
	if category != "" && !category.Valid() {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", category))
	}

	explore, err := s.explore.ListExploreItems(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("listing explore items: %w", err)
	}
	wishlist, err := s.wishlist.ListWishlistItems(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist: %w", err)
	}

	out := &Activities{Explore: []model.ExploreItem{}, Wishlist: []model.WishlistItem{}}
	for _, it := range explore {
		if category != "" && it.Category != category {
			continue
		}
		if date != "" && it.Date != "" && it.Date != date {
			continue
		}
		out.Explore = append(out.Explore, it)
	}
	for _, it := range wishlist {
		if category != "" && it.Category != category {
			continue
		}
		out.Wishlist = append(out.Wishlist, it)
	}
	return out, nil
}

// tripContext renders the system prompt: instructions plus the trip and its
// members as JSON.
func tripContext(trip *model.Trip, members []model.TripMember) (string, error) {
	type memberSummary struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Role          string `json:"role"`
		ArrivalDate   string `json:"arrivalDate,omitempty"`
		DepartureDate string `json:"departureDate,omitempty"`
	}
	summaries := make([]memberSummary, 0, len(members))
	for _, m := range members {
		summaries = append(summaries, memberSummary{
			ID: m.ID, Name: m.Name, Role: string(m.Role),
			ArrivalDate: m.ArrivalDate, DepartureDate: m.DepartureDate,
		})
	}

	data, err := json.Marshal(struct {
		Trip    *model.Trip     `json:"trip"`
		Members []memberSummary `json:"members"`
	}{trip, summaries})
	if err != nil {
		return "", fmt.Errorf("service/assistant: encoding trip context: %w", err)
	}

	return "You are a helpful assistant for a family trip. Answer briefly. " +
		"Call a function when you need weather, activities, memories or travel plans.\n" +
		"Trip data: " + string(data), nil
}
