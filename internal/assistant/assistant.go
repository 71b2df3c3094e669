// Package assistant talks to the generative model behind the trip assistant.
//
// The service layer only sees the Model interface. HTTPModel is the
// production implementation and speaks the OpenAI-compatible chat
// completions dialect most hosted providers accept.
package assistant

import (
	"context"
	"encoding/json"
)

// Names of the functions the model may ask the server to run.
const (
	FuncTripWeather    = "getTripWeather"
	FuncTripActivities = "getTripActivities"
	FuncTripMemories   = "getTripMemories"
	FuncTripTravelInfo = "getTripTravelInfo"
)

// Tool describes one callable function. Params maps each optional argument
// name to a short description; every argument is a string.
type Tool struct {
	Name        string
	Description string
	Params      map[string]string
}

// TripTools is the function set offered with every trip question.
var TripTools = []Tool{
	{
		Name:        FuncTripWeather,
		Description: "Weather outlook for the trip destination, optionally for one day.",
		Params:      map[string]string{"date": "Day in YYYY-MM-DD format"},
	},
	{
		Name:        FuncTripActivities,
		Description: "Planned and suggested activities for the trip.",
		Params: map[string]string{
			"date":     "Day in YYYY-MM-DD format",
			"category": "One of Attractions, Events, Restaurants, Other",
		},
	},
	{
		Name:        FuncTripMemories,
		Description: "Journal entries the family wrote during the trip.",
		Params:      map[string]string{"date": "Day in YYYY-MM-DD format"},
	},
	{
		Name:        FuncTripTravelInfo,
		Description: "Arrival and departure plans of trip members.",
		Params:      map[string]string{"memberId": "Trip member or user id"},
	},
}

// Request is a single-turn prompt.
type Request struct {
	System string
	Prompt string
	Tools  []Tool
}

// FunctionCall is a function invocation requested by the model.
type FunctionCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// Reply is the model's answer: free text, function calls, or both.
type Reply struct {
	Text          string
	FunctionCalls []FunctionCall
}

// Model generates a reply for a request.
type Model interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}

// decodeArgs turns the JSON-encoded argument object of a tool call into a
// flat string map. Non-string values are kept in their JSON form.
func decodeArgs(raw string) (map[string]string, error) {
	args := map[string]string{}
	if raw == "" {
		return args, nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, err
	}
	for k, v := range generic {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			args[k] = s
			continue
		}
		args[k] = string(v)
	}
	return args, nil
}
