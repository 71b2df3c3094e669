package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

// Inputs are checked before any request leaves the machine, so obviously
// bad data fails fast even while offline. The server repeats every check.

// TripInput is the body of a create-trip request.
type TripInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Destination string `json:"destination" validate:"required,max=200"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Validate checks field formats and that the trip does not end before it
// starts.
func (in TripInput) Validate() error {
	if err := validateInput(in); err != nil {
		return err
	}
	start, _ := time.Parse(model.DateLayout, in.StartDate)
	end, _ := time.Parse(model.DateLayout, in.EndDate)
	if end.Before(start) {
		return apperror.ValidationFailed("endDate", "end date must be after start date")
	}
	return nil
}

type JoinInput struct {
	InviteCode string `json:"inviteCode" validate:"required,len=6,alphanum"`
}

func (in JoinInput) Validate() error { return validateInput(in) }

type WishlistInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Category    string `json:"category,omitempty" validate:"omitempty,oneof=Attractions Events Restaurants Other"`
}

func (in WishlistInput) Validate() error { return validateInput(in) }

type MemoryInput struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Content   string   `json:"content" validate:"required,max=10000"`
	MediaURLs []string `json:"mediaUrls,omitempty" validate:"max=20"`
}

func (in MemoryInput) Validate() error { return validateInput(in) }

// Answer is the assistant's reply. Results stay raw; their shape depends on
// the function that produced them.
type Answer struct {
	Text          string `json:"text"`
	FunctionCalls []struct {
		Name string            `json:"name"`
		Args map[string]string `json:"args"`
	} `json:"functionCalls"`
	FunctionResults []struct {
		Name   string          `json:"name"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	} `json:"functionResults"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	case "datetime":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	case "len", "alphanum":
		if field == "inviteCode" {
			return apperror.ValidationFailed(field, "invalid invite code")
		}
	}
	return apperror.ValidationFailed(field, fmt.Sprintf("%s is invalid", field))
}
