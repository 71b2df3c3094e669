package tripsync

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sakif/family-trips/internal/apperror"
)

// ErrorClass buckets failures for display.
type ErrorClass string

const (
	ClassNetwork ErrorClass = "network"
	ClassTimeout ErrorClass = "timeout"
	ClassJWT     ErrorClass = "jwt"
	ClassServer  ErrorClass = "server"
	ClassUnknown ErrorClass = "unknown"
)

// Classify inspects err's kind first and falls back to its message.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var netErr net.Error
	switch {
	case errors.Is(err, apperror.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ClassTimeout
	case errors.Is(err, apperror.ErrUnauthorized):
		return ClassJWT
	case errors.Is(err, apperror.ErrOffline):
		return ClassNetwork
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ClassTimeout
	case strings.Contains(msg, "jwt"), strings.Contains(msg, "token"):
		return ClassJWT
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "eof"):
		return ClassNetwork
	case strings.Contains(msg, "server error"), strings.Contains(msg, "status 5"):
		return ClassServer
	}
	return ClassUnknown
}

// Describe turns err into a short message for the user.
func Describe(err error) string {
	switch Classify(err) {
	case "":
		return ""
	case ClassNetwork:
		return "Unable to reach the server. Check your connection."
	case ClassTimeout:
		return "The server took too long to respond."
	case ClassJWT:
		return "Your session has expired. Please sign in again."
	case ClassServer:
		return "The server ran into a problem. Try again shortly."
	}
	return err.Error()
}

// transient reports whether err says the network itself is down, as
// opposed to the server answering with an error.
func transient(err error) bool {
	class := Classify(err)
	return class == ClassNetwork || class == ClassTimeout
}
