package middleware

import "context"

type userHolderKey struct{}

// userHolder carries the user id from an inner middleware back out to Logger.
type userHolder struct {
	userID string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey{}, h)
}
