package testutil

import (
	"context"
	"net/http"
	"time"

	id "rwaledger/pkg/domain"
	"rwaledger/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request context.
// This simulates what the auth middleware does after validating a bearer token.
// An empty actor leaves the request anonymous.
func WithActor(req *http.Request, actor string) *http.Request {
	if actor == "" {
		return req
	}
	parsed, err := id.ParseActorID(actor)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), parsed))
}

// WithRequestTime pins the request clock that services read through requestcontext.Now.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
