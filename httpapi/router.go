// Package httpapi is the C6 HTTP adapter: it translates IIIF URLs into
// service.Call invocations and service.Response values into HTTP
// responses. Routing is grounded on the teacher's general-purpose
// request/response shape, given IIIF-specific structure borrowed from
// the go-chi router listed in the retrieved tile-server example's
// dependencies (Nitro-lazyraster's go.mod), since the teacher never
// exposed an HTTP surface itself.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/deepzoom/iiifd/observability"
	"github.com/deepzoom/iiifd/service"
)

type requestIDKey struct{}

// requestID extracts the correlation ID assignRequestID attached to ctx,
// or "" if none is present (e.g. in a unit test that calls a handler
// directly).
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// assignRequestID stamps every request with a UUID correlation ID, used
// by loggingMiddleware and echoed back as a response header. Grounded on
// the google/uuid + go-chi pairing seen in the pack's other tile-server
// example rather than chi's own counter-based middleware.RequestID,
// since a UUID survives across process restarts without collisions.
func assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(req.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// NewRouter builds the complete HTTP handler for the IIIF image server.
func NewRouter(svc *service.Service, logger observability.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(assignRequestID)
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	h := &handler{svc: svc, logger: logger}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Get("/{identifier}/info.json", h.handleInfo)
	r.Get("/{identifier}/{region}/{size}/{rotation}/{qualityFormat}", h.handleImage)

	return r
}
