package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/iiif"
	"github.com/deepzoom/iiifd/observability"
	"github.com/deepzoom/iiifd/service"
)

type handler struct {
	svc    *service.Service
	logger observability.Logger
}

func (h *handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	h.dispatch(w, r, fmt.Sprintf("/%s/info.json", identifier))
}

func (h *handler) handleImage(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	region := chi.URLParam(r, "region")
	size := chi.URLParam(r, "size")
	rotation := chi.URLParam(r, "rotation")
	qualityFormat := chi.URLParam(r, "qualityFormat")
	h.dispatch(w, r, fmt.Sprintf("/%s/%s/%s/%s/%s", identifier, region, size, rotation, qualityFormat))
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request, path string) {
	req, err := iiif.ParseRequestPath(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, parseErr := http.ParseTime(ims); parseErr == nil {
			req.LastAccessTime = &t
		}
	}

	resp, err := h.svc.Call(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if resp.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Cache-Control", "no-transform")
	if !resp.LastModified.IsZero() {
		w.Header().Set("Last-Modified", resp.LastModified.UTC().Format(http.TimeFormat))
	}

	if resp.InfoJSON != nil {
		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.InfoJSON)
		return
	}

	defer resp.Body.Close()
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		if h.logger != nil {
			h.logger.Warn("httpapi.stream_interrupted", "request_id", requestID(r.Context()), "error", err.Error())
		}
	}
}

// writeServiceError maps a *apperrors.ServiceError category to the HTTP
// status spec §7 requires, falling back to 500 for anything unmapped.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	category, ok := apperrors.CategoryOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusInternalServerError
	switch category {
	case apperrors.CategoryParse:
		status = http.StatusBadRequest
	case apperrors.CategoryNotFound:
		status = http.StatusNotFound
	case apperrors.CategoryAccessDenied:
		status = http.StatusForbidden
	case apperrors.CategoryTimeout:
		status = http.StatusGatewayTimeout
	case apperrors.CategoryStorage, apperrors.CategoryTranscodeIO:
		status = http.StatusBadGateway
	case apperrors.CategoryDecode, apperrors.CategoryEncode, apperrors.CategoryTranscodeGeneric, apperrors.CategoryPipeline:
		status = http.StatusInternalServerError
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, err.Error())
}

// loggingMiddleware logs the outcome of every request, mirroring the
// teacher's hooks.LoggingHook but wired directly into the HTTP layer
// instead of the image-processing pipeline's Step hooks.
func loggingMiddleware(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if logger != nil {
				logger.Info("http.request",
					"request_id", requestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
