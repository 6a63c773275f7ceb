package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelswap/internal/engine"
	"modelswap/internal/manager"
	"modelswap/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	Serve(ctx context.Context, req engine.Request) (manager.Result, error)
	RequestUpdate(artifactID string) (string, error)
	Status() types.StatusResponse
	Snapshot() manager.Snapshot
}

// DesiredReader exposes the fleet desired-state record on GET /desired-state.
type DesiredReader interface {
	Read(ctx context.Context) (types.DesiredState, bool)
}

// NewMux builds the replica router. desired may be nil when no desired-state
// store is configured.
func NewMux(svc Service, desired DesiredReader) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"}),
			ExposedHeaders: []string{types.HeaderModelVersion, types.HeaderModelRepoID},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.HealthResponse{OK: true})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		snap := svc.Snapshot()
		if snap.Ready {
			writeJSON(w, http.StatusOK, types.ReadyResponse{Ready: true, ArtifactID: snap.Current.ArtifactID})
			return
		}
		msg := "model is loading"
		if !snap.Updating {
			msg = "model failed to load"
		}
		writeJSON(w, http.StatusServiceUnavailable, types.ReadyResponse{
			Ready:      false,
			Message:    msg,
			ArtifactID: snap.Current.ArtifactID,
			Error:      snap.LastError,
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		// Basic validation
		if strings.TrimSpace(req.Input) == "" {
			writeJSONError(w, http.StatusBadRequest, "input is required")
			return
		}
		if req.MaxTokens < 0 {
			writeJSONError(w, http.StatusBadRequest, "max_tokens must be >= 0")
			return
		}
		if req.Temperature < 0 {
			writeJSONError(w, http.StatusBadRequest, "temperature must be >= 0")
			return
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, generateTimeout)
			defer tcancel()
		}
		res, err := svc.Serve(ctx, engine.Request{
			Input:        req.Input,
			SystemPrompt: req.SystemPrompt,
			Params: engine.Params{
				Temperature: float32(req.Temperature),
				MaxTokens:   req.MaxTokens,
			},
		})
		if err != nil {
			// Client gone: nobody to answer.
			if r.Context().Err() != nil {
				return
			}
			if serverBaseCtx.Err() != nil {
				IncrementRejection("shutting_down")
				writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
				return
			}
			status := statusFor(err)
			if status == http.StatusServiceUnavailable {
				IncrementRejection("not_ready")
			}
			writeJSONError(w, status, err.Error())
			return
		}
		w.Header().Set(types.HeaderModelVersion, strconv.FormatInt(res.Version, 10))
		w.Header().Set(types.HeaderModelRepoID, res.ArtifactID)
		writeJSON(w, http.StatusOK, types.GenerateResponse{Output: res.Output})
	})

	r.With(requireAdmin).Post("/update-model", func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateModelRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := svc.RequestUpdate(req.ArtifactID)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusConflict {
				IncrementRejection("updating")
			}
			writeJSONError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.UpdateModelResponse{
			OK:         true,
			ArtifactID: strings.TrimSpace(req.ArtifactID),
			Message:    msg,
		})
	})

	r.Get("/desired-state", func(w http.ResponseWriter, r *http.Request) {
		if desired == nil {
			writeJSONError(w, http.StatusNotFound, "desired-state store is not configured")
			return
		}
		ds, ok := desired.Read(r.Context())
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no desired state recorded")
			return
		}
		writeJSON(w, http.StatusOK, ds)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSON enforces a JSON content type and the body size limit. It writes
// the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report 400 without size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(adminToken)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
