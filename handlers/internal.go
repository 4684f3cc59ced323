package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"storefront-payment-api/middleware"
	"storefront-payment-api/models"
	"storefront-payment-api/queue"
	"storefront-payment-api/services/auth"
	"storefront-payment-api/utils"
)

const InternalSecretHeader = "X-Internal-Secret"

// JobAdmin is the part of *queue.Queue the operators' endpoints use.
type JobAdmin interface {
	Lengths(ctx context.Context) (map[string]int64, error)
	RetryJob(ctx context.Context, jobID string) error
}

// SettingsInvalidator is satisfied by *settings.Cache.
type SettingsInvalidator interface {
	Invalidate()
}

// InternalHandler serves endpoints for the storefront back office and the
// auth system. Every route requires the shared internal secret.
type InternalHandler struct {
	validator      middleware.TokenValidator
	settings       SettingsInvalidator
	jobs           JobAdmin
	internalSecret string
}

func NewInternalHandler(validator middleware.TokenValidator, settings SettingsInvalidator, jobs JobAdmin, secret string) *InternalHandler {
	if secret == "" {
		log.Printf("Warning: internal API secret not set, internal endpoints are disabled")
	}
	return &InternalHandler{
		validator:      validator,
		settings:       settings,
		jobs:           jobs,
		internalSecret: secret,
	}
}

// Register mounts every internal endpoint on r, each behind the secret.
func (h *InternalHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.RequireInternalSecret(h.InternalHealthCheck)).Methods("GET")
	r.HandleFunc("/auth/validate", h.RequireInternalSecret(h.ValidateTokenInternal)).Methods("POST")
	r.HandleFunc("/settings/invalidate", h.RequireInternalSecret(h.InvalidateSettings)).Methods("POST")
	r.HandleFunc("/queue", h.RequireInternalSecret(h.QueueStats)).Methods("GET")
	r.HandleFunc("/queue/failed/{id}/retry", h.RequireInternalSecret(h.RetryFailedJob)).Methods("POST")
}

func (h *InternalHandler) RequireInternalSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get(InternalSecretHeader)
		if h.internalSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.internalSecret)) != 1 {
			log.Printf("Invalid or missing internal secret from %s", r.RemoteAddr)
			utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// ValidateTokenInternal lets the storefront check a customer token without
// sharing the signing key.
func (h *InternalHandler) ValidateTokenInternal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Token == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Token is required")
		return
	}

	resp, err := h.validator.ValidateToken(req.Token)
	if err != nil {
		message := "Token validation failed"
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			message = "Token expired"
		case errors.Is(err, auth.ErrInvalidToken):
			message = "Invalid token"
		}

		utils.SendErrorResponse(w, http.StatusUnauthorized, message)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Token is valid",
		Data:    resp,
	})
}

// InvalidateSettings drops cached pricing and payment method settings after
// the back office changed them.
func (h *InternalHandler) InvalidateSettings(w http.ResponseWriter, r *http.Request) {
	h.settings.Invalidate()
	log.Printf("Settings cache invalidated by %s", r.RemoteAddr)

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Settings will be reloaded on next use",
	})
}

func (h *InternalHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	lengths, err := h.jobs.Lengths(r.Context())
	if err != nil {
		log.Printf("Error reading queue lengths: %v", err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Queue is unavailable")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   lengths,
	})
}

// RetryFailedJob moves a job from the failed list back onto the queue.
func (h *InternalHandler) RetryFailedJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	err := h.jobs.RetryJob(r.Context(), jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		utils.SendErrorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log.Printf("Error retrying job %s: %v", jobID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not retry job")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Job queued again",
	})
}

func (h *InternalHandler) InternalHealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Internal API is healthy",
		Data: map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "storefront-payment-api-internal",
		},
	})
}
