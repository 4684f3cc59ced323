package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"storefront-payment-api/models"
	"storefront-payment-api/queue"
	"storefront-payment-api/utils"
)

const ReconciliationTokenHeader = "X-Reconciliation-Token"

// JobEnqueuer is satisfied by *queue.Queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
}

// ReconciliationHandler receives confirmations of out-of-band payments (bank
// transfers, device confirmations) and hands them to the worker.
type ReconciliationHandler struct {
	queue JobEnqueuer
	token string
}

func NewReconciliationHandler(q JobEnqueuer, token string) *ReconciliationHandler {
	return &ReconciliationHandler{queue: q, token: token}
}

func (h *ReconciliationHandler) HandleReconciliation(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		log.Printf("Rejected reconciliation call from %s", r.RemoteAddr)
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid reconciliation token")
		return
	}

	var ev models.ReconciliationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Printf("Error decoding reconciliation event: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ev.OrderID = strings.TrimSpace(ev.OrderID)
	if ev.OrderID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if ev.Outcome != models.OutcomeConfirmed && ev.Outcome != models.OutcomeCancelled {
		utils.SendErrorResponse(w, http.StatusBadRequest, "outcome must be confirmed or cancelled")
		return
	}

	log.Printf("[Order: %s] Received reconciliation %s (external reference %q)",
		ev.OrderID, ev.Outcome, ev.ExternalReference)

	data, err := queue.PayloadData(ev)
	if err != nil {
		log.Printf("[Order: %s] Error encoding reconciliation job: %v", ev.OrderID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.queue.Enqueue(r.Context(), queue.JobTypeReconcilePayment, data); err != nil {
		log.Printf("[Order: %s] Error enqueueing reconciliation: %v", ev.OrderID, err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Could not accept reconciliation, please retry")
		return
	}

	utils.SendJSON(w, http.StatusAccepted, models.APIResponse{
		Status:  "accepted",
		Message: "Reconciliation queued",
	})
}

// authorized rejects every call while no token is configured.
func (h *ReconciliationHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.Header.Get(ReconciliationTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
