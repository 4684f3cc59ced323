package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"storefront-payment-api/middleware"
	"storefront-payment-api/models"
	"storefront-payment-api/services/order"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/services/pricing"
	"storefront-payment-api/types"
	"storefront-payment-api/utils"
)

// OrderController is satisfied by *order.Controller.
type OrderController interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Attempt, error)
	Retry(ctx context.Context, req order.RetryRequest) (*order.Attempt, error)
	Abandon(ctx context.Context, orderID string) error
	Order(ctx context.Context, orderID string) (*models.Order, *models.Invoice, error)
}

// SettingsSource is satisfied by *settings.Cache.
type SettingsSource interface {
	PricingSource
	PaymentMethods(ctx context.Context) (models.PaymentMethodSettings, error)
}

// OrderLocker serializes attempts on one order across API instances.
type OrderLocker interface {
	LockOrder(ctx context.Context, orderID string) (bool, error)
	ReleaseLock(ctx context.Context, orderID string) error
}

type PaymentHandler struct {
	controller OrderController
	settings   SettingsSource
	cart       *Cart
	locker     OrderLocker
}

func NewPaymentHandler(controller OrderController, settings SettingsSource, cart *Cart, locker OrderLocker) (*PaymentHandler, error) {
	if controller == nil {
		return nil, fmt.Errorf("order controller is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart is required")
	}
	return &PaymentHandler{
		controller: controller,
		settings:   settings,
		cart:       cart,
		locker:     locker,
	}, nil
}

type checkoutRequest struct {
	Method string            `json:"method"`
	Fields payment.RawFields `json:"fields"`
}

type retryRequest struct {
	Fields payment.RawFields `json:"fields"`
}

// Checkout turns the session cart into an order and runs its first payment
// attempt.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log.Printf("[RequestID: %s] Starting checkout", requestID)

	customer, ok := middleware.GetCustomerFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		log.Printf("[RequestID: %s] Invalid request body: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	method, err := types.ParsePaymentMethod(req.Method)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	items, _, err := h.cart.Items(r)
	if err != nil {
		log.Printf("[RequestID: %s] Error getting session: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not read cart")
		return
	}

	pricingCfg, err := h.settings.Pricing(r.Context())
	if err != nil {
		log.Printf("[RequestID: %s] Error loading pricing: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Pricing is unavailable, please try again")
		return
	}
	methods, err := h.settings.PaymentMethods(r.Context())
	if err != nil {
		log.Printf("[RequestID: %s] Error loading payment methods: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Payment methods are unavailable, please try again")
		return
	}

	attempt, err := h.controller.Checkout(r.Context(), order.CheckoutRequest{
		Customer: customer,
		Items:    items,
		Method:   method,
		Fields:   req.Fields,
		Pricing:  pricingCfg,
		Methods:  methods,
	})
	if err != nil {
		log.Printf("[RequestID: %s] Checkout failed: %v", requestID, err)
		h.sendOrderError(w, err)
		return
	}

	log.Printf("[RequestID: %s] Order %s is %s", requestID, attempt.Order.ID, attempt.Order.Status)

	if attempt.Order.Status == models.OrderStatusPaid || attempt.Order.Status == models.OrderStatusPendingConfirmation {
		if err := h.cart.Clear(w, r); err != nil {
			log.Printf("[RequestID: %s] Error clearing cart: %v", requestID, err)
		}
	}

	sendAttempt(w, attempt)
}

// RetryOrder runs a new attempt on a failed or unpaid order, reusing its
// priced snapshot.
func (h *PaymentHandler) RetryOrder(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	orderID := mux.Vars(r)["id"]
	log.Printf("[RequestID: %s] Retrying order %s", requestID, orderID)

	if _, ok := h.ownedOrder(w, r, orderID); !ok {
		return
	}

	var req retryRequest
	if err := decodeBody(r, &req); err != nil {
		log.Printf("[RequestID: %s] Invalid request body: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.locker != nil {
		acquired, err := h.locker.LockOrder(r.Context(), orderID)
		if err != nil {
			log.Printf("[RequestID: %s] Error acquiring lock: %v", requestID, err)
			utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !acquired {
			log.Printf("[RequestID: %s] Order is being processed: %s", requestID, orderID)
			utils.SendErrorResponse(w, http.StatusConflict, order.ErrAttemptInFlight.Error())
			return
		}
		defer func() {
			if err := h.locker.ReleaseLock(context.Background(), orderID); err != nil {
				log.Printf("[RequestID: %s] Error releasing lock: %v", requestID, err)
			}
		}()
	}

	methods, err := h.settings.PaymentMethods(r.Context())
	if err != nil {
		log.Printf("[RequestID: %s] Error loading payment methods: %v", requestID, err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Payment methods are unavailable, please try again")
		return
	}

	attempt, err := h.controller.Retry(r.Context(), order.RetryRequest{
		OrderID: orderID,
		Fields:  req.Fields,
		Methods: methods,
	})
	if err != nil {
		log.Printf("[RequestID: %s] Retry failed: %v", requestID, err)
		h.sendOrderError(w, err)
		return
	}

	sendAttempt(w, attempt)
}

// AbandonOrder discards the result of the attempt in flight. The order stays
// retryable.
func (h *PaymentHandler) AbandonOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	if _, ok := h.ownedOrder(w, r, orderID); !ok {
		return
	}

	if err := h.controller.Abandon(r.Context(), orderID); err != nil {
		h.sendOrderError(w, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Payment attempt abandoned",
	})
}

func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	details, ok := h.ownedOrder(w, r, orderID)
	if !ok {
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   details,
	})
}

// ownedOrder loads the order and hides it from anyone but its customer.
func (h *PaymentHandler) ownedOrder(w http.ResponseWriter, r *http.Request, orderID string) (*models.OrderDetailsResponse, bool) {
	customer, ok := middleware.GetCustomerFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}

	o, invoice, err := h.controller.Order(r.Context(), orderID)
	if err != nil {
		h.sendOrderError(w, err)
		return nil, false
	}
	if o.Customer.ID != customer.ID {
		log.Printf("[Order: %s] Access denied to customer %s", orderID, customer.ID)
		utils.SendErrorResponse(w, http.StatusNotFound, "Order not found")
		return nil, false
	}
	return &models.OrderDetailsResponse{Order: o, Invoice: invoice}, true
}

func (h *PaymentHandler) sendOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.SendErrorResponse(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMethodUnavailable),
		errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrUnknownKind):
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrRetryNotAllowed),
		errors.Is(err, order.ErrAttemptInFlight),
		errors.Is(err, order.ErrNoAttemptInFlight),
		errors.Is(err, order.ErrAttemptAbandoned),
		errors.Is(err, order.ErrConcurrentUpdate):
		utils.SendErrorResponse(w, http.StatusConflict, err.Error())
	default:
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// sendAttempt maps the attempt outcome to a status: 422 for field errors,
// 402 for a declined payment, 202 while awaiting confirmation, 200 when paid.
func sendAttempt(w http.ResponseWriter, attempt *order.Attempt) {
	resp := models.CheckoutResponse{
		OrderID:       attempt.Order.ID,
		Reference:     attempt.Order.Reference,
		Status:        attempt.Order.Status,
		TransactionID: attempt.Result.TransactionID,
		Message:       attempt.Result.Message,
		FailureReason: attempt.Result.FailureReason,
		Summary:       attempt.Order.Summary,
		Invoice:       attempt.Invoice,
		Metadata:      attempt.Result.Metadata,
	}

	status := http.StatusOK
	apiStatus := "success"
	switch {
	case len(attempt.ValidationErrors) > 0:
		status = http.StatusUnprocessableEntity
		apiStatus = "error"
		resp.Message = "Please correct the payment details"
		for _, verr := range attempt.ValidationErrors {
			resp.ValidationErrors = append(resp.ValidationErrors, models.FieldError{Field: verr.Field, Message: verr.Message})
		}
	case attempt.Order.Status == models.OrderStatusFailed:
		status = http.StatusPaymentRequired
		apiStatus = "error"
	case attempt.Order.Status == models.OrderStatusPendingConfirmation:
		status = http.StatusAccepted
		apiStatus = "pending"
	}

	utils.SendJSON(w, status, models.APIResponse{
		Status:  apiStatus,
		Message: resp.Message,
		Data:    resp,
	})
}

// decodeBody keeps numeric method fields as json.Number so long card numbers
// sent without quotes keep every digit.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
