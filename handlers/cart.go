package handlers

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"storefront-payment-api/models"
	"storefront-payment-api/services/pricing"
	"storefront-payment-api/utils"
)

const (
	cartSessionName = "cart-session"
	cartSessionKey  = "cart"
)

func init() {
	gob.Register([]models.CartItem{})
}

// PricingSource is satisfied by *settings.Cache.
type PricingSource interface {
	Pricing(ctx context.Context) (models.PricingConfig, error)
}

type SessionConfig struct {
	Secret string
	Domain string
	MaxAge int
	// Secure is off only for local development over plain HTTP.
	Secure bool
}

func NewSessionStore(cfg SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Cart is the session cart: at most one line per kind.
type Cart struct {
	store sessions.Store
}

func NewCart(store sessions.Store) *Cart {
	return &Cart{store: store}
}

func (c *Cart) Items(r *http.Request) ([]models.CartItem, *sessions.Session, error) {
	session, err := c.store.Get(r, cartSessionName)
	if err != nil {
		return nil, session, err
	}
	items, _ := session.Values[cartSessionKey].([]models.CartItem)
	return items, session, nil
}

func (c *Cart) Save(w http.ResponseWriter, r *http.Request, session *sessions.Session, items []models.CartItem) error {
	if len(items) == 0 {
		delete(session.Values, cartSessionKey)
	} else {
		session.Values[cartSessionKey] = items
	}
	return session.Save(r, w)
}

// Clear empties the cart once an order has taken it over.
func (c *Cart) Clear(w http.ResponseWriter, r *http.Request) error {
	_, session, err := c.Items(r)
	if err != nil {
		return err
	}
	return c.Save(w, r, session, nil)
}

type CartHandler struct {
	cart    *Cart
	pricing PricingSource
}

func NewCartHandler(cart *Cart, pricing PricingSource) *CartHandler {
	return &CartHandler{cart: cart, pricing: pricing}
}

// AddToCart adds the quantity to the line of the same kind, creating it when
// missing.
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var item models.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := models.ParseCartLineKind(string(item.Kind)); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if item.Quantity <= 0 {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	items, session, err := h.cart.Items(r)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not read cart")
		return
	}

	found := false
	for i := range items {
		if items[i].Kind == item.Kind {
			items[i].Quantity += item.Quantity
			found = true
			break
		}
	}
	if !found {
		items = append(items, item)
	}

	h.saveAndRespond(w, r, session, items, http.StatusCreated)
}

// UpdateCart changes the quantity of one line: "more" and "less" step by
// amount (default 1), "set" replaces it. A line reaching zero is removed.
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var update models.CartUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	items, session, err := h.cart.Items(r)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not read cart")
		return
	}

	idx := -1
	for i := range items {
		if items[i].Kind == update.Kind {
			idx = i
			break
		}
	}
	if idx < 0 {
		utils.SendErrorResponse(w, http.StatusNotFound, "Item not in cart")
		return
	}

	step := update.Amount
	if step <= 0 {
		step = 1
	}
	switch update.Action {
	case "more":
		items[idx].Quantity += step
	case "less":
		items[idx].Quantity -= step
	case "set":
		if update.Amount < 0 {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Quantity must not be negative")
			return
		}
		items[idx].Quantity = update.Amount
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Unknown action %q", update.Action))
		return
	}
	if items[idx].Quantity <= 0 {
		items = append(items[:idx], items[idx+1:]...)
	}

	h.saveAndRespond(w, r, session, items, http.StatusOK)
}

func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Kind models.CartLineKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	items, session, err := h.cart.Items(r)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not read cart")
		return
	}

	for i, item := range items {
		if item.Kind == request.Kind {
			items = append(items[:i], items[i+1:]...)
			break
		}
	}

	h.saveAndRespond(w, r, session, items, http.StatusOK)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, _, err := h.cart.Items(r)
	if err != nil {
		log.Printf("Error getting session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not read cart")
		return
	}

	resp, err := h.price(r.Context(), items)
	if err != nil {
		log.Printf("Error pricing cart: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not price cart")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: resp})
}

func (h *CartHandler) saveAndRespond(w http.ResponseWriter, r *http.Request, session *sessions.Session, items []models.CartItem, status int) {
	resp, err := h.price(r.Context(), items)
	if err != nil {
		log.Printf("Error pricing cart: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Could not price cart")
		return
	}

	if err := h.cart.Save(w, r, session, items); err != nil {
		log.Printf("Error saving session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Could not save cart")
		return
	}

	utils.SendJSON(w, status, models.APIResponse{Status: "success", Data: resp})
}

// price applies the current pricing configuration to the session items.
func (h *CartHandler) price(ctx context.Context, items []models.CartItem) (models.CartResponse, error) {
	cfg, err := h.pricing.Pricing(ctx)
	if err != nil {
		return models.CartResponse{}, err
	}
	engine := pricing.NewEngine(cfg)

	lines, err := engine.LinesFromItems(items)
	if err != nil {
		return models.CartResponse{}, err
	}

	resp := models.CartResponse{
		Lines:    make([]models.CartLineResponse, 0, len(lines)),
		Summary:  engine.Summarize(lines),
		Currency: engine.Currency(),
	}

	var hints []string
	for _, line := range lines {
		resp.Lines = append(resp.Lines, models.CartLineResponse{
			Kind:            line.Kind,
			Quantity:        line.Quantity,
			UnitPriceHT:     line.UnitPriceHT,
			DiscountPercent: engine.EffectiveDiscount(line),
			LineHT:          engine.LineHT(line),
		})
		if tier, ok := engine.NextTier(line.Kind, line.Quantity); ok {
			hints = append(hints, nextTierHint(line.Kind, tier))
		}
	}
	resp.NextDiscount = strings.Join(hints, "; ")
	return resp, nil
}

func nextTierHint(kind models.CartLineKind, tier pricing.Tier) string {
	unit := "months"
	if kind == models.KindTokenPack {
		unit = "tokens"
	}
	return fmt.Sprintf("Add %d more %s to get %s%% off", tier.Needed, unit, tier.Rule.Percentage.String())
}
