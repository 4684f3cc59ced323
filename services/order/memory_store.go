package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-payment-api/models"
)

// MemoryStore keeps orders in process memory. It is used by tests and by
// deployments that embed the pipeline without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*models.Order
	invoices map[string]*models.Invoice // keyed by order id
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*models.Order),
		invoices: make(map[string]*models.Invoice),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	s.orders[order.ID] = order.Snapshot()
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o.Snapshot(), nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, order *models.Order, expected models.OrderStatus, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s", ErrConcurrentUpdate, order.ID, current.Status, expected)
	}
	if current.Payment.AttemptID != order.Payment.AttemptID {
		return fmt.Errorf("%w: order %s", ErrAttemptAbandoned, order.ID)
	}
	stored := order.Snapshot()
	stored.Payment.AttemptID = ""
	s.orders[order.ID] = stored
	if invoice != nil {
		inv := *invoice
		s.invoices[order.ID] = &inv
	}
	return nil
}

func (s *MemoryStore) StartAttempt(_ context.Context, orderID, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if current.Status != models.OrderStatusAwaitingPayment {
		return fmt.Errorf("%w: order %s is %s", ErrConcurrentUpdate, orderID, current.Status)
	}
	current.Payment.AttemptID = attemptID
	return nil
}

func (s *MemoryStore) AbandonAttempt(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if current.Status != models.OrderStatusAwaitingPayment || current.Payment.AttemptID == "" {
		return fmt.Errorf("%w: %s", ErrNoAttemptInFlight, orderID)
	}
	current.Payment.AttemptID = ""
	return nil
}

func (s *MemoryStore) GetInvoiceByOrder(_ context.Context, orderID string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrInvoiceNotFound, orderID)
	}
	out := *inv
	return &out, nil
}

func (s *MemoryStore) SettleOrder(_ context.Context, order *models.Order, expected models.OrderStatus, invoiceStatus models.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s", ErrConcurrentUpdate, order.ID, current.Status, expected)
	}
	inv, ok := s.invoices[order.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", ErrInvoiceNotFound, order.ID)
	}
	s.orders[order.ID] = order.Snapshot()
	updated := *inv
	updated.Status = invoiceStatus
	updated.UpdatedAt = s.now()
	s.invoices[order.ID] = &updated
	return nil
}
