package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront-payment-api/models"
	"storefront-payment-api/services/order"
	"storefront-payment-api/types"
)

// OrderRepository is the MySQL implementation of order.Store.
type OrderRepository struct {
	conn *Connection
	now  func() time.Time
}

var _ order.Store = (*OrderRepository)(nil)

func NewOrderRepository(conn *Connection) *OrderRepository {
	return &OrderRepository{conn: conn, now: time.Now}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	return r.inTransaction(ctx, func(tx *Transaction) error {
		return tx.InsertOrder(ctx, o)
	})
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, reference, customer_id, customer_email, customer_name,
			currency, lines_json, summary_json, payment_method, payment_result,
			attempts, attempt_id, status, failure_kind, created_at, updated_at
		FROM orders
		WHERE id = ?
	`

	var (
		o                    models.Order
		lines, summary       []byte
		result               []byte
		method, status, kind string
	)
	err := r.conn.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.Reference, &o.Customer.ID, &o.Customer.Email, &o.Customer.Name,
		&o.Currency, &lines, &summary, &method, &result,
		&o.Payment.Attempts, &o.Payment.AttemptID, &status, &kind, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	o.Payment.Method = types.PaymentMethod(method)
	o.Status = models.OrderStatus(status)
	o.FailureKind = models.FailureKind(kind)

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode lines of order %s: %w", id, err)
	}
	if err := json.Unmarshal(summary, &o.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of order %s: %w", id, err)
	}
	if len(result) > 0 {
		o.Payment.Result = &models.PaymentResult{}
		if err := json.Unmarshal(result, o.Payment.Result); err != nil {
			return nil, fmt.Errorf("failed to decode payment result of order %s: %w", id, err)
		}
	}
	return &o, nil
}

func (r *OrderRepository) UpdateOrder(ctx context.Context, o *models.Order, expected models.OrderStatus, invoice *models.Invoice) error {
	return r.inTransaction(ctx, func(tx *Transaction) error {
		updated, err := tx.CompareAndUpdateOrder(ctx, o, expected)
		if err != nil {
			return err
		}
		if !updated {
			if err := conflict(ctx, tx, o, expected); err != nil {
				return err
			}
		}
		if invoice != nil {
			return tx.UpsertInvoice(ctx, invoice)
		}
		return nil
	})
}

func (r *OrderRepository) StartAttempt(ctx context.Context, orderID, attemptID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.conn.db.ExecContext(ctx,
		`UPDATE orders SET attempt_id = ? WHERE id = ? AND status = ?`,
		attemptID, orderID, string(models.OrderStatusAwaitingPayment),
	)
	if err != nil {
		return fmt.Errorf("failed to start attempt on order %s: %w", orderID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	return r.missingOr(ctx, orderID, order.ErrConcurrentUpdate)
}

func (r *OrderRepository) AbandonAttempt(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.conn.db.ExecContext(ctx,
		`UPDATE orders SET attempt_id = '' WHERE id = ? AND status = ? AND attempt_id <> ''`,
		orderID, string(models.OrderStatusAwaitingPayment),
	)
	if err != nil {
		return fmt.Errorf("failed to abandon attempt on order %s: %w", orderID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		log.Printf("[Order: %s] Recorded attempt cleared", orderID)
		return nil
	}
	return r.missingOr(ctx, orderID, order.ErrNoAttemptInFlight)
}

// missingOr explains an update that matched no row: the order is either
// gone or not in the state the update needed.
func (r *OrderRepository) missingOr(ctx context.Context, orderID string, otherwise error) error {
	var status string
	err := r.conn.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to read status of order %s: %w", orderID, err)
	}
	return fmt.Errorf("%w: order %s is %s", otherwise, orderID, status)
}

func (r *OrderRepository) GetInvoiceByOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, order_id, number, status, currency,
			subtotal_ht, tax_amount, total_ttc, created_at, updated_at
		FROM invoices
		WHERE order_id = ?
	`

	var (
		inv    models.Invoice
		status string
	)
	err := r.conn.db.QueryRowContext(ctx, query, orderID).Scan(
		&inv.ID, &inv.OrderID, &inv.Number, &status, &inv.Currency,
		&inv.SubtotalHT, &inv.TaxAmount, &inv.TotalTTC, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", order.ErrInvoiceNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice for order %s: %w", orderID, err)
	}
	inv.Status = models.InvoiceStatus(status)
	return &inv, nil
}

func (r *OrderRepository) SettleOrder(ctx context.Context, o *models.Order, expected models.OrderStatus, invoiceStatus models.InvoiceStatus) error {
	return r.inTransaction(ctx, func(tx *Transaction) error {
		updated, err := tx.CompareAndUpdateOrder(ctx, o, expected)
		if err != nil {
			return err
		}
		if !updated {
			if err := conflict(ctx, tx, o, expected); err != nil {
				return err
			}
		}
		found, err := tx.UpdateInvoiceStatus(ctx, o.ID, invoiceStatus, r.now())
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: order %s", order.ErrInvoiceNotFound, o.ID)
		}
		return nil
	})
}

// conflict explains why a compare-and-swap matched no row.
func conflict(ctx context.Context, tx *Transaction, o *models.Order, expected models.OrderStatus) error {
	id := o.ID
	status, attemptID, err := tx.CurrentState(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read status of order %s: %w", id, err)
	}
	if status != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s", order.ErrConcurrentUpdate, id, status, expected)
	}
	if attemptID != o.Payment.AttemptID {
		return fmt.Errorf("%w: order %s", order.ErrAttemptAbandoned, id)
	}
	// Matched but every value was already current.
	return nil
}

func (r *OrderRepository) inTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := r.conn.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("Error rolling back transaction: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
