package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"storefront-payment-api/models"
)

type Transaction struct {
	tx *sql.Tx
}

func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *Transaction) InsertOrder(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	row, err := encodeOrder(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, reference, customer_id, customer_email, customer_name,
			currency, lines_json, summary_json, payment_method, payment_result,
			attempts, status, failure_kind, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = t.tx.ExecContext(ctx, query,
		order.ID, order.Reference, order.Customer.ID, order.Customer.Email, order.Customer.Name,
		order.Currency, row.lines, row.summary, string(order.Payment.Method), row.resultArg(),
		order.Payment.Attempts, string(order.Status), string(order.FailureKind),
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Printf("Error inserting order %s: %v", order.ID, err)
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// CompareAndUpdateOrder writes the mutable order columns only if the stored
// status is still expected and the recorded attempt is still the order's. The
// recorded attempt is cleared. It reports whether a row was updated.
func (t *Transaction) CompareAndUpdateOrder(ctx context.Context, order *models.Order, expected models.OrderStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	row, err := encodeOrder(order)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE orders
		SET payment_method = ?, payment_result = ?, attempts = ?, attempt_id = '',
			status = ?, failure_kind = ?, updated_at = ?
		WHERE id = ? AND status = ? AND attempt_id = ?
	`

	result, err := t.tx.ExecContext(ctx, query,
		string(order.Payment.Method), row.resultArg(), order.Payment.Attempts,
		string(order.Status), string(order.FailureKind), order.UpdatedAt.UTC(),
		order.ID, string(expected), order.Payment.AttemptID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpsertInvoice keeps a single invoice per order: a retry that reaches the
// gateway again replaces the previous one.
func (t *Transaction) UpsertInvoice(ctx context.Context, inv *models.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO invoices (
			id, order_id, number, status, currency,
			subtotal_ht, tax_amount, total_ttc, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = VALUES(id), number = VALUES(number), status = VALUES(status),
			subtotal_ht = VALUES(subtotal_ht), tax_amount = VALUES(tax_amount),
			total_ttc = VALUES(total_ttc), updated_at = VALUES(updated_at)
	`

	_, err := t.tx.ExecContext(ctx, query,
		inv.ID, inv.OrderID, inv.Number, string(inv.Status), inv.Currency,
		inv.SubtotalHT, inv.TaxAmount, inv.TotalTTC,
		inv.CreatedAt.UTC(), inv.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Printf("Error saving invoice %s for order %s: %v", inv.Number, inv.OrderID, err)
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func (t *Transaction) UpdateInvoiceStatus(ctx context.Context, orderID string, status models.InvoiceStatus, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := t.tx.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE order_id = ?`,
		string(status), at.UTC(), orderID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update invoice status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type orderRow struct {
	lines   []byte
	summary []byte
	result  []byte
}

// resultArg binds a missing payment result as SQL NULL.
func (r orderRow) resultArg() any {
	if len(r.result) == 0 {
		return nil
	}
	return r.result
}

func encodeOrder(order *models.Order) (orderRow, error) {
	var row orderRow
	var err error

	if row.lines, err = json.Marshal(order.Lines); err != nil {
		return row, fmt.Errorf("failed to encode order lines: %w", err)
	}
	if row.summary, err = json.Marshal(order.Summary); err != nil {
		return row, fmt.Errorf("failed to encode order summary: %w", err)
	}
	if order.Payment.Result != nil {
		if row.result, err = json.Marshal(order.Payment.Result); err != nil {
			return row, fmt.Errorf("failed to encode payment result: %w", err)
		}
	}
	return row, nil
}

// CurrentState reads the stored status and recorded attempt of an order
// inside the transaction.
func (t *Transaction) CurrentState(ctx context.Context, orderID string) (models.OrderStatus, string, error) {
	var status, attemptID string
	err := t.tx.QueryRowContext(ctx, `SELECT status, attempt_id FROM orders WHERE id = ?`, orderID).Scan(&status, &attemptID)
	return models.OrderStatus(status), attemptID, err
}
