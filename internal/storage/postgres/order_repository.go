package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

type OrderRepository struct {
	q querier
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: querier{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

// GetOrder reads the authoritative order row. Status reads while the
// order is locked must come through here, never from a cache.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	const query = `
SELECT id, cart_hash, status, lock_token, total, created_at, updated_at
FROM orders
WHERE id = $1`

	var o domain.Order
	var status string
	err := r.q.queryRow(ctx, query, id).
		Scan(&o.ID, &o.CartHash, &status, &o.LockToken, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	items, err := r.getItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepository) getItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const query = `
SELECT ticket_id, quantity, unit_price, subtotal
FROM order_items
WHERE order_id = $1
ORDER BY position ASC`

	rows, err := r.q.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.TicketID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate order items: %w", rows.Err())
	}
	return items, nil
}

// FindActiveOrderByCartHash returns the one order still occupying the
// cart's active slot, or nil when the cart has none.
func (r *OrderRepository) FindActiveOrderByCartHash(ctx context.Context, cartHash string) (*domain.Order, error) {
	const query = `
SELECT id
FROM orders
WHERE cart_hash = $1 AND status IN ('created', 'pending')`

	var id string
	err := r.q.queryRow(ctx, query, cartHash).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active order: %w", err)
	}
	o, err := r.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, cart_hash, status, lock_token, total, created_at, updated_at)
VALUES ($1, $2, $3, '', $4, $5, $6)`

	_, err := r.q.exec(ctx, stmt,
		order.ID,
		order.CartHash,
		string(order.Status),
		order.Total,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		// Two checkouts racing past the active-order lookup: the
		// partial unique index lets only one insert through.
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("create order: %w", err)
	}
	return r.ReplaceItems(ctx, order.ID, order.Items)
}

// ReplaceItems rewrites an order's line items in one pass.
func (r *OrderRepository) ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if _, err := r.q.exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}
	const stmt = `
INSERT INTO order_items (order_id, position, ticket_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i, it := range items {
		if _, err := r.q.exec(ctx, stmt, orderID, i, it.TicketID, it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// UpdateTotal refreshes the order total alongside an item rewrite.
func (r *OrderRepository) UpdateTotal(ctx context.Context, orderID string, total float64, updatedAt time.Time) error {
	const stmt = `UPDATE orders SET total = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.q.exec(ctx, stmt, orderID, total, updatedAt)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// AcquireLock attempts the compare-and-swap: it succeeds only when the
// lock field is currently empty. A false return means another holder
// owns the lock; there is no waiting or retrying here.
func (r *OrderRepository) AcquireLock(ctx context.Context, orderID, token string) (bool, error) {
	const stmt = `UPDATE orders SET lock_token = $2 WHERE id = $1 AND lock_token = ''`
	tag, err := r.q.exec(ctx, stmt, orderID, token)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("acquire order lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLock unconditionally clears the lock field.
func (r *OrderRepository) ReleaseLock(ctx context.Context, orderID string) error {
	const stmt = `UPDATE orders SET lock_token = '' WHERE id = $1`
	if _, err := r.q.exec(ctx, stmt, orderID); err != nil {
		return fmt.Errorf("release order lock: %w", err)
	}
	return nil
}

// IsLocked reports whether any holder currently owns the order lock.
func (r *OrderRepository) IsLocked(ctx context.Context, orderID string) (bool, error) {
	const query = `SELECT lock_token <> '' FROM orders WHERE id = $1`
	var locked bool
	err := r.q.queryRow(ctx, query, orderID).Scan(&locked)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return false, domain.ErrOrderNotFound
		}
		return false, fmt.Errorf("is order locked: %w", err)
	}
	return locked, nil
}

// UpdateStatus persists a status plus any extra fields, conditioned on
// the row still being locked by the given token. Zero rows affected
// means the lock was cleared mid-transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, token string, extra map[string]any, updatedAt time.Time) (bool, error) {
	attrs, err := json.Marshal(extra)
	if err != nil {
		return false, fmt.Errorf("marshal order attributes: %w", err)
	}
	if extra == nil {
		attrs = []byte(`{}`)
	}

	const stmt = `
UPDATE orders
SET status = $2, attributes = attributes || $3::jsonb, updated_at = $4
WHERE id = $1 AND lock_token = $5`

	tag, err := r.q.exec(ctx, stmt, orderID, string(status), attrs, updatedAt, token)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendStatusHistory records the instant a status was reached. The
// log is append-only; prior entries are never overwritten.
func (r *OrderRepository) AppendStatusHistory(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	const stmt = `
INSERT INTO order_status_history (order_id, status, occurred_at)
VALUES ($1, $2, $3)`
	if _, err := r.q.exec(ctx, stmt, orderID, string(status), at); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// StatusHistory returns the reached statuses in chronological order.
func (r *OrderRepository) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusTimestamp, error) {
	const query = `
SELECT status, occurred_at
FROM order_status_history
WHERE order_id = $1
ORDER BY occurred_at ASC, id ASC`

	rows, err := r.q.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("status history: %w", err)
	}
	defer rows.Close()

	var log []domain.StatusTimestamp
	for rows.Next() {
		var entry domain.StatusTimestamp
		var status string
		if err := rows.Scan(&status, &entry.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entry.Status = domain.OrderStatus(status)
		log = append(log, entry)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate status history: %w", rows.Err())
	}
	return log, nil
}
