package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

type TicketRepository struct {
	q querier
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{q: querier{pool: pool}}
}

func (r *TicketRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.q.pool, fn)
}

const ticketColumns = `id, name, event_name, price, stock, sales, stock_mode, created_at`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	var mode string
	err := row.Scan(&t.ID, &t.Name, &t.EventName, &t.Price, &t.Stock, &t.Sales, &mode, &t.CreatedAt)
	if err != nil {
		return domain.Ticket{}, err
	}
	t.StockMode = domain.StockMode(mode)
	return t, nil
}

func (r *TicketRepository) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(r.q.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Ticket{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// GetTicketForUpdate reads a ticket with a row lock so no concurrent
// transaction can read-then-write the same stock counter until the
// ambient transaction ends.
func (r *TicketRepository) GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	t, err := scanTicket(r.q.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Ticket{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, fmt.Errorf("get ticket for update: %w", err)
	}
	return t, nil
}

// AdjustStock moves units between stock and sales: a positive sold
// amount records a sale, a negative one a return.
func (r *TicketRepository) AdjustStock(ctx context.Context, id string, sold int) error {
	const stmt = `UPDATE tickets SET stock = stock - $2, sales = sales + $2 WHERE id = $1`
	tag, err := r.q.exec(ctx, stmt, id, sold)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, name, event_name, price, stock, sales, stock_mode, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.exec(ctx, stmt,
		ticket.ID,
		ticket.Name,
		ticket.EventName,
		ticket.Price,
		ticket.Stock,
		ticket.Sales,
		string(ticket.StockMode),
		ticket.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrTicketExists
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at ASC`
	rows, err := r.q.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate tickets: %w", rows.Err())
	}
	return tickets, nil
}
