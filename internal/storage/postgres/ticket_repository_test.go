package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
	"github.com/the-events-calendar/event-tickets-sub001/internal/testutil"
)

func TestTicketRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewTicketRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetTicket returns ticket or ErrTicketNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertTicket(t, ctx, pool, domain.Ticket{
			Name:      "General Admission",
			EventName: "Concert",
			Price:     25,
			Stock:     100,
		})

		ticket, err := repo.GetTicket(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ticket.ID != id || ticket.Stock != 100 || ticket.StockMode != domain.StockModeOwn {
			t.Fatalf("unexpected ticket: %+v", ticket)
		}

		_, err = repo.GetTicket(ctx, "00000000-0000-0000-0000-000000000001")
		if err != domain.ErrTicketNotFound {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}

		_, err = repo.GetTicket(ctx, "not-a-uuid")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("GetTicketForUpdate reads inside a transaction", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertTicket(t, ctx, pool, domain.Ticket{
			Name:      "General Admission",
			EventName: "Concert",
			Stock:     10,
		})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := repo.GetTicketForUpdate(txCtx, id)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if ticket.ID != id || ticket.Stock != 10 {
				t.Fatalf("unexpected ticket: %+v", ticket)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
	})

	t.Run("AdjustStock moves units between stock and sales", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertTicket(t, ctx, pool, domain.Ticket{
			Name:      "General Admission",
			EventName: "Concert",
			Stock:     10,
		})

		if err := repo.AdjustStock(ctx, id, 3); err != nil {
			t.Fatalf("adjust stock: %v", err)
		}
		ticket, err := repo.GetTicket(ctx, id)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if ticket.Stock != 7 || ticket.Sales != 3 {
			t.Fatalf("expected stock=7 sales=3, got stock=%d sales=%d", ticket.Stock, ticket.Sales)
		}

		// Negative amount is a return.
		if err := repo.AdjustStock(ctx, id, -3); err != nil {
			t.Fatalf("adjust stock back: %v", err)
		}
		ticket, err = repo.GetTicket(ctx, id)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if ticket.Stock != 10 || ticket.Sales != 0 {
			t.Fatalf("expected stock=10 sales=0, got stock=%d sales=%d", ticket.Stock, ticket.Sales)
		}

		if err := repo.AdjustStock(ctx, "00000000-0000-0000-0000-000000000001", 1); err != domain.ErrTicketNotFound {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}
	})

	t.Run("CreateTicket persists and rejects duplicates", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		ticket := domain.Ticket{
			ID:        uuid.NewString(),
			Name:      "VIP",
			EventName: "Concert",
			Price:     80,
			Stock:     20,
			StockMode: domain.StockModeOwn,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateTicket(ctx, ticket); err != nil {
			t.Fatalf("create ticket: %v", err)
		}

		got, err := repo.GetTicket(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if got.Name != "VIP" || got.Price != 80 {
			t.Fatalf("unexpected ticket: %+v", got)
		}

		dup := ticket
		dup.ID = uuid.NewString()
		if err := repo.CreateTicket(ctx, dup); err != domain.ErrTicketExists {
			t.Fatalf("expected ErrTicketExists, got %v", err)
		}
	})

	t.Run("ListTickets returns tickets in creation order", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		testutil.InsertTicket(t, ctx, pool, domain.Ticket{Name: "A", EventName: "Concert"})
		testutil.InsertTicket(t, ctx, pool, domain.Ticket{Name: "B", EventName: "Concert"})

		tickets, err := repo.ListTickets(ctx)
		if err != nil {
			t.Fatalf("list tickets: %v", err)
		}
		if len(tickets) != 2 {
			t.Fatalf("expected 2 tickets, got %d", len(tickets))
		}
	})
}
