package app

import (
	"context"
	"testing"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

func TestStockValidator_Validate(t *testing.T) {
	t.Parallel()

	t.Run("passes when stock covers the request", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(domain.Ticket{ID: "ticket-1", Stock: 10, StockMode: domain.StockModeOwn}))
		if err := v.Validate(context.Background(), "ticket-1", 10, true); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("fails with shortage detail", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(domain.Ticket{ID: "ticket-1", Stock: 2, StockMode: domain.StockModeOwn}))
		err := v.Validate(context.Background(), "ticket-1", 5, true)
		ise, ok := domain.AsInsufficientStock(err)
		if !ok {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		sh := ise.Shortages[0]
		if sh.Requested != 5 || sh.Available != 2 || sh.ReservationCaused {
			t.Fatalf("unexpected shortage: %+v", sh)
		}
	})

	t.Run("available is floored at zero", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(domain.Ticket{ID: "ticket-1", Stock: -3, StockMode: domain.StockModeOwn}))
		err := v.Validate(context.Background(), "ticket-1", 1, false)
		ise, ok := domain.AsInsufficientStock(err)
		if !ok {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if ise.Shortages[0].Available != 0 {
			t.Fatalf("expected available 0, got %d", ise.Shortages[0].Available)
		}
	})

	t.Run("skips unmanaged stock modes", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(
			domain.Ticket{ID: "ticket-u", Stock: 0, StockMode: domain.StockModeUnlimited},
			domain.Ticket{ID: "ticket-g", Stock: 0, StockMode: domain.StockModeGlobal},
			domain.Ticket{ID: "ticket-c", Stock: 0, StockMode: domain.StockModeCapacity},
		))
		for _, id := range []string{"ticket-u", "ticket-g", "ticket-c"} {
			if err := v.Validate(context.Background(), id, 1000, true); err != nil {
				t.Fatalf("expected %s to skip validation, got %v", id, err)
			}
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo())
		if err := v.Validate(context.Background(), "ticket-1", 0, true); err != domain.ErrInvalidQuantity {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("unknown ticket propagates", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo())
		if err := v.Validate(context.Background(), "ticket-missing", 1, true); err != domain.ErrTicketNotFound {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}
	})
}

func TestStockValidator_ValidateOrder(t *testing.T) {
	t.Parallel()

	order := domain.Order{
		ID: "order-1",
		Items: []domain.OrderItem{
			{TicketID: "ticket-1", Quantity: 2},
			{TicketID: "ticket-2", Quantity: 4},
		},
	}

	t.Run("aggregates shortages across items", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(
			domain.Ticket{ID: "ticket-1", Stock: 1, StockMode: domain.StockModeOwn},
			domain.Ticket{ID: "ticket-2", Stock: 3, StockMode: domain.StockModeOwn},
		))
		err := v.ValidateOrder(context.Background(), order, true)
		ise, ok := domain.AsInsufficientStock(err)
		if !ok {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if len(ise.Shortages) != 2 {
			t.Fatalf("expected 2 shortages, got %+v", ise.Shortages)
		}
	})

	t.Run("aggregates duplicate lines for one ticket", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(
			domain.Ticket{ID: "ticket-1", Stock: 5, StockMode: domain.StockModeOwn},
		))
		split := domain.Order{
			ID: "order-2",
			Items: []domain.OrderItem{
				{TicketID: "ticket-1", Quantity: 3},
				{TicketID: "ticket-1", Quantity: 3},
			},
		}
		err := v.ValidateOrder(context.Background(), split, true)
		ise, ok := domain.AsInsufficientStock(err)
		if !ok {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if len(ise.Shortages) != 1 {
			t.Fatalf("expected one aggregated shortage, got %+v", ise.Shortages)
		}
		if ise.Shortages[0].Requested != 6 || ise.Shortages[0].Available != 5 {
			t.Fatalf("expected requested 6 against 5, got %+v", ise.Shortages[0])
		}
	})

	t.Run("passes when every item is covered", func(t *testing.T) {
		v := NewStockValidator(newFakeStockRepo(
			domain.Ticket{ID: "ticket-1", Stock: 2, StockMode: domain.StockModeOwn},
			domain.Ticket{ID: "ticket-2", Stock: 4, StockMode: domain.StockModeOwn},
		))
		if err := v.ValidateOrder(context.Background(), order, false); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
