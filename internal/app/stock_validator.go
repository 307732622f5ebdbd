package app

import (
	"context"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// StockRepository is the relational access the validator and the
// reservation manager need: a transaction scope plus locked and
// unlocked reads of the stock counter.
type StockRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error)
}

// StockValidator answers "can quantity Q of ticket T be committed
// right now". It holds no state beyond the repository.
type StockValidator struct {
	repo StockRepository
}

func NewStockValidator(repo StockRepository) *StockValidator {
	return &StockValidator{repo: repo}
}

// Validate checks a single ticket. With useLock the counter is read
// under a row lock inside a transaction; without it the caller is
// assumed to already hold an equivalent lock, so the read must not
// re-lock.
func (v *StockValidator) Validate(ctx context.Context, ticketID string, quantity int, useLock bool) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	if useLock {
		return v.repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := v.repo.GetTicketForUpdate(txCtx, ticketID)
			if err != nil {
				return err
			}
			return shortageError(ticket, quantity, 0)
		})
	}

	ticket, err := v.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	return shortageError(ticket, quantity, 0)
}

// ValidateOrder re-checks every line of an order against current
// stock. Used as the second line of defense before a stock-decreasing
// status transition, and exposed standalone with useLock for callers
// outside a transaction.
func (v *StockValidator) ValidateOrder(ctx context.Context, order domain.Order, useLock bool) error {
	check := func(txCtx context.Context, locked bool) error {
		var shortages []domain.StockShortage
		for _, item := range order.MergedQuantities() {
			var (
				ticket domain.Ticket
				err    error
			)
			if locked {
				ticket, err = v.repo.GetTicketForUpdate(txCtx, item.TicketID)
			} else {
				ticket, err = v.repo.GetTicket(txCtx, item.TicketID)
			}
			if err != nil {
				return err
			}
			if sh := Shortage(ticket, item.Quantity, 0); sh != nil {
				shortages = append(shortages, *sh)
			}
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}
		return nil
	}

	if useLock {
		return v.repo.WithTx(ctx, func(txCtx context.Context) error {
			return check(txCtx, true)
		})
	}
	return check(ctx, false)
}

// Shortage computes the admission result for one ticket given the
// units held by other carts under the same lock. It returns nil when
// the ticket passes, including for every stock mode the per-ticket
// validator does not govern (unlimited, shared pools, external seat
// management).
//
// The reservation-caused flag follows the reserved_stock > 0 AND
// current_stock >= requested heuristic; it can misclassify when
// reservations overlap with true exhaustion and is advisory only.
func Shortage(ticket domain.Ticket, requested, reservedByOthers int) *domain.StockShortage {
	if !ticket.ManagesOwnStock() {
		return nil
	}

	available := ticket.Stock - reservedByOthers
	if available >= requested {
		return nil
	}
	if available < 0 {
		available = 0
	}
	return &domain.StockShortage{
		TicketID:          ticket.ID,
		Requested:         requested,
		Available:         available,
		ReservationCaused: reservedByOthers > 0 && ticket.Stock >= requested,
	}
}

func shortageError(ticket domain.Ticket, requested, reservedByOthers int) error {
	if sh := Shortage(ticket, requested, reservedByOthers); sh != nil {
		return &domain.InsufficientStockError{Shortages: []domain.StockShortage{*sh}}
	}
	return nil
}
