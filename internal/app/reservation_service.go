package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// ReservationLedger is the ephemeral key/value surface the manager and
// the sweeper share. It offers no atomic read-modify-write: index
// updates can race, which is tolerated because the relational
// transaction is always the authoritative admission gate.
type ReservationLedger interface {
	GetReservation(ctx context.Context, ticketID, cartHash string) (*domain.StockReservation, error)
	SetReservation(ctx context.Context, r domain.StockReservation, ttl time.Duration) error
	DeleteReservation(ctx context.Context, ticketID, cartHash string) error
	GetTicketIndex(ctx context.Context, ticketID string) (domain.TicketIndex, error)
	SetTicketIndex(ctx context.Context, ticketID string, idx domain.TicketIndex) error
	GetCartReservation(ctx context.Context, cartHash string) (*domain.CartReservation, error)
	SetCartReservation(ctx context.Context, c domain.CartReservation, ttl time.Duration) error
	DeleteCartReservation(ctx context.Context, cartHash string) error
	IndexedTicketIDs(ctx context.Context) ([]string, error)
}

// RecordKeyFunc builds the ledger record key stored in the per-ticket
// index for a (ticket, cart) pair.
type RecordKeyFunc func(ticketID, cartHash string) string

// ReservationManager converts a cart's contents into time-bounded
// stock holds, all-or-nothing, and releases them again.
type ReservationManager struct {
	repo      StockRepository
	ledger    ReservationLedger
	recordKey RecordKeyFunc
	clock     clock.Clock
	hold      time.Duration
	logger    *zap.Logger
}

const defaultHoldDuration = 10 * time.Minute

func NewReservationManager(repo StockRepository, ledger ReservationLedger, recordKey RecordKeyFunc, clk clock.Clock, logger *zap.Logger, opts ...ReservationManagerOption) *ReservationManager {
	m := &ReservationManager{
		repo:      repo,
		ledger:    ledger,
		recordKey: recordKey,
		clock:     clk,
		hold:      defaultHoldDuration,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ReservationManagerOption func(*ReservationManager)

// WithHoldDuration overrides the default reservation window.
func WithHoldDuration(d time.Duration) ReservationManagerOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.hold = d
		}
	}
}

// Reserve admits the whole cart or nothing. The admission decision is
// made inside one relational transaction with each stock row locked;
// the ledger records are written only after the transaction commits.
func (m *ReservationManager) Reserve(ctx context.Context, cart domain.Cart) error {
	if cart.Empty() {
		return nil
	}

	now := m.clock.Now()
	var admitted []domain.ReservedItem

	err := m.repo.WithTx(ctx, func(txCtx context.Context) error {
		var shortages []domain.StockShortage
		for _, item := range cart.MergedItems() {
			if item.Quantity <= 0 {
				return domain.ErrInvalidQuantity
			}

			ticket, err := m.repo.GetTicketForUpdate(txCtx, item.TicketID)
			if err != nil {
				return err
			}
			if !ticket.ManagesOwnStock() {
				continue
			}

			reserved, err := m.reservedByOthers(ctx, ticket.ID, cart.Hash, now)
			if err != nil {
				return err
			}
			if sh := Shortage(ticket, item.Quantity, reserved); sh != nil {
				shortages = append(shortages, *sh)
				continue
			}
			admitted = append(admitted, domain.ReservedItem{TicketID: ticket.ID, Quantity: item.Quantity})
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}
		return nil
	})
	if err != nil {
		if ise, ok := domain.AsInsufficientStock(err); ok {
			m.logger.Info("cart reservation rejected",
				zap.String("cart_hash", cart.Hash),
				zap.Int("shortages", len(ise.Shortages)))
		}
		return err
	}
	if len(admitted) == 0 {
		return nil
	}

	expiresAt := now.Add(m.hold)
	for i, item := range admitted {
		r := domain.StockReservation{
			TicketID:  item.TicketID,
			CartHash:  cart.Hash,
			Quantity:  item.Quantity,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
		if err := m.ledger.SetReservation(ctx, r, m.hold); err != nil {
			m.unwindLedger(ctx, cart.Hash, admitted[:i])
			return err
		}

		idx, err := m.ledger.GetTicketIndex(ctx, item.TicketID)
		if err != nil {
			m.unwindLedger(ctx, cart.Hash, admitted[:i+1])
			return err
		}
		idx[cart.Hash] = m.recordKey(item.TicketID, cart.Hash)
		if err := m.ledger.SetTicketIndex(ctx, item.TicketID, idx); err != nil {
			m.unwindLedger(ctx, cart.Hash, admitted[:i+1])
			return err
		}
	}

	meta := domain.CartReservation{
		CartHash:   cart.Hash,
		ReservedAt: now,
		ExpiresAt:  expiresAt,
		Items:      admitted,
	}
	if err := m.ledger.SetCartReservation(ctx, meta, m.hold); err != nil {
		m.unwindLedger(ctx, cart.Hash, admitted)
		return err
	}

	m.logger.Debug("cart stock reserved",
		zap.String("cart_hash", cart.Hash),
		zap.Int("items", len(admitted)),
		zap.Time("expires_at", expiresAt))
	return nil
}

// Release drops every reservation recorded for the cart. Idempotent:
// a cart with no metadata, or whose records already expired, is a
// no-op. Per-record failures are logged and skipped so a partial
// ledger never blocks the release.
func (m *ReservationManager) Release(ctx context.Context, cartHash string) error {
	if cartHash == "" {
		return nil
	}

	meta, err := m.ledger.GetCartReservation(ctx, cartHash)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	for _, item := range meta.Items {
		if err := m.ledger.DeleteReservation(ctx, item.TicketID, cartHash); err != nil {
			m.logger.Warn("release: delete reservation failed",
				zap.String("ticket_id", item.TicketID),
				zap.String("cart_hash", cartHash),
				zap.Error(err))
			continue
		}
		idx, err := m.ledger.GetTicketIndex(ctx, item.TicketID)
		if err != nil {
			m.logger.Warn("release: read ticket index failed",
				zap.String("ticket_id", item.TicketID),
				zap.Error(err))
			continue
		}
		if _, ok := idx[cartHash]; ok {
			delete(idx, cartHash)
			if err := m.ledger.SetTicketIndex(ctx, item.TicketID, idx); err != nil {
				m.logger.Warn("release: write ticket index failed",
					zap.String("ticket_id", item.TicketID),
					zap.Error(err))
			}
		}
	}

	return m.ledger.DeleteCartReservation(ctx, cartHash)
}

// unwindLedger best-effort deletes the records and index entries
// already written when a later ledger write fails, so a failed reserve
// never leaves partial holds blocking other carts until expiry.
func (m *ReservationManager) unwindLedger(ctx context.Context, cartHash string, written []domain.ReservedItem) {
	for _, item := range written {
		if err := m.ledger.DeleteReservation(ctx, item.TicketID, cartHash); err != nil {
			m.logger.Warn("unwind: delete reservation failed",
				zap.String("ticket_id", item.TicketID),
				zap.String("cart_hash", cartHash),
				zap.Error(err))
			continue
		}
		idx, err := m.ledger.GetTicketIndex(ctx, item.TicketID)
		if err != nil {
			m.logger.Warn("unwind: read ticket index failed",
				zap.String("ticket_id", item.TicketID),
				zap.Error(err))
			continue
		}
		if _, ok := idx[cartHash]; ok {
			delete(idx, cartHash)
			if err := m.ledger.SetTicketIndex(ctx, item.TicketID, idx); err != nil {
				m.logger.Warn("unwind: write ticket index failed",
					zap.String("ticket_id", item.TicketID),
					zap.Error(err))
			}
		}
	}
}

// reservedByOthers sums live reservations for a ticket excluding the
// requesting cart. Expired records found along the way are evicted so
// reclaimed stock is visible within the same admission pass.
func (m *ReservationManager) reservedByOthers(ctx context.Context, ticketID, excludeCart string, now time.Time) (int, error) {
	idx, err := m.ledger.GetTicketIndex(ctx, ticketID)
	if err != nil {
		return 0, err
	}

	total := 0
	changed := false
	for cartHash := range idx {
		if cartHash == excludeCart {
			continue
		}
		r, err := m.ledger.GetReservation(ctx, ticketID, cartHash)
		if err != nil {
			return 0, err
		}
		if r == nil || !r.Live(now) {
			if r != nil {
				if err := m.ledger.DeleteReservation(ctx, ticketID, cartHash); err != nil {
					m.logger.Warn("evict expired reservation failed",
						zap.String("ticket_id", ticketID),
						zap.String("cart_hash", cartHash),
						zap.Error(err))
					continue
				}
			}
			delete(idx, cartHash)
			changed = true
			continue
		}
		total += r.Quantity
	}

	if changed {
		// Best effort: a racing writer may clobber this, the sweeper
		// will catch whatever is left.
		if err := m.ledger.SetTicketIndex(ctx, ticketID, idx); err != nil {
			m.logger.Warn("prune ticket index failed",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
		}
	}
	return total, nil
}
