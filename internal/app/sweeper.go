package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
)

// Sweeper reclaims reservations whose holder never released them.
// Deletes are idempotent, so it is safe to run concurrently with
// itself and with reserve/release.
type Sweeper struct {
	ledger ReservationLedger
	clock  clock.Clock
	logger *zap.Logger
}

func NewSweeper(ledger ReservationLedger, clk clock.Clock, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		ledger: ledger,
		clock:  clk,
		logger: logger,
	}
}

// Sweep scans the whole ledger once and returns how many expired
// reservations it reclaimed. Records that already vanished on their
// own TTL are pruned from the index but not counted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()

	ticketIDs, err := s.ledger.IndexedTicketIDs(ctx)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, ticketID := range ticketIDs {
		idx, err := s.ledger.GetTicketIndex(ctx, ticketID)
		if err != nil {
			s.logger.Warn("sweep: read ticket index failed",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
			continue
		}

		changed := false
		for cartHash := range idx {
			r, err := s.ledger.GetReservation(ctx, ticketID, cartHash)
			if err != nil {
				s.logger.Warn("sweep: read reservation failed",
					zap.String("ticket_id", ticketID),
					zap.String("cart_hash", cartHash),
					zap.Error(err))
				continue
			}
			if r == nil {
				delete(idx, cartHash)
				changed = true
				continue
			}
			if r.Live(now) {
				continue
			}
			if err := s.ledger.DeleteReservation(ctx, ticketID, cartHash); err != nil {
				s.logger.Warn("sweep: delete reservation failed",
					zap.String("ticket_id", ticketID),
					zap.String("cart_hash", cartHash),
					zap.Error(err))
				continue
			}
			delete(idx, cartHash)
			changed = true
			reclaimed++
		}

		if changed {
			if err := s.ledger.SetTicketIndex(ctx, ticketID, idx); err != nil {
				s.logger.Warn("sweep: write ticket index failed",
					zap.String("ticket_id", ticketID),
					zap.Error(err))
			}
		}
	}

	if reclaimed > 0 {
		s.logger.Info("expired reservations reclaimed", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("reservation sweep failed", zap.Error(err))
			}
		}
	}
}
