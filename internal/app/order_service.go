package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// OrderStore is the relational access the status engine needs. Status
// reads go straight to the store, never through a cache, so a locked
// mutator always acts on the authoritative row.
type OrderStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	FindActiveOrderByCartHash(ctx context.Context, cartHash string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	ReplaceItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	UpdateTotal(ctx context.Context, orderID string, total float64, updatedAt time.Time) error
	AcquireLock(ctx context.Context, orderID, token string) (bool, error)
	ReleaseLock(ctx context.Context, orderID string) error
	IsLocked(ctx context.Context, orderID string) (bool, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, token string, extra map[string]any, updatedAt time.Time) (bool, error)
	AppendStatusHistory(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
	StatusHistory(ctx context.Context, orderID string) ([]domain.StatusTimestamp, error)
}

// StockAdjuster moves units between the stock and sales counters when
// an order reaches or leaves a stock-decreasing status.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, ticketID string, sold int) error
}

// ReservationReleaser frees a cart's holds once the order finalizes.
type ReservationReleaser interface {
	Release(ctx context.Context, cartHash string) error
}

// OrderService owns the per-order compare-and-swap lock and the status
// state machine.
type OrderService struct {
	orders    OrderStore
	stock     StockAdjuster
	validator *StockValidator
	releaser  ReservationReleaser
	clock     clock.Clock
	logger    *zap.Logger
}

func NewOrderService(orders OrderStore, stock StockAdjuster, validator *StockValidator, releaser ReservationReleaser, clk clock.Clock, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		stock:     stock,
		validator: validator,
		releaser:  releaser,
		clock:     clk,
		logger:    logger,
	}
}

// Expected, non-error outcomes of a single transition attempt. They
// abort the transaction (rolling the lock acquisition back) and are
// reported to the caller as applied == false.
var (
	errLockBusy     = errors.New("order lock held by another process")
	errLockLost     = errors.New("order lock cleared mid-transaction")
	errStockBlocked = errors.New("stock re-validation failed")
)

// Checkout creates or refreshes the cart's order. At most one order is
// active per cart hash, so an existing created/pending order is
// updated in place rather than duplicated.
func (s *OrderService) Checkout(ctx context.Context, cart domain.Cart, priceFor func(ticketID string) (float64, error)) (domain.Order, error) {
	if cart.Empty() {
		return domain.Order{}, domain.ErrCartHashRequired
	}

	now := s.clock.Now()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	total := 0.0
	for _, item := range cart.MergedItems() {
		if item.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
		price, err := priceFor(item.TicketID)
		if err != nil {
			return domain.Order{}, err
		}
		subtotal := price * float64(item.Quantity)
		items = append(items, domain.OrderItem{
			TicketID:  item.TicketID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	var result domain.Order
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.orders.FindActiveOrderByCartHash(txCtx, cart.Hash)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := s.orders.ReplaceItems(txCtx, existing.ID, items); err != nil {
				return err
			}
			if err := s.orders.UpdateTotal(txCtx, existing.ID, total, now); err != nil {
				return err
			}
			existing.Items = items
			existing.Total = total
			existing.UpdatedAt = now
			result = *existing
			return nil
		}

		order := domain.Order{
			ID:        uuid.NewString(),
			CartHash:  cart.Hash,
			Status:    domain.StatusCreated,
			Items:     items,
			Total:     total,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.orders.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := s.orders.AppendStatusHistory(txCtx, order.ID, domain.StatusCreated, now); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// ModifyStatus drives the order to the requested status. Missing
// prerequisite statuses are walked through first, each hop a full
// lock/unlock cycle. The bool is the only signal that the change
// happened: contention, a cleared lock and failed stock re-validation
// all report false with a nil error.
func (s *OrderService) ModifyStatus(ctx context.Context, orderID, rawStatus string, extra map[string]any) (bool, error) {
	status, err := domain.ResolveStatus(rawStatus)
	if err != nil {
		return false, err
	}

	ok, err := s.ensurePrerequisites(ctx, orderID, status)
	if err != nil || !ok {
		return false, err
	}
	return s.applyStatus(ctx, orderID, status, extra)
}

// IsLocked reports whether the order's lock token is currently held.
func (s *OrderService) IsLocked(ctx context.Context, orderID string) (bool, error) {
	return s.orders.IsLocked(ctx, orderID)
}

// StatusHistory exposes the append-only status log.
func (s *OrderService) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusTimestamp, error) {
	return s.orders.StatusHistory(ctx, orderID)
}

// ensurePrerequisites forces the order through any required previous
// statuses it has not yet reached. Runs before, and outside, the
// target transition's transaction because each hop locks on its own.
func (s *OrderService) ensurePrerequisites(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	required := status.Capabilities().RequiredPrevious
	if len(required) == 0 {
		return true, nil
	}

	history, err := s.orders.StatusHistory(ctx, orderID)
	if err != nil {
		return false, err
	}
	reached := make(map[domain.OrderStatus]bool, len(history))
	for _, entry := range history {
		reached[entry.Status] = true
	}

	for _, prev := range required {
		if reached[prev] {
			continue
		}
		ok, err := s.applyStatus(ctx, orderID, prev, nil)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// applyStatus runs one full transition: acquire the CAS lock,
// re-validate stock when the target consumes it, write the status
// conditioned on the token, adjust counters, append history, release
// the lock — all inside one transaction so a failure anywhere rolls
// the lock acquisition back too.
func (s *OrderService) applyStatus(ctx context.Context, orderID string, status domain.OrderStatus, extra map[string]any) (bool, error) {
	token := uuid.NewString()
	now := s.clock.Now()
	caps := status.Capabilities()

	var cartHash string
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		acquired, err := s.orders.AcquireLock(txCtx, orderID, token)
		if err != nil {
			return err
		}
		if !acquired {
			return errLockBusy
		}

		order, err := s.orders.GetOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		cartHash = order.CartHash
		prev := order.Status

		if caps.DecreasesStock {
			if err := s.validator.ValidateOrder(txCtx, order, false); err != nil {
				if _, ok := domain.AsInsufficientStock(err); ok {
					s.logger.Info("status transition blocked by stock re-validation",
						zap.String("order_id", orderID),
						zap.String("status", string(status)),
						zap.Error(err))
					return errStockBlocked
				}
				return err
			}
		}

		written, err := s.orders.UpdateStatus(txCtx, orderID, status, token, extra, now)
		if err != nil {
			return err
		}
		if !written {
			return errLockLost
		}

		if caps.DecreasesStock && !prev.Capabilities().DecreasesStock {
			for _, item := range order.MergedQuantities() {
				if err := s.stock.AdjustStock(txCtx, item.TicketID, item.Quantity); err != nil {
					return err
				}
			}
		}
		if caps.RestoresStock && prev.Capabilities().DecreasesStock {
			for _, item := range order.MergedQuantities() {
				if err := s.stock.AdjustStock(txCtx, item.TicketID, -item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.orders.AppendStatusHistory(txCtx, orderID, status, now); err != nil {
			return err
		}
		return s.orders.ReleaseLock(txCtx, orderID)
	})
	switch {
	case err == nil:
	case errors.Is(err, errLockBusy):
		s.logger.Info("order busy, transition not applied",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		return false, nil
	case errors.Is(err, errLockLost):
		s.logger.Warn("order lock lost mid-transition",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		return false, nil
	case errors.Is(err, errStockBlocked):
		return false, nil
	default:
		return false, err
	}

	// The order is final: its cart no longer holds the stock, the
	// counter does.
	if status == domain.StatusCompleted && s.releaser != nil {
		if err := s.releaser.Release(ctx, cartHash); err != nil {
			s.logger.Warn("release reservations after completion failed",
				zap.String("order_id", orderID),
				zap.String("cart_hash", cartHash),
				zap.Error(err))
		}
	}
	return true, nil
}
