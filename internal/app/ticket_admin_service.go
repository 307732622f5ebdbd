package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

type TicketAdminRepository interface {
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
}

// TicketAdminService is plain CRUD over ticket types; no locking.
type TicketAdminService struct {
	repo  TicketAdminRepository
	clock clock.Clock
}

func NewTicketAdminService(repo TicketAdminRepository, clk clock.Clock) *TicketAdminService {
	return &TicketAdminService{
		repo:  repo,
		clock: clk,
	}
}

type CreateTicketInput struct {
	Name      string
	EventName string
	Price     float64
	Stock     int
	StockMode string
}

func (s *TicketAdminService) CreateTicket(ctx context.Context, in CreateTicketInput) (domain.Ticket, error) {
	if in.Name == "" {
		return domain.Ticket{}, domain.ErrTicketNameRequired
	}
	if in.Stock < 0 || in.Price < 0 {
		return domain.Ticket{}, domain.ErrInvalidQuantity
	}

	mode := domain.StockMode(in.StockMode)
	switch mode {
	case "":
		mode = domain.StockModeOwn
	case domain.StockModeOwn, domain.StockModeUnlimited, domain.StockModeGlobal, domain.StockModeCapacity:
	default:
		return domain.Ticket{}, domain.ErrInvalidStockMode
	}

	ticket := domain.Ticket{
		ID:        uuid.NewString(),
		Name:      in.Name,
		EventName: in.EventName,
		Price:     in.Price,
		Stock:     in.Stock,
		StockMode: mode,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateTicket(ctx, ticket); err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *TicketAdminService) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if id == "" {
		return domain.Ticket{}, domain.ErrInvalidID
	}
	return s.repo.GetTicket(ctx, id)
}

func (s *TicketAdminService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx)
}
