package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/the-events-calendar/event-tickets-sub001/internal/app"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// TicketAdmin is the minimal interface for ticket administration.
type TicketAdmin interface {
	CreateTicket(ctx context.Context, in app.CreateTicketInput) (domain.Ticket, error)
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
}

// HandleAdminTickets serves POST and GET on /admin/tickets.
func HandleAdminTickets(svc TicketAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req createTicketRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			ticket, err := svc.CreateTicket(r.Context(), app.CreateTicketInput{
				Name:      req.Name,
				EventName: req.EventName,
				Price:     req.Price,
				Stock:     req.Stock,
				StockMode: req.StockMode,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toTicketResponse(ticket))

		case http.MethodGet:
			tickets, err := svc.ListTickets(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			out := make([]ticketResponse, 0, len(tickets))
			for _, t := range tickets {
				out = append(out, toTicketResponse(t))
			}
			writeJSON(w, http.StatusOK, out)

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

type createTicketRequest struct {
	Name      string  `json:"name"`
	EventName string  `json:"event_name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	StockMode string  `json:"stock_mode"`
}

type ticketResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	EventName string    `json:"event_name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	Sales     int       `json:"sales"`
	StockMode string    `json:"stock_mode"`
	CreatedAt time.Time `json:"created_at"`
}

func toTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		Name:      t.Name,
		EventName: t.EventName,
		Price:     t.Price,
		Stock:     t.Stock,
		Sales:     t.Sales,
		StockMode: string(t.StockMode),
		CreatedAt: t.CreatedAt,
	}
}
