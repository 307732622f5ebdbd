package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

func TestHandleReserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	shortageErr := &domain.InsufficientStockError{
		Shortages: []domain.StockShortage{
			{TicketID: "t1", Requested: 3, Available: 1, ReservationCaused: true},
		},
	}

	tests := []struct {
		name           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":2}]}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"cart_hash":"cart-1"`,
		},
		{
			name:           "reserved_at comes from the injected clock",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":2}]}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"reserved_at":"2025-01-01T00:00:00Z"`,
		},
		{
			name:           "invalid json",
			method:         http.MethodPost,
			body:           `{"cart_hash":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing cart hash",
			method:         http.MethodPost,
			body:           `{"items":[{"ticket_id":"t1","quantity":2}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: "cart_hash_required",
		},
		{
			name:           "invalid quantity",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":0}]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "insufficient stock",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":3}]}`,
			serviceErr:     shortageErr,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"reservation_caused":true`,
		},
		{
			name:           "ticket not found",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":1}]}`,
			serviceErr:     domain.ErrTicketNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error",
			method:         http.MethodPost,
			body:           `{"cart_hash":"cart-1","items":[{"ticket_id":"t1","quantity":1}]}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "method not allowed",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{err: tt.serviceErr}
			req := httptest.NewRequest(tt.method, "/reservations", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler := HandleReserve(svc, clock.NewFixed(now))
			handler.ServeHTTP(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, res.StatusCode)
			}
			if tt.expectedSubstr != "" {
				body := rec.Body.String()
				if !strings.Contains(body, tt.expectedSubstr) {
					t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, body)
				}
			}
		})
	}
}

func TestHandleRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		serviceErr     error
		expectedStatus int
		releasedHash   string
	}{
		{
			name:           "success",
			method:         http.MethodDelete,
			path:           "/reservations/cart-1",
			expectedStatus: http.StatusNoContent,
			releasedHash:   "cart-1",
		},
		{
			name:           "missing cart hash",
			method:         http.MethodDelete,
			path:           "/reservations/",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "internal error",
			method:         http.MethodDelete,
			path:           "/reservations/cart-1",
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "method not allowed",
			method:         http.MethodPost,
			path:           "/reservations/cart-1",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{err: tt.serviceErr}
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			handler := HandleRelease(svc)
			handler.ServeHTTP(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, res.StatusCode)
			}
			if tt.releasedHash != "" && svc.releasedHash != tt.releasedHash {
				t.Fatalf("expected release of %q, got %q", tt.releasedHash, svc.releasedHash)
			}
		})
	}
}

type stubReservationService struct {
	err          error
	releasedHash string
}

func (s *stubReservationService) Reserve(_ context.Context, _ domain.Cart) error {
	return s.err
}

func (s *stubReservationService) Release(_ context.Context, cartHash string) error {
	s.releasedHash = cartHash
	return s.err
}
