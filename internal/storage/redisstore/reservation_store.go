package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

const (
	reservationKeyPrefix = "reservation:"
	indexKeyPrefix       = "reservation_index:"
	cartKeyPrefix        = "cart_reservation:"

	// indexTTL outlives any single reservation so the index survives
	// long enough for the sweeper to prune it; stale entries are
	// harmless because every admission re-checks record expiry.
	indexTTL = 24 * time.Hour
)

// ReservationStore keeps the soft reservation ledger in Redis. None of
// these operations are atomic across keys; the relational transaction
// remains the authoritative gate for admission decisions.
type ReservationStore struct {
	client *redis.Client
}

func NewReservationStore(client *redis.Client) *ReservationStore {
	return &ReservationStore{client: client}
}

// ReservationKey is the record key for one (ticket, cart) hold.
func ReservationKey(ticketID, cartHash string) string {
	return reservationKeyPrefix + ticketID + ":" + cartHash
}

func indexKey(ticketID string) string {
	return indexKeyPrefix + ticketID
}

func cartKey(cartHash string) string {
	return cartKeyPrefix + cartHash
}

func (s *ReservationStore) GetReservation(ctx context.Context, ticketID, cartHash string) (*domain.StockReservation, error) {
	data, err := s.client.Get(ctx, ReservationKey(ticketID, cartHash)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	var r domain.StockReservation
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode reservation: %w", err)
	}
	return &r, nil
}

func (s *ReservationStore) SetReservation(ctx context.Context, r domain.StockReservation, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reservation: %w", err)
	}
	if err := s.client.Set(ctx, ReservationKey(r.TicketID, r.CartHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("set reservation: %w", err)
	}
	return nil
}

func (s *ReservationStore) DeleteReservation(ctx context.Context, ticketID, cartHash string) error {
	if err := s.client.Del(ctx, ReservationKey(ticketID, cartHash)).Err(); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// GetTicketIndex returns the advisory cart-hash → record-key map for a
// ticket. A missing key yields an empty index.
func (s *ReservationStore) GetTicketIndex(ctx context.Context, ticketID string) (domain.TicketIndex, error) {
	data, err := s.client.Get(ctx, indexKey(ticketID)).Result()
	if err == redis.Nil {
		return domain.TicketIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket index: %w", err)
	}

	var idx domain.TicketIndex
	if err := json.Unmarshal([]byte(data), &idx); err != nil {
		return nil, fmt.Errorf("decode ticket index: %w", err)
	}
	if idx == nil {
		idx = domain.TicketIndex{}
	}
	return idx, nil
}

// SetTicketIndex replaces the index. An empty index deletes the key so
// the sweeper's scan shrinks with the ledger.
func (s *ReservationStore) SetTicketIndex(ctx context.Context, ticketID string, idx domain.TicketIndex) error {
	if len(idx) == 0 {
		if err := s.client.Del(ctx, indexKey(ticketID)).Err(); err != nil {
			return fmt.Errorf("delete ticket index: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode ticket index: %w", err)
	}
	if err := s.client.Set(ctx, indexKey(ticketID), data, indexTTL).Err(); err != nil {
		return fmt.Errorf("set ticket index: %w", err)
	}
	return nil
}

func (s *ReservationStore) GetCartReservation(ctx context.Context, cartHash string) (*domain.CartReservation, error) {
	data, err := s.client.Get(ctx, cartKey(cartHash)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart reservation: %w", err)
	}

	var c domain.CartReservation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode cart reservation: %w", err)
	}
	return &c, nil
}

func (s *ReservationStore) SetCartReservation(ctx context.Context, c domain.CartReservation, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart reservation: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.CartHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("set cart reservation: %w", err)
	}
	return nil
}

func (s *ReservationStore) DeleteCartReservation(ctx context.Context, cartHash string) error {
	if err := s.client.Del(ctx, cartKey(cartHash)).Err(); err != nil {
		return fmt.Errorf("delete cart reservation: %w", err)
	}
	return nil
}

// IndexedTicketIDs enumerates every ticket that currently has an index
// key, for the sweeper's full-ledger pass.
func (s *ReservationStore) IndexedTicketIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, indexKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan ticket indexes: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, indexKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}
