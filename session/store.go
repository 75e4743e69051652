// Package session keeps the short-lived per-order state the storefront reads back: the cart,
// the confirmation summary and the completion markers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fpg-order-system/models"

	"github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("session entry not found")

// TTLs bounds the lifetime of each kind of entry.
type TTLs struct {
	Cart       time.Duration
	Summary    time.Duration
	Completing time.Duration
	Viewing    time.Duration
}

// Store is a Redis-backed session store.
type Store struct {
	rdb  redis.Cmdable
	ttls TTLs
}

func NewStore(rdb redis.Cmdable, ttls TTLs) *Store {
	return &Store{rdb: rdb, ttls: ttls}
}

func cartKey(orderNumber string) string       { return "cart:" + orderNumber }
func summaryKey(orderNumber string) string    { return "order:summary:" + orderNumber }
func completingKey(orderNumber string) string { return "order:completing:" + orderNumber }
func viewingKey(orderNumber string) string    { return "order:viewing:" + orderNumber }

// CartRecord is a persisted cart with its expiry.
type CartRecord struct {
	Items     []models.LineItem `json:"items"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// SaveCart persists the cart and restarts its expiry.
func (s *Store) SaveCart(ctx context.Context, orderNumber string, items []models.LineItem) error {
	rec := CartRecord{Items: items, ExpiresAt: time.Now().UTC().Add(s.ttls.Cart)}
	return s.setJSON(ctx, cartKey(orderNumber), rec, s.ttls.Cart)
}

// Cart returns the persisted cart, PDF payloads included.
func (s *Store) Cart(ctx context.Context, orderNumber string) (CartRecord, error) {
	var rec CartRecord
	err := s.getJSON(ctx, cartKey(orderNumber), &rec)
	return rec, err
}

// DeleteCart removes the persisted cart.
func (s *Store) DeleteCart(ctx context.Context, orderNumber string) error {
	return s.rdb.Del(ctx, cartKey(orderNumber)).Err()
}

// SaveSummary persists the confirmation-page summary. Attachments are stripped here as well so
// a caller cannot push PDF payloads into the summary by accident.
func (s *Store) SaveSummary(ctx context.Context, summary models.OrderSummary) error {
	summary.WebsiteProducts = models.StripAttachments(summary.WebsiteProducts)
	summary.PWAOrders = models.StripAttachments(summary.PWAOrders)
	summary.Trac360Orders = models.StripAttachments(summary.Trac360Orders)
	return s.setJSON(ctx, summaryKey(summary.OrderNumber), summary, s.ttls.Summary)
}

func (s *Store) Summary(ctx context.Context, orderNumber string) (models.OrderSummary, error) {
	var summary models.OrderSummary
	err := s.getJSON(ctx, summaryKey(orderNumber), &summary)
	return summary, err
}

// MarkCompleting sets the short-lived marker that suppresses cart-sync redirects while the
// confirmation page loads.
func (s *Store) MarkCompleting(ctx context.Context, orderNumber string) error {
	return s.rdb.Set(ctx, completingKey(orderNumber), "1", s.ttls.Completing).Err()
}

func (s *Store) Completing(ctx context.Context, orderNumber string) (bool, error) {
	return s.exists(ctx, completingKey(orderNumber))
}

// MarkViewing records that the customer reached the confirmation page.
func (s *Store) MarkViewing(ctx context.Context, orderNumber string) error {
	return s.rdb.Set(ctx, viewingKey(orderNumber), "1", s.ttls.Viewing).Err()
}

func (s *Store) Viewing(ctx context.Context, orderNumber string) (bool, error) {
	return s.exists(ctx, viewingKey(orderNumber))
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("session exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}
