package cache

import (
	"context"
	"time"

	"bookingpay/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingReader is the read side of a booking store.
type BookingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// CachedBookings serves bookings from Redis and falls back to next on a miss.
// Cache errors never fail a read.
type CachedBookings struct {
	next  BookingReader
	cache *CacheService
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedBookings(next BookingReader, cache *CacheService, ttl time.Duration, log *zap.Logger) *CachedBookings {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedBookings{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedBookings) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	key := c.cache.GenerateKey("booking", "id", id)

	var booking models.Booking
	found, err := c.cache.Get(ctx, key, &booking)
	if err != nil {
		c.log.Warn("booking cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return &booking, nil
	}

	b, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetWithTTL(ctx, key, b, c.ttl); err != nil {
		c.log.Warn("booking cache write failed", zap.String("key", key), zap.Error(err))
	}
	return b, nil
}

// Invalidate drops a cached booking after it changed upstream.
func (c *CachedBookings) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.cache.Delete(ctx, c.cache.GenerateKey("booking", "id", id))
}
