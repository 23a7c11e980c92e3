package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/cache"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/concurrency"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/shipping"
)

// ErrUnavailable is returned by the cart and order operations when the
// service runs without a database.
var ErrUnavailable = errors.New("database unavailable")

// Repos required by service (use interfaces to allow mocking)
type CartRepo interface {
	ListLines(ctx context.Context, userID string) ([]models.CartLine, error)
}

type OrderRepo interface {
	ListLines(ctx context.Context, orderID string) ([]models.CartLine, error)
	SaveShipping(ctx context.Context, orderID string, q models.ShippingQuote) error
}

type Config struct {
	Rate             models.Rate
	Weights          shipping.WeightPolicy
	BatchConcurrency int
}

type ShippingService struct {
	carts  CartRepo
	orders OrderRepo
	cache  cache.QuoteCache
	cfg    Config
	log    *zap.Logger
	newID  func() string

	// flight collapses concurrent misses on one key so they share a quote_id.
	flight singleflight.Group
}

// NewShippingService wires the calculator to its collaborators. carts and
// orders may be nil; qc may be nil to disable caching.
func NewShippingService(carts CartRepo, orders OrderRepo, qc cache.QuoteCache, cfg Config, log *zap.Logger) *ShippingService {
	if qc == nil {
		qc = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	return &ShippingService{
		carts:  carts,
		orders: orders,
		cache:  qc,
		cfg:    cfg,
		log:    log,
		newID:  uuid.NewString,
	}
}

// Rate returns the configured tariff.
func (s *ShippingService) Rate() models.Rate { return s.cfg.Rate }

// QuoteItems prices an ad-hoc list of items. A nil override uses the configured rate.
func (s *ShippingService) QuoteItems(ctx context.Context, items []models.LineItem, override *models.Rate) (models.Quote, error) {
	rate := s.cfg.Rate
	if override != nil {
		rate = *override
	}

	// validate before fingerprinting: the key prints every weight
	if err := shipping.Validate(items, rate); err != nil {
		return models.Quote{}, err
	}

	key := cache.QuoteKey(items, rate)
	if q, ok := s.cached(ctx, key); ok {
		return q, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		// another caller may have stored it between our miss and this call
		if q, ok := s.cached(ctx, key); ok {
			return q, nil
		}

		sq, err := shipping.ComputeCharge(items, rate)
		if err != nil {
			return models.Quote{}, err
		}

		q := models.Quote{ID: s.newID(), ShippingQuote: sq, Rate: rate}
		if err := s.cache.Set(ctx, key, q); err != nil {
			s.log.Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
		}
		return q, nil
	})
	if err != nil {
		return models.Quote{}, err
	}
	return v.(models.Quote), nil
}

func (s *ShippingService) cached(ctx context.Context, key string) (models.Quote, bool) {
	q, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
		return models.Quote{}, false
	}
	return q, ok
}

// QuoteRequest prices a request that may carry its own rate overrides.
func (s *ShippingService) QuoteRequest(ctx context.Context, req models.QuoteRequest) (models.Quote, error) {
	var override *models.Rate
	if req.PerKgRate != nil || req.MinimumCharge != nil {
		r := s.cfg.Rate
		if req.PerKgRate != nil {
			r.PerKg = *req.PerKgRate
		}
		if req.MinimumCharge != nil {
			r.Minimum = *req.MinimumCharge
		}
		override = &r
	}
	return s.QuoteItems(ctx, req.Items, override)
}

// QuoteCart prices the stored cart of a user.
func (s *ShippingService) QuoteCart(ctx context.Context, userID string) (models.Quote, error) {
	if s.carts == nil {
		return models.Quote{}, ErrUnavailable
	}

	lines, err := s.carts.ListLines(ctx, userID)
	if err != nil {
		return models.Quote{}, fmt.Errorf("load cart %s: %w", userID, err)
	}
	items, err := s.cfg.Weights.Resolve(lines)
	if err != nil {
		return models.Quote{}, err
	}
	return s.QuoteItems(ctx, items, nil)
}

// QuoteOrder prices an order and records the billed weight and charge on it.
func (s *ShippingService) QuoteOrder(ctx context.Context, orderID string) (models.Quote, error) {
	if s.orders == nil {
		return models.Quote{}, ErrUnavailable
	}

	// short request-scoped deadline, the save takes a row lock
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	lines, err := s.orders.ListLines(ctx, orderID)
	if err != nil {
		return models.Quote{}, fmt.Errorf("load order %s: %w", orderID, err)
	}
	items, err := s.cfg.Weights.Resolve(lines)
	if err != nil {
		return models.Quote{}, err
	}

	q, err := s.QuoteItems(ctx, items, nil)
	if err != nil {
		return models.Quote{}, err
	}
	if err := s.orders.SaveShipping(ctx, orderID, q.ShippingQuote); err != nil {
		return models.Quote{}, fmt.Errorf("save shipping for order %s: %w", orderID, err)
	}

	s.log.Info("order shipping recorded",
		zap.String("order_id", orderID),
		zap.String("quote_id", q.ID),
		zap.String("charge", q.Charge.String()),
	)
	return q, nil
}

type BatchResult struct {
	Quote *models.Quote
	Err   error
}

// QuoteBatch prices independent requests concurrently. Results keep request
// order; a bad entry is reported in its slot and does not fail the batch.
func (s *ShippingService) QuoteBatch(ctx context.Context, reqs []models.QuoteRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))

	err := concurrency.Run(ctx, s.cfg.BatchConcurrency, len(reqs), func(ctx context.Context, i int) error {
		q, err := s.QuoteRequest(ctx, reqs[i])
		if err != nil {
			results[i].Err = err
			return nil
		}
		results[i].Quote = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
