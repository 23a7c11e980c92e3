package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/cache"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/repository"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/shipping"
)

type fakeCarts struct {
	lines map[string][]models.CartLine
	err   error
}

func (f fakeCarts) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines[userID], nil
}

type fakeOrders struct {
	lines   map[string][]models.CartLine
	saved   map[string]models.ShippingQuote
	saveErr error
}

func (f *fakeOrders) ListLines(ctx context.Context, orderID string) ([]models.CartLine, error) {
	l, ok := f.lines[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (f *fakeOrders) SaveShipping(ctx context.Context, orderID string, q models.ShippingQuote) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[orderID] = q
	return nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (models.Quote, bool, error) {
	return models.Quote{}, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, models.Quote) error { return errors.New("cache down") }

// gateCache holds the first n reads until all n have arrived, so every
// caller sees a miss before any of them can store a quote.
type gateCache struct {
	*cache.MemoryCache
	n       int32
	reads   atomic.Int32
	arrived sync.WaitGroup
}

func newGateCache(n int) *gateCache {
	g := &gateCache{MemoryCache: cache.NewMemoryCache(time.Hour), n: int32(n)}
	g.arrived.Add(n)
	return g
}

func (g *gateCache) Get(ctx context.Context, key string) (models.Quote, bool, error) {
	if g.reads.Add(1) <= g.n {
		g.arrived.Done()
		g.arrived.Wait()
	}
	return g.MemoryCache.Get(ctx, key)
}

// keyRecorder fails the test if the service reaches the cache.
type keyRecorder struct{ t *testing.T }

func (k keyRecorder) Get(_ context.Context, key string) (models.Quote, bool, error) {
	k.t.Errorf("cache read for %q", key)
	return models.Quote{}, false, nil
}

func (k keyRecorder) Set(_ context.Context, key string, _ models.Quote) error {
	k.t.Errorf("cache write for %q", key)
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func w(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func testConfig() Config {
	return Config{
		Rate:             shipping.DefaultRate(),
		Weights:          shipping.WeightPolicy{DefaultItemWeightKg: d("0.5")},
		BatchConcurrency: 3,
	}
}

func newTestService(carts CartRepo, orders OrderRepo, qc cache.QuoteCache) *ShippingService {
	s := NewShippingService(carts, orders, qc, testConfig(), nil)
	var n int64
	s.newID = func() string { return fmt.Sprintf("q-%d", atomic.AddInt64(&n, 1)) }
	return s
}

func TestQuoteItems(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	q, err := svc.QuoteItems(context.Background(), []models.LineItem{
		{WeightKg: d("0.5"), Quantity: 1},
		{WeightKg: d("2.0"), Quantity: 1},
		{WeightKg: d("0.3"), Quantity: 2},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "q-1", q.ID)
	assert.EqualValues(t, 4, q.RoundedWeightKg)
	assert.True(t, d("240").Equal(q.Charge))
	assert.True(t, d("60").Equal(q.PerKg))
}

func TestQuoteItemsInvalid(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	_, err := svc.QuoteItems(context.Background(), []models.LineItem{{WeightKg: d("0"), Quantity: 1}}, nil)
	assert.ErrorIs(t, err, shipping.ErrInvalidInput)

	bad := models.Rate{PerKg: d("0"), Minimum: d("60")}
	_, err = svc.QuoteItems(context.Background(), nil, &bad)
	assert.ErrorIs(t, err, shipping.ErrInvalidInput)
}

func TestQuoteItemsCached(t *testing.T) {
	mc := cache.NewMemoryCache(time.Hour)
	svc := newTestService(nil, nil, mc)
	items := []models.LineItem{{WeightKg: d("1.5"), Quantity: 1}}

	first, err := svc.QuoteItems(context.Background(), items, nil)
	require.NoError(t, err)
	second, err := svc.QuoteItems(context.Background(), items, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, mc.Len())

	other, err := svc.QuoteItems(context.Background(), []models.LineItem{{WeightKg: d("1.5"), Quantity: 2}}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestQuoteItemsConcurrentMissSharesID(t *testing.T) {
	const callers = 8
	gc := newGateCache(callers)
	svc := newTestService(nil, nil, gc)
	items := []models.LineItem{{WeightKg: d("2.5"), Quantity: 3}}

	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := svc.QuoteItems(context.Background(), items, nil)
			assert.NoError(t, err)
			ids[i] = q.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i], "caller %d got a different quote_id", i)
	}
	assert.Equal(t, 1, gc.Len())
}

func TestQuoteItemsRejectsOversizedBeforeCache(t *testing.T) {
	svc := newTestService(nil, nil, keyRecorder{t})

	tests := []struct {
		name  string
		items []models.LineItem
		rate  *models.Rate
	}{
		{"huge exponent weight", []models.LineItem{{WeightKg: d("1e10000000"), Quantity: 1}}, nil},
		{"weight above limit", []models.LineItem{{WeightKg: d("2000000"), Quantity: 1}}, nil},
		{"quantity above limit", []models.LineItem{{WeightKg: d("1"), Quantity: shipping.MaxQuantity + 1}}, nil},
		{"huge exponent rate", nil, &models.Rate{PerKg: d("1e10000000"), Minimum: d("60")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := svc.QuoteItems(context.Background(), tt.items, tt.rate)
				done <- err
			}()
			select {
			case err := <-done:
				assert.ErrorIs(t, err, shipping.ErrInvalidInput)
			case <-time.After(2 * time.Second):
				t.Fatal("validation did not return promptly")
			}
		})
	}
}

func TestQuoteItemsCacheFailureIsIgnored(t *testing.T) {
	svc := newTestService(nil, nil, failingCache{})

	q, err := svc.QuoteItems(context.Background(), []models.LineItem{{WeightKg: d("1.5"), Quantity: 1}}, nil)
	require.NoError(t, err)
	assert.True(t, d("120").Equal(q.Charge))
}

func TestQuoteRequestOverrides(t *testing.T) {
	svc := newTestService(nil, nil, nil)
	items := []models.LineItem{{WeightKg: d("2.5"), Quantity: 1}}

	t.Run("rate only", func(t *testing.T) {
		q, err := svc.QuoteRequest(context.Background(), models.QuoteRequest{Items: items, PerKgRate: w("10")})
		require.NoError(t, err)
		assert.True(t, d("60").Equal(q.Charge), "floor still applies, got %s", q.Charge)
		assert.True(t, d("10").Equal(q.PerKg))
	})

	t.Run("rate and minimum", func(t *testing.T) {
		q, err := svc.QuoteRequest(context.Background(), models.QuoteRequest{Items: items, PerKgRate: w("10"), MinimumCharge: w("0")})
		require.NoError(t, err)
		assert.True(t, d("30").Equal(q.Charge))
	})

	t.Run("negative minimum", func(t *testing.T) {
		_, err := svc.QuoteRequest(context.Background(), models.QuoteRequest{Items: items, MinimumCharge: w("-5")})
		assert.ErrorIs(t, err, shipping.ErrInvalidInput)
	})
}

func TestQuoteCart(t *testing.T) {
	carts := fakeCarts{lines: map[string][]models.CartLine{
		"7": {
			{ProductID: "a", Quantity: 2, WeightKg: w("0.75")},
			{ProductID: "b", Quantity: 1},
		},
	}}
	svc := newTestService(carts, nil, nil)

	q, err := svc.QuoteCart(context.Background(), "7")
	require.NoError(t, err)
	assert.True(t, d("2").Equal(q.TotalWeightKg))
	assert.True(t, d("120").Equal(q.Charge))

	q, err = svc.QuoteCart(context.Background(), "unknown")
	require.NoError(t, err)
	assert.True(t, d("60").Equal(q.Charge), "empty cart bills the minimum")
}

func TestQuoteCartWeightModes(t *testing.T) {
	carts := fakeCarts{lines: map[string][]models.CartLine{
		"7": {
			{ProductID: "a", Quantity: 2, WeightKg: w("2.4")},
			{ProductID: "b", Quantity: 1},
		},
	}}

	tests := []struct {
		name    string
		weights shipping.WeightPolicy
		total   string
		charge  string
	}{
		{"actual", shipping.WeightPolicy{DefaultItemWeightKg: d("0.5")}, "5.3", "360"},
		{"per item", shipping.WeightPolicy{Mode: shipping.WeightPerItem, DefaultItemWeightKg: d("0.5")}, "1.5", "120"},
		{"fixed", shipping.WeightPolicy{Mode: shipping.WeightFixed, FixedWeightKg: d("0.5")}, "0.5", "60"},
		{"minimum", shipping.WeightPolicy{Mode: shipping.WeightMinimum, MinimumWeightKg: d("3")}, "3", "180"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Weights = tt.weights
			svc := NewShippingService(carts, nil, nil, cfg, nil)

			q, err := svc.QuoteCart(context.Background(), "7")
			require.NoError(t, err)
			assert.True(t, d(tt.total).Equal(q.TotalWeightKg), "total = %s", q.TotalWeightKg)
			assert.True(t, d(tt.charge).Equal(q.Charge), "charge = %s", q.Charge)
		})
	}
}

func TestQuoteCartErrors(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		_, err := newTestService(nil, nil, nil).QuoteCart(context.Background(), "7")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("repo failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := newTestService(fakeCarts{err: boom}, nil, nil).QuoteCart(context.Background(), "7")
		assert.ErrorIs(t, err, boom)
	})
}

func TestQuoteOrder(t *testing.T) {
	orders := &fakeOrders{
		lines: map[string][]models.CartLine{
			"100": {{ProductID: "a", Quantity: 3, WeightKg: w("0.4")}},
		},
		saved: map[string]models.ShippingQuote{},
	}
	svc := newTestService(nil, orders, nil)

	q, err := svc.QuoteOrder(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, d("120").Equal(q.Charge))

	saved, ok := orders.saved["100"]
	require.True(t, ok)
	assert.True(t, d("1.2").Equal(saved.TotalWeightKg))
	assert.True(t, d("120").Equal(saved.Charge))

	_, err = svc.QuoteOrder(context.Background(), "404")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	orders.saveErr = errors.New("lock timeout")
	_, err = svc.QuoteOrder(context.Background(), "100")
	assert.ErrorContains(t, err, "save shipping")
}

func TestQuoteBatch(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	reqs := []models.QuoteRequest{
		{Items: []models.LineItem{{WeightKg: d("0.5"), Quantity: 1}}},
		{Items: []models.LineItem{{WeightKg: d("1"), Quantity: 0}}},
		{Items: []models.LineItem{{WeightKg: d("1.5"), Quantity: 1}}},
		{},
	}

	results, err := svc.QuoteBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	require.NotNil(t, results[0].Quote)
	assert.True(t, d("60").Equal(results[0].Quote.Charge))

	assert.Nil(t, results[1].Quote)
	assert.ErrorIs(t, results[1].Err, shipping.ErrInvalidInput)

	require.NotNil(t, results[2].Quote)
	assert.True(t, d("120").Equal(results[2].Quote.Charge))

	require.NotNil(t, results[3].Quote)
	assert.True(t, d("60").Equal(results[3].Quote.Charge))
}

func TestQuoteBatchCancelled(t *testing.T) {
	svc := newTestService(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.QuoteBatch(ctx, []models.QuoteRequest{{}, {}})
	assert.ErrorIs(t, err, context.Canceled)
}
