package stocks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/types"
)

type stubProvider struct {
	prices map[string]float64
	err    error
	calls  int
}

func (p *stubProvider) GetQuote(_ context.Context, symbol string) (*types.Quote, error) {
	if p.err != nil {
		return nil, p.err
	}
	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", quotes.ErrSymbolNotFound, symbol)
	}
	return &types.Quote{Symbol: symbol, Name: symbol + " Inc", Price: price}, nil
}

func (p *stubProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]*types.Quote, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]*types.Quote, len(symbols))
	for _, symbol := range symbols {
		if quote, err := p.GetQuote(ctx, symbol); err == nil {
			out[symbol] = quote
		}
	}
	return out, nil
}

func newTestService(t *testing.T, provider quotes.Provider, symbols []string) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&types.Stock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, provider, symbols)
}

func TestRefreshCacheSkipsUnpricedSymbols(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"AAPL": 150, "MSFT": 300}}
	service := newTestService(t, provider, []string{"AAPL", "MSFT", "NOPE"})

	updated, err := service.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	rows, err := service.ListCached()
	if err != nil {
		t.Fatalf("list cached: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("cache has %d rows, want 2", len(rows))
	}
}

func TestRefreshCacheOverwritesStalePrices(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"AAPL": 150}}
	service := newTestService(t, provider, []string{"AAPL"})

	if _, err := service.RefreshCache(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	provider.prices["AAPL"] = 155
	if _, err := service.RefreshCache(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	rows, err := service.ListCached()
	if err != nil {
		t.Fatalf("list cached: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("cache has %d rows, want 1", len(rows))
	}
	if rows[0].Price != 155 {
		t.Fatalf("cached price = %v, want refreshed 155", rows[0].Price)
	}
}

func TestRefreshCacheProviderDown(t *testing.T) {
	provider := &stubProvider{err: quotes.ErrProviderUnavailable}
	service := newTestService(t, provider, []string{"AAPL"})

	if _, err := service.RefreshCache(context.Background()); err == nil {
		t.Fatal("refresh succeeded with provider down")
	}
}

func TestRefreshOnceBacksOffWhileProviderDown(t *testing.T) {
	provider := &stubProvider{err: quotes.ErrProviderUnavailable}
	service := newTestService(t, provider, []string{"AAPL"})
	refresher := NewRefresher(service, time.Hour)

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = _maxRetryInterval

	first := refresher.refreshOnce(context.Background(), backoffCfg)
	second := refresher.refreshOnce(context.Background(), backoffCfg)

	if first >= time.Hour || second >= time.Hour {
		t.Fatalf("backoff waits %v, %v should be below the refresh interval", first, second)
	}
	if first > _maxRetryInterval || second > _maxRetryInterval {
		t.Fatalf("backoff waits %v, %v exceed the retry ceiling", first, second)
	}

	// Recovery resets to the regular interval.
	provider.err = nil
	provider.prices = map[string]float64{"AAPL": 150}
	if wait := refresher.refreshOnce(context.Background(), backoffCfg); wait != time.Hour {
		t.Fatalf("wait after recovery = %v, want the refresh interval", wait)
	}
}

func TestRefresherStopsOnContextCancel(t *testing.T) {
	provider := &stubProvider{prices: map[string]float64{"AAPL": 150}}
	service := newTestService(t, provider, []string{"AAPL"})
	refresher := NewRefresher(service, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancel")
	}

	if provider.calls == 0 {
		t.Error("refresher never primed the cache")
	}
}
