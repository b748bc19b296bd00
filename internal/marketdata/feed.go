package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"powerx/internal/config"
	"powerx/internal/market"
	"powerx/internal/models"
)

// Quote is a point-in-time market snapshot for one (province, market type).
type Quote struct {
	Province   string    `json:"province"`
	MarketType string    `json:"market_type"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	Timestamp  time.Time `json:"timestamp"`
}

// Feed is the market-data lookup the engine depends on. An error or a stale
// quote means "condition not satisfied", never a crash.
type Feed interface {
	CurrentQuote(ctx context.Context, province, marketType string) (Quote, error)
}

// QuoteSink persists feed snapshots.
type QuoteSink interface {
	InsertMarketQuote(ctx context.Context, item *models.MarketQuote) error
}

// SimFeed generates plausible quotes as a random walk around each province's
// base price. It stands in for a real market-data upstream; nothing outside
// this package may depend on its randomness.
type SimFeed struct {
	Registry *market.Registry
	Sink     QuoteSink
	Logger   *zap.Logger
	Config   config.MarketFeedConfig

	mu     sync.RWMutex
	quotes map[string]Quote
	rng    *rand.Rand
}

func NewSimFeed(reg *market.Registry, sink QuoteSink, logger *zap.Logger, cfg config.MarketFeedConfig) *SimFeed {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &SimFeed{
		Registry: reg,
		Sink:     sink,
		Logger:   logger,
		Config:   cfg,
		quotes:   map[string]Quote{},
		rng:      rand.New(rand.NewSource(seed)),
	}
	return f
}

func quoteKey(province, marketType string) string {
	return province + "|" + marketType
}

func (f *SimFeed) CurrentQuote(ctx context.Context, province, marketType string) (Quote, error) {
	f.mu.RLock()
	q, ok := f.quotes[quoteKey(province, marketType)]
	f.mu.RUnlock()
	if ok {
		return q, nil
	}
	// Cold start: generate on demand so the engine never sees an empty feed
	// for a configured province.
	f.Refresh(ctx)
	f.mu.RLock()
	q, ok = f.quotes[quoteKey(province, marketType)]
	f.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("no quote for %s/%s", province, marketType)
	}
	return q, nil
}

// Refresh regenerates one quote per configured (province, market type) and
// persists the snapshots when a sink is wired.
func (f *SimFeed) Refresh(ctx context.Context) {
	now := time.Now().UTC()
	f.mu.Lock()
	fresh := make([]Quote, 0, len(f.Config.Provinces)*len(f.Config.MarketTypes))
	for _, province := range f.Config.Provinces {
		base := f.Registry.BasePrice(province)
		minPrice, maxPrice := f.Registry.PriceLimits(province)
		for _, mt := range f.Config.MarketTypes {
			key := quoteKey(province, mt)
			prev, ok := f.quotes[key]
			price := base
			if ok {
				price = prev.Price
			}
			// Walk within ±3% of base per refresh, clamped to the caps.
			price += base * (f.rng.Float64()*0.06 - 0.03)
			if price < minPrice {
				price = minPrice
			}
			if price > maxPrice {
				price = maxPrice
			}
			q := Quote{
				Province:   province,
				MarketType: mt,
				Price:      round2(price),
				Volume:     round3(500 + f.rng.Float64()*4500),
				Timestamp:  now,
			}
			f.quotes[key] = q
			fresh = append(fresh, q)
		}
	}
	f.mu.Unlock()

	if f.Sink == nil || !f.Config.Persist {
		return
	}
	for _, q := range fresh {
		item := &models.MarketQuote{
			Province:   q.Province,
			MarketType: q.MarketType,
			Price:      decimal.NewFromFloat(q.Price),
			Volume:     decimal.NewFromFloat(q.Volume),
			QuotedAt:   q.Timestamp,
		}
		if err := f.Sink.InsertMarketQuote(ctx, item); err != nil {
			if f.Logger != nil {
				f.Logger.Warn("persist quote failed",
					zap.String("province", q.Province),
					zap.String("market_type", q.MarketType),
					zap.Error(err))
			}
			return
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
