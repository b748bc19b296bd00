package marketdata

import (
	"context"
	"testing"

	"powerx/internal/config"
	"powerx/internal/market"
)

func testFeedConfig() config.MarketFeedConfig {
	return config.MarketFeedConfig{
		Provinces:   []string{"广东", "山东"},
		MarketTypes: []string{"day_ahead"},
		Persist:     false,
		Seed:        1,
	}
}

func TestSimFeed_QuotesStayWithinCaps(t *testing.T) {
	reg := market.NewRegistry()
	feed := NewSimFeed(reg, nil, nil, testFeedConfig())

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		feed.Refresh(ctx)
		for _, province := range []string{"广东", "山东"} {
			q, err := feed.CurrentQuote(ctx, province, "day_ahead")
			if err != nil {
				t.Fatalf("quote %s: %v", province, err)
			}
			minP, maxP := reg.PriceLimits(province)
			if q.Price < minP || q.Price > maxP {
				t.Fatalf("%s price %v outside [%v,%v]", province, q.Price, minP, maxP)
			}
			if q.Volume < 500 || q.Volume > 5000 {
				t.Fatalf("%s volume %v outside [500,5000]", province, q.Volume)
			}
		}
	}
}

func TestSimFeed_ColdStartGeneratesOnDemand(t *testing.T) {
	feed := NewSimFeed(market.NewRegistry(), nil, nil, testFeedConfig())
	q, err := feed.CurrentQuote(context.Background(), "广东", "day_ahead")
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	if q.Province != "广东" || q.MarketType != "day_ahead" {
		t.Fatalf("quote=%+v", q)
	}
}

func TestSimFeed_UnconfiguredPairErrors(t *testing.T) {
	feed := NewSimFeed(market.NewRegistry(), nil, nil, testFeedConfig())
	if _, err := feed.CurrentQuote(context.Background(), "海南", "day_ahead"); err == nil {
		t.Fatalf("want error for a province outside the feed config")
	}
}

func TestSimFeed_DeterministicWithSeed(t *testing.T) {
	ctx := context.Background()
	a := NewSimFeed(market.NewRegistry(), nil, nil, testFeedConfig())
	b := NewSimFeed(market.NewRegistry(), nil, nil, testFeedConfig())
	a.Refresh(ctx)
	b.Refresh(ctx)
	qa, _ := a.CurrentQuote(ctx, "广东", "day_ahead")
	qb, _ := b.CurrentQuote(ctx, "广东", "day_ahead")
	if qa.Price != qb.Price || qa.Volume != qb.Volume {
		t.Fatalf("same seed diverged: %+v vs %+v", qa, qb)
	}
}
