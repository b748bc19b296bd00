package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"powerx/internal/models"
)

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func pendingOrder(id uint64, conditionType string) models.ConditionalOrder {
	return models.ConditionalOrder{
		ID:            id,
		OwnerID:       7,
		ConditionType: conditionType,
		Province:      "广东",
		MarketType:    "day_ahead",
		Direction:     models.OrderDirectionBuy,
		Quantity:      decimal.NewFromFloat(100),
		PriceType:     "limit",
		LimitPrice:    decPtr(480),
		Status:        models.CondOrderPending,
		Enabled:       true,
	}
}

func TestConditionalOrder_PriceAboveFires(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	got := repo.findCondOrder(1)
	if got.Status != models.CondOrderExecuted {
		t.Fatalf("status=%s want EXECUTED", got.Status)
	}
	if got.ExecutedOrderID == nil || *got.ExecutedOrderID != 42 {
		t.Fatalf("executed_order_id=%v want 42", got.ExecutedOrderID)
	}
	if len(repo.logs) != 1 || !repo.logs[0].Success {
		t.Fatalf("logs=%+v want one successful trigger log", repo.logs)
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("calls=%d want 1", len(dispatcher.calls))
	}
	// Limit orders are placed at the limit price, not the quote.
	if dispatcher.calls[0].params["price"] != 480.0 {
		t.Fatalf("price=%v want limit price 480", dispatcher.calls[0].params["price"])
	}
	if dispatcher.calls[0].params["source"] != "conditional" {
		t.Fatalf("source=%v", dispatcher.calls[0].params["source"])
	}
}

func TestConditionalOrder_OneShot(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())
	e.Tick(context.Background())
	e.Tick(context.Background())

	if len(dispatcher.calls) != 1 || len(repo.logs) != 1 {
		t.Fatalf("calls=%d logs=%d want exactly one fire ever", len(dispatcher.calls), len(repo.logs))
	}
	if repo.findCondOrder(1).Status != models.CondOrderExecuted {
		t.Fatalf("order must stay in its terminal state")
	}
}

func TestConditionalOrder_BelowThresholdHolds(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 500), dispatcher)

	// Strict comparison: price == threshold does not fire.
	e.Tick(context.Background())

	if len(dispatcher.calls) != 0 || repo.findCondOrder(1).Status != models.CondOrderPending {
		t.Fatalf("order fired at the threshold")
	}
}

func TestConditionalOrder_ExpiryWritesNoTriggerLog(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	past := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	order.ValidUntil = &past
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	got := repo.findCondOrder(1)
	if got.Status != models.CondOrderExpired {
		t.Fatalf("status=%s want EXPIRED", got.Status)
	}
	if len(repo.logs) != 0 || len(dispatcher.calls) != 0 {
		t.Fatalf("expiry is housekeeping, not a trigger attempt")
	}
}

func TestConditionalOrder_DispatchFailureIsTerminal(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{fail: true}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	got := repo.findCondOrder(1)
	if got.Status != models.CondOrderFailed {
		t.Fatalf("status=%s want FAILED", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatalf("error message not recorded")
	}
	if len(repo.logs) != 1 || repo.logs[0].Success {
		t.Fatalf("logs=%+v want one failed trigger log", repo.logs)
	}

	// A failed order never re-enters the pending pool.
	e.Tick(context.Background())
	if len(dispatcher.calls) != 1 {
		t.Fatalf("calls=%d want no retry", len(dispatcher.calls))
	}
}

func TestConditionalOrder_PriceChangePctUsesReference(t *testing.T) {
	order := pendingOrder(1, models.CondPriceChangePct)
	pct := 10.0
	order.TriggerChangePct = &pct
	order.ReferencePrice = decPtr(400)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}

	// 420 is a 5% move: hold.
	e := testEngine(repo, quoteAt("广东", 420), dispatcher)
	e.Tick(context.Background())
	if len(dispatcher.calls) != 0 {
		t.Fatalf("5%% move fired a 10%% trigger")
	}

	// 356 is an 11% move down: the change is absolute, so it fires.
	e.Feed = quoteAt("广东", 356)
	e.Tick(context.Background())
	if len(dispatcher.calls) != 1 {
		t.Fatalf("calls=%d want downward move to fire", len(dispatcher.calls))
	}
}

func TestConditionalOrder_TimeTrigger(t *testing.T) {
	order := pendingOrder(1, models.CondTimeTrigger)
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	order.TriggerTime = &at
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 450), dispatcher)

	// Engine clock is 10:00, trigger time 09:30: fires.
	e.Tick(context.Background())
	if len(dispatcher.calls) != 1 {
		t.Fatalf("calls=%d want time trigger to fire", len(dispatcher.calls))
	}
}

func TestConditionalOrder_VolumeAbove(t *testing.T) {
	order := pendingOrder(1, models.CondVolumeAbove)
	order.TriggerVolume = decPtr(5000)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	// quoteAt sets volume to 2000.
	e := testEngine(repo, quoteAt("广东", 450), dispatcher)

	e.Tick(context.Background())
	if len(dispatcher.calls) != 0 {
		t.Fatalf("2000 volume fired a 5000 trigger")
	}
}

func TestConditionalOrder_MissingQuoteHolds(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("山东", 520), dispatcher)

	e.Tick(context.Background())

	if len(dispatcher.calls) != 0 || repo.findCondOrder(1).Status != models.CondOrderPending {
		t.Fatalf("absent quote must never fire")
	}
}

func TestSweepExpired_CatchesDisabledOrders(t *testing.T) {
	order := pendingOrder(1, models.CondPriceAbove)
	order.TriggerPrice = decPtr(500)
	order.Enabled = false
	past := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	order.ValidUntil = &past
	repo := &stubRepo{condOrders: []models.ConditionalOrder{order}}
	e := testEngine(repo, quoteAt("广东", 520), &stubDispatcher{})

	// The tick never lists disabled orders.
	e.Tick(context.Background())
	if repo.findCondOrder(1).Status != models.CondOrderPending {
		t.Fatalf("disabled order should be untouched by the tick")
	}

	e.SweepExpired(context.Background())
	if repo.findCondOrder(1).Status != models.CondOrderExpired {
		t.Fatalf("sweep must expire disabled orders")
	}
	if len(repo.logs) != 0 {
		t.Fatalf("expiry writes no trigger log")
	}
}
