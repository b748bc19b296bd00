package engine

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"powerx/internal/config"
	"powerx/internal/marketdata"
	"powerx/internal/models"
)

func testEngine(repo *stubRepo, feed *stubFeed, dispatcher *stubDispatcher) *Engine {
	return &Engine{
		Repo:        repo,
		Feed:        feed,
		Dispatcher:  dispatcher,
		Config:      config.EngineConfig{MaxRulesPerTick: 50, MaxOrdersPerTick: 50},
		Provinces:   []string{"广东"},
		MarketTypes: []string{"day_ahead"},
		now:         func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func quoteAt(province string, price float64) *stubFeed {
	return &stubFeed{quotes: map[string]marketdata.Quote{
		province + "|day_ahead": {
			Province:   province,
			MarketType: "day_ahead",
			Price:      price,
			Volume:     2000,
			Timestamp:  time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC),
		},
	}}
}

func activeRule(id uint64, expr string) models.Rule {
	return models.Rule{
		ID:                  id,
		OwnerID:             7,
		Name:                "high price alert",
		Status:              models.RuleStatusActive,
		ConditionExpr:       datatypes.JSON([]byte(expr)),
		ActionType:          models.ActionSendAlert,
		MaxExecutionsPerDay: 10,
		MinIntervalSeconds:  60,
	}
}

func TestTick_RuleFiresAndRecords(t *testing.T) {
	repo := &stubRepo{rules: []models.Rule{
		activeRule(1, `{"field":"price","operator":">","value":500}`),
	}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	if len(dispatcher.calls) != 1 {
		t.Fatalf("dispatch calls=%d want 1", len(dispatcher.calls))
	}
	call := dispatcher.calls[0]
	if call.actionType != models.ActionSendAlert {
		t.Fatalf("actionType=%s", call.actionType)
	}
	if call.params["province"] != "广东" || call.params["owner_id"] != float64(7) {
		t.Fatalf("params=%v want province and owner defaults merged", call.params)
	}
	if len(repo.executions) != 1 || !repo.executions[0].Success {
		t.Fatalf("executions=%+v want one successful record", repo.executions)
	}
	rule := repo.findRule(1)
	if rule.ExecutionCount != 1 || rule.TodayExecutionCount != 1 || rule.LastExecutedAt == nil {
		t.Fatalf("rule counters not bumped: %+v", rule)
	}
}

func TestTick_ConditionFalseNoRecord(t *testing.T) {
	repo := &stubRepo{rules: []models.Rule{
		activeRule(1, `{"field":"price","operator":">","value":500}`),
	}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 450), dispatcher)

	e.Tick(context.Background())

	if len(dispatcher.calls) != 0 || len(repo.executions) != 0 {
		t.Fatalf("calls=%d executions=%d want none", len(dispatcher.calls), len(repo.executions))
	}
}

func TestTick_RateLimitGateSkipsSilently(t *testing.T) {
	rule := activeRule(1, `{"field":"price","operator":">","value":500}`)
	rule.MaxExecutionsPerDay = 1
	rule.TodayExecutionCount = 1
	repo := &stubRepo{rules: []models.Rule{rule}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	// A gate skip is not an evaluation attempt.
	if len(repo.executions) != 0 || len(dispatcher.calls) != 0 {
		t.Fatalf("executions=%d calls=%d want none", len(repo.executions), len(dispatcher.calls))
	}
}

func TestTick_DailyCapStopsSecondFire(t *testing.T) {
	rule := activeRule(1, `{"field":"price","operator":">","value":500}`)
	rule.MaxExecutionsPerDay = 1
	rule.MinIntervalSeconds = 0
	repo := &stubRepo{rules: []models.Rule{rule}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())
	e.Tick(context.Background())

	if len(repo.executions) != 1 || len(dispatcher.calls) != 1 {
		t.Fatalf("executions=%d calls=%d want exactly one fire", len(repo.executions), len(dispatcher.calls))
	}
}

func TestTick_MinIntervalBlocksRefire(t *testing.T) {
	rule := activeRule(1, `{"field":"price","operator":">","value":500}`)
	last := time.Date(2025, 6, 1, 9, 59, 30, 0, time.UTC)
	rule.LastExecutedAt = &last
	repo := &stubRepo{rules: []models.Rule{rule}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	// 30s since last fire, min interval 60s.
	e.Tick(context.Background())
	if len(dispatcher.calls) != 0 {
		t.Fatalf("calls=%d want interval gate to hold", len(dispatcher.calls))
	}

	e.now = func() time.Time { return time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC) }
	e.Tick(context.Background())
	if len(dispatcher.calls) != 1 {
		t.Fatalf("calls=%d want fire after interval elapsed", len(dispatcher.calls))
	}
}

func TestTick_MalformedConditionIsSkipped(t *testing.T) {
	repo := &stubRepo{rules: []models.Rule{
		activeRule(1, `{"field":"price","operator":"~","value":1}`),
		activeRule(2, `{"field":"price","operator":">","value":500}`),
	}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	// The malformed rule is skipped without a record; the next rule still runs.
	if len(repo.executions) != 1 || repo.executions[0].RuleID != 2 {
		t.Fatalf("executions=%+v want only rule 2", repo.executions)
	}
}

func TestTick_DispatchFailureRecordedWithoutCounterBump(t *testing.T) {
	repo := &stubRepo{rules: []models.Rule{
		activeRule(1, `{"field":"price","operator":">","value":500}`),
	}}
	dispatcher := &stubDispatcher{fail: true}
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	if len(repo.executions) != 1 {
		t.Fatalf("executions=%d want the failed attempt recorded", len(repo.executions))
	}
	exec := repo.executions[0]
	if exec.Success || exec.ErrorMessage == "" {
		t.Fatalf("exec=%+v want success=false with error message", exec)
	}
	rule := repo.findRule(1)
	if rule.ExecutionCount != 0 || rule.LastExecutedAt != nil {
		t.Fatalf("failed dispatch must not bump counters: %+v", rule)
	}
}

func TestTick_MissingQuoteNeverFires(t *testing.T) {
	repo := &stubRepo{rules: []models.Rule{
		activeRule(1, `{"field":"price","operator":">","value":0}`),
	}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, &stubFeed{quotes: map[string]marketdata.Quote{}}, dispatcher)

	e.Tick(context.Background())

	if len(dispatcher.calls) != 0 || len(repo.executions) != 0 {
		t.Fatalf("absent market data must not fire anything")
	}
}

func TestTick_RuleScopeFilters(t *testing.T) {
	rule := activeRule(1, `{"field":"price","operator":">","value":0}`)
	rule.Provinces = datatypes.JSON([]byte(`["山东"]`))
	repo := &stubRepo{rules: []models.Rule{rule}}
	dispatcher := &stubDispatcher{}
	// Only a 广东 quote exists, so the 山东-scoped rule finds nothing.
	e := testEngine(repo, quoteAt("广东", 520), dispatcher)

	e.Tick(context.Background())

	if len(dispatcher.calls) != 0 {
		t.Fatalf("calls=%d want scope to exclude 广东", len(dispatcher.calls))
	}
}

func TestTriggerRule_BypassesConditionNotGate(t *testing.T) {
	// Condition would be false against the 450 quote; manual trigger ignores it.
	rule := activeRule(1, `{"field":"price","operator":">","value":99999}`)
	repo := &stubRepo{rules: []models.Rule{rule}}
	dispatcher := &stubDispatcher{}
	e := testEngine(repo, quoteAt("广东", 450), dispatcher)

	if err := e.TriggerRule(context.Background(), 1); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(dispatcher.calls) != 1 || len(repo.executions) != 1 {
		t.Fatalf("calls=%d executions=%d want one fire", len(dispatcher.calls), len(repo.executions))
	}

	// The rate-limit gate still applies.
	if err := e.TriggerRule(context.Background(), 1); err == nil {
		t.Fatalf("second trigger inside min interval must be refused")
	}
}

func TestTriggerRule_UnknownRule(t *testing.T) {
	e := testEngine(&stubRepo{}, quoteAt("广东", 450), &stubDispatcher{})
	if err := e.TriggerRule(context.Background(), 99); err == nil {
		t.Fatalf("want error for missing rule")
	}
}

func TestResetDailyCounters(t *testing.T) {
	r1 := activeRule(1, `{"field":"price","operator":">","value":500}`)
	r1.TodayExecutionCount = 3
	r2 := activeRule(2, `{"field":"price","operator":">","value":500}`)
	repo := &stubRepo{rules: []models.Rule{r1, r2}}
	e := testEngine(repo, quoteAt("广东", 450), &stubDispatcher{})

	e.ResetDailyCounters(context.Background())

	if repo.findRule(1).TodayExecutionCount != 0 {
		t.Fatalf("today count not reset")
	}
}
