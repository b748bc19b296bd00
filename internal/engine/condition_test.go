package engine

import (
	"testing"
	"time"
)

func TestEvaluate_Leaf(t *testing.T) {
	ctx := map[string]any{"price": 520.0}
	ok, trace := Evaluate(Leaf{Field: "price", Operator: ">", Value: 500.0}, ctx)
	if !ok {
		t.Fatalf("520 > 500 should hold")
	}
	if len(trace) != 1 || !trace[0].Result || trace[0].Actual != 520.0 {
		t.Fatalf("trace=%+v", trace)
	}
}

func TestEvaluate_UnknownFieldIsFalse(t *testing.T) {
	ok, trace := Evaluate(Leaf{Field: "missing", Operator: ">", Value: 1.0}, map[string]any{})
	if ok {
		t.Fatalf("unknown field must evaluate false")
	}
	if len(trace) != 1 || trace[0].Result {
		t.Fatalf("trace=%+v want a recorded false leaf", trace)
	}
}

func TestEvaluate_TypeMismatchIsFalse(t *testing.T) {
	ctx := map[string]any{"province": "广东"}
	if ok, _ := Evaluate(Leaf{Field: "province", Operator: ">", Value: 100.0}, ctx); ok {
		t.Fatalf("string vs number must be false, not a panic")
	}
	if ok, _ := Evaluate(Leaf{Field: "province", Operator: "==", Value: "广东"}, ctx); !ok {
		t.Fatalf("string equality should hold")
	}
	if ok, _ := Evaluate(Leaf{Field: "province", Operator: "<", Value: "山东"}, ctx); ok {
		t.Fatalf("string ordering is undefined and must be false")
	}
}

func TestEvaluate_EmptyCombinators(t *testing.T) {
	if ok, _ := Evaluate(And{}, map[string]any{}); !ok {
		t.Fatalf("empty AND is vacuously true")
	}
	if ok, _ := Evaluate(Or{}, map[string]any{}); ok {
		t.Fatalf("empty OR is false")
	}
}

func TestEvaluate_ShortCircuitTrace(t *testing.T) {
	ctx := map[string]any{"price": 100.0, "volume": 900.0}
	cond := And{Children: []Condition{
		Leaf{Field: "price", Operator: ">", Value: 500.0},
		Leaf{Field: "volume", Operator: ">", Value: 100.0},
	}}
	ok, trace := Evaluate(cond, ctx)
	if ok {
		t.Fatalf("first child fails, AND must be false")
	}
	if len(trace) != 1 {
		t.Fatalf("trace=%+v want only the evaluated leaf", trace)
	}

	or := Or{Children: []Condition{
		Leaf{Field: "volume", Operator: ">", Value: 100.0},
		Leaf{Field: "price", Operator: ">", Value: 500.0},
	}}
	ok, trace = Evaluate(or, ctx)
	if !ok || len(trace) != 1 {
		t.Fatalf("ok=%v trace=%+v want OR short-circuit after first true leaf", ok, trace)
	}
}

func TestEvaluate_TimeComparison(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := map[string]any{"timestamp": now}
	ok, _ := Evaluate(Leaf{Field: "timestamp", Operator: ">=", Value: "2025-06-01T10:00:00Z"}, ctx)
	if !ok {
		t.Fatalf("12:00 >= 10:00 should hold")
	}
	ok, _ = Evaluate(Leaf{Field: "timestamp", Operator: "<", Value: "2025-06-01T10:00:00Z"}, ctx)
	if ok {
		t.Fatalf("12:00 < 10:00 should not hold")
	}
}

func TestParseCondition_Nested(t *testing.T) {
	raw := []byte(`{
		"operator": "AND",
		"conditions": [
			{"field": "price", "operator": ">", "value": 500},
			{"operator": "OR", "conditions": [
				{"field": "volume", "operator": ">", "value": 1000},
				{"field": "hour", "operator": ">=", "value": 14}
			]}
		]
	}`)
	cond, err := ParseCondition(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := map[string]any{"price": 520.0, "volume": 800.0, "hour": 15.0}
	if ok, _ := Evaluate(cond, ctx); !ok {
		t.Fatalf("price>500 AND (volume>1000 OR hour>=14) should hold")
	}
	ctx["hour"] = 9.0
	if ok, _ := Evaluate(cond, ctx); ok {
		t.Fatalf("neither OR branch holds, tree must be false")
	}
}

func TestParseCondition_Errors(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(`{`),
		[]byte(`{"field": "price", "operator": "~", "value": 1}`),
		[]byte(`{"operator": ">", "value": 1}`),
		[]byte(`{"operator": "AND", "conditions": [{"field": "p", "operator": "bogus", "value": 1}]}`),
	}
	for i, raw := range cases {
		if _, err := ParseCondition(raw); err == nil {
			t.Fatalf("case %d: want parse error for %s", i, raw)
		}
	}
}

func TestParseCondition_CaseInsensitiveCombinator(t *testing.T) {
	cond, err := ParseCondition([]byte(`{"operator": "and", "conditions": []}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ok, _ := Evaluate(cond, map[string]any{}); !ok {
		t.Fatalf("lowercase and with no children is vacuously true")
	}
}
