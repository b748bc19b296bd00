package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Condition is a boolean expression tree evaluated against a market context.
// Evaluation is pure and total: malformed input is rejected at parse time,
// and anything unresolvable at evaluation time is simply false.
type Condition interface {
	evaluate(ctx map[string]any, trace *[]LeafResult) bool
}

// LeafResult is the per-leaf evaluation trace persisted on rule executions.
type LeafResult struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual,omitempty"`
	Result   bool   `json:"result"`
}

type Leaf struct {
	Field    string
	Operator string
	Value    any
}

type And struct {
	Children []Condition
}

type Or struct {
	Children []Condition
}

// Evaluate runs the tree against ctx and returns the outcome plus the trace
// of every leaf actually evaluated (short-circuited leaves are absent).
func Evaluate(c Condition, ctx map[string]any) (bool, []LeafResult) {
	if c == nil {
		return false, nil
	}
	trace := make([]LeafResult, 0, 4)
	out := c.evaluate(ctx, &trace)
	return out, trace
}

func (l Leaf) evaluate(ctx map[string]any, trace *[]LeafResult) bool {
	res := LeafResult{Field: l.Field, Operator: l.Operator, Expected: l.Value}
	actual, ok := ctx[l.Field]
	if ok {
		res.Actual = actual
		res.Result = compare(actual, l.Operator, l.Value)
	}
	*trace = append(*trace, res)
	return res.Result
}

func (a And) evaluate(ctx map[string]any, trace *[]LeafResult) bool {
	// Vacuously true on an empty child list.
	for _, c := range a.Children {
		if !c.evaluate(ctx, trace) {
			return false
		}
	}
	return true
}

func (o Or) evaluate(ctx map[string]any, trace *[]LeafResult) bool {
	for _, c := range o.Children {
		if c.evaluate(ctx, trace) {
			return true
		}
	}
	return false
}

func compare(actual any, op string, expected any) bool {
	if af, aok := toFloat(actual); aok {
		ef, eok := toFloat(expected)
		if !eok {
			return false
		}
		switch op {
		case ">":
			return af > ef
		case "<":
			return af < ef
		case ">=":
			return af >= ef
		case "<=":
			return af <= ef
		case "==":
			return af == ef
		case "!=":
			return af != ef
		}
		return false
	}
	if at, aok := toTime(actual); aok {
		et, eok := toTime(expected)
		if !eok {
			return false
		}
		switch op {
		case ">":
			return at.After(et)
		case "<":
			return at.Before(et)
		case ">=":
			return !at.Before(et)
		case "<=":
			return !at.After(et)
		case "==":
			return at.Equal(et)
		case "!=":
			return !at.Equal(et)
		}
		return false
	}
	as, aok := actual.(string)
	es, eok := expected.(string)
	if !aok || !eok {
		return false
	}
	switch op {
	case "==":
		return as == es
	case "!=":
		return as != es
	}
	// Ordering operators are undefined for strings.
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339, x)
		return t, err == nil
	}
	return time.Time{}, false
}

// conditionNode is the wire form of a tree node: either a combinator
// {"operator":"AND"|"OR","conditions":[...]} or a leaf
// {"field":...,"operator":...,"value":...}.
type conditionNode struct {
	Field      string          `json:"field"`
	Operator   string          `json:"operator"`
	Value      any             `json:"value"`
	Conditions json.RawMessage `json:"conditions"`
}

var leafOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
}

// ParseCondition decodes a JSON condition tree.
func ParseCondition(raw []byte) (Condition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty condition")
	}
	var node conditionNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	return buildNode(node)
}

func buildNode(node conditionNode) (Condition, error) {
	op := strings.ToUpper(strings.TrimSpace(node.Operator))
	if op == "AND" || op == "OR" {
		children, err := buildChildren(node.Conditions)
		if err != nil {
			return nil, err
		}
		if op == "AND" {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil
	}
	if !leafOperators[node.Operator] {
		return nil, fmt.Errorf("unknown operator %q", node.Operator)
	}
	if strings.TrimSpace(node.Field) == "" {
		return nil, fmt.Errorf("leaf condition missing field")
	}
	return Leaf{Field: node.Field, Operator: node.Operator, Value: node.Value}, nil
}

func buildChildren(raw json.RawMessage) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var nodes []conditionNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	children := make([]Condition, 0, len(nodes))
	for _, n := range nodes {
		c, err := buildNode(n)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}
