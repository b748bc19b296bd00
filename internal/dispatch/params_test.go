package dispatch

import (
	"encoding/json"
	"testing"
)

func TestParamFloat_AcceptedForms(t *testing.T) {
	params := map[string]any{
		"a": 42.5,
		"b": 7,
		"c": int64(9),
		"d": json.Number("463.3"),
		"e": "120.50",
		"f": "not a number",
	}
	cases := []struct {
		key  string
		want float64
		ok   bool
	}{
		{"a", 42.5, true},
		{"b", 7, true},
		{"c", 9, true},
		{"d", 463.3, true},
		{"e", 120.5, true},
		{"f", 0, false},
		{"missing", 0, false},
	}
	for _, tc := range cases {
		got, ok := paramFloat(params, tc.key)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("paramFloat(%q)=(%v,%v) want (%v,%v)", tc.key, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParamUint_RejectsNegative(t *testing.T) {
	if _, ok := paramUint(map[string]any{"id": -3.0}, "id"); ok {
		t.Fatalf("negative id must be rejected")
	}
	id, ok := paramUint(map[string]any{"id": 42.0}, "id")
	if !ok || id != 42 {
		t.Fatalf("id=(%v,%v) want (42,true)", id, ok)
	}
}

func TestParamString_Trims(t *testing.T) {
	params := map[string]any{"p": "  广东  ", "n": 5}
	if got := paramString(params, "p"); got != "广东" {
		t.Fatalf("got %q", got)
	}
	if got := paramString(params, "n"); got != "" {
		t.Fatalf("non-string must yield empty, got %q", got)
	}
	if got := paramStringDefault(params, "missing", "day_ahead"); got != "day_ahead" {
		t.Fatalf("got %q", got)
	}
}
