package market

import (
	"strings"
	"testing"
)

func TestValidateOrder_QuantityBelowMin(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrder("广东", "day_ahead", 500, 0.01, 463)
	if verdict.Valid {
		t.Fatalf("0.01 MWh should be below the 0.1 MWh minimum")
	}
	if len(verdict.Errors) != 1 || !strings.Contains(verdict.Errors[0], "低于最小申报电量") {
		t.Fatalf("errors=%v want contains 低于最小申报电量", verdict.Errors)
	}
}

func TestValidateOrder_QuantityAboveMax(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrder("广东", "day_ahead", 500, 20000, 463)
	if verdict.Valid {
		t.Fatalf("20000 MWh should exceed 广东's 10000 MWh maximum")
	}
	if !strings.Contains(verdict.Errors[0], "超过最大申报电量") {
		t.Fatalf("errors=%v want contains 超过最大申报电量", verdict.Errors)
	}
}

func TestValidateOrder_DeviationWarning(t *testing.T) {
	v := NewValidator(NewRegistry())
	// 800 vs base 463 is a 72.8% deviation: warn but stay valid.
	verdict := v.ValidateOrder("广东", "day_ahead", 800, 100, 463)
	if !verdict.Valid {
		t.Fatalf("deviation alone must not invalidate, errors=%v", verdict.Errors)
	}
	found := false
	for _, w := range verdict.Warnings {
		if strings.Contains(w, "偏离基准价 72.8%") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings=%v want a 72.8%% deviation warning", verdict.Warnings)
	}
}

func TestValidateOrder_StepWarnings(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrder("广东", "day_ahead", 500.05, 1.05, 463)
	if !verdict.Valid {
		t.Fatalf("step misalignment is a warning, errors=%v", verdict.Errors)
	}
	if len(verdict.Warnings) != 2 {
		t.Fatalf("warnings=%v want quantity and price step warnings", verdict.Warnings)
	}
}

func TestValidateOrder_AlignedStepsNoWarning(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrder("广东", "day_ahead", 463.3, 100.5, 463)
	if !verdict.Valid || len(verdict.Warnings) != 0 {
		t.Fatalf("verdict=%+v want clean pass", verdict)
	}
}

func TestValidateOrder_UnknownProvinceWarns(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrder("海南", "day_ahead", 450, 100, 450)
	if !verdict.Valid {
		t.Fatalf("unknown province falls back to defaults, errors=%v", verdict.Errors)
	}
	if len(verdict.Warnings) == 0 || !strings.Contains(verdict.Warnings[0], "未配置交易规则") {
		t.Fatalf("warnings=%v want fallback warning", verdict.Warnings)
	}
}

func TestValidateOrderAdmission_CombinesPriceAndQuantity(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrderAdmission("广东", "day_ahead", 2000, 0.01)
	if verdict.Valid {
		t.Fatalf("both checks fail, verdict must be invalid")
	}
	if len(verdict.Errors) != 2 {
		t.Fatalf("errors=%v want cap error plus quantity error", verdict.Errors)
	}
	if !strings.Contains(verdict.Errors[0], "高于上限") {
		t.Fatalf("price cap errors must come first, errors=%v", verdict.Errors)
	}
}

func TestValidateOrderAdmission_ValidOrder(t *testing.T) {
	v := NewValidator(NewRegistry())
	verdict := v.ValidateOrderAdmission("广东", "day_ahead", 463.3, 100.5)
	if !verdict.Valid || len(verdict.Errors) != 0 {
		t.Fatalf("verdict=%+v want valid", verdict)
	}
}

func TestPriceAlignedToStep_FenArithmetic(t *testing.T) {
	// 0.1-yuan steps on two-decimal prices must not suffer float modulo noise.
	cases := []struct {
		price float64
		step  float64
		want  bool
	}{
		{463.3, 0.1, true},
		{463.35, 0.1, false},
		{100.5, 0.5, true},
		{100.25, 0.5, false},
		{-80, 0.5, true},
	}
	for _, tc := range cases {
		if got := priceAlignedToStep(tc.price, tc.step); got != tc.want {
			t.Fatalf("priceAlignedToStep(%v, %v)=%v want %v", tc.price, tc.step, got, tc.want)
		}
	}
}
