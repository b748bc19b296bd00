package market

import (
	"strings"
	"testing"
)

func TestValidatePrice_AboveCap(t *testing.T) {
	reg := NewRegistry()
	v := reg.ValidatePrice("广东", 2000)
	if v.Valid {
		t.Fatalf("price 2000 in 广东 should be invalid")
	}
	if len(v.Errors) != 1 || !strings.Contains(v.Errors[0], "高于上限") {
		t.Fatalf("errors=%v want contains 高于上限", v.Errors)
	}
}

func TestValidatePrice_NegativeWhereForbidden(t *testing.T) {
	reg := NewRegistry()
	v := reg.ValidatePrice("广东", -50)
	if v.Valid {
		t.Fatalf("negative price in 广东 should be invalid")
	}
	// Both the negative-price rule and the floor fire.
	if len(v.Errors) != 2 {
		t.Fatalf("errors=%v want 2 entries", v.Errors)
	}
	if !strings.Contains(v.Errors[0], "不允许负电价") {
		t.Fatalf("errors[0]=%q want contains 不允许负电价", v.Errors[0])
	}
}

func TestValidatePrice_NegativeWhereAllowed(t *testing.T) {
	reg := NewRegistry()
	if v := reg.ValidatePrice("山东", -50); !v.Valid {
		t.Fatalf("-50 in 山东 should be valid, errors=%v", v.Errors)
	}
	if v := reg.ValidatePrice("山东", -150); v.Valid {
		t.Fatalf("-150 in 山东 should be below the -100 floor")
	}
}

func TestValidatePrice_InRange(t *testing.T) {
	reg := NewRegistry()
	for _, province := range reg.Provinces() {
		pc, _ := reg.PriceCap(province)
		mid := (pc.MinPrice + pc.MaxPrice) / 2
		if v := reg.ValidatePrice(province, mid); !v.Valid {
			t.Fatalf("%s mid price %.2f should be valid, errors=%v", province, mid, v.Errors)
		}
		if v := reg.ValidatePrice(province, pc.MaxPrice); !v.Valid {
			t.Fatalf("%s max price should be inclusive, errors=%v", province, v.Errors)
		}
		if v := reg.ValidatePrice(province, pc.MinPrice); !v.Valid {
			t.Fatalf("%s min price should be inclusive, errors=%v", province, v.Errors)
		}
	}
}

func TestValidatePrice_UnknownProvincePasses(t *testing.T) {
	reg := NewRegistry()
	if v := reg.ValidatePrice("海南", 99999); !v.Valid {
		t.Fatalf("unconfigured province must never block, errors=%v", v.Errors)
	}
}

func TestPriceLimits_Defaults(t *testing.T) {
	reg := NewRegistry()
	minP, maxP := reg.PriceLimits("海南")
	if minP != DefaultMinPrice || maxP != DefaultMaxPrice {
		t.Fatalf("limits=(%v,%v) want (%v,%v)", minP, maxP, DefaultMinPrice, DefaultMaxPrice)
	}
	if base := reg.BasePrice("海南"); base != DefaultBasePrice {
		t.Fatalf("base=%v want %v", base, DefaultBasePrice)
	}
}

func TestDeviationBand_ClampedToCaps(t *testing.T) {
	reg := NewRegistry()
	low, high := reg.DeviationBand("广东", 463)
	if low != 231.5 {
		t.Fatalf("low=%v want 231.5", low)
	}
	if high != 694.5 {
		t.Fatalf("high=%v want 694.5", high)
	}
	// A base near the cap clamps the high side.
	_, high = reg.DeviationBand("四川", 1000)
	if high != 1200 {
		t.Fatalf("high=%v want clamped to 1200", high)
	}
}

func TestTradingRules_FallbackToDefaults(t *testing.T) {
	reg := NewRegistry()
	rules, known := reg.TradingRules("海南")
	if known {
		t.Fatalf("海南 should not be configured")
	}
	if rules.MinQuantity != 0.1 || rules.MaxQuantity != 10000 {
		t.Fatalf("defaults=%+v", rules)
	}
}
