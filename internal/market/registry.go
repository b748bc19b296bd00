package market

import (
	"fmt"
)

// PriceCapRule is the per-province price-cap configuration, in yuan/MWh.
type PriceCapRule struct {
	MinPrice            float64
	MaxPrice            float64
	BasePrice           float64
	AllowsNegative      bool
	MaxDeviationPercent float64
}

// TradingRuleConfig is the per-province declaration configuration.
// Quantities in MWh, prices in yuan/MWh.
type TradingRuleConfig struct {
	MinQuantity  float64
	MaxQuantity  float64
	QuantityStep float64
	PriceStep    float64

	DeclareDeadline string
	TradingHours    string
}

// Verdict is the structured outcome of a validation call. Warnings are
// informational and never affect Valid.
type Verdict struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Verdict) addError(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Valid = false
}

func (v *Verdict) addWarning(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func okVerdict() Verdict {
	return Verdict{Valid: true}
}

// Defaults applied when a province has no configuration. An unconfigured
// province must never block the system.
const (
	DefaultMinPrice  = 0
	DefaultMaxPrice  = 1500
	DefaultBasePrice = 450
)

var defaultTradingRules = TradingRuleConfig{
	MinQuantity:     0.1,
	MaxQuantity:     10000,
	QuantityStep:    0.1,
	PriceStep:       0.1,
	DeclareDeadline: "10:30",
	TradingHours:    "09:00-11:30, 13:00-15:30",
}

// Registry holds the static per-province market rules. It has no mutable
// state; all methods are pure lookups.
type Registry struct {
	priceCaps    map[string]PriceCapRule
	tradingRules map[string]TradingRuleConfig
}

// NewRegistry returns the registry loaded with the built-in province tables.
func NewRegistry() *Registry {
	return &Registry{
		priceCaps: map[string]PriceCapRule{
			"广东": {MinPrice: 0, MaxPrice: 1500, BasePrice: 463, AllowsNegative: false, MaxDeviationPercent: 50},
			"山东": {MinPrice: -100, MaxPrice: 1300, BasePrice: 395, AllowsNegative: true, MaxDeviationPercent: 50},
			"山西": {MinPrice: -80, MaxPrice: 1500, BasePrice: 330, AllowsNegative: true, MaxDeviationPercent: 50},
			"浙江": {MinPrice: 0, MaxPrice: 1500, BasePrice: 420, AllowsNegative: false, MaxDeviationPercent: 50},
			"江苏": {MinPrice: 0, MaxPrice: 1300, BasePrice: 410, AllowsNegative: false, MaxDeviationPercent: 50},
			"四川": {MinPrice: 0, MaxPrice: 1200, BasePrice: 380, AllowsNegative: false, MaxDeviationPercent: 50},
			"甘肃": {MinPrice: -50, MaxPrice: 1000, BasePrice: 300, AllowsNegative: true, MaxDeviationPercent: 50},
			"蒙西": {MinPrice: -40, MaxPrice: 1500, BasePrice: 280, AllowsNegative: true, MaxDeviationPercent: 50},
		},
		tradingRules: map[string]TradingRuleConfig{
			"广东": {MinQuantity: 0.1, MaxQuantity: 10000, QuantityStep: 0.1, PriceStep: 0.1, DeclareDeadline: "10:30", TradingHours: "09:00-11:30, 13:00-15:30"},
			"山东": {MinQuantity: 0.1, MaxQuantity: 50000, QuantityStep: 0.1, PriceStep: 0.1, DeclareDeadline: "10:00", TradingHours: "08:30-11:30, 13:30-16:00"},
			"山西": {MinQuantity: 0.1, MaxQuantity: 20000, QuantityStep: 0.1, PriceStep: 0.5, DeclareDeadline: "09:30", TradingHours: "09:00-11:30"},
			"浙江": {MinQuantity: 0.5, MaxQuantity: 10000, QuantityStep: 0.5, PriceStep: 0.1, DeclareDeadline: "10:30", TradingHours: "09:00-11:30, 13:00-15:00"},
			"江苏": {MinQuantity: 0.1, MaxQuantity: 30000, QuantityStep: 0.1, PriceStep: 0.1, DeclareDeadline: "10:30", TradingHours: "09:00-11:30, 13:00-15:30"},
			"四川": {MinQuantity: 0.1, MaxQuantity: 15000, QuantityStep: 0.1, PriceStep: 0.1, DeclareDeadline: "10:00", TradingHours: "09:00-11:30"},
			"甘肃": {MinQuantity: 0.1, MaxQuantity: 20000, QuantityStep: 0.1, PriceStep: 0.5, DeclareDeadline: "09:30", TradingHours: "09:00-11:30, 13:30-15:30"},
			"蒙西": {MinQuantity: 1, MaxQuantity: 50000, QuantityStep: 1, PriceStep: 0.5, DeclareDeadline: "09:00", TradingHours: "08:30-11:30"},
		},
	}
}

// PriceCap returns the province cap rule and whether it is configured.
func (r *Registry) PriceCap(province string) (PriceCapRule, bool) {
	pc, ok := r.priceCaps[province]
	return pc, ok
}

// TradingRules returns the province declaration config and whether it is
// configured. Unconfigured provinces fall back to the defaults.
func (r *Registry) TradingRules(province string) (TradingRuleConfig, bool) {
	rules, ok := r.tradingRules[province]
	if !ok {
		return defaultTradingRules, false
	}
	return rules, true
}

// PriceLimits returns (min, max) for the province, defaulting for unknown
// provinces.
func (r *Registry) PriceLimits(province string) (float64, float64) {
	if pc, ok := r.priceCaps[province]; ok {
		return pc.MinPrice, pc.MaxPrice
	}
	return DefaultMinPrice, DefaultMaxPrice
}

func (r *Registry) BasePrice(province string) float64 {
	if pc, ok := r.priceCaps[province]; ok {
		return pc.BasePrice
	}
	return DefaultBasePrice
}

func (r *Registry) AllowsNegativePrice(province string) bool {
	if pc, ok := r.priceCaps[province]; ok {
		return pc.AllowsNegative
	}
	return false
}

// DeviationBand returns the (low, high) price band around basePrice allowed by
// the province's deviation limit, clamped to the hard caps.
func (r *Registry) DeviationBand(province string, basePrice float64) (float64, float64) {
	pc, ok := r.priceCaps[province]
	if !ok {
		return DefaultMinPrice, DefaultMaxPrice
	}
	pct := pc.MaxDeviationPercent
	if pct <= 0 || basePrice <= 0 {
		return pc.MinPrice, pc.MaxPrice
	}
	low := basePrice * (1 - pct/100)
	high := basePrice * (1 + pct/100)
	if low < pc.MinPrice {
		low = pc.MinPrice
	}
	if high > pc.MaxPrice {
		high = pc.MaxPrice
	}
	return low, high
}

// ValidatePrice checks a declared price against the province caps. All checks
// are evaluated and concatenated; the verdict is invalid on the first failing
// one. Unknown provinces always pass.
func (r *Registry) ValidatePrice(province string, price float64) Verdict {
	pc, ok := r.priceCaps[province]
	if !ok {
		return okVerdict()
	}

	v := okVerdict()
	if price < 0 && !pc.AllowsNegative {
		v.addError("%s不允许负电价，申报价格 %.2f 元/MWh 无效", province, price)
	}
	if price < pc.MinPrice {
		v.addError("申报价格 %.2f 元/MWh 低于下限 %.2f 元/MWh", price, pc.MinPrice)
	}
	if price > pc.MaxPrice {
		v.addError("申报价格 %.2f 元/MWh 高于上限 %.2f 元/MWh", price, pc.MaxPrice)
	}
	return v
}

// Provinces lists the configured provinces.
func (r *Registry) Provinces() []string {
	out := make([]string, 0, len(r.priceCaps))
	for p := range r.priceCaps {
		out = append(out, p)
	}
	return out
}
