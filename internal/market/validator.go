package market

import (
	"math"
)

const (
	stepTolerance    = 1e-3
	deviationWarnPct = 50.0
	fenPerYuan       = 100
)

// Validator applies the registry's trading rules to a proposed order.
type Validator struct {
	Registry *Registry
}

func NewValidator(reg *Registry) *Validator {
	return &Validator{Registry: reg}
}

// ValidateOrder checks a declared order. Errors block the order, warnings do
// not. Each check is independent; nothing short-circuits.
func (v *Validator) ValidateOrder(province, marketType string, price, quantity, basePrice float64) Verdict {
	verdict := okVerdict()

	rules, known := v.Registry.TradingRules(province)
	if !known {
		verdict.addWarning("省份 %s 未配置交易规则，按默认规则校验", province)
	}

	if quantity < rules.MinQuantity {
		verdict.addError("申报电量 %.3f MWh 低于最小申报电量 %.3f MWh", quantity, rules.MinQuantity)
	}
	if quantity > rules.MaxQuantity {
		verdict.addError("申报电量 %.3f MWh 超过最大申报电量 %.3f MWh", quantity, rules.MaxQuantity)
	}
	if rules.QuantityStep > 0 && !alignedToStep(quantity, rules.QuantityStep) {
		verdict.addWarning("申报电量 %.3f MWh 不是电量步长 %.3f MWh 的整数倍", quantity, rules.QuantityStep)
	}
	if rules.PriceStep > 0 && !priceAlignedToStep(price, rules.PriceStep) {
		verdict.addWarning("申报价格 %.2f 元/MWh 不是价格步长 %.2f 元/MWh 的整数倍", price, rules.PriceStep)
	}
	if basePrice > 0 {
		deviation := math.Abs(price-basePrice) / basePrice * 100
		if deviation > deviationWarnPct {
			verdict.addWarning("申报价格偏离基准价 %.1f%%，超过 %.0f%%", deviation, deviationWarnPct)
		}
	}

	return verdict
}

// ValidateOrderAdmission is the full admission check: price caps plus trading
// rules, errors and warnings concatenated in that order.
func (v *Validator) ValidateOrderAdmission(province, marketType string, price, quantity float64) Verdict {
	priceVerdict := v.Registry.ValidatePrice(province, price)
	orderVerdict := v.ValidateOrder(province, marketType, price, quantity, v.Registry.BasePrice(province))

	out := Verdict{
		Valid:    priceVerdict.Valid && orderVerdict.Valid,
		Errors:   append(append([]string{}, priceVerdict.Errors...), orderVerdict.Errors...),
		Warnings: append(append([]string{}, priceVerdict.Warnings...), orderVerdict.Warnings...),
	}
	return out
}

// alignedToStep reports whether value is an integer multiple of step within
// an absolute tolerance.
func alignedToStep(value, step float64) bool {
	rem := math.Mod(math.Abs(value), step)
	return rem <= stepTolerance || step-rem <= stepTolerance
}

// priceAlignedToStep compares in integer fen to dodge float modulo artifacts
// on two-decimal prices.
func priceAlignedToStep(price, step float64) bool {
	priceFen := int64(math.Round(math.Abs(price) * fenPerYuan))
	stepFen := int64(math.Round(step * fenPerYuan))
	if stepFen <= 0 {
		return true
	}
	return priceFen%stepFen == 0
}
