package grid

import (
	"fmt"

	"grid_trader/internal/core"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Parameter fully specifies a grid plan: the inputs chosen by the operator
// plus the derived price range and per-grid earn-rate bounds.
type Parameter struct {
	Pair          string
	InitPrice     decimal.Decimal
	PriceInterval decimal.Decimal
	UnitAmount    decimal.Decimal
	InitBase      decimal.Decimal
	InitQuote     decimal.Decimal
	GridNum       int
	Fee           decimal.Decimal

	HalfGridNum            int
	LowestPrice            decimal.Decimal
	HighestPrice           decimal.Decimal
	HighestEarnRatePerGrid decimal.Decimal
	LowestEarnRatePerGrid  decimal.Decimal
	UnusedBase             decimal.Decimal
	UnusedQuote            decimal.Decimal
}

// CalcParamsBySupport sizes the grid so the lowest buy sits on a support
// price: the interval is (init_price - support) / half_grid_num.
func CalcParamsBySupport(pair string, initBase, initQuote, initPrice, support decimal.Decimal, gridNum int, fee decimal.Decimal, prec core.Precision) (*Parameter, error) {
	if gridNum <= 0 || gridNum%2 != 0 {
		return nil, fmt.Errorf("calc params: grid_num must be a positive even number, got %d", gridNum)
	}
	if support.GreaterThanOrEqual(initPrice) {
		return nil, fmt.Errorf("calc params: support %s is not below init price %s", support, initPrice)
	}
	half := decimal.NewFromInt(int64(gridNum / 2))
	interval := prec.RoundPrice(initPrice.Sub(support).Div(half))
	return CalcParamsByInterval(pair, initBase, initQuote, initPrice, interval, gridNum, fee, prec)
}

// CalcParamsByInterval sizes the unit amount from the available funds: the
// base balance caps the sell side at init_base / half, and the quote balance
// caps the buy side at init_quote / sum(buy grid prices). The smaller cap
// wins and the surplus on the other asset is reported as unused.
func CalcParamsByInterval(pair string, initBase, initQuote, initPrice, priceInterval decimal.Decimal, gridNum int, fee decimal.Decimal, prec core.Precision) (*Parameter, error) {
	if gridNum <= 0 || gridNum%2 != 0 {
		return nil, fmt.Errorf("calc params: grid_num must be a positive even number, got %d", gridNum)
	}
	half := gridNum / 2
	halfDec := decimal.NewFromInt(int64(half))

	idealUnit := prec.RoundAmount(initBase.Div(halfDec))

	// Sum of the buy-side grid prices: half * (init - (1+half)*interval/2).
	totalBuyPrice := halfDec.Mul(
		initPrice.Sub(decimal.NewFromInt(int64(1 + half)).Mul(priceInterval).Div(two)),
	)
	if !totalBuyPrice.IsPositive() {
		return nil, fmt.Errorf("calc params: interval %s too wide for init price %s and grid_num %d", priceInterval, initPrice, gridNum)
	}
	quoteNeeded := prec.RoundPrice(totalBuyPrice.Mul(idealUnit))

	p := &Parameter{
		Pair:          pair,
		InitPrice:     prec.RoundPrice(initPrice),
		PriceInterval: prec.RoundPrice(priceInterval),
		InitBase:      initBase,
		InitQuote:     initQuote,
		GridNum:       gridNum,
		Fee:           fee,
	}

	if quoteNeeded.GreaterThan(initQuote) {
		p.UnitAmount = prec.RoundAmount(initQuote.Div(totalBuyPrice))
		p.UnusedBase = prec.RoundAmount(initBase.Sub(p.UnitAmount.Mul(halfDec)))
		p.UnusedQuote = decimal.Zero
	} else {
		p.UnitAmount = idealUnit
		p.UnusedQuote = prec.RoundPrice(initQuote.Sub(quoteNeeded))
		p.UnusedBase = decimal.Zero
	}

	p.derive(prec)
	return p, p.Validate()
}

func (p *Parameter) derive(prec core.Precision) {
	half := p.GridNum / 2
	halfDec := decimal.NewFromInt(int64(half))

	p.HalfGridNum = half
	p.LowestPrice = prec.RoundPrice(p.InitPrice.Sub(halfDec.Mul(p.PriceInterval)))
	p.HighestPrice = prec.RoundPrice(p.InitPrice.Add(halfDec.Mul(p.PriceInterval)))

	feeTerm := two.Mul(p.Fee)
	if p.LowestPrice.IsPositive() {
		p.HighestEarnRatePerGrid = p.PriceInterval.Div(p.LowestPrice).Sub(feeTerm)
	}
	worstBuy := p.InitPrice.Add(decimal.NewFromInt(int64(half - 1)).Mul(p.PriceInterval))
	if worstBuy.IsPositive() {
		p.LowestEarnRatePerGrid = p.PriceInterval.Div(worstBuy).Sub(feeTerm)
	}
}

// Validate rejects infeasible plans before any order is placed.
func (p *Parameter) Validate() error {
	if p.Pair == "" {
		return fmt.Errorf("parameter: pair is required")
	}
	if !p.InitPrice.IsPositive() {
		return fmt.Errorf("parameter: init price must be positive, got %s", p.InitPrice)
	}
	if !p.PriceInterval.IsPositive() {
		return fmt.Errorf("parameter: price interval must be positive, got %s", p.PriceInterval)
	}
	if !p.UnitAmount.IsPositive() {
		return fmt.Errorf("parameter: unit amount must be positive, got %s (insufficient funds?)", p.UnitAmount)
	}
	if !p.LowestPrice.IsPositive() {
		return fmt.Errorf("parameter: lowest price %s is not positive, narrow the interval or the grid", p.LowestPrice)
	}
	return nil
}

// InitValue is the total initial funds expressed in quote currency.
func (p *Parameter) InitValue() decimal.Decimal {
	return p.InitQuote.Add(p.InitBase.Mul(p.InitPrice))
}

// Fields renders the parameter for persistence.
func (p *Parameter) Fields() map[string]any {
	return map[string]any{
		"pair":           p.Pair,
		"init_price":     p.InitPrice.String(),
		"price_interval": p.PriceInterval.String(),
		"unit_amount":    p.UnitAmount.String(),
		"init_base":      p.InitBase.String(),
		"init_quote":     p.InitQuote.String(),
		"grid_num":       p.GridNum,
		"fee":            p.Fee.String(),
		"lowest_price":   p.LowestPrice.String(),
		"highest_price":  p.HighestPrice.String(),
	}
}

func (p *Parameter) String() string {
	return fmt.Sprintf("<Param %s init[%s] interval[%s] unit[%s] range[%s, %s]>",
		p.Pair, p.InitPrice, p.PriceInterval, p.UnitAmount, p.LowestPrice, p.HighestPrice)
}
