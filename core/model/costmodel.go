package model

import "fmt"

// PricingScheme selects how the price of community (local) energy is derived.
type PricingScheme string

const (
	// SchemeFixedPrice uses the cost model's fixed price ratio.
	SchemeFixedPrice PricingScheme = "fixed_price"
	// SchemeTEMO derives the ratio from the day's solar scarcity.
	SchemeTEMO PricingScheme = "temo"
)

// DefaultPriceRatio applies to fixed_price models without a ratio.
const DefaultPriceRatio = 0.5

// Algorithm tags understood by the planner.
const (
	AlgorithmGreedy             = "greedy"
	AlgorithmSimulatedAnnealing = "simulated_annealing"
)

// PriceBand overrides the buy price between Start and End every day.
type PriceBand struct {
	Start    Clock   `json:"start"`
	End      Clock   `json:"end"`
	BuyPrice float64 `json:"buy_price"`
}

// CostModel defines buy/sell prices and the pricing structure.
type CostModel struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	BuyPrice        float64       `json:"buy_price"`
	SellPrice       float64       `json:"sell_price"`
	FixedPriceRatio *float64      `json:"fixed_price_ratio,omitempty"`
	Scheme          PricingScheme `json:"scheme,omitempty"`
	TimeOfUse       []PriceBand   `json:"time_of_use,omitempty"`
	Algorithm       string        `json:"algorithm,omitempty"`
}

// Ratio returns the fixed price ratio or DefaultPriceRatio.
func (c CostModel) Ratio() float64 {
	if c.FixedPriceRatio == nil {
		return DefaultPriceRatio
	}
	return *c.FixedPriceRatio
}

// BuyPriceAt returns the buy price for a time of day, honouring the last
// matching time-of-use band.
func (c CostModel) BuyPriceAt(t Clock) float64 {
	price := c.BuyPrice
	for _, b := range c.TimeOfUse {
		if t >= b.Start && t < b.End {
			price = b.BuyPrice
		}
	}
	return price
}

// LocalPrice blends buy and sell prices: buy*ratio + sell*(1-ratio).
func LocalPrice(buy, sell, ratio float64) float64 {
	return buy*ratio + sell*(1-ratio)
}

// Validate rejects negative prices and ratios outside [0,1].
func (c CostModel) Validate() error {
	if c.BuyPrice < 0 {
		return InvalidCostModelError("buy_price", "must not be negative, got %g", c.BuyPrice)
	}
	if c.SellPrice < 0 {
		return InvalidCostModelError("sell_price", "must not be negative, got %g", c.SellPrice)
	}
	if r := c.FixedPriceRatio; r != nil && (*r < 0 || *r > 1) {
		return InvalidCostModelError("fixed_price_ratio", "must be within [0,1], got %g", *r)
	}
	switch c.Scheme {
	case "", SchemeFixedPrice, SchemeTEMO:
	default:
		return InvalidCostModelError("scheme", "unknown scheme %q", c.Scheme)
	}
	for i, b := range c.TimeOfUse {
		field := fmt.Sprintf("time_of_use[%d]", i)
		if b.BuyPrice < 0 {
			return InvalidCostModelError(field+".buy_price", "must not be negative, got %g", b.BuyPrice)
		}
		if b.Start >= b.End || b.End > MinutesPerDay {
			return InvalidCostModelError(field+".start", "start %s must precede end %s", b.Start, b.End)
		}
	}
	return nil
}

// Algorithm is a catalog entry selecting a scheduling strategy. Params are
// decoded by the strategy factory registered for Tag.
type Algorithm struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tag         string         `json:"tag"`
	Params      map[string]any `json:"params,omitempty"`
}
