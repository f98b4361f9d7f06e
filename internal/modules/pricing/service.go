// README: Pricing engine computes banded fares; pure, no I/O.
package pricing

import (
	"math"
	"time"

	"medtransit/internal/types"
)

// DefaultDistanceMiles is assumed when the booking carries no distance.
const DefaultDistanceMiles = 5.0

// Category is the slice of a service category the engine needs. Callers map
// their catalog records into it so the engine stays dependency-free.
type Category struct {
	Name         string
	BasePrice    types.Money
	PricePerMile types.Money
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Quote maps (category, distance, time of day) to a fare in cents. The fare
// is flat per distance tier with a per-mile overage beyond the last tier.
func (e *Engine) Quote(cat Category, distanceMiles float64, scheduledAt time.Time) types.Money {
	if distanceMiles <= 0 {
		distanceMiles = DefaultDistanceMiles
	}
	cl, ok := classify(cat.Name)
	if !ok {
		return fallback(cat, distanceMiles)
	}
	r := rateTable[bandFor(scheduledAt)][cl]
	for _, t := range r.tiers {
		if distanceMiles <= t.maxMiles {
			return types.Cents(t.cents)
		}
	}
	last := r.tiers[len(r.tiers)-1]
	over := distanceMiles - last.maxMiles
	return types.Cents(last.cents + int64(math.Round(over*float64(r.overPerMileCents))))
}

// fallback prices unclassifiable categories from their own record.
func fallback(cat Category, distanceMiles float64) types.Money {
	amount := cat.BasePrice.Amount + int64(math.Round(distanceMiles*float64(cat.PricePerMile.Amount)))
	return types.Cents(amount)
}
