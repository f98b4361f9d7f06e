// README: Declarative rate table: time band x vehicle class x distance tier.
package pricing

import (
	"strings"
	"time"
)

type band int

const (
	bandDay band = iota
	// bandEvening covers both the evening [18,24) and night [0,6) hours;
	// night rides bill at the evening rates.
	bandEvening
)

type class int

const (
	classAmbulatory class = iota
	classWheelchair
)

type tier struct {
	maxMiles float64
	cents    int64
}

type rate struct {
	tiers []tier
	// overPerMileCents applies to each mile beyond the last tier boundary,
	// on top of that tier's flat amount.
	overPerMileCents int64
}

var rateTable = map[band]map[class]rate{
	bandDay: {
		classAmbulatory: {
			tiers:            []tier{{5, 2500}, {10, 3000}, {20, 4500}, {50, 7500}},
			overPerMileCents: 200,
		},
		classWheelchair: {
			tiers:            []tier{{5, 3500}, {10, 4500}, {20, 6000}, {50, 8500}},
			overPerMileCents: 250,
		},
	},
	bandEvening: {
		classAmbulatory: {
			tiers:            []tier{{5, 3000}, {10, 4000}, {20, 5500}, {50, 8500}},
			overPerMileCents: 250,
		},
		classWheelchair: {
			tiers:            []tier{{5, 4500}, {10, 5500}, {20, 7500}, {50, 10500}},
			overPerMileCents: 300,
		},
	},
}

func bandFor(t time.Time) band {
	h := t.Hour()
	if h >= 6 && h < 18 {
		return bandDay
	}
	return bandEvening
}

// classify derives the vehicle class from a service-category name. Names
// that name neither class fall back to the category's own per-mile pricing.
func classify(name string) (class, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "wheelchair"):
		return classWheelchair, true
	case strings.Contains(n, "ambulatory"):
		return classAmbulatory, true
	}
	return classAmbulatory, false
}
