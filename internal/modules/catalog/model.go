// README: Service category records (transport tiers with base pricing).
package catalog

import "medtransit/internal/types"

const (
	ServiceMedical = "MEDICAL"
	ServiceGeneral = "GENERAL"
)

type ServiceCategory struct {
	ID           int64
	Name         string
	ServiceType  string
	BasePrice    types.Money
	PricePerMile types.Money
	Active       bool
}
