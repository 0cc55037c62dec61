package estimation

// ConditionToRenovate is the property condition that discounts the estimate.
const ConditionToRenovate = "À rénover"

// Notary fee rates for existing stock and new builds.
const (
	notaryRateExisting = 0.075
	notaryRateNew      = 0.03
)

// Flat rental assumption used for the gross yield projection.
const rentPerSqmMonthly = 12.0

// Valuation is the condition-adjusted estimate range for one property.
type Valuation struct {
	Estimate float64 `json:"estimate"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// Valuate turns a price-per-m² into an estimate range. A property to
// renovate trades below its computed value, a maintained one above.
func Valuate(surface, pricePerSqm float64, condition string) Valuation {
	estimate := surface * pricePerSqm
	if condition == ConditionToRenovate {
		return Valuation{Estimate: estimate, Low: estimate * 0.9, High: estimate}
	}
	return Valuation{Estimate: estimate, Low: estimate, High: estimate * 1.1}
}

// NotaryFees returns the estimated fees for existing stock and new builds.
func NotaryFees(estimate float64) (existing, newBuild float64) {
	return estimate * notaryRateExisting, estimate * notaryRateNew
}

// RentalProjection returns the estimated monthly rent and gross yield
// percentage for a rental project.
func RentalProjection(surface, estimate float64) (monthlyRent, grossYieldPct float64) {
	monthlyRent = surface * rentPerSqmMonthly
	if estimate > 0 {
		grossYieldPct = monthlyRent * 12 / estimate * 100
	}
	return monthlyRent, grossYieldPct
}
