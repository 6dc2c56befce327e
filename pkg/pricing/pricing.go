package pricing

import (
	"errors"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Policy is the active pricing configuration applied to all new quotes
type Policy struct {
	PricePerKm    float64 `json:"pricePerKm"`
	MinimumCharge float64 `json:"minimumCharge"`
}

// Quote contains the calculated price and breakdown
type Quote struct {
	BasePrice      float64 `json:"basePrice"`
	DistanceCharge float64 `json:"distanceCharge"`
	TotalPrice     float64 `json:"totalPrice"`
}

var (
	ErrInvalidPricePerKm    = errors.New("pricing: price per km must be greater than zero")
	ErrInvalidMinimumCharge = errors.New("pricing: minimum charge must be greater than zero")
)

// Calculate computes the price for a delivery given the tanker's base price,
// the delivery distance in kilometers and the active pricing policy.
// The distance charge absorbs any shortfall below the configured minimum
// charge, so the total never settles under it for very short distances.
func Calculate(basePrice, distanceKm float64, policy Policy) Quote {
	distanceCharge := math.Max(distanceKm*policy.PricePerKm, policy.MinimumCharge-basePrice)
	if distanceCharge < 0 {
		distanceCharge = 0
	}

	return Quote{
		BasePrice:      basePrice,
		DistanceCharge: distanceCharge,
		TotalPrice:     math.Round(basePrice + distanceCharge),
	}
}

// ValidatePolicy rejects policies that cannot produce a valid quote
func ValidatePolicy(policy Policy) error {
	if policy.PricePerKm <= 0 {
		return ErrInvalidPricePerKm
	}
	if policy.MinimumCharge <= 0 {
		return ErrInvalidMinimumCharge
	}
	return nil
}

// Suspicious flags configurations that validate but look misconfigured
// (a minimum charge below the per-km rate covers less than one kilometer)
func Suspicious(policy Policy) bool {
	return policy.MinimumCharge < policy.PricePerKm
}

var pricePrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatPrice renders an amount in whole rupees with locale digit grouping
func FormatPrice(amount float64) string {
	return pricePrinter.Sprintf("₹%v", number.Decimal(math.Round(amount), number.MaxFractionDigits(0)))
}
