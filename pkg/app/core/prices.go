package core

import (
	"math"
	"math/big"
)

var hundredths = big.NewInt(10000)

// PriceToPercentage converts a 1e18 fixed-point price to an implied
// probability percentage with two-decimal precision: 0.50e18 -> 50.00.
// Precision below the hundredths boundary is dropped.
func PriceToPercentage(price *big.Int) float64 {
	scaled := new(big.Int).Mul(price, hundredths)
	scaled.Quo(scaled, PriceScale)
	return float64(scaled.Int64()) / 100
}

// PercentageToPrice converts a percentage back to a 1e18 fixed-point price,
// rounding to the nearest hundredth of a percent first. The round trip with
// PriceToPercentage is exact only at multiples of 0.01%.
func PercentageToPrice(pct float64) *big.Int {
	cents := big.NewInt(int64(math.Round(pct * 100)))
	price := new(big.Int).Mul(cents, PriceScale)
	return price.Quo(price, hundredths)
}
