package charge

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// subtotalTolerance absorbs rounding slack when cross-checking component
// sums: 0.01 currency units.
var subtotalTolerance = decimal.RequireFromString("0.01")

// ValidationResult reports the outcome of a charge integrity check.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validate recomputes the sum of the named charge components and cross-checks
// the stored subtotal and total. It does not mutate its input. A charge
// record must not be marked READY unless validation passes.
func Validate(res *ChargeCalculationResult) ValidationResult {
	var errs []string

	componentSum := res.BaseAmbulanceFee.
		Add(res.MileageCharge).
		Add(res.ParamedicSurcharge).
		Add(res.CCTSurcharge).
		Add(res.BariatricSurcharge).
		Add(res.HEMSCharge).
		Add(res.NightSurcharge).
		Add(res.HolidaySurcharge).
		Add(res.ExtendedTimeCharge).
		Add(res.ProcedureCharges)

	if componentSum.Sub(res.Subtotal).Abs().GreaterThan(subtotalTolerance) {
		errs = append(errs, fmt.Sprintf("Subtotal calculation mismatch: components sum to %s, subtotal is %s",
			componentSum, res.Subtotal))
	}

	expectedTotal := res.Subtotal.Add(res.CommunicationCosts)
	if expectedTotal.Sub(res.TotalCharge).Abs().GreaterThan(subtotalTolerance) {
		errs = append(errs, fmt.Sprintf("Total charge mismatch: subtotal plus communications is %s, total is %s",
			expectedTotal, res.TotalCharge))
	}

	if !res.TotalCharge.IsPositive() {
		errs = append(errs, fmt.Sprintf("Total charge must be positive, got %s", res.TotalCharge))
	}
	if res.BaseAmbulanceFee.IsNegative() {
		errs = append(errs, fmt.Sprintf("Base ambulance fee must not be negative, got %s", res.BaseAmbulanceFee))
	}
	if res.MileageCharge.IsNegative() {
		errs = append(errs, fmt.Sprintf("Mileage charge must not be negative, got %s", res.MileageCharge))
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
