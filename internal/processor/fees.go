package processor

import "math"

// FeeSchedule is a vendor's published fee: a percentage of the charged
// amount plus a fixed component in minor units. Each adapter owns its own
// schedule constants since schedules differ by vendor and contract.
type FeeSchedule struct {
	Percentage  float64 // e.g. 2.9 for 2.9%
	FixedAmount int64   // minor units, e.g. 30 for 30¢
}

// calculateFees computes the fee breakdown for a pre-fee amount. The fee is
// rounded half-up in major-unit terms to match vendor settlement rounding,
// then converted back to minor units.
func calculateFees(proc string, schedule FeeSchedule, amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error) {
	if amount <= 0 {
		return nil, NewError(proc, ErrCodeValidation, "amount must be positive")
	}
	digits, ok := minorUnitDigits[currency]
	if !ok {
		return nil, NewError(proc, ErrCodeUnsupportedCurrency, "unsupported currency: "+currency)
	}

	factor := math.Pow(10, float64(digits))
	feeMajor := (float64(amount)*schedule.Percentage/100 + float64(schedule.FixedAmount)) / factor
	fee := int64(math.Floor(feeMajor*factor + 0.5))

	total := amount
	if donorCoversFee {
		total = amount + fee
	}

	return &FeeCalculation{
		Percentage:    schedule.Percentage,
		FixedAmount:   schedule.FixedAmount,
		CalculatedFee: fee,
		TotalAmount:   total,
	}, nil
}
