package accounting

// =============================================================================
// ARREARS CALCULATOR - Morosidad detection
// =============================================================================

// ArrearsReport is the delinquency status as of a reference date.
type ArrearsReport struct {
	IsArrears    bool
	TotalOverdue Money
}

// ArrearsStatus determines delinquency from charges and their
// allocations as of today. Pure, read-only aggregation.
//
// Only RENT charges participate; OTHER charges never contribute,
// whatever their due date or balance. A charge is overdue iff its due
// date is strictly before today AND its amount exceeds the sum of
// allocations referencing it — a charge due exactly today is not yet
// overdue. TotalOverdue sums the positive shortfalls of overdue
// charges; an empty charge list yields {false, 0}.
func ArrearsStatus(charges []Charge, allocations []Allocation, today Date) ArrearsReport {
	report := ArrearsReport{TotalOverdue: ZeroMoney()}

	for _, charge := range charges {
		if charge.Type != ChargeRent {
			continue
		}

		allocated := allocatedTo(allocations, charge.ID)

		if charge.DueDate.Before(today) && charge.Amount.GreaterThan(allocated) {
			report.IsArrears = true
			report.TotalOverdue = report.TotalOverdue.Add(charge.Amount.Sub(allocated))
		}
	}

	return report
}

// allocatedTo sums every allocation applied to the charge. A charge may
// have zero, one, or many allocations; this is a full aggregation, not
// a single lookup.
func allocatedTo(allocations []Allocation, chargeID ChargeID) Money {
	total := ZeroMoney()
	for _, a := range allocations {
		if a.ChargeID == chargeID {
			total = total.Add(a.Amount)
		}
	}
	return total
}
