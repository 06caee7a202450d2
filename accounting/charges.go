package accounting

// =============================================================================
// CHARGE GENERATOR - Monthly rent charges for active leases
// =============================================================================

// GenerateMonthlyCharges derives the rent charges owed for a billing
// period from the set of active leases, given the charges that already
// exist. Pure: persistence of the returned records is the caller's job.
//
// For each ACTIVE lease that has no RENT charge for periodToken yet, one
// charge is emitted with the lease's rent amount and a due date built
// from the period and the lease's due day (see BillingPeriod.DueDate for
// the rollover behavior on out-of-range days). DRAFT and ENDED leases
// are skipped entirely.
//
// Idempotency: running the generator again for the same period, with
// existingCharges including the previous run's output, yields nothing.
// A retried billing job therefore never double-bills. existingCharges
// must reflect every charge already committed for the period; the
// persistence layer's unique index on (lease, period, RENT) is the
// backstop for the race two concurrent runs could otherwise hit.
func GenerateMonthlyCharges(
	leases []Lease,
	existingCharges []Charge,
	periodToken string,
	period BillingPeriod,
) []NewCharge {
	newCharges := []NewCharge{}

	for _, lease := range leases {
		if lease.Status != LeaseActive {
			continue
		}

		if hasRentCharge(existingCharges, lease.ID, periodToken) {
			continue
		}

		newCharges = append(newCharges, NewCharge{
			LeaseID:      lease.ID,
			PeriodYYYYMM: periodToken,
			Amount:       lease.RentAmount,
			DueDate:      period.DueDate(lease.DueDayOfMonth),
			Type:         ChargeRent,
		})
	}

	return newCharges
}

// hasRentCharge reports whether a RENT charge already exists for the
// lease and period. Token comparison is exact; every producer must use
// the canonical "YYYYMM" form.
func hasRentCharge(charges []Charge, leaseID LeaseID, periodToken string) bool {
	for _, c := range charges {
		if c.LeaseID == leaseID && c.PeriodYYYYMM == periodToken && c.Type == ChargeRent {
			return true
		}
	}
	return false
}
