package accounting

import "sort"

// =============================================================================
// PAYMENT ALLOCATOR - Oldest-first distribution of a payment
// =============================================================================

// AllocatePayment distributes a payment across unpaid charges, strictly
// oldest due date first. Pure: the caller persists the returned
// allocations.
//
// Charges are walked in ascending due-date order; ties keep their
// relative input order (stable sort), so the tie-break is deterministic
// for any caller-supplied ordering. Each charge receives
// min(remaining, openBalance); fully-paid charges (openBalance <= 0)
// are skipped without producing an entry. The walk stops once the
// payment is exhausted.
//
// The sum of emitted amounts never exceeds paymentAmount, and equals it
// unless total open balance is smaller. An overpayment remainder is
// silently left unapplied — callers needing it compute
// paymentAmount - SumAllocations(result) themselves. A zero or negative
// payment yields an empty list; negative amounts are not rejected, they
// simply never allocate.
func AllocatePayment(paymentAmount Money, unpaidCharges []UnpaidCharge) []Allocation {
	allocations := []Allocation{}
	remaining := paymentAmount

	sorted := make([]UnpaidCharge, len(unpaidCharges))
	copy(sorted, unpaidCharges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	for _, charge := range sorted {
		if !remaining.IsPositive() {
			break
		}

		open := charge.OpenBalance()
		if !open.IsPositive() {
			continue
		}

		amount := remaining.Min(open)
		allocations = append(allocations, Allocation{ChargeID: charge.ID, Amount: amount})
		remaining = remaining.Sub(amount)
	}

	return allocations
}
