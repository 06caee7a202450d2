package accounting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proyectohouse/rent-engine/accounting"
)

func unpaid(id string, amount, already int64, due accounting.Date) accounting.UnpaidCharge {
	return accounting.UnpaidCharge{
		ID:               accounting.ChargeID(id),
		Amount:           uyu(amount),
		AlreadyAllocated: uyu(already),
		DueDate:          due,
	}
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocatePayment_OldestFirst(t *testing.T) {
	// GIVEN: c1 due Jan-05 owing 5000 and c2 due Feb-05 owing 10000
	// WHEN:  Allocating a 12000 payment
	// THEN:  c1 gets its full 5000 before c2 gets the remaining 7000

	charges := []accounting.UnpaidCharge{
		unpaid("c1", 10000, 5000, accounting.NewDate(2025, time.January, 5)),
		unpaid("c2", 10000, 0, accounting.NewDate(2025, time.February, 5)),
	}

	allocations := accounting.AllocatePayment(uyu(12000), charges)
	require.Len(t, allocations, 2)

	assert.Equal(t, accounting.ChargeID("c1"), allocations[0].ChargeID)
	assert.True(t, allocations[0].Amount.Equal(uyu(5000)))
	assert.Equal(t, accounting.ChargeID("c2"), allocations[1].ChargeID)
	assert.True(t, allocations[1].Amount.Equal(uyu(7000)))
}

func TestAllocatePayment_Conservation(t *testing.T) {
	// GIVEN: Open balances totalling 8000
	// WHEN:  Allocating exactly 8000
	// THEN:  The sum of allocations equals the payment

	charges := []accounting.UnpaidCharge{
		unpaid("c1", 3000, 0, accounting.NewDate(2025, time.January, 5)),
		unpaid("c2", 5000, 0, accounting.NewDate(2025, time.February, 5)),
	}

	allocations := accounting.AllocatePayment(uyu(8000), charges)
	assert.True(t, accounting.SumAllocations(allocations).Equal(uyu(8000)))
}

func TestAllocatePayment_OverpaymentLeavesRemainderUnapplied(t *testing.T) {
	// GIVEN: A single charge owing 4000
	// WHEN:  Allocating 10000
	// THEN:  Only 4000 is allocated; the 6000 remainder is not reported,
	//        callers compute it as payment - sum(allocations)

	charges := []accounting.UnpaidCharge{
		unpaid("c1", 4000, 0, accounting.NewDate(2025, time.January, 5)),
	}

	allocations := accounting.AllocatePayment(uyu(10000), charges)
	require.Len(t, allocations, 1)
	assert.True(t, allocations[0].Amount.Equal(uyu(4000)))

	unapplied := uyu(10000).Sub(accounting.SumAllocations(allocations))
	assert.True(t, unapplied.Equal(uyu(6000)))
}

func TestAllocatePayment_SkipsFullyPaidCharges(t *testing.T) {
	// GIVEN: An older charge already fully allocated and a newer one open
	// WHEN:  Allocating a payment
	// THEN:  The paid charge produces no entry; the open one is settled

	charges := []accounting.UnpaidCharge{
		unpaid("paid", 5000, 5000, accounting.NewDate(2025, time.January, 5)),
		unpaid("open", 5000, 0, accounting.NewDate(2025, time.February, 5)),
	}

	allocations := accounting.AllocatePayment(uyu(5000), charges)
	require.Len(t, allocations, 1)
	assert.Equal(t, accounting.ChargeID("open"), allocations[0].ChargeID)
}

func TestAllocatePayment_StableTieBreakOnEqualDueDates(t *testing.T) {
	// GIVEN: Two charges due the same day, supplied in a known order
	// WHEN:  Allocating less than their combined balance
	// THEN:  They are consumed in input order, not reordered by id or amount

	due := accounting.NewDate(2025, time.March, 1)
	charges := []accounting.UnpaidCharge{
		unpaid("zz-first", 4000, 0, due),
		unpaid("aa-second", 4000, 0, due),
	}

	allocations := accounting.AllocatePayment(uyu(6000), charges)
	require.Len(t, allocations, 2)
	assert.Equal(t, accounting.ChargeID("zz-first"), allocations[0].ChargeID)
	assert.True(t, allocations[0].Amount.Equal(uyu(4000)))
	assert.Equal(t, accounting.ChargeID("aa-second"), allocations[1].ChargeID)
	assert.True(t, allocations[1].Amount.Equal(uyu(2000)))
}

func TestAllocatePayment_ZeroAndNegativePayment(t *testing.T) {
	// GIVEN: An open charge
	// WHEN:  Allocating zero, then a negative amount
	// THEN:  Both yield an empty allocation list

	charges := []accounting.UnpaidCharge{
		unpaid("c1", 5000, 0, accounting.NewDate(2025, time.January, 5)),
	}

	assert.Empty(t, accounting.AllocatePayment(uyu(0), charges))
	assert.Empty(t, accounting.AllocatePayment(uyu(-100), charges))
}

func TestAllocatePayment_DoesNotMutateInput(t *testing.T) {
	// GIVEN: Charges supplied newest-first
	// WHEN:  Allocating
	// THEN:  The caller's slice order is untouched

	charges := []accounting.UnpaidCharge{
		unpaid("newer", 5000, 0, accounting.NewDate(2025, time.February, 5)),
		unpaid("older", 5000, 0, accounting.NewDate(2025, time.January, 5)),
	}

	accounting.AllocatePayment(uyu(7000), charges)
	assert.Equal(t, accounting.ChargeID("newer"), charges[0].ID)
	assert.Equal(t, accounting.ChargeID("older"), charges[1].ID)
}
