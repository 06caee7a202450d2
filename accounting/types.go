/*
Package accounting provides the core rent accounting engine.

PURPOSE:
  This package contains the deterministic business logic of the rental
  system: monthly charge generation, payment allocation, arrears
  (morosidad) detection, and net profit. All four operations are pure
  functions over in-memory records — no I/O, no shared state, no clocks.
  The caller fetches consistent snapshots, invokes the engine, and
  persists the results.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-precision UYU amount (decimal, never float)
  - Lease: A rental contract; only ACTIVE leases generate charges
  - Charge: An immutable amount owed for a billing period
  - Allocation: Money applied from a payment to a specific charge
  - Expense: A property cost; only the amount matters here

DESIGN PRINCIPLES:
  1. Purity: Every operation is a function of its inputs only
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Immutability: Charges never mutate; settlement is expressed as
     allocations accumulating against a charge's open balance
  4. Idempotency: Charge generation can be re-run safely for a period

SEE ALSO:
  - period.go: Billing period tokens and due-date construction
  - charges.go: Monthly charge generation
  - allocate.go: Oldest-first payment allocation
  - arrears.go: Delinquency detection
  - profit.go: Income vs expense aggregation
*/
package accounting

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-precision monetary amount (UYU)
// =============================================================================

// Money is a monetary amount in Uruguayan pesos. The engine is
// single-currency; conversion is out of scope.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func NewMoneyFromFloat(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) Min(o Money) Money          { if m.LessThan(o) { return m }; return o }
func (m Money) String() string             { return m.Value.String() }
func (m Money) Float64() float64           { f, _ := m.Value.Float64(); return f }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeaseID string
type ChargeID string
type OrgID string

// =============================================================================
// LEASE - Rental contract
// =============================================================================

type LeaseStatus string

const (
	LeaseActive LeaseStatus = "ACTIVE" // Generates monthly charges
	LeaseDraft  LeaseStatus = "DRAFT"  // Not yet in force, skipped
	LeaseEnded  LeaseStatus = "ENDED"  // Terminated, skipped
)

// Lease carries the fields the engine needs. OrgID is an opaque
// multi-tenant partition key: the engine never interprets it, but
// callers must scope their snapshots by it.
type Lease struct {
	ID            LeaseID
	OrgID         OrgID
	RentAmount    Money
	DueDayOfMonth int // 1-31; out-of-range days roll per DueDate
	Status        LeaseStatus
}

// =============================================================================
// CHARGE - Amount owed for a billing period
// =============================================================================

type ChargeType string

const (
	ChargeRent  ChargeType = "RENT"  // Generated monthly; participates in arrears
	ChargeOther ChargeType = "OTHER" // Manual entry; excluded from arrears
)

// Charge is immutable once created. Settlement never modifies the
// charge row; it accumulates as Allocations against the charge.
// Invariant: at most one RENT charge per (LeaseID, PeriodYYYYMM).
type Charge struct {
	ID           ChargeID
	LeaseID      LeaseID
	PeriodYYYYMM string
	Amount       Money
	DueDate      Date
	Type         ChargeType
}

// NewCharge is a charge produced by the generator, before persistence
// assigns it an identity.
type NewCharge struct {
	LeaseID      LeaseID
	PeriodYYYYMM string
	Amount       Money
	DueDate      Date
	Type         ChargeType
}

// UnpaidCharge is the allocator's view of a charge: the charge plus the
// sum of allocations already applied to it. The pre-aggregation is the
// caller's responsibility.
type UnpaidCharge struct {
	ID               ChargeID
	Amount           Money
	AlreadyAllocated Money
	DueDate          Date
}

// OpenBalance is the amount still owed on the charge.
func (c UnpaidCharge) OpenBalance() Money {
	return c.Amount.Sub(c.AlreadyAllocated)
}

// =============================================================================
// ALLOCATION - Money applied from a payment to a charge
// =============================================================================

// Allocation is an identity-free join record. A charge may accumulate
// many allocations over time (partial payments); their sum must never
// exceed the charge amount.
type Allocation struct {
	ChargeID ChargeID
	Amount   Money
}

// SumAllocations totals allocation amounts. Empty input sums to zero.
func SumAllocations(allocations []Allocation) Money {
	total := ZeroMoney()
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// =============================================================================
// EXPENSE - Property cost
// =============================================================================

type Expense struct {
	Amount Money
}
