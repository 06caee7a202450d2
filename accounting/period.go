package accounting

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// DATE - Day-granular calendar date
// =============================================================================

// Date is a calendar day in UTC. Due dates and reference dates are
// always day-granular; time-of-day never participates in comparisons.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) Before(o Date) bool { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool  { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool  { return d.normalize().Equal(o.normalize()) }
func (d Date) IsZero() bool       { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// BILLING PERIOD - One calendar month, identified by a "YYYYMM" token
// =============================================================================

// BillingPeriod is a calendar month. Month uses the 1-12 calendar
// convention, never zero-indexed.
type BillingPeriod struct {
	Year  int
	Month time.Month
}

// Token returns the canonical "YYYYMM" form, e.g. "202511" for
// November 2025. Fixed 6 digits, zero-padded month, no separators.
// The generator's idempotency check compares tokens byte-for-byte, so
// every producer must use this exact form.
func (p BillingPeriod) Token() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

// PeriodFor returns the billing period containing the given date.
func PeriodFor(d Date) BillingPeriod {
	return BillingPeriod{Year: d.Time.Year(), Month: d.Time.Month()}
}

// ParsePeriodToken parses a canonical "YYYYMM" token. Returns
// ErrInvalidPeriodToken for anything that is not exactly 6 digits with
// a month in 01-12. Whitespace, signs, and trailing characters are all
// rejected: non-canonical tokens would slip past the generator's
// byte-for-byte idempotency comparison.
func ParsePeriodToken(token string) (BillingPeriod, error) {
	if len(token) != 6 {
		return BillingPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return BillingPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
		}
	}
	year, err := strconv.Atoi(token[:4])
	if err != nil {
		return BillingPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
	}
	month, err := strconv.Atoi(token[4:])
	if err != nil {
		return BillingPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
	}
	if month < 1 || month > 12 {
		return BillingPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
	}
	return BillingPeriod{Year: year, Month: time.Month(month)}, nil
}

// DueDate returns the concrete due date for this period given a lease's
// due day of month.
//
// Out-of-range days are normalized by time.Date, which rolls the excess
// into the following month: day 31 in April becomes May 1, day 31 in
// February becomes March 2 (or 3 in non-leap years). This mirrors the
// rollover the system has always had and is deliberately not clamped.
func (p BillingPeriod) DueDate(dueDayOfMonth int) Date {
	return Date{Time: time.Date(p.Year, p.Month, dueDayOfMonth, 0, 0, 0, 0, time.UTC)}
}

// Next returns the following billing period.
func (p BillingPeriod) Next() BillingPeriod {
	if p.Month == time.December {
		return BillingPeriod{Year: p.Year + 1, Month: time.January}
	}
	return BillingPeriod{Year: p.Year, Month: p.Month + 1}
}
