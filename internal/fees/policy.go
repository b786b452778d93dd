// Package fees computes the cancellation and late-payment fees levied on
// appointments. The functions are pure: policy values are injected, time is
// an argument, and callers decide whether to apply the result.
package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// CancellationWindow is the minimum notice before an appointment under which
// a cancellation fee is levied.
const CancellationWindow = 24 * time.Hour

// Policy holds the configurable fee percentages and payment terms.
type Policy struct {
	CancellationFeePercent int64
	WeeklyLateFeePercent   int64
	MaxLateFeePercent      int64
	PaymentDueDays         int
}

// DefaultPolicy returns the standard clinic policy.
func DefaultPolicy() Policy {
	return Policy{
		CancellationFeePercent: 50,
		WeeklyLateFeePercent:   5,
		MaxLateFeePercent:      50,
		PaymentDueDays:         25,
	}
}

// DueDate computes the payment due date for an appointment starting at the
// given instant. Callers must set it exactly once.
func (p Policy) DueDate(startAt time.Time) time.Time {
	return startAt.AddDate(0, 0, p.PaymentDueDays)
}

// CancellationFee computes the fee for canceling an appointment that starts
// at startAt when the cancellation happens at now. No fee is levied with at
// least CancellationWindow of notice or when there is nothing to charge.
func (p Policy) CancellationFee(basePrice decimal.Decimal, startAt time.Time, now time.Time) decimal.Decimal {
	if !basePrice.IsPositive() {
		return decimal.Zero
	}
	if startAt.Sub(now) >= CancellationWindow {
		return decimal.Zero
	}
	return percentOf(basePrice, p.CancellationFeePercent)
}

// LatePaymentFee computes the current late-payment fee for an unpaid
// appointment whose payment was due at dueDate. The fee escalates weekly and
// is capped at MaxLateFeePercent. It always returns the correct fee for now;
// callers must apply the result only if it exceeds the stored fee, so the
// applied fee never decreases.
func (p Policy) LatePaymentFee(basePrice decimal.Decimal, isPaid bool, dueDate *time.Time, now time.Time) decimal.Decimal {
	if isPaid || dueDate == nil || !basePrice.IsPositive() {
		return decimal.Zero
	}
	if !now.After(*dueDate) {
		return decimal.Zero
	}
	daysOverdue := int64(now.Sub(*dueDate).Hours() / 24)
	weeksOverdue := daysOverdue/7 + 1
	if weeksOverdue < 1 {
		weeksOverdue = 1
	}
	percent := p.WeeklyLateFeePercent * weeksOverdue
	if percent > p.MaxLateFeePercent {
		percent = p.MaxLateFeePercent
	}
	return percentOf(basePrice, percent)
}

func percentOf(amount decimal.Decimal, percent int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Round(2)
}
