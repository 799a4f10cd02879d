package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
)

const (
	// DateLayout is the record key format. It sorts lexically in date order.
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	// Today is accepted wherever a date is expected.
	Today = "today"
)

// DateKey formats t as a UTC calendar date.
func DateKey(t time.Time) string { return t.UTC().Format(DateLayout) }

// MonthKey formats t as a UTC calendar month.
func MonthKey(t time.Time) string { return t.UTC().Format(MonthLayout) }

// ParseDate validates s as YYYY-MM-DD. "today" resolves against now.
func ParseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, Today) || s == "" {
		return DateKey(now), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", errs.ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

// ParseMonth validates s as YYYY-MM. Empty resolves to the month of now.
func ParseMonth(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MonthKey(now), nil
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return "", errs.ErrInvalidMonth
	}
	return t.Format(MonthLayout), nil
}

// MonthRange returns the first and last date keys of month (YYYY-MM).
func MonthRange(month string) (from, to string, err error) {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return "", "", errs.ErrInvalidMonth
	}
	last := t.AddDate(0, 1, -1)
	return t.Format(DateLayout), last.Format(DateLayout), nil
}

// MonthOf returns the YYYY-MM prefix of a date key.
func MonthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// Amounts are bounded so that any realistic sum of them still fits the
// 19-digit coefficient of a money.Amount.
const (
	MaxAmountScale     = 4
	MaxAmountIntDigits = 11
)

var maxAmount = decimal.New(1, MaxAmountIntDigits)

// ParseAmount parses a positive decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errs.ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero, negative and out-of-range amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !withinLimits(d) {
		return errs.ErrInvalidAmount
	}
	return nil
}

// ValidateBalance accepts any sign but applies the amount limits.
func ValidateBalance(d decimal.Decimal) error {
	if !withinLimits(d) {
		return errs.ErrInvalidBalance
	}
	return nil
}

func withinLimits(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxAmount) && d.Equal(d.Truncate(MaxAmountScale))
}

// NormalizeRemark maps an absent remark to "".
func NormalizeRemark(r *string) string {
	if r == nil {
		return ""
	}
	return *r
}
