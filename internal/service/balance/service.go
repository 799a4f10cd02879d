// Package balance manages the initial bank balance and derives the current
// balance from the sum of all daily record totals.
package balance

import (
	"context"
	"errors"
	"strings"

	"github.com/govalues/money"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

type Repo interface {
	// GetSettings returns errs.ErrNotFound when the user never saved settings.
	GetSettings(ctx context.Context, userID string) (finance.Settings, error)
	ListRecords(ctx context.Context, userID, from, to string) ([]finance.DailyRecord, error)
}

type Writer interface {
	SaveSettings(ctx context.Context, s finance.Settings) (finance.Settings, error)
}

// Balance is the derived running balance.
type Balance struct {
	Initial      decimal.Decimal
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	// Current = Initial + TotalIncome - TotalExpense.
	Current  decimal.Decimal
	Currency string
	// Amount is Current in Currency, for display.
	Amount money.Amount
}

type Service interface {
	SetInitial(ctx context.Context, userID string, amount decimal.Decimal, currency string) (finance.Settings, error)
	Initial(ctx context.Context, userID string) (finance.Settings, error)
	Current(ctx context.Context, userID string) (Balance, error)
}

type service struct {
	repo     Repo
	writer   Writer
	currency string
}

// New returns a balance service. defaultCurrency applies to users without settings.
func New(repo Repo, writer Writer, defaultCurrency string) Service {
	cur := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if cur == "" {
		cur = "USD"
	}
	return &service{repo: repo, writer: writer, currency: cur}
}

func (s *service) SetInitial(ctx context.Context, userID string, amount decimal.Decimal, currency string) (finance.Settings, error) {
	if strings.TrimSpace(userID) == "" {
		return finance.Settings{}, errs.ErrUnauthenticated
	}
	if err := finance.ValidateBalance(amount); err != nil {
		return finance.Settings{}, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		prev, err := s.Initial(ctx, userID)
		if err != nil {
			return finance.Settings{}, err
		}
		currency = prev.Currency
	}
	if _, err := money.ParseCurr(currency); err != nil {
		return finance.Settings{}, errs.ErrInvalidCurrency
	}
	return s.writer.SaveSettings(ctx, finance.Settings{UserID: userID, InitialBalance: amount, Currency: currency})
}

func (s *service) Initial(ctx context.Context, userID string) (finance.Settings, error) {
	if strings.TrimSpace(userID) == "" {
		return finance.Settings{}, errs.ErrUnauthenticated
	}
	st, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return finance.Settings{UserID: userID, InitialBalance: decimal.Zero, Currency: s.currency}, nil
	}
	if err != nil {
		return finance.Settings{}, err
	}
	if st.Currency == "" {
		st.Currency = s.currency
	}
	return st, nil
}

func (s *service) Current(ctx context.Context, userID string) (Balance, error) {
	st, err := s.Initial(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	recs, err := s.repo.ListRecords(ctx, userID, "", "")
	if err != nil {
		return Balance{}, err
	}
	b := Balance{Initial: st.InitialBalance, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero, Currency: st.Currency}
	for _, r := range recs {
		b.TotalIncome = b.TotalIncome.Add(r.TotalIncome)
		b.TotalExpense = b.TotalExpense.Add(r.TotalExpense)
	}
	b.Current = b.Initial.Add(b.TotalIncome).Sub(b.TotalExpense)
	amt, err := money.ParseAmount(b.Currency, b.Current.String())
	if err != nil {
		return Balance{}, err
	}
	b.Amount = amt
	return b, nil
}
