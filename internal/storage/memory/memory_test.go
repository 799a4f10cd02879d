package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

func appendOne(amount int64) func(*finance.DailyRecord) error {
	return func(d *finance.DailyRecord) error {
		d.Append(finance.KindIncome, finance.Entry{ID: uuid.New(), Amount: decimal.NewFromInt(amount), Category: "Salary"})
		return nil
	}
}

func TestMutateRecord_ConcurrentAppendsAreNotLost(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MutateRecord(ctx, "u", "2024-01-01", appendOne(2))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	r, err := s.GetRecord(ctx, "u", "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, r.Income, 50)
	assert.True(t, r.TotalIncome.Equal(decimal.NewFromInt(100)))
	assert.EqualValues(t, 50, r.Version)
}

func TestMutateRecord_ErrorWritesNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := s.MutateRecord(ctx, "u", "2024-01-01", func(*finance.DailyRecord) error { return boom })
	assert.ErrorIs(t, err, boom)
	_, err = s.GetRecord(ctx, "u", "2024-01-01")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListRecords_RangeIsOrderedAndInclusive(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, d := range []string{"2024-03-01", "2024-01-31", "2024-02-15", "2024-02-01", "2024-02-29"} {
		_, err := s.MutateRecord(ctx, "u", d, appendOne(1))
		require.NoError(t, err)
	}
	_, err := s.MutateRecord(ctx, "other", "2024-02-10", appendOne(1))
	require.NoError(t, err)

	got, err := s.ListRecords(ctx, "u", "2024-02-01", "2024-02-29")
	require.NoError(t, err)
	dates := make([]string, 0, len(got))
	for _, r := range got {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2024-02-01", "2024-02-15", "2024-02-29"}, dates)

	all, err := s.ListRecords(ctx, "u", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "2024-01-31", all[0].Date)
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.MutateRecord(ctx, "u", "2024-01-01", appendOne(5))
	require.NoError(t, err)
	r, _ := s.GetRecord(ctx, "u", "2024-01-01")
	r.Income[0].Category = "mutated"
	again, _ := s.GetRecord(ctx, "u", "2024-01-01")
	assert.Equal(t, "Salary", again.Income[0].Category)
}

func TestCategories(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := finance.Category{ID: uuid.New(), UserID: "u", Kind: finance.KindExpense, Name: "Food"}
	_, err := s.CreateCategory(ctx, c)
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, finance.Category{ID: uuid.New(), UserID: "u", Kind: finance.KindExpense, Name: "food"})
	assert.ErrorIs(t, err, errs.ErrConflict)

	require.NoError(t, s.RenameCategory(ctx, "u", finance.KindExpense, "FOOD", "Meals"))
	list, _ := s.ListCategories(ctx, "u", finance.KindExpense)
	require.Len(t, list, 1)
	assert.Equal(t, "Meals", list[0].Name)

	assert.ErrorIs(t, s.DeleteCategory(ctx, "u", finance.KindExpense, "Food"), errs.ErrNotFound)
	require.NoError(t, s.DeleteCategory(ctx, "u", finance.KindExpense, "meals"))
	list, _ = s.ListCategories(ctx, "u", finance.KindExpense)
	assert.Empty(t, list)
}

func TestSettings(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.GetSettings(ctx, "u")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.SaveSettings(ctx, finance.Settings{UserID: "u", InitialBalance: decimal.NewFromInt(7), Currency: "USD"})
	require.NoError(t, err)
	st, err := s.GetSettings(ctx, "u")
	require.NoError(t, err)
	assert.True(t, st.InitialBalance.Equal(decimal.NewFromInt(7)))
}

func TestMutateRecord_TotalsFollowArrays(t *testing.T) {
	s := New()
	ctx := context.Background()
	r, err := s.MutateRecord(ctx, "u", "2024-01-01", func(d *finance.DailyRecord) error {
		d.Income = append(d.Income, finance.Entry{ID: uuid.New(), Amount: decimal.NewFromInt(9), Category: "Gift"})
		d.TotalExpense = decimal.NewFromInt(42)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, r.TotalIncome.Equal(decimal.NewFromInt(9)))
	assert.True(t, r.TotalExpense.IsZero())
	assert.True(t, r.Consistent())
}

func TestSeedRecord_RecomputesTotals(t *testing.T) {
	s := New()
	r := finance.NewDailyRecord("u", "2024-01-01")
	r.Expense = []finance.Entry{{ID: uuid.New(), Amount: decimal.NewFromInt(3), Category: "Food"}}
	s.SeedRecord(r)
	got, err := s.GetRecord(context.Background(), "u", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, got.TotalExpense.Equal(decimal.NewFromInt(3)))
}
