package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/category"
	"github.com/tinoosan/cashbook/internal/service/record"
	"github.com/tinoosan/cashbook/internal/storage/memory"
)

const user = "u1"

var now = time.Date(2024, 5, 20, 23, 59, 0, 0, time.UTC)

func newService(t *testing.T) (record.Service, category.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	cats := category.New(store, store)
	svc := record.New(store, store, cats, record.WithClock(func() time.Time { return now }))
	return svc, cats, store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestAddEntry_CreatesRecordAndRegistersCategory(t *testing.T) {
	svc, cats, _ := newService(t)
	ctx := context.Background()

	e, rec, err := svc.AddEntry(ctx, user, finance.KindIncome, finance.Today, record.NewEntry{Amount: dec("5000"), Category: "Salary"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-20", rec.Date)
	assert.Equal(t, now.UnixMilli(), e.Timestamp)
	assert.Equal(t, "", e.Remark)
	assert.True(t, rec.TotalIncome.Equal(dec("5000")))
	assert.True(t, rec.TotalExpense.IsZero())
	assert.Empty(t, rec.Expense)
	assert.True(t, rec.Consistent())

	list, err := cats.List(ctx, user, finance.KindIncome)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Salary", list[0].Name)

	// a differently cased name reuses the registered spelling
	e2, rec, err := svc.AddEntry(ctx, user, finance.KindIncome, "2024-05-20", record.NewEntry{Amount: dec("10.25"), Category: " salary "})
	require.NoError(t, err)
	assert.Equal(t, "Salary", e2.Category)
	assert.True(t, rec.TotalIncome.Equal(dec("5010.25")))
	list, _ = cats.List(ctx, user, finance.KindIncome)
	assert.Len(t, list, 1)
}

func TestAddEntry_Validation(t *testing.T) {
	svc, cats, store := newService(t)
	ctx := context.Background()

	_, _, err := svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-01", record.NewEntry{Amount: decimal.Zero, Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-01", record.NewEntry{Amount: dec("-1"), Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-01", record.NewEntry{Amount: dec("12345678901234567890"), Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-01", record.NewEntry{Amount: dec("1"), Category: "   "})
	assert.ErrorIs(t, err, errs.ErrEmptyCategory)
	_, _, err = svc.AddEntry(ctx, user, finance.Kind("transfer"), "2024-05-01", record.NewEntry{Amount: dec("1"), Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrInvalidKind)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "05/01/2024", record.NewEntry{Amount: dec("1"), Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrInvalidDate)
	_, _, err = svc.AddEntry(ctx, "", finance.KindExpense, "2024-05-01", record.NewEntry{Amount: dec("1"), Category: "Food"})
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = store.GetRecord(ctx, user, "2024-05-01")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	list, _ := cats.List(ctx, user, finance.KindExpense)
	assert.Empty(t, list)
}

func TestUpdateAndDelete_KeepTotalsConsistent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	a, _, err := svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-02", record.NewEntry{Amount: dec("12.50"), Category: "Food", Remark: "lunch"})
	require.NoError(t, err)
	b, _, err := svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-02", record.NewEntry{Amount: dec("40"), Category: "Fuel"})
	require.NoError(t, err)

	upd, rec, err := svc.UpdateEntry(ctx, user, finance.KindExpense, "2024-05-02", finance.RefTo(a), finance.EntryPatch{Amount: ptr(dec("15")), Remark: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, a.ID, upd.ID)
	assert.Equal(t, a.Timestamp, upd.Timestamp)
	assert.Equal(t, "", upd.Remark)
	assert.True(t, rec.TotalExpense.Equal(dec("55")))
	assert.True(t, rec.Consistent())

	rec, err = svc.DeleteEntry(ctx, user, finance.KindExpense, "2024-05-02", finance.RefTo(b))
	require.NoError(t, err)
	require.Len(t, rec.Expense, 1)
	assert.True(t, rec.TotalExpense.Equal(dec("15")))
	assert.True(t, rec.TotalIncome.IsZero())
}

func TestUpdateEntry_NotFoundLeavesRecordUntouched(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	a, before, err := svc.AddEntry(ctx, user, finance.KindIncome, "2024-05-03", record.NewEntry{Amount: dec("100"), Category: "Gift"})
	require.NoError(t, err)

	stale := finance.EntryRef{Amount: dec("100"), Category: "Gift", Remark: "", Timestamp: a.Timestamp + 1}
	_, _, err = svc.UpdateEntry(ctx, user, finance.KindIncome, "2024-05-03", stale, finance.EntryPatch{Amount: ptr(dec("1"))})
	assert.ErrorIs(t, err, errs.ErrEntryNotFound)
	_, err = svc.DeleteEntry(ctx, user, finance.KindExpense, "2024-05-03", finance.RefTo(a))
	assert.ErrorIs(t, err, errs.ErrEntryNotFound)

	after, err := store.GetRecord(ctx, user, "2024-05-03")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, after.TotalIncome.Equal(dec("100")))
}

func TestUpdateEntry_ByValueTuple(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a, _, err := svc.AddEntry(ctx, user, finance.KindIncome, "2024-05-04", record.NewEntry{Amount: dec("5000"), Category: "Salary"})
	require.NoError(t, err)

	ref := finance.EntryRef{Amount: dec("5000.00"), Category: "Salary", Remark: "", Timestamp: a.Timestamp}
	upd, rec, err := svc.UpdateEntry(ctx, user, finance.KindIncome, "2024-05-04", ref, finance.EntryPatch{Amount: ptr(dec("5500"))})
	require.NoError(t, err)
	assert.Equal(t, a.ID, upd.ID)
	assert.True(t, rec.TotalIncome.Equal(dec("5500")))
}

func TestUpdateEntry_NewCategoryIsRegistered(t *testing.T) {
	svc, cats, _ := newService(t)
	ctx := context.Background()
	_, err := cats.Add(ctx, user, finance.KindExpense, "Travel")
	require.NoError(t, err)
	a, _, err := svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-05", record.NewEntry{Amount: dec("9"), Category: "Food"})
	require.NoError(t, err)

	upd, _, err := svc.UpdateEntry(ctx, user, finance.KindExpense, "2024-05-05", finance.RefTo(a), finance.EntryPatch{Category: ptr("TRAVEL")})
	require.NoError(t, err)
	assert.Equal(t, "Travel", upd.Category)

	upd, _, err = svc.UpdateEntry(ctx, user, finance.KindExpense, "2024-05-05", finance.RefTo(a), finance.EntryPatch{Category: ptr("Books")})
	require.NoError(t, err)
	assert.Equal(t, "Books", upd.Category)
	_, ok, err := cats.Lookup(ctx, user, finance.KindExpense, "books")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListForDate_AbsentIsEmpty(t *testing.T) {
	svc, _, _ := newService(t)
	rec, err := svc.ListForDate(context.Background(), user, "2020-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2020-02-29", rec.Date)
	assert.NotNil(t, rec.Income)
	assert.NotNil(t, rec.Expense)
	assert.True(t, rec.TotalIncome.IsZero())

	_, err = svc.ListForDate(context.Background(), user, "2021-02-29")
	assert.ErrorIs(t, err, errs.ErrInvalidDate)
}

func TestGroupedByCategory_RegistryOrderThenUnregistered(t *testing.T) {
	svc, cats, store := newService(t)
	ctx := context.Background()
	_, err := cats.Add(ctx, user, finance.KindExpense, "Rent")
	require.NoError(t, err)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-06", record.NewEntry{Amount: dec("3"), Category: "Food"})
	require.NoError(t, err)
	_, _, err = svc.AddEntry(ctx, user, finance.KindExpense, "2024-05-06", record.NewEntry{Amount: dec("4"), Category: "food"})
	require.NoError(t, err)
	// an entry whose category was never registered, e.g. imported data
	_, err = store.MutateRecord(ctx, user, "2024-05-06", func(d *finance.DailyRecord) error {
		d.Append(finance.KindExpense, finance.Entry{Amount: dec("1"), Category: "Legacy", Timestamp: 1})
		return nil
	})
	require.NoError(t, err)

	groups, err := svc.GroupedByCategory(ctx, user, finance.KindExpense, "2024-05-06")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Rent", groups[0].Name)
	assert.Empty(t, groups[0].Entries)
	assert.True(t, groups[0].Total.IsZero())
	assert.Equal(t, "Food", groups[1].Name)
	assert.Len(t, groups[1].Entries, 2)
	assert.True(t, groups[1].Total.Equal(dec("7")))
	assert.Equal(t, "Legacy", groups[2].Name)
}

func TestMonthlyViews(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	add := func(kind finance.Kind, date, amount, cat string) {
		_, _, err := svc.AddEntry(ctx, user, kind, date, record.NewEntry{Amount: dec(amount), Category: cat})
		require.NoError(t, err)
	}
	add(finance.KindExpense, "2024-04-30", "8", "Food")
	add(finance.KindExpense, "2024-05-01", "5", "Food")
	add(finance.KindExpense, "2024-05-31", "6", "food")
	add(finance.KindExpense, "2024-05-31", "100", "Rent")
	add(finance.KindIncome, "2024-05-15", "900", "Salary")
	add(finance.KindIncome, "2024-03-01", "50", "Gift")

	lines, err := svc.MonthlyByCategory(ctx, user, finance.KindExpense, "FOOD", "")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-05-01", lines[0].Date)
	assert.Equal(t, "2024-05-31", lines[1].Date)

	lines, err = svc.MonthlyByCategory(ctx, user, finance.KindExpense, "Food", "2024-04")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	_, err = svc.MonthlyByCategory(ctx, user, finance.KindExpense, "Food", "2024-4")
	assert.ErrorIs(t, err, errs.ErrInvalidMonth)

	months, err := svc.MonthlySummary(ctx, user)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, []string{"2024-03", "2024-04", "2024-05"}, []string{months[0].Month, months[1].Month, months[2].Month})
	assert.True(t, months[2].TotalIncome.Equal(dec("900")))
	assert.True(t, months[2].TotalExpense.Equal(dec("111")))

	days, err := svc.MonthDays(ctx, user, "2024-05")
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-05-15", days[1].Date)
	assert.True(t, days[2].TotalExpense.Equal(dec("106")))

	_, err = svc.MonthDays(ctx, user, "2023-05")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteEntry_DuplicateTupleRemovesFirstOnly(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()
	first := finance.Entry{ID: uuid.New(), Amount: dec("20"), Category: "Food", Remark: "snack", Timestamp: 1700000000000}
	second := first
	second.ID = uuid.New()
	_, err := store.MutateRecord(ctx, user, "2024-05-07", func(d *finance.DailyRecord) error {
		d.Append(finance.KindExpense, first)
		d.Append(finance.KindExpense, second)
		return nil
	})
	require.NoError(t, err)

	ref := finance.EntryRef{Amount: dec("20"), Category: "Food", Remark: "snack", Timestamp: first.Timestamp}
	rec, err := svc.DeleteEntry(ctx, user, finance.KindExpense, "2024-05-07", ref)
	require.NoError(t, err)
	require.Len(t, rec.Expense, 1)
	assert.Equal(t, second.ID, rec.Expense[0].ID)
	assert.True(t, rec.TotalExpense.Equal(dec("20")))
}
