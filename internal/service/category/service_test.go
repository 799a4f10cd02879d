package category_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/category"
	"github.com/tinoosan/cashbook/internal/storage/memory"
)

const user = "u1"

func seedEntry(t *testing.T, store *memory.Store, kind finance.Kind, date, amount, cat, remark string) {
	t.Helper()
	_, err := store.MutateRecord(context.Background(), user, date, func(d *finance.DailyRecord) error {
		d.Append(kind, finance.Entry{Amount: decimal.RequireFromString(amount), Category: cat, Remark: remark, Timestamp: int64(len(d.Entries(kind)))})
		return nil
	})
	require.NoError(t, err)
}

func TestAdd_CaseInsensitiveUniqueness(t *testing.T) {
	store := memory.New()
	svc := category.New(store, store)
	ctx := context.Background()

	c, err := svc.Add(ctx, user, finance.KindExpense, "  Food ")
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)

	_, err = svc.Add(ctx, user, finance.KindExpense, "FOOD")
	assert.ErrorIs(t, err, errs.ErrDuplicateCategory)
	_, err = svc.Add(ctx, user, finance.KindExpense, "")
	assert.ErrorIs(t, err, errs.ErrEmptyCategory)

	// kinds and users are separate registries
	_, err = svc.Add(ctx, user, finance.KindIncome, "Food")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u2", finance.KindExpense, "Food")
	require.NoError(t, err)

	got, err := svc.Ensure(ctx, user, finance.KindExpense, "food")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	list, err := svc.List(ctx, user, finance.KindExpense)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRename_CascadesIntoRecords(t *testing.T) {
	store := memory.New()
	svc := category.New(store, store)
	ctx := context.Background()
	_, err := svc.Add(ctx, user, finance.KindExpense, "Food")
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, finance.KindExpense, "Rent")
	require.NoError(t, err)
	seedEntry(t, store, finance.KindExpense, "2024-01-01", "10", "Food", "a")
	seedEntry(t, store, finance.KindExpense, "2024-01-01", "20", "Rent", "")
	seedEntry(t, store, finance.KindExpense, "2024-02-01", "5", "food", "")
	seedEntry(t, store, finance.KindIncome, "2024-03-01", "7", "Food", "")

	n, err := svc.Rename(ctx, user, finance.KindExpense, "food", "Groceries")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := store.GetRecord(ctx, user, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", rec.Expense[0].Category)
	assert.Equal(t, "a", rec.Expense[0].Remark)
	assert.Equal(t, "Rent", rec.Expense[1].Category)
	assert.True(t, rec.TotalExpense.Equal(decimal.NewFromInt(30)))

	// the income side is a different registry
	rec, err = store.GetRecord(ctx, user, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "Food", rec.Income[0].Category)

	_, ok, err := svc.Lookup(ctx, user, finance.KindExpense, "Food")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRename_Errors(t *testing.T) {
	store := memory.New()
	svc := category.New(store, store)
	ctx := context.Background()
	_, err := svc.Add(ctx, user, finance.KindIncome, "Salary")
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, finance.KindIncome, "Bonus")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, user, finance.KindIncome, "Salary", "Salary")
	assert.ErrorIs(t, err, errs.ErrSameCategoryName)
	_, err = svc.Rename(ctx, user, finance.KindIncome, "Salary", "bonus")
	assert.ErrorIs(t, err, errs.ErrDuplicateCategory)
	_, err = svc.Rename(ctx, user, finance.KindIncome, "Wages", "Pay")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.Rename(ctx, user, finance.KindIncome, "Salary", " ")
	assert.ErrorIs(t, err, errs.ErrEmptyCategory)

	// changing only the case is allowed
	_, err = svc.Rename(ctx, user, finance.KindIncome, "Salary", "SALARY")
	require.NoError(t, err)
	c, ok, err := svc.Lookup(ctx, user, finance.KindIncome, "salary")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SALARY", c.Name)
}

func TestDelete_RemovesEntriesAndRecomputesTotals(t *testing.T) {
	store := memory.New()
	svc := category.New(store, store)
	ctx := context.Background()
	_, err := svc.Add(ctx, user, finance.KindIncome, "Salary")
	require.NoError(t, err)
	seedEntry(t, store, finance.KindIncome, "2024-01-05", "5000", "Salary", "")
	seedEntry(t, store, finance.KindIncome, "2024-01-05", "50", "Gift", "")
	seedEntry(t, store, finance.KindExpense, "2024-01-05", "50", "Salary", "")

	n, err := svc.Delete(ctx, user, finance.KindIncome, "SALARY")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.GetRecord(ctx, user, "2024-01-05")
	require.NoError(t, err)
	require.Len(t, rec.Income, 1)
	assert.Equal(t, "Gift", rec.Income[0].Category)
	assert.True(t, rec.TotalIncome.Equal(decimal.NewFromInt(50)))
	assert.Len(t, rec.Expense, 1)
	assert.True(t, rec.Consistent())

	_, err = svc.Delete(ctx, user, finance.KindIncome, "Salary")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

// txWriter runs cascades through a fake transaction over the memory store.
type txWriter struct {
	*memory.Store
	tx *fakeTx
}

type fakeTx struct {
	*memory.Store
	failRename bool
	committed  bool
	rolledBack bool
}

func (w *txWriter) BeginCascade(context.Context) (category.Cascade, error) {
	w.tx.Store = w.Store
	return w.tx, nil
}

func (t *fakeTx) RenameCategory(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) error {
	if t.failRename {
		return errors.New("boom")
	}
	return t.Store.RenameCategory(ctx, userID, kind, oldName, newName)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

func TestCascade_UsesTransactionWhenAvailable(t *testing.T) {
	store := memory.New()
	w := &txWriter{Store: store, tx: &fakeTx{}}
	svc := category.New(store, w)
	ctx := context.Background()
	_, err := svc.Add(ctx, user, finance.KindExpense, "Food")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, user, finance.KindExpense, "Food", "Meals")
	require.NoError(t, err)
	assert.True(t, w.tx.committed)
	assert.False(t, w.tx.rolledBack)

	w.tx = &fakeTx{failRename: true}
	_, err = svc.Rename(ctx, user, finance.KindExpense, "Meals", "Dining")
	require.Error(t, err)
	assert.True(t, w.tx.rolledBack)
	assert.False(t, w.tx.committed)
}
