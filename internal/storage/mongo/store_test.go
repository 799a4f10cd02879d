package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/category"
)

// mustOpen connects to TEST_MONGO_URI using a throwaway database.
func mustOpen(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping MongoDB store tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db := fmt.Sprintf("cashbook_test_%d", time.Now().UnixNano())
	s, err := Open(ctx, uri, db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.cli.Database(db).Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestStore_MutateRecordCAS(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.MutateRecord(ctx, "u", "2024-04-01", func(d *finance.DailyRecord) error {
				d.Append(finance.KindExpense, finance.Entry{ID: uuid.New(), Amount: decimal.RequireFromString("1.10"), Category: "Coffee"})
				return nil
			}); err != nil {
				t.Errorf("mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.GetRecord(ctx, "u", "2024-04-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Expense) != 5 || !got.TotalExpense.Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("lost updates: %d entries, total %s", len(got.Expense), got.TotalExpense)
	}
	if got.Income == nil || !got.TotalIncome.IsZero() {
		t.Fatalf("income side: %+v", got)
	}

	if _, err := s.GetRecord(ctx, "u", "2024-04-02"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := s.ListRecords(ctx, "u", "2024-04-01", "2024-04-30")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
}

func TestStore_CategoriesAndCascade(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()
	cats := category.New(s, s)

	if _, err := cats.Add(ctx, "u", finance.KindIncome, "Salary"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.CreateCategory(ctx, finance.Category{ID: uuid.New(), UserID: "u", Kind: finance.KindIncome, Name: "salary"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict from unique index, got %v", err)
	}
	if _, err := s.MutateRecord(ctx, "u", "2024-04-05", func(d *finance.DailyRecord) error {
		d.Append(finance.KindIncome, finance.Entry{ID: uuid.New(), Amount: decimal.NewFromInt(5000), Category: "Salary"})
		return nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}

	n, err := cats.Rename(ctx, "u", finance.KindIncome, "salary", "Wages")
	if err != nil || n != 1 {
		t.Fatalf("rename: n=%d err=%v", n, err)
	}
	got, _ := s.GetRecord(ctx, "u", "2024-04-05")
	if got.Income[0].Category != "Wages" {
		t.Fatalf("cascade missed: %+v", got.Income)
	}
	if _, err := cats.Delete(ctx, "u", finance.KindIncome, "Wages"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.GetRecord(ctx, "u", "2024-04-05")
	if len(got.Income) != 0 || !got.TotalIncome.IsZero() {
		t.Fatalf("entries survived: %+v", got)
	}
}

func TestStore_Settings(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()
	if _, err := s.GetSettings(ctx, "u"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.SaveSettings(ctx, finance.Settings{UserID: "u", InitialBalance: decimal.RequireFromString("250.75"), Currency: "EUR"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, err := s.GetSettings(ctx, "u")
	if err != nil || !st.InitialBalance.Equal(decimal.RequireFromString("250.75")) || st.Currency != "EUR" {
		t.Fatalf("settings: %+v %v", st, err)
	}
}
