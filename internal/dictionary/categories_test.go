package dictionary

import (
	"testing"

	"github.com/tinoosan/cashbook/internal/finance"
)

func TestCategoriesFor(t *testing.T) {
	all := CategoriesFor(nil)
	k := finance.KindIncome
	income := CategoriesFor(&k)
	if len(income) == 0 || len(all) <= len(income) {
		t.Fatalf("unexpected sizes: all=%d income=%d", len(all), len(income))
	}
	seen := map[string]bool{}
	for _, d := range all {
		key := finance.CategoryKey(d.Label)
		if seen[key] {
			t.Fatalf("duplicate label %q", d.Label)
		}
		seen[key] = true
	}
	if got := Labels(finance.KindExpense); len(got) == 0 || got[0] != "Groceries" {
		t.Fatalf("labels: %v", got)
	}
}
