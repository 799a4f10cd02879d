// Package dictionary holds the curated starter categories offered to new users.
package dictionary

import "github.com/tinoosan/cashbook/internal/finance"

type CategoryDef struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var curated = map[finance.Kind][]CategoryDef{
	finance.KindIncome: {
		{Code: "salary", Label: "Salary"},
		{Code: "business", Label: "Business"},
		{Code: "interest", Label: "Interest"},
		{Code: "refund", Label: "Refund"},
		{Code: "gifts", Label: "Gifts"},
		{Code: "other_income", Label: "Other Income"},
	},
	finance.KindExpense: {
		{Code: "groceries", Label: "Groceries"},
		{Code: "eating_out", Label: "Eating Out"},
		{Code: "rent", Label: "Rent"},
		{Code: "utilities", Label: "Utilities"},
		{Code: "transport", Label: "Transport"},
		{Code: "shopping", Label: "Shopping"},
		{Code: "entertainment", Label: "Entertainment"},
		{Code: "health", Label: "Health"},
		{Code: "general", Label: "General"},
	},
}

// CategoriesFor returns the suggestions for kind, or for every kind when kind is nil.
func CategoriesFor(kind *finance.Kind) []CategoryDef {
	if kind == nil {
		out := make([]CategoryDef, 0)
		for _, k := range finance.Kinds {
			out = append(out, curated[k]...)
		}
		return out
	}
	return append([]CategoryDef{}, curated[*kind]...)
}

// Labels returns the display names suggested for kind.
func Labels(kind finance.Kind) []string {
	defs := curated[kind]
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Label)
	}
	return out
}
