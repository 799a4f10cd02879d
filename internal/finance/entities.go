package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind selects which side of a daily record an entry belongs to.
type Kind string

const (
	// KindIncome marks money received.
	KindIncome Kind = "income"
	// KindExpense marks money spent.
	KindExpense Kind = "expense"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindIncome, KindExpense}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool { return k == KindIncome || k == KindExpense }

// User is the authenticated owner of all documents. ID is the opaque
// subject issued by the identity provider.
type User struct {
	ID          string
	Email       string
	DisplayName string
	LastSignIn  *time.Time
}

// Entry is a single income or expense line inside a DailyRecord.
type Entry struct {
	ID       uuid.UUID
	Amount   decimal.Decimal
	Category string
	// Remark is "" when the user gave none.
	Remark string
	// Timestamp is milliseconds since the Unix epoch at creation.
	Timestamp int64
}

// EntryRef locates an entry in a record. A non-nil ID wins; otherwise the
// value tuple (Amount, Category, Remark, Timestamp) must match exactly.
type EntryRef struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Category  string
	Remark    string
	Timestamp int64
}

// RefTo returns a reference to e by id.
func RefTo(e Entry) EntryRef { return EntryRef{ID: e.ID} }

// Matches reports whether e is the entry r refers to.
func (r EntryRef) Matches(e Entry) bool {
	if r.ID != uuid.Nil {
		return e.ID == r.ID
	}
	return e.Amount.Equal(r.Amount) &&
		e.Category == r.Category &&
		e.Remark == r.Remark &&
		e.Timestamp == r.Timestamp
}

// EntryPatch carries the optional fields of an entry update. Nil means keep.
type EntryPatch struct {
	Amount   *decimal.Decimal
	Category *string
	Remark   *string
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool { return p.Amount == nil && p.Category == nil && p.Remark == nil }

// DailyRecord aggregates one user's entries for one calendar date.
// TotalIncome and TotalExpense always equal the sums of their arrays.
type DailyRecord struct {
	UserID       string
	Date         string
	Income       []Entry
	Expense      []Entry
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	// Version increments on every write; stores use it for compare-and-swap.
	Version int64
}

// NewDailyRecord returns an empty record with non-nil arrays and zero totals.
func NewDailyRecord(userID, date string) DailyRecord {
	return DailyRecord{
		UserID:       userID,
		Date:         date,
		Income:       []Entry{},
		Expense:      []Entry{},
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
}

// Entries returns the array for kind k.
func (d *DailyRecord) Entries(k Kind) []Entry {
	if k == KindIncome {
		return d.Income
	}
	return d.Expense
}

// SetEntries replaces the array for kind k and recomputes its total.
func (d *DailyRecord) SetEntries(k Kind, es []Entry) {
	if es == nil {
		es = []Entry{}
	}
	if k == KindIncome {
		d.Income = es
		d.TotalIncome = Sum(es)
		return
	}
	d.Expense = es
	d.TotalExpense = Sum(es)
}

// Append adds e to the end of the kind's array.
func (d *DailyRecord) Append(k Kind, e Entry) {
	es := append(append([]Entry{}, d.Entries(k)...), e)
	d.SetEntries(k, es)
}

// IndexOf returns the position of the first entry matching ref, or -1.
func (d *DailyRecord) IndexOf(k Kind, ref EntryRef) int {
	for i, e := range d.Entries(k) {
		if ref.Matches(e) {
			return i
		}
	}
	return -1
}

// Recompute resets both totals from the arrays.
func (d *DailyRecord) Recompute() {
	d.SetEntries(KindIncome, d.Income)
	d.SetEntries(KindExpense, d.Expense)
}

// Consistent reports whether both totals equal their array sums.
func (d *DailyRecord) Consistent() bool {
	return d.TotalIncome.Equal(Sum(d.Income)) && d.TotalExpense.Equal(Sum(d.Expense))
}

// Clone returns a deep copy so callers never share slices with a store.
func (d DailyRecord) Clone() DailyRecord {
	out := d
	out.Income = append([]Entry{}, d.Income...)
	out.Expense = append([]Entry{}, d.Expense...)
	return out
}

// Sum adds up the amounts of es.
func Sum(es []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range es {
		total = total.Add(e.Amount)
	}
	return total
}

// Category is one entry of a user's per-kind category registry.
type Category struct {
	ID        uuid.UUID
	UserID    string
	Kind      Kind
	Name      string
	CreatedAt time.Time
}

// CategoryKey is the comparison key for category names: trimmed and case-folded.
func CategoryKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// SameCategory reports whether two names denote the same category.
func SameCategory(a, b string) bool { return CategoryKey(a) == CategoryKey(b) }

// Settings holds the per-user bank settings document.
type Settings struct {
	UserID         string
	InitialBalance decimal.Decimal
	Currency       string
}
