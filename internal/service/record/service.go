package record

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

// Repo defines read operations needed by the service.
type Repo interface {
	// GetRecord returns errs.ErrNotFound when no record exists for the date.
	GetRecord(ctx context.Context, userID, date string) (finance.DailyRecord, error)
	// ListRecords returns records with from <= date <= to, ordered by date.
	// An empty bound is open.
	ListRecords(ctx context.Context, userID, from, to string) ([]finance.DailyRecord, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// MutateRecord loads the record (or a fresh empty one), applies fn and
	// persists the result atomically. Nothing is written when fn fails.
	MutateRecord(ctx context.Context, userID, date string, fn func(*finance.DailyRecord) error) (finance.DailyRecord, error)
}

// Categories is the slice of the category registry used by record operations.
type Categories interface {
	Ensure(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, error)
	Lookup(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, bool, error)
	List(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error)
}

// NewEntry is the input of AddEntry.
type NewEntry struct {
	Amount   decimal.Decimal
	Category string
	Remark   string
}

// CategoryGroup is one category with the entries recorded under it.
type CategoryGroup struct {
	Name    string
	Entries []finance.Entry
	Total   decimal.Decimal
}

// CategoryLine is one entry of a category across a month.
type CategoryLine struct {
	Date  string
	Entry finance.Entry
}

// MonthTotals aggregates all records of one month.
type MonthTotals struct {
	Month        string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
}

// DayTotals is one row of a month report.
type DayTotals struct {
	Date         string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
}

// Service exposes entry mutations on daily records and the read views built on them.
type Service interface {
	AddEntry(ctx context.Context, userID string, kind finance.Kind, date string, in NewEntry) (finance.Entry, finance.DailyRecord, error)
	UpdateEntry(ctx context.Context, userID string, kind finance.Kind, date string, ref finance.EntryRef, patch finance.EntryPatch) (finance.Entry, finance.DailyRecord, error)
	DeleteEntry(ctx context.Context, userID string, kind finance.Kind, date string, ref finance.EntryRef) (finance.DailyRecord, error)
	ListForDate(ctx context.Context, userID, date string) (finance.DailyRecord, error)
	GroupedByCategory(ctx context.Context, userID string, kind finance.Kind, date string) ([]CategoryGroup, error)
	MonthlyByCategory(ctx context.Context, userID string, kind finance.Kind, category, month string) ([]CategoryLine, error)
	MonthlySummary(ctx context.Context, userID string) ([]MonthTotals, error)
	MonthDays(ctx context.Context, userID, month string) ([]DayTotals, error)
}

type service struct {
	repo   Repo
	writer Writer
	cats   Categories
	now    func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithClock overrides the clock used for "today", entry timestamps and the default month.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(repo Repo, writer Writer, cats Categories, opts ...Option) Service {
	s := &service{repo: repo, writer: writer, cats: cats, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) scope(userID string, kind finance.Kind, date string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errs.ErrUnauthenticated
	}
	if !kind.Valid() {
		return "", errs.ErrInvalidKind
	}
	return finance.ParseDate(date, s.now())
}

func (s *service) AddEntry(ctx context.Context, userID string, kind finance.Kind, date string, in NewEntry) (finance.Entry, finance.DailyRecord, error) {
	day, err := s.scope(userID, kind, date)
	if err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	if err := finance.ValidateAmount(in.Amount); err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	name := strings.TrimSpace(in.Category)
	if name == "" {
		return finance.Entry{}, finance.DailyRecord{}, errs.ErrEmptyCategory
	}
	cat, err := s.cats.Ensure(ctx, userID, kind, name)
	if err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	e := finance.Entry{
		ID:        uuid.New(),
		Amount:    in.Amount,
		Category:  cat.Name,
		Remark:    in.Remark,
		Timestamp: s.now().UnixMilli(),
	}
	rec, err := s.writer.MutateRecord(ctx, userID, day, func(d *finance.DailyRecord) error {
		d.Append(kind, e)
		return nil
	})
	if err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	return e, rec, nil
}

func (s *service) UpdateEntry(ctx context.Context, userID string, kind finance.Kind, date string, ref finance.EntryRef, patch finance.EntryPatch) (finance.Entry, finance.DailyRecord, error) {
	day, err := s.scope(userID, kind, date)
	if err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	if patch.Amount != nil {
		if err := finance.ValidateAmount(*patch.Amount); err != nil {
			return finance.Entry{}, finance.DailyRecord{}, err
		}
	}
	var newCategory string
	registered := true
	if patch.Category != nil {
		newCategory = strings.TrimSpace(*patch.Category)
		if newCategory == "" {
			return finance.Entry{}, finance.DailyRecord{}, errs.ErrEmptyCategory
		}
		c, ok, err := s.cats.Lookup(ctx, userID, kind, newCategory)
		if err != nil {
			return finance.Entry{}, finance.DailyRecord{}, err
		}
		if ok {
			newCategory = c.Name
		}
		registered = ok
	}

	var updated finance.Entry
	rec, err := s.writer.MutateRecord(ctx, userID, day, func(d *finance.DailyRecord) error {
		i := d.IndexOf(kind, ref)
		if i < 0 {
			return errs.ErrEntryNotFound
		}
		es := append([]finance.Entry{}, d.Entries(kind)...)
		e := es[i]
		if patch.Amount != nil {
			e.Amount = *patch.Amount
		}
		if patch.Remark != nil {
			e.Remark = *patch.Remark
		}
		if patch.Category != nil {
			e.Category = newCategory
		}
		es[i] = e
		d.SetEntries(kind, es)
		updated = e
		return nil
	})
	if err != nil {
		return finance.Entry{}, finance.DailyRecord{}, err
	}
	if !registered {
		if _, err := s.cats.Ensure(ctx, userID, kind, newCategory); err != nil {
			return finance.Entry{}, finance.DailyRecord{}, err
		}
	}
	return updated, rec, nil
}

func (s *service) DeleteEntry(ctx context.Context, userID string, kind finance.Kind, date string, ref finance.EntryRef) (finance.DailyRecord, error) {
	day, err := s.scope(userID, kind, date)
	if err != nil {
		return finance.DailyRecord{}, err
	}
	return s.writer.MutateRecord(ctx, userID, day, func(d *finance.DailyRecord) error {
		i := d.IndexOf(kind, ref)
		if i < 0 {
			return errs.ErrEntryNotFound
		}
		es := d.Entries(kind)
		kept := make([]finance.Entry, 0, len(es)-1)
		kept = append(kept, es[:i]...)
		kept = append(kept, es[i+1:]...)
		d.SetEntries(kind, kept)
		return nil
	})
}

func (s *service) ListForDate(ctx context.Context, userID, date string) (finance.DailyRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return finance.DailyRecord{}, errs.ErrUnauthenticated
	}
	day, err := finance.ParseDate(date, s.now())
	if err != nil {
		return finance.DailyRecord{}, err
	}
	rec, err := s.repo.GetRecord(ctx, userID, day)
	if errors.Is(err, errs.ErrNotFound) {
		return finance.NewDailyRecord(userID, day), nil
	}
	if err != nil {
		return finance.DailyRecord{}, err
	}
	return rec, nil
}

func (s *service) GroupedByCategory(ctx context.Context, userID string, kind finance.Kind, date string) ([]CategoryGroup, error) {
	day, err := s.scope(userID, kind, date)
	if err != nil {
		return nil, err
	}
	cats, err := s.cats.List(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	rec, err := s.ListForDate(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	groups := make([]CategoryGroup, 0, len(cats))
	index := make(map[string]int, len(cats))
	for _, c := range cats {
		index[finance.CategoryKey(c.Name)] = len(groups)
		groups = append(groups, CategoryGroup{Name: c.Name, Entries: []finance.Entry{}, Total: decimal.Zero})
	}
	// entries under unregistered names still show up, after the registry
	for _, e := range rec.Entries(kind) {
		key := finance.CategoryKey(e.Category)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, CategoryGroup{Name: e.Category, Entries: []finance.Entry{}, Total: decimal.Zero})
		}
		groups[i].Entries = append(groups[i].Entries, e)
		groups[i].Total = groups[i].Total.Add(e.Amount)
	}
	return groups, nil
}

func (s *service) MonthlyByCategory(ctx context.Context, userID string, kind finance.Kind, category, month string) ([]CategoryLine, error) {
	if _, err := s.scope(userID, kind, finance.Today); err != nil {
		return nil, err
	}
	if strings.TrimSpace(category) == "" {
		return nil, errs.ErrEmptyCategory
	}
	from, to, err := s.monthBounds(month)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListRecords(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	lines := []CategoryLine{}
	for _, r := range recs {
		for _, e := range r.Entries(kind) {
			if finance.SameCategory(e.Category, category) {
				lines = append(lines, CategoryLine{Date: r.Date, Entry: e})
			}
		}
	}
	return lines, nil
}

func (s *service) MonthlySummary(ctx context.Context, userID string) ([]MonthTotals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.ErrUnauthenticated
	}
	recs, err := s.repo.ListRecords(ctx, userID, "", "")
	if err != nil {
		return nil, err
	}
	byMonth := map[string]*MonthTotals{}
	for _, r := range recs {
		m := finance.MonthOf(r.Date)
		t, ok := byMonth[m]
		if !ok {
			t = &MonthTotals{Month: m, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
			byMonth[m] = t
		}
		t.TotalIncome = t.TotalIncome.Add(r.TotalIncome)
		t.TotalExpense = t.TotalExpense.Add(r.TotalExpense)
	}
	out := make([]MonthTotals, 0, len(byMonth))
	for _, t := range byMonth {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *service) MonthDays(ctx context.Context, userID, month string) ([]DayTotals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.ErrUnauthenticated
	}
	from, to, err := s.monthBounds(month)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListRecords(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errs.ErrNotFound
	}
	out := make([]DayTotals, 0, len(recs))
	for _, r := range recs {
		out = append(out, DayTotals{Date: r.Date, TotalIncome: r.TotalIncome, TotalExpense: r.TotalExpense})
	}
	return out, nil
}

func (s *service) monthBounds(month string) (string, string, error) {
	m, err := finance.ParseMonth(month, s.now())
	if err != nil {
		return "", "", err
	}
	return finance.MonthRange(m)
}
