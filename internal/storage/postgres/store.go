// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services.
//
// Daily records are stored one row per (user, day) with the entry arrays as
// jsonb documents. Schema migrations are embedded and applied by Migrate.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/category"
)

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// entryDoc is the jsonb shape of an entry.
type entryDoc struct {
	ID        uuid.UUID `json:"id"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	Remark    string    `json:"remark"`
	Timestamp int64     `json:"timestamp"`
}

func encodeEntries(es []finance.Entry) (string, error) {
	docs := make([]entryDoc, 0, len(es))
	for _, e := range es {
		docs = append(docs, entryDoc{ID: e.ID, Amount: e.Amount.String(), Category: e.Category, Remark: e.Remark, Timestamp: e.Timestamp})
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEntries(b []byte) ([]finance.Entry, error) {
	var docs []entryDoc
	if len(b) > 0 {
		if err := json.Unmarshal(b, &docs); err != nil {
			return nil, fmt.Errorf("decode entries: %w", err)
		}
	}
	out := make([]finance.Entry, 0, len(docs))
	for _, d := range docs {
		amt, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode entry amount: %w", err)
		}
		out = append(out, finance.Entry{ID: d.ID, Amount: amt, Category: d.Category, Remark: d.Remark, Timestamp: d.Timestamp})
	}
	return out, nil
}

const selectRecord = `
	select day, income, expense, total_income::text, total_expense::text, version
	from daily_records`

func scanRecord(row pgx.Row, userID string) (finance.DailyRecord, error) {
	var (
		r                 = finance.DailyRecord{UserID: userID}
		income, expense   []byte
		totalIn, totalOut string
	)
	if err := row.Scan(&r.Date, &income, &expense, &totalIn, &totalOut, &r.Version); err != nil {
		return finance.DailyRecord{}, err
	}
	var err error
	if r.Income, err = decodeEntries(income); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.Expense, err = decodeEntries(expense); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.TotalIncome, err = decimal.NewFromString(totalIn); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.TotalExpense, err = decimal.NewFromString(totalOut); err != nil {
		return finance.DailyRecord{}, err
	}
	return r, nil
}

func writeRecord(ctx context.Context, q querier, r finance.DailyRecord) error {
	income, err := encodeEntries(r.Income)
	if err != nil {
		return err
	}
	expense, err := encodeEntries(r.Expense)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		update daily_records
		set income = $3::jsonb, expense = $4::jsonb,
		    total_income = $5::numeric, total_expense = $6::numeric,
		    version = $7, updated_at = now()
		where user_id = $1 and day = $2
	`, r.UserID, r.Date, income, expense, r.TotalIncome.String(), r.TotalExpense.String(), r.Version)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// --- Daily records ---

func (s *Store) GetRecord(ctx context.Context, userID, date string) (finance.DailyRecord, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, selectRecord+` where user_id = $1 and day = $2`, userID, date), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.DailyRecord{}, errs.ErrNotFound
	}
	return r, err
}

func (s *Store) ListRecords(ctx context.Context, userID, from, to string) ([]finance.DailyRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecord+`
		where user_id = $1
		  and ($2::text = '' or day >= $2::text)
		  and ($3::text = '' or day <= $3::text)
		order by day asc
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []finance.DailyRecord{}
	for rows.Next() {
		r, err := scanRecord(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MutateRecord locks the (user, day) row for the duration of fn. The row is
// created inside the transaction, so a failing fn leaves nothing behind.
func (s *Store) MutateRecord(ctx context.Context, userID, date string, fn func(*finance.DailyRecord) error) (finance.DailyRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return finance.DailyRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		insert into daily_records (user_id, day) values ($1, $2)
		on conflict (user_id, day) do nothing
	`, userID, date); err != nil {
		return finance.DailyRecord{}, fmt.Errorf("insert record: %w", err)
	}
	r, err := scanRecord(tx.QueryRow(ctx, selectRecord+` where user_id = $1 and day = $2 for update`, userID, date), userID)
	if err != nil {
		return finance.DailyRecord{}, err
	}
	if err := fn(&r); err != nil {
		return finance.DailyRecord{}, err
	}
	r.Recompute()
	r.UserID, r.Date = userID, date
	r.Version++
	if err := writeRecord(ctx, tx, r); err != nil {
		return finance.DailyRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return finance.DailyRecord{}, err
	}
	return r, nil
}

func (s *Store) RewriteRecords(ctx context.Context, userID string, fn func(*finance.DailyRecord) bool) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	n, err := rewriteRecords(ctx, tx, userID, fn)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func rewriteRecords(ctx context.Context, tx pgx.Tx, userID string, fn func(*finance.DailyRecord) bool) (int, error) {
	rows, err := tx.Query(ctx, selectRecord+` where user_id = $1 order by day for update`, userID)
	if err != nil {
		return 0, err
	}
	var recs []finance.DailyRecord
	for rows.Next() {
		r, err := scanRecord(rows, userID)
		if err != nil {
			rows.Close()
			return 0, err
		}
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	n := 0
	for i := range recs {
		if !fn(&recs[i]) {
			continue
		}
		recs[i].Version++
		if err := writeRecord(ctx, tx, recs[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// --- Categories ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) ListCategories(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error) {
	rows, err := s.pool.Query(ctx, `
		select id, name, created_at from categories
		where user_id = $1 and kind = $2
		order by created_at asc, id asc
	`, userID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []finance.Category{}
	for rows.Next() {
		c := finance.Category{UserID: userID, Kind: kind}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		insert into categories (id, user_id, kind, name, name_key, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, string(c.Kind), c.Name, finance.CategoryKey(c.Name), c.CreatedAt)
	if isUniqueViolation(err) {
		return finance.Category{}, errs.ErrConflict
	}
	if err != nil {
		return finance.Category{}, err
	}
	return c, nil
}

func renameCategory(ctx context.Context, q querier, userID string, kind finance.Kind, oldName, newName string) error {
	tag, err := q.Exec(ctx, `
		update categories set name = $4, name_key = $5
		where user_id = $1 and kind = $2 and name_key = $3
	`, userID, string(kind), finance.CategoryKey(oldName), newName, finance.CategoryKey(newName))
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func deleteCategory(ctx context.Context, q querier, userID string, kind finance.Kind, name string) error {
	tag, err := q.Exec(ctx, `
		delete from categories where user_id = $1 and kind = $2 and name_key = $3
	`, userID, string(kind), finance.CategoryKey(name))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) RenameCategory(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) error {
	return renameCategory(ctx, s.pool, userID, kind, oldName, newName)
}

func (s *Store) DeleteCategory(ctx context.Context, userID string, kind finance.Kind, name string) error {
	return deleteCategory(ctx, s.pool, userID, kind, name)
}

// --- Settings ---

func (s *Store) GetSettings(ctx context.Context, userID string) (finance.Settings, error) {
	st := finance.Settings{UserID: userID}
	var initial string
	err := s.pool.QueryRow(ctx, `
		select initial_balance::text, currency from bank_settings where user_id = $1
	`, userID).Scan(&initial, &st.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return finance.Settings{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.Settings{}, err
	}
	if st.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return finance.Settings{}, err
	}
	return st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st finance.Settings) (finance.Settings, error) {
	if _, err := s.pool.Exec(ctx, `
		insert into bank_settings (user_id, initial_balance, currency)
		values ($1, $2::numeric, $3)
		on conflict (user_id) do update
		set initial_balance = excluded.initial_balance, currency = excluded.currency
	`, st.UserID, st.InitialBalance.String(), st.Currency); err != nil {
		return finance.Settings{}, err
	}
	return st, nil
}

// --- Cascades ---

// BeginCascade starts a transaction in which record rewrites and the
// registry change commit together.
func (s *Store) BeginCascade(ctx context.Context) (category.Cascade, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx and implements category.Cascade.
type Tx struct{ tx pgx.Tx }

func (t *Tx) RewriteRecords(ctx context.Context, userID string, fn func(*finance.DailyRecord) bool) (int, error) {
	return rewriteRecords(ctx, t.tx, userID, fn)
}

func (t *Tx) RenameCategory(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) error {
	return renameCategory(ctx, t.tx, userID, kind, oldName, newName)
}

func (t *Tx) DeleteCategory(ctx context.Context, userID string, kind finance.Kind, name string) error {
	return deleteCategory(ctx, t.tx, userID, kind, name)
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
