// Package mongo stores daily records, the category registry and bank settings
// as MongoDB documents. Record writes use a version field for optimistic
// concurrency, so concurrent edits of the same day never overwrite each other.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

// maxAttempts bounds compare-and-swap retries per record.
const maxAttempts = 8

type Store struct {
	cli        *mongo.Client
	records    *mongo.Collection
	categories *mongo.Collection
	settings   *mongo.Collection
}

// Open connects to uri and prepares the collections and indexes in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := cli.Database(database)
	s := &Store{
		cli:        cli,
		records:    db.Collection("daily_records"),
		categories: db.Collection("categories"),
		settings:   db.Collection("settings"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("mongo couldn't create records index: %w", err)
	}
	if _, err := s.categories.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("mongo couldn't create categories indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error { return s.cli.Disconnect(ctx) }

// Ready pings the primary.
func (s *Store) Ready(ctx context.Context) error { return s.cli.Ping(ctx, nil) }

type entryDoc struct {
	ID        string               `bson:"id"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Category  string               `bson:"category"`
	Remark    string               `bson:"remark"`
	Timestamp int64                `bson:"timestamp"`
}

type recordDoc struct {
	ID           string               `bson:"_id"`
	UserID       string               `bson:"user_id"`
	Date         string               `bson:"date"`
	Income       []entryDoc           `bson:"income"`
	Expense      []entryDoc           `bson:"expense"`
	TotalIncome  primitive.Decimal128 `bson:"total_income"`
	TotalExpense primitive.Decimal128 `bson:"total_expense"`
	Version      int64                `bson:"version"`
}

type categoryDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Kind      string    `bson:"kind"`
	Name      string    `bson:"name"`
	Key       string    `bson:"key"`
	CreatedAt time.Time `bson:"created_at"`
}

type settingsDoc struct {
	UserID         string               `bson:"_id"`
	InitialBalance primitive.Decimal128 `bson:"initial_balance"`
	Currency       string               `bson:"currency"`
}

func recordID(userID, date string) string { return userID + "|" + date }

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

func toEntryDocs(es []finance.Entry) ([]entryDoc, error) {
	out := make([]entryDoc, 0, len(es))
	for _, e := range es {
		amt, err := toDecimal128(e.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, entryDoc{ID: e.ID.String(), Amount: amt, Category: e.Category, Remark: e.Remark, Timestamp: e.Timestamp})
	}
	return out, nil
}

func fromEntryDocs(docs []entryDoc) ([]finance.Entry, error) {
	out := make([]finance.Entry, 0, len(docs))
	for _, d := range docs {
		amt, err := fromDecimal128(d.Amount)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("decode entry id: %w", err)
		}
		out = append(out, finance.Entry{ID: id, Amount: amt, Category: d.Category, Remark: d.Remark, Timestamp: d.Timestamp})
	}
	return out, nil
}

func toRecordDoc(r finance.DailyRecord) (recordDoc, error) {
	doc := recordDoc{ID: recordID(r.UserID, r.Date), UserID: r.UserID, Date: r.Date, Version: r.Version}
	var err error
	if doc.Income, err = toEntryDocs(r.Income); err != nil {
		return recordDoc{}, err
	}
	if doc.Expense, err = toEntryDocs(r.Expense); err != nil {
		return recordDoc{}, err
	}
	if doc.TotalIncome, err = toDecimal128(r.TotalIncome); err != nil {
		return recordDoc{}, err
	}
	if doc.TotalExpense, err = toDecimal128(r.TotalExpense); err != nil {
		return recordDoc{}, err
	}
	return doc, nil
}

func (d recordDoc) record() (finance.DailyRecord, error) {
	r := finance.DailyRecord{UserID: d.UserID, Date: d.Date, Version: d.Version}
	var err error
	if r.Income, err = fromEntryDocs(d.Income); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.Expense, err = fromEntryDocs(d.Expense); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.TotalIncome, err = fromDecimal128(d.TotalIncome); err != nil {
		return finance.DailyRecord{}, err
	}
	if r.TotalExpense, err = fromDecimal128(d.TotalExpense); err != nil {
		return finance.DailyRecord{}, err
	}
	return r, nil
}

// --- Daily records ---

func (s *Store) findRecord(ctx context.Context, id string) (finance.DailyRecord, error) {
	var doc recordDoc
	err := s.records.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return finance.DailyRecord{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.DailyRecord{}, fmt.Errorf("mongo couldn't FindOne record: %w", err)
	}
	return doc.record()
}

func (s *Store) GetRecord(ctx context.Context, userID, date string) (finance.DailyRecord, error) {
	return s.findRecord(ctx, recordID(userID, date))
}

func (s *Store) ListRecords(ctx context.Context, userID, from, to string) ([]finance.DailyRecord, error) {
	filter := bson.D{{Key: "user_id", Value: userID}}
	rng := bson.D{}
	if from != "" {
		rng = append(rng, bson.E{Key: "$gte", Value: from})
	}
	if to != "" {
		rng = append(rng, bson.E{Key: "$lte", Value: to})
	}
	if len(rng) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: rng})
	}
	cur, err := s.records.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo couldn't Find records: %w", err)
	}
	defer cur.Close(ctx)
	out := []finance.DailyRecord{}
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo couldn't Decode record: %w", err)
		}
		r, err := doc.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, cur.Err()
}

// MutateRecord retries fn on version conflicts, so fn may run more than once.
func (s *Store) MutateRecord(ctx context.Context, userID, date string, fn func(*finance.DailyRecord) error) (finance.DailyRecord, error) {
	id := recordID(userID, date)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, err := s.findRecord(ctx, id)
		found := err == nil
		if errors.Is(err, errs.ErrNotFound) {
			r = finance.NewDailyRecord(userID, date)
		} else if err != nil {
			return finance.DailyRecord{}, err
		}
		if err := fn(&r); err != nil {
			return finance.DailyRecord{}, err
		}
		r.Recompute()
		ok, err := s.swap(ctx, r, found)
		if err != nil {
			return finance.DailyRecord{}, err
		}
		if ok {
			r.Version++
			return r, nil
		}
	}
	return finance.DailyRecord{}, fmt.Errorf("record %s: %w", date, errs.ErrConflict)
}

// swap writes r with version+1 if the stored version is still r.Version.
// It reports false when another writer got there first.
func (s *Store) swap(ctx context.Context, r finance.DailyRecord, exists bool) (bool, error) {
	prev := r.Version
	r.Version++
	doc, err := toRecordDoc(r)
	if err != nil {
		return false, err
	}
	if !exists {
		_, err := s.records.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("mongo couldn't InsertOne record: %w", err)
		}
		return true, nil
	}
	res, err := s.records.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}, {Key: "version", Value: prev}}, doc)
	if err != nil {
		return false, fmt.Errorf("mongo couldn't ReplaceOne record: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// RewriteRecords is not atomic across records; each record is swapped on its
// own and reloaded on conflict.
func (s *Store) RewriteRecords(ctx context.Context, userID string, fn func(*finance.DailyRecord) bool) (int, error) {
	recs, err := s.ListRecords(ctx, userID, "", "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		changed, err := s.rewriteOne(ctx, r, fn)
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

func (s *Store) rewriteOne(ctx context.Context, r finance.DailyRecord, fn func(*finance.DailyRecord) bool) (bool, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			fresh, err := s.findRecord(ctx, recordID(r.UserID, r.Date))
			if err != nil {
				return false, err
			}
			r = fresh
		}
		if !fn(&r) {
			return false, nil
		}
		ok, err := s.swap(ctx, r, true)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, fmt.Errorf("record %s: %w", r.Date, errs.ErrConflict)
}

// --- Categories ---

func (s *Store) ListCategories(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error) {
	cur, err := s.categories.Find(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "kind", Value: string(kind)}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo couldn't Find categories: %w", err)
	}
	defer cur.Close(ctx)
	out := []finance.Category{}
	for cur.Next(ctx) {
		var doc categoryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo couldn't Decode category: %w", err)
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("decode category id: %w", err)
		}
		out = append(out, finance.Category{ID: id, UserID: doc.UserID, Kind: finance.Kind(doc.Kind), Name: doc.Name, CreatedAt: doc.CreatedAt.UTC()})
	}
	return out, cur.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error) {
	_, err := s.categories.InsertOne(ctx, categoryDoc{
		ID:        c.ID.String(),
		UserID:    c.UserID,
		Kind:      string(c.Kind),
		Name:      c.Name,
		Key:       finance.CategoryKey(c.Name),
		CreatedAt: c.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return finance.Category{}, errs.ErrConflict
	}
	if err != nil {
		return finance.Category{}, fmt.Errorf("mongo couldn't InsertOne category: %w", err)
	}
	return c, nil
}

func (s *Store) RenameCategory(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) error {
	res, err := s.categories.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "kind", Value: string(kind)}, {Key: "key", Value: finance.CategoryKey(oldName)}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: newName}, {Key: "key", Value: finance.CategoryKey(newName)}}}})
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("mongo couldn't UpdateOne category: %w", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID string, kind finance.Kind, name string) error {
	res, err := s.categories.DeleteOne(ctx,
		bson.D{{Key: "user_id", Value: userID}, {Key: "kind", Value: string(kind)}, {Key: "key", Value: finance.CategoryKey(name)}})
	if err != nil {
		return fmt.Errorf("mongo couldn't DeleteOne category: %w", err)
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Settings ---

func (s *Store) GetSettings(ctx context.Context, userID string) (finance.Settings, error) {
	var doc settingsDoc
	err := s.settings.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return finance.Settings{}, errs.ErrNotFound
	}
	if err != nil {
		return finance.Settings{}, fmt.Errorf("mongo couldn't FindOne settings: %w", err)
	}
	initial, err := fromDecimal128(doc.InitialBalance)
	if err != nil {
		return finance.Settings{}, err
	}
	return finance.Settings{UserID: doc.UserID, InitialBalance: initial, Currency: doc.Currency}, nil
}

func (s *Store) SaveSettings(ctx context.Context, st finance.Settings) (finance.Settings, error) {
	initial, err := toDecimal128(st.InitialBalance)
	if err != nil {
		return finance.Settings{}, err
	}
	_, err = s.settings.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: st.UserID}},
		settingsDoc{UserID: st.UserID, InitialBalance: initial, Currency: st.Currency},
		options.Replace().SetUpsert(true))
	if err != nil {
		return finance.Settings{}, fmt.Errorf("mongo couldn't ReplaceOne settings: %w", err)
	}
	return st, nil
}
