// Package category implements the per-kind category registry: case-insensitive
// uniqueness, on-demand creation, and rename/delete cascades into daily records.
package category

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

type Repo interface {
	// ListCategories returns the registry for (user, kind) in creation order.
	ListCategories(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error)
}

// Rewriter is the set of writes a cascade performs.
type Rewriter interface {
	// RewriteRecords applies fn to every record of the user and persists the
	// records for which fn reports a change. It returns how many were written.
	RewriteRecords(ctx context.Context, userID string, fn func(*finance.DailyRecord) bool) (int, error)
	// RenameCategory renames the category whose key matches oldName.
	// errs.ErrNotFound when absent, errs.ErrConflict when newName is taken.
	RenameCategory(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) error
	// DeleteCategory removes the category whose key matches name.
	DeleteCategory(ctx context.Context, userID string, kind finance.Kind, name string) error
}

type Writer interface {
	Rewriter
	// CreateCategory stores c. errs.ErrConflict when the key already exists.
	CreateCategory(ctx context.Context, c finance.Category) (finance.Category, error)
}

// Cascade is a transactional Rewriter.
type Cascade interface {
	Rewriter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CascadeBeginner is implemented by writers that can run a cascade atomically.
type CascadeBeginner interface {
	BeginCascade(ctx context.Context) (Cascade, error)
}

type Service interface {
	Add(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, error)
	List(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error)
	// Ensure returns the registered category matching name, creating it if absent.
	Ensure(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, error)
	// Lookup returns the registered category matching name, if any.
	Lookup(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, bool, error)
	Rename(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) (int, error)
	Delete(ctx context.Context, userID string, kind finance.Kind, name string) (int, error)
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

func New(repo Repo, writer Writer) Service {
	return &service{repo: repo, writer: writer, now: time.Now}
}

func validate(userID string, kind finance.Kind) error {
	if strings.TrimSpace(userID) == "" {
		return errs.ErrUnauthenticated
	}
	if !kind.Valid() {
		return errs.ErrInvalidKind
	}
	return nil
}

func (s *service) List(ctx context.Context, userID string, kind finance.Kind) ([]finance.Category, error) {
	if err := validate(userID, kind); err != nil {
		return nil, err
	}
	list, err := s.repo.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []finance.Category{}
	}
	return list, nil
}

func (s *service) Lookup(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, bool, error) {
	list, err := s.List(ctx, userID, kind)
	if err != nil {
		return finance.Category{}, false, err
	}
	for _, c := range list {
		if finance.SameCategory(c.Name, name) {
			return c, true, nil
		}
	}
	return finance.Category{}, false, nil
}

func (s *service) Add(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, error) {
	if err := validate(userID, kind); err != nil {
		return finance.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return finance.Category{}, errs.ErrEmptyCategory
	}
	if _, ok, err := s.Lookup(ctx, userID, kind, name); err != nil {
		return finance.Category{}, err
	} else if ok {
		return finance.Category{}, errs.ErrDuplicateCategory
	}
	c, err := s.writer.CreateCategory(ctx, finance.Category{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Name:      name,
		CreatedAt: s.now().UTC(),
	})
	if errors.Is(err, errs.ErrConflict) {
		return finance.Category{}, errs.ErrDuplicateCategory
	}
	return c, err
}

func (s *service) Ensure(ctx context.Context, userID string, kind finance.Kind, name string) (finance.Category, error) {
	c, err := s.Add(ctx, userID, kind, name)
	if !errors.Is(err, errs.ErrDuplicateCategory) {
		return c, err
	}
	// lost a race or already present
	c, ok, err := s.Lookup(ctx, userID, kind, name)
	if err != nil {
		return finance.Category{}, err
	}
	if !ok {
		return finance.Category{}, errs.ErrConflict
	}
	return c, nil
}

func (s *service) Rename(ctx context.Context, userID string, kind finance.Kind, oldName, newName string) (int, error) {
	if err := validate(userID, kind); err != nil {
		return 0, err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return 0, errs.ErrEmptyCategory
	}
	list, err := s.List(ctx, userID, kind)
	if err != nil {
		return 0, err
	}
	var current *finance.Category
	for i := range list {
		if finance.SameCategory(list[i].Name, oldName) {
			current = &list[i]
			break
		}
	}
	if current == nil {
		return 0, errs.ErrNotFound
	}
	if current.Name == newName {
		return 0, errs.ErrSameCategoryName
	}
	for _, c := range list {
		if c.ID != current.ID && finance.SameCategory(c.Name, newName) {
			return 0, errs.ErrDuplicateCategory
		}
	}
	from := current.Name
	rewrite := func(d *finance.DailyRecord) bool {
		es := d.Entries(kind)
		out := make([]finance.Entry, len(es))
		changed := false
		for i, e := range es {
			if finance.SameCategory(e.Category, from) {
				e.Category = newName
				changed = true
			}
			out[i] = e
		}
		if changed {
			d.SetEntries(kind, out)
		}
		return changed
	}
	return s.cascade(ctx, func(w Rewriter) (int, error) {
		n, err := w.RewriteRecords(ctx, userID, rewrite)
		if err != nil {
			return 0, err
		}
		if err := w.RenameCategory(ctx, userID, kind, from, newName); err != nil {
			if errors.Is(err, errs.ErrConflict) {
				return 0, errs.ErrDuplicateCategory
			}
			return 0, err
		}
		return n, nil
	})
}

func (s *service) Delete(ctx context.Context, userID string, kind finance.Kind, name string) (int, error) {
	if err := validate(userID, kind); err != nil {
		return 0, err
	}
	current, ok, err := s.Lookup(ctx, userID, kind, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errs.ErrNotFound
	}
	rewrite := func(d *finance.DailyRecord) bool {
		es := d.Entries(kind)
		kept := make([]finance.Entry, 0, len(es))
		for _, e := range es {
			if !finance.SameCategory(e.Category, current.Name) {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(es) {
			return false
		}
		d.SetEntries(kind, kept)
		return true
	}
	return s.cascade(ctx, func(w Rewriter) (int, error) {
		n, err := w.RewriteRecords(ctx, userID, rewrite)
		if err != nil {
			return 0, err
		}
		if err := w.DeleteCategory(ctx, userID, kind, current.Name); err != nil {
			return 0, err
		}
		return n, nil
	})
}

// cascade runs fn inside a transaction when the writer supports one.
// Otherwise records are rewritten before the registry changes, so a failed
// run can be repeated until it converges.
func (s *service) cascade(ctx context.Context, fn func(Rewriter) (int, error)) (int, error) {
	b, ok := s.writer.(CascadeBeginner)
	if !ok {
		return fn(s.writer)
	}
	tx, err := b.BeginCascade(ctx)
	if err != nil {
		return 0, err
	}
	n, err := fn(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
