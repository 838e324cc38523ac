package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Repository binds a Store to one table and scans rows into T using the
// struct's db tags.
type Repository[T any] struct {
	store *Store
	table Table
}

// NewRepository creates a repository for table on store.
func NewRepository[T any](store *Store, table Table) *Repository[T] {
	return &Repository[T]{store: store, table: table}
}

// Table returns the table descriptor.
func (r *Repository[T]) Table() Table {
	return r.table
}

func (r *Repository[T]) checkColumns(op OperationType, columns []string) error {
	if len(r.table.Columns) == 0 {
		return nil
	}
	for _, col := range columns {
		if !r.table.HasColumn(col) {
			return &Error{
				Op:     string(op),
				Table:  r.table.Name,
				Column: col,
				Err:    fmt.Errorf("unknown column"),
			}
		}
	}
	return nil
}

func (r *Repository[T]) conditionColumns(conds Conditions) []string {
	return conds.columns()
}

// Insert writes record and returns the stored row. Columns are written in
// record order.
func (r *Repository[T]) Insert(ctx context.Context, record Record) (*T, error) {
	if record.Len() == 0 {
		return nil, &Error{Op: string(OpInsert), Table: r.table.Name, Err: ErrNoColumns}
	}
	if err := r.checkColumns(OpInsert, record.Columns()); err != nil {
		return nil, err
	}

	query, args, err := squirrel.Insert(r.table.Name).
		Columns(record.Columns()...).
		Values(record.Values()...).
		Suffix("RETURNING *").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, buildError(OpInsert, r.table.Name, err)
	}

	var inserted T
	err = r.store.run(ctx, OpInsert, r.table.Name, query, args, func() error {
		return r.store.executor.GetContext(ctx, &inserted, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// ownedSelect starts a SELECT over the table joined up to its root owner.
// When the table reaches the root, the owner predicate is bound first.
func (r *Repository[T]) ownedSelect(uid int64) squirrel.SelectBuilder {
	scope := r.store.chain.Resolve(r.table.Name)

	builder := squirrel.Select(r.table.Name + ".*").
		From(r.table.Name).
		PlaceholderFormat(squirrel.Dollar)
	for _, j := range scope.Joins {
		builder = j.apply(builder)
	}
	if scope.Rooted {
		builder = builder.Where(squirrel.Eq{scope.OwnerColumn: uid})
	}
	return builder
}

// GetByID returns the row with id when uid transitively owns it. The result
// holds zero or one row; absence and foreign ownership look the same.
func (r *Repository[T]) GetByID(ctx context.Context, id, uid int64) ([]T, error) {
	builder := r.ownedSelect(uid).
		Where(squirrel.Eq{r.table.Qualify(r.table.Key()): id})
	return r.selectAll(ctx, OpFind, builder)
}

// GetAll returns every row transitively owned by uid.
func (r *Repository[T]) GetAll(ctx context.Context, uid int64) ([]T, error) {
	return r.selectAll(ctx, OpFind, r.ownedSelect(uid))
}

// GetWithCondition returns the rows matching conds. An empty slice
// condition returns no rows without querying; no conditions selects
// everything.
func (r *Repository[T]) GetWithCondition(ctx context.Context, conds Conditions) ([]T, error) {
	if err := r.checkColumns(OpFind, r.conditionColumns(conds)); err != nil {
		return nil, err
	}

	compiled, err := conds.compile()
	if err != nil {
		return nil, buildError(OpFind, r.table.Name, err)
	}
	if compiled.unsatisfiable {
		return []T{}, nil
	}

	builder := squirrel.Select("*").
		From(r.table.Name).
		PlaceholderFormat(squirrel.Dollar)
	for _, p := range compiled.predicates {
		builder = builder.Where(p)
	}
	return r.selectAll(ctx, OpFind, builder)
}

// Count returns the number of rows matching conds.
func (r *Repository[T]) Count(ctx context.Context, conds Conditions) (int64, error) {
	if err := r.checkColumns(OpCount, r.conditionColumns(conds)); err != nil {
		return 0, err
	}

	compiled, err := conds.compile()
	if err != nil {
		return 0, buildError(OpCount, r.table.Name, err)
	}
	if compiled.unsatisfiable {
		return 0, nil
	}

	builder := squirrel.Select("COUNT(*)").
		From(r.table.Name).
		PlaceholderFormat(squirrel.Dollar)
	for _, p := range compiled.predicates {
		builder = builder.Where(p)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, buildError(OpCount, r.table.Name, err)
	}

	var count int64
	err = r.store.run(ctx, OpCount, r.table.Name, query, args, func() error {
		return r.store.executor.GetContext(ctx, &count, query, args...)
	})
	return count, err
}

func (r *Repository[T]) selectAll(ctx context.Context, op OperationType, builder squirrel.SelectBuilder) ([]T, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, buildError(op, r.table.Name, err)
	}

	records := make([]T, 0)
	err = r.store.run(ctx, op, r.table.Name, query, args, func() error {
		return r.store.executor.SelectContext(ctx, &records, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByID removes the row with id. It does not check ownership.
func (r *Repository[T]) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := squirrel.Delete(r.table.Name).
		Where(squirrel.Eq{r.table.Key(): id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return buildError(OpDelete, r.table.Name, err)
	}

	return r.store.run(ctx, OpDelete, r.table.Name, query, args, func() error {
		_, err := r.store.executor.ExecContext(ctx, query, args...)
		return err
	})
}

// DeleteWithCondition removes the rows matching conds and returns how many
// were deleted. An empty slice condition deletes nothing without querying.
func (r *Repository[T]) DeleteWithCondition(ctx context.Context, conds Conditions) (int64, error) {
	if err := r.checkColumns(OpDelete, r.conditionColumns(conds)); err != nil {
		return 0, err
	}

	compiled, err := conds.compile()
	if err != nil {
		return 0, buildError(OpDelete, r.table.Name, err)
	}
	if compiled.unsatisfiable {
		return 0, nil
	}

	builder := squirrel.Delete(r.table.Name).PlaceholderFormat(squirrel.Dollar)
	for _, p := range compiled.predicates {
		builder = builder.Where(p)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, buildError(OpDelete, r.table.Name, err)
	}

	var affected int64
	err = r.store.run(ctx, OpDelete, r.table.Name, query, args, func() error {
		result, err := r.store.executor.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// UpdateByID applies patch to the row with id and returns the updated row,
// or nil when no row matched.
func (r *Repository[T]) UpdateByID(ctx context.Context, patch Record, id int64) (*T, error) {
	if patch.Len() == 0 {
		return nil, &Error{Op: string(OpUpdate), Table: r.table.Name, Err: ErrNoColumns}
	}
	if err := r.checkColumns(OpUpdate, patch.Columns()); err != nil {
		return nil, err
	}

	builder := squirrel.Update(r.table.Name).PlaceholderFormat(squirrel.Dollar)
	values := patch.Values()
	for i, col := range patch.Columns() {
		builder = builder.Set(col, values[i])
	}

	query, args, err := builder.
		Where(squirrel.Eq{r.table.Key(): id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, buildError(OpUpdate, r.table.Name, err)
	}

	var updated T
	err = r.store.run(ctx, OpUpdate, r.table.Name, query, args, func() error {
		return r.store.executor.GetContext(ctx, &updated, query, args...)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
