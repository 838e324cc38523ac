package orm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// Row is an untyped result row keyed by column name.
type Row map[string]interface{}

// Store is the entry point for table-agnostic operations. It holds the
// current executor (DB or TX), the owner chain used to scope reads to a
// user, and the middleware wrapped around every statement.
type Store struct {
	executor   DBExecutor
	chain      *OwnerChain
	middleware *middlewareManager
}

// NewStore creates a store over the given executor and owner chain.
func NewStore(executor DBExecutor, chain *OwnerChain) *Store {
	return &Store{
		executor:   executor,
		chain:      chain,
		middleware: &middlewareManager{},
	}
}

func (s *Store) withExecutor(executor DBExecutor) *Store {
	return &Store{
		executor:   executor,
		chain:      s.chain,
		middleware: s.middleware,
	}
}

// Use appends a middleware to the chain run around every statement.
func (s *Store) Use(middleware QueryMiddleware) {
	s.middleware = s.middleware.add(middleware)
}

// Executor returns the current database executor
func (s *Store) Executor() DBExecutor {
	return s.executor
}

// OwnerChain returns the chain used to scope owner queries.
func (s *Store) OwnerChain() *OwnerChain {
	return s.chain
}

// Ping checks connectivity when the store sits on a connection pool.
func (s *Store) Ping(ctx context.Context) error {
	db, ok := s.executor.(DBWrapper)
	if !ok {
		return nil
	}
	return db.PingContext(ctx)
}

// run executes fn inside the middleware chain and classifies its error.
func (s *Store) run(ctx context.Context, op OperationType, table, query string, args []interface{}, fn func() error) error {
	mc := &MiddlewareContext{
		Operation: op,
		TableName: table,
		Query:     query,
		Args:      args,
		StartTime: time.Now(),
		Context:   ctx,
	}
	return s.middleware.execute(mc, func(*MiddlewareContext) error {
		return ParsePostgreSQLError(fn(), string(op), table)
	})
}

// ColumnsOf lists the columns of table, excluding its primary key, in
// ordinal order.
func (s *Store) ColumnsOf(ctx context.Context, table Table) ([]string, error) {
	query, args, err := squirrel.Select("column_name").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table.Name}).
		Where(squirrel.NotEq{"column_name": table.Key()}).
		OrderBy("ordinal_position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, buildError(OpColumns, table.Name, err)
	}

	columns := make([]string, 0)
	err = s.run(ctx, OpColumns, table.Name, query, args, func() error {
		return s.executor.SelectContext(ctx, &columns, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// GetFromInnerJoin selects every column of from plus the non-key columns of
// to, joined on pairs and filtered by where. The column list of to is read
// from the schema first; the two statements do not share a transaction.
func (s *Store) GetFromInnerJoin(ctx context.Context, from Table, where Conditions, to Table, pairs []JoinPair) ([]Row, error) {
	if len(pairs) == 0 {
		return nil, &Error{Op: string(OpInnerJoin), Table: from.Name, Err: fmt.Errorf("at least one join pair is required")}
	}

	qualified := make(Conditions, len(where))
	for col, value := range where {
		if !strings.Contains(col, ".") {
			col = from.Qualify(col)
		}
		qualified[col] = value
	}

	compiled, err := qualified.compile()
	if err != nil {
		return nil, buildError(OpInnerJoin, from.Name, err)
	}
	if compiled.unsatisfiable {
		return []Row{}, nil
	}

	toColumns, err := s.ColumnsOf(ctx, to)
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(toColumns)+1)
	selected = append(selected, from.Name+".*")
	for _, col := range toColumns {
		selected = append(selected, to.Qualify(col))
	}

	builder := squirrel.Select(selected...).
		From(from.Name).
		InnerJoin(fmt.Sprintf("%s ON %s", to.Name, renderJoinPairs(from, to, pairs))).
		PlaceholderFormat(squirrel.Dollar)
	if len(compiled.predicates) > 0 {
		builder = builder.Where(squirrel.And(compiled.predicates))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, buildError(OpInnerJoin, from.Name, err)
	}

	rows := make([]Row, 0)
	err = s.run(ctx, OpInnerJoin, from.Name, query, args, func() error {
		result, err := s.executor.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			row := make(map[string]interface{})
			if err := result.MapScan(row); err != nil {
				return err
			}
			rows = append(rows, normalizeRow(row))
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// normalizeRow turns driver byte slices into strings so rows encode as text.
func normalizeRow(row map[string]interface{}) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return Row(row)
}

func buildError(op OperationType, table string, err error) error {
	return &Error{
		Op:    string(op),
		Table: table,
		Err:   fmt.Errorf("failed to build query: %w", err),
	}
}
