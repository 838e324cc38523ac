package orm

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const columnsQuery = `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name <> $2 ORDER BY ordinal_position`

var testCategoriesTable = NewTable("categories", "user_id", "name")

func TestStoreColumnsOf(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("categories", "id").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("user_id").AddRow("name"))

	cols, err := store.ColumnsOf(context.Background(), testCategoriesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "name"}, cols)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetFromInnerJoin(t *testing.T) {
	t.Run("selects from columns plus joined non-key columns", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
			WithArgs("categories", "id").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("user_id").AddRow("name"))
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT goal_category_links.*, categories.user_id, categories.name FROM goal_category_links INNER JOIN categories ON (goal_category_links.category_id = categories.id) WHERE (goal_category_links.goal_id = ANY($1::bigint[]))`)).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "goal_id", "category_id", "user_id", "name"}).
				AddRow(int64(100), int64(1), int64(10), int64(42), []byte("Health")).
				AddRow(int64(101), int64(2), int64(11), int64(42), "Craft"))

		rows, err := store.GetFromInnerJoin(context.Background(),
			testLinksTable, Conditions{"goal_id": []int64{1, 2}},
			testCategoriesTable, []JoinPair{On("category_id", "id")})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Health", rows[0]["name"])
		assert.Equal(t, int64(10), rows[0]["category_id"])
		assert.Equal(t, "Craft", rows[1]["name"])

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty array short circuits both statements", func(t *testing.T) {
		store, mock := newMockStore(t)

		rows, err := store.GetFromInnerJoin(context.Background(),
			testLinksTable, Conditions{"goal_id": []int64{}},
			testCategoriesTable, []JoinPair{On("category_id", "id")})
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a join pair", func(t *testing.T) {
		store, _ := newMockStore(t)

		_, err := store.GetFromInnerJoin(context.Background(),
			testLinksTable, nil, testCategoriesTable, nil)
		assert.Error(t, err)
	})

	t.Run("column lookup failure stops the join", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
			WillReturnError(errors.New("connection refused"))

		_, err := store.GetFromInnerJoin(context.Background(),
			testLinksTable, Conditions{"goal_id": int64(1)},
			testCategoriesTable, []JoinPair{On("category_id", "id")})
		assert.ErrorIs(t, err, ErrConnectionFailed)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreWithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store, mock := newMockStore(t)
		repo := NewRepository[testGoal](store, testGoalsTable)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM goals WHERE id = $1`)).
			WithArgs(int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(tx *Store) error {
			assert.True(t, tx.InTransaction())
			return NewRepository[testGoal](tx, repo.Table()).DeleteByID(ctx, 9)
		})
		require.NoError(t, err)
		assert.False(t, store.InTransaction())

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTransaction(ctx, func(*Store) error { return boom })
		assert.ErrorIs(t, err, boom)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and repanics", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = store.WithTransaction(ctx, func(*Store) error { panic("kaboom") })
		})

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested calls share the transaction", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(outer *Store) error {
			return outer.WithTransaction(ctx, func(inner *Store) error {
				assert.Same(t, outer, inner)
				return nil
			})
		})
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := store.WithTransaction(ctx, func(*Store) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestStoreMiddleware(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewRepository[testGoal](store, testGoalsTable)

	var order []string
	var seen []*MiddlewareContext
	store.Use(func(next QueryMiddlewareFunc) QueryMiddlewareFunc {
		return func(mc *MiddlewareContext) error {
			order = append(order, "outer")
			err := next(mc)
			seen = append(seen, mc)
			return err
		}
	})
	store.Use(func(next QueryMiddlewareFunc) QueryMiddlewareFunc {
		return func(mc *MiddlewareContext) error {
			order = append(order, "inner")
			return next(mc)
		}
	})

	mock.ExpectExec(`DELETE FROM goals`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM goals`).
		WithArgs(int64(10)).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint \"links_goal_id_fkey\""})

	require.NoError(t, repo.DeleteByID(context.Background(), 9))
	require.Error(t, repo.DeleteByID(context.Background(), 10))

	assert.Equal(t, []string{"outer", "inner", "outer", "inner"}, order)
	require.Len(t, seen, 2)
	assert.Equal(t, OpDelete, seen[0].Operation)
	assert.Equal(t, "goals", seen[0].TableName)
	assert.Equal(t, `DELETE FROM goals WHERE id = $1`, seen[0].Query)
	assert.NoError(t, seen[0].Error)
	assert.ErrorIs(t, seen[1].Error, ErrForeignKey)

	require.NoError(t, mock.ExpectationsWereMet())
}
