package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core"
)

// repository holds what every sqlx repository shares: the default executor and its placeholder format.
type repository struct {
	db      core.DBExecutor
	builder sq.StatementBuilderType
}

func newRepository(db core.DBExecutor) repository {
	var format sq.PlaceholderFormat = sq.Question
	if db.DriverName() == "postgres" {
		format = sq.Dollar
	}
	return repository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}
}

// getExec returns the executor to run a statement with: the transaction given by the caller, if any.
func (repo repository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func (repo repository) get(ctx context.Context, exec core.DBExecutor, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, q, args...)
}

func (repo repository) sel(ctx context.Context, exec core.DBExecutor, dest interface{}, query sq.Sqlizer) error {
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, q, args...)
}

func (repo repository) run(ctx context.Context, exec core.DBExecutor, query sq.Sqlizer) (sql.Result, error) {
	q, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return exec.ExecContext(ctx, q, args...)
}

func (repo repository) count(ctx context.Context, exec core.DBExecutor, query sq.SelectBuilder) (int, error) {
	var n int
	err := repo.get(ctx, exec, &n, query.RemoveColumns().Column("COUNT(*)").RemoveLimit().RemoveOffset())
	return n, err
}

func (repo repository) exists(ctx context.Context, exec core.DBExecutor, table, id string) (bool, error) {
	var n int
	err := repo.get(ctx, exec, &n, repo.builder.Select("COUNT(*)").From(table).Where(sq.Eq{"id": id}))
	return n > 0, err
}

// trapNoRowsErr replaces sql.ErrNoRows by `notFound`.
func trapNoRowsErr(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

// likeAny matches `term` case-insensitively as a substring of any of `columns`.
func likeAny(term string, columns ...string) sq.Or {
	pattern := "%" + core.CleanString(term, true /* lower */) + "%"
	or := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		or = append(or, sq.Like{"LOWER(" + col + ")": pattern})
	}
	return or
}

// orderBy maps the requested orderings to columns, ignoring fields not in `columns`.
// `fallback` applies when nothing valid was requested.
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback ...string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		return fallback
	}
	return clauses
}

func paginate(query sq.SelectBuilder, page core.Pagination) sq.SelectBuilder {
	return query.Limit(uint64(page.Limit)).Offset(page.Offset())
}
