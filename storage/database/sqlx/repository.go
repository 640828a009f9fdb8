package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

const pqUniqueViolation = "23505"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// baseRepository runs statements on the executor handed in by a service (a transaction)
// or on its own DB otherwise.
type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo baseRepository) get(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, query, args...)
}

func (repo baseRepository) selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, query, args...)
}

// execute runs b and returns the number of affected rows.
func (repo baseRepository) execute(ctx context.Context, exec core.DBExecutor, b sq.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo baseRepository) count(ctx context.Context, exec core.DBExecutor, b sq.SelectBuilder) (int, error) {
	var n int
	err := repo.get(ctx, exec, &n, b)
	return n, err
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueViolation returns the name of the violated unique constraint, if err is one.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, allowed map[string]string, fallback ...string) sq.SelectBuilder {
	clauses := core.AllowedOrderings(ordering, allowed)
	if len(clauses) == 0 {
		clauses = fallback
	}
	return b.OrderBy(clauses...)
}

func paginate(b sq.SelectBuilder, page *core.Page) sq.SelectBuilder {
	if page == nil {
		return b
	}
	return b.Limit(page.Limit()).Offset(page.Offset())
}

// ilike wraps value for a substring match. LIKE wildcards in value match literally.
func ilike(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
