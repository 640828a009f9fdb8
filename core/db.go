package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var _ DBTransactor = (*sqlx.Tx)(nil)

// RunInTx runs fn inside a transaction. The transaction is rolled back when fn returns an error or panics.
func RunInTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

// Transactor runs functions inside a database transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx DBExecutor) error) error
}

type dbTransactor struct {
	db DB
}

func NewTransactor(db DB) Transactor {
	return dbTransactor{db: db}
}

func (t dbTransactor) RunInTx(ctx context.Context, fn func(tx DBExecutor) error) error {
	return RunInTx(ctx, t.db, fn)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings keeps the orderings whose field is a key of allowed, mapped to its column.
func AllowedOrderings(ordering []DBOrdering, allowed map[string]string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			clauses = append(clauses, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	return clauses
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Number int `query:"page"`
	Size   int `query:"page_size"`
}

func (p *Page) Clean() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	} else if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

func (p Page) Limit() uint64  { return uint64(p.Size) }
func (p Page) Offset() uint64 { return uint64((p.Number - 1) * p.Size) }

// PageResult is a page of items plus the total number of matching rows.
type PageResult[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewPageResult[T any](items []T, total int, page Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: page.Number, PageSize: page.Size}
}
