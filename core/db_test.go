package core_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
)

func TestRunInTx(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(tx core.DBExecutor) error
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "commit",
			fn: func(tx core.DBExecutor) error {
				_, err := tx.ExecContext(context.Background(), "UPDATE topics SET topic_order = 1")
				return err
			},
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE topics").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "rollback on error",
			fn:   func(core.DBExecutor) error { return errBoom },
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			wantErr: errBoom,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tc.expect(mock)

			err = core.NewTransactor(sqlx.NewDb(db, "postgres")).RunInTx(context.Background(), tc.fn)
			assert.Equal(t, tc.wantErr, errors.Cause(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunInTx_panic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = core.RunInTx(context.Background(), sqlx.NewDb(db, "postgres"), func(core.DBExecutor) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
