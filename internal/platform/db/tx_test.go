package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	txs   []*fakeTx
	opts  []pgx.TxOptions
	begun int
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = append(b.opts, opts)
	tx := b.txs[b.begun]
	b.begun++
	return tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{txs: []*fakeTx{{}}}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, b.txs[0].committed)
	require.Equal(t, pgx.RepeatableRead, b.opts[0].IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{txs: []*fakeTx{{}}}
	boom := errors.New("boom")
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.True(t, b.txs[0].rolledBack)
	require.Equal(t, 1, b.begun)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	b := &fakeBeginner{txs: []*fakeTx{{commitErr: serialization}, {}}}
	calls := 0
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.True(t, b.txs[1].committed)
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	deadlock := fmt.Errorf("update stock: %w", &pgconn.PgError{Code: "40P01"})
	b := &fakeBeginner{txs: []*fakeTx{{}, {}, {}}}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return deadlock })
	require.True(t, IsSerializationFailure(err))
	require.Equal(t, maxTxAttempts, b.begun)
}

func TestPgErrorClassifiers(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsForeignKeyViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23503"})))
	require.False(t, IsSerializationFailure(errors.New("plain")))
}
