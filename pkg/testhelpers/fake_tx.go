package testhelpers

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// FakeTx is a pgx.Tx stand-in for unit tests. It records commit/rollback
// calls; the embedded interface is nil, so any query method panics if a
// test reaches the database by accident.
type FakeTx struct {
	pgx.Tx
	Committed  bool
	RolledBack bool
	CommitErr  error
}

func (t *FakeTx) Commit(_ context.Context) error {
	if t.CommitErr != nil {
		return t.CommitErr
	}
	t.Committed = true
	return nil
}

func (t *FakeTx) Rollback(_ context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// FakeTxManager implements database.TransactionManager, handing out a
// fresh FakeTx per BeginTx and keeping them for assertions.
type FakeTxManager struct {
	BeginErr error
	Txs      []*FakeTx
}

func (m *FakeTxManager) BeginTx(_ context.Context) (pgx.Tx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	tx := &FakeTx{}
	m.Txs = append(m.Txs, tx)
	return tx, nil
}

// LastTx returns the most recently started transaction, or nil.
func (m *FakeTxManager) LastTx() *FakeTx {
	if len(m.Txs) == 0 {
		return nil
	}
	return m.Txs[len(m.Txs)-1]
}
