package core

import "context"

// TxRunner executes fn atomically. Every premium-affecting mutation runs
// inside one transaction so cached totals are never left inconsistent with
// the underlying member/addon set; any error aborts the whole unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTx runs fn directly. Used where the store provides no transactions
// (tests, single-node deployments relying on per-document atomicity).
type NopTx struct{}

func (NopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
