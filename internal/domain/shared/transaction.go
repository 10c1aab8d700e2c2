package shared

import "context"

// Transactor runs a unit of work atomically. Implementations carry the
// open transaction through the context so that repositories invoked
// inside fn share it; fn returning an error rolls the whole unit back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTx executes fn under tx. A nil transactor degrades to direct
// execution, which keeps services usable against plain fakes.
func RunInTx(ctx context.Context, tx Transactor, fn func(ctx context.Context) error) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTx(ctx, fn)
}
