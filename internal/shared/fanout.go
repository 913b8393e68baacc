package shared

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SettleResult captures the outcome of one item in a fan-out batch.
type SettleResult[T any] struct {
	Item T
	Err  error
}

// SettleAll runs fn for every item concurrently and waits for all of them to
// finish. Unlike an error group alone it never short-circuits: each item gets
// its own result so callers can report which specific items failed. Partial
// failures leave successful items applied.
func SettleAll[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) []SettleResult[T] {
	results := make([]SettleResult[T], len(items))
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			results[i] = SettleResult[T]{Item: item, Err: fn(ctx, item)}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// SettleFailures filters the failed outcomes from a batch.
func SettleFailures[T any](results []SettleResult[T]) []SettleResult[T] {
	var failed []SettleResult[T]
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
