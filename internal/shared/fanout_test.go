package shared

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleAllCollectsPerItemResults(t *testing.T) {
	items := []int64{1, 2, 3, 4}
	failOn := int64(3)

	results := SettleAll(context.Background(), items, 2, func(ctx context.Context, id int64) error {
		if id == failOn {
			return errors.New("boom")
		}
		return nil
	})

	require.Len(t, results, len(items))
	failed := SettleFailures(results)
	require.Len(t, failed, 1)
	assert.Equal(t, failOn, failed[0].Item)
}

func TestSettleAllDoesNotShortCircuit(t *testing.T) {
	items := []int64{1, 2, 3}
	var calls atomic.Int64

	results := SettleAll(context.Background(), items, 0, func(ctx context.Context, id int64) error {
		calls.Add(1)
		return errors.New("always fails")
	})

	assert.Equal(t, int64(len(items)), calls.Load())
	assert.Len(t, SettleFailures(results), len(items))
}

func TestSettleAllEmptyBatch(t *testing.T) {
	results := SettleAll(context.Background(), nil, 4, func(ctx context.Context, id int64) error {
		t.Fatal("fn should not be called")
		return nil
	})
	assert.Empty(t, results)
}
