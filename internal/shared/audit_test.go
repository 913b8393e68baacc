package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurredAtDefaultsToNow(t *testing.T) {
	before := time.Now()
	got := occurredAt(time.Time{})

	// Records written without an explicit timestamp must never land behind a
	// retention cutoff.
	require.False(t, got.IsZero())
	assert.False(t, got.Before(before))
	assert.False(t, got.After(time.Now()))
}

func TestOccurredAtKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, at, occurredAt(at))
}
