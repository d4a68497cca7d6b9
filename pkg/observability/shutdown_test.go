package observability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsFuncsInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, io.Discard), nil, time.Second)

	var order []string
	sm.OnShutdown(func(ctx context.Context) error {
		order = append(order, "db")
		return nil
	})
	sm.OnShutdown(func(ctx context.Context) error {
		order = append(order, "cache")
		return nil
	})

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"cache", "db"}, order)
}

func TestShutdownReturnsFirstError(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, io.Discard), nil, time.Second)

	first := errors.New("cache close failed")
	sm.OnShutdown(func(ctx context.Context) error { return errors.New("db close failed") })
	sm.OnShutdown(func(ctx context.Context) error { return first })

	// both funcs still run; the first failure wins
	err := sm.Shutdown(context.Background())
	assert.ErrorIs(t, err, first)
}
