package availability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsTransitions(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "server-fueldata.csv.lock")

	states := make(chan bool, 16)
	w, err := NewWatcher(marker, func(busy bool) { states <- busy }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	next := func() bool {
		select {
		case s := <-states:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no marker transition observed")
			return false
		}
	}

	assert.False(t, next(), "initial state")

	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	assert.True(t, next())
	assert.True(t, w.Busy())

	// Unrelated files never produce transitions.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server-fueldata.csv"), []byte("x"), 0o644))

	require.NoError(t, os.Remove(marker))
	assert.False(t, next())
	assert.False(t, w.Busy())
}

func TestWatcher_InitialBusyState(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "data.csv.lock")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	states := make(chan bool, 4)
	w, err := NewWatcher(marker, func(busy bool) { states <- busy }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case s := <-states:
		assert.True(t, s)
	case <-time.After(2 * time.Second):
		t.Fatal("initial state not reported")
	}
}
