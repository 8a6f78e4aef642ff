package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	calls int
	got   time.Time
	n     int64
	err   error
}

func (f *fakePruner) Prune(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	f.got = now
	return f.n, f.err
}

func TestSessionsPruneHandler(t *testing.T) {
	pruner := &fakePruner{n: 3}
	handler := NewSessionsPruneHandler(pruner, nil)

	err := handler(context.Background(), NewSessionsPruneTask())
	require.NoError(t, err)
	require.Equal(t, 1, pruner.calls)
	require.WithinDuration(t, time.Now(), pruner.got, time.Minute)
}

func TestSessionsPruneHandlerPropagatesError(t *testing.T) {
	wantErr := errors.New("storage offline")
	pruner := &fakePruner{err: wantErr}
	handler := NewSessionsPruneHandler(pruner, nil)

	err := handler(context.Background(), NewSessionsPruneTask())
	require.ErrorIs(t, err, wantErr)
}
