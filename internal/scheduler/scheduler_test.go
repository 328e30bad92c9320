package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/types"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls []types.EntityType
	fail  map[types.EntityType]bool
}

func (f *fakeRefresher) RefreshReference(_ context.Context, t types.EntityType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, t)
	if f.fail[t] {
		return 0, errors.New("source unavailable")
	}
	return 10, nil
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		refresher Refresher
		schedule  string
		wantErr   error
	}{
		{name: "default schedule", refresher: &fakeRefresher{}},
		{name: "descriptor", refresher: &fakeRefresher{}, schedule: "@daily"},
		{name: "invalid schedule", refresher: &fakeRefresher{}, schedule: "every tuesday", wantErr: types.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.refresher, tt.schedule, 0)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultTimeout, s.timeout)
		})
	}

	_, err := New(nil, "", 0)
	assert.Error(t, err)
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()

	ok := &fakeRefresher{}
	s, err := New(ok, "", time.Second)
	require.NoError(t, err)
	require.NoError(t, s.RefreshAll(ctx))
	assert.Equal(t, types.ReferenceTypes, ok.calls)

	partial := &fakeRefresher{fail: map[types.EntityType]bool{types.EntityVenue: true}}
	s, err = New(partial, "", time.Second)
	require.NoError(t, err)
	err = s.RefreshAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue")
	assert.Len(t, partial.calls, len(types.ReferenceTypes), "a failing type does not stop the others")
}

func TestRun_FiresOnSchedule(t *testing.T) {
	r := &fakeRefresher{}
	s, err := New(r, "@every 1s", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, s.IsRunning, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return r.count() >= len(types.ReferenceTypes) }, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.IsRunning())
}
