package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/backend/mocks"
	"github.com/xzinc/IPL/pkg/types"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.UsageCacheTTL = 0
	return s
}

// setupController builds [A(primary document), B(secondary key-value), C(file)]
func setupController(t *testing.T, s Settings) (*Controller, *fakeAdapter, *fakeAdapter, *fakeAdapter) {
	t.Helper()
	a := newFake("A", types.KindRemoteDocument)
	b := newFake("B", types.KindRemoteKeyValue)
	c := newFake("C", types.KindLocalFile)
	ctrl, err := New([]backend.Adapter{a, b, c}, s)
	require.NoError(t, err)
	return ctrl, a, b, c
}

func putEntity(e types.Entity) func(ctx context.Context, a backend.Adapter) error {
	return func(ctx context.Context, a backend.Adapter) error {
		return a.Put(ctx, e)
	}
}

func team(key string) types.Entity {
	return types.Entity{Type: types.EntityTeam, Key: key, Name: key}
}

func statusOf(st Status, name string) types.BackendDescriptor {
	for _, d := range st.Backends {
		if d.Name == name {
			return d
		}
	}
	return types.BackendDescriptor{}
}

func TestNew_RejectsEmptyAndDuplicates(t *testing.T) {
	_, err := New(nil, DefaultSettings())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = New([]backend.Adapter{newFake("A", types.KindLocalFile), newFake("A", types.KindLocalFile)}, DefaultSettings())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestWrite_UsageAboveHighWaterSwitchesWithoutMarkingUnhealthy(t *testing.T) {
	ctx := context.Background()
	c, a, b, _ := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.usage = 0.96 })

	var events []SwitchEvent
	c.OnSwitch(func(ev SwitchEvent) { events = append(events, ev) })

	require.NoError(t, c.Write(ctx, "put", putEntity(team("csk"))))

	st := c.Status()
	assert.Equal(t, "B", st.Active)
	assert.Equal(t, types.StatusHealthy, statusOf(st, "A").Status)
	assert.False(t, statusOf(st, "A").Active)
	assert.True(t, statusOf(st, "B").Active)

	assert.Zero(t, a.callCount(), "the write never started on A")
	assert.Contains(t, b.entities, "team:csk")

	require.Len(t, events, 1)
	assert.Equal(t, SwitchEvent{From: "A", To: "B", Reason: ReasonUsage, At: events[0].At}, events[0])
}

func TestWrite_AllRemotesUnreachableLandsOnFile(t *testing.T) {
	ctx := context.Background()
	c, a, b, file := setupController(t, testSettings())
	down := fmt.Errorf("%w: connection refused", types.ErrBackendUnavailable)
	a.set(func(f *fakeAdapter) { f.failWith = down })
	b.set(func(f *fakeAdapter) { f.failWith = down })

	require.NoError(t, c.Write(ctx, "put", putEntity(team("rcb"))))

	assert.Equal(t, "C", c.Status().Active)
	assert.Contains(t, file.entities, "team:rcb")
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
}

func TestCheckAll_UnreachableRemotesMoveActiveToFile(t *testing.T) {
	ctx := context.Background()
	c, a, b, file := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.health = types.StatusUnreachable })
	b.set(func(f *fakeAdapter) { f.health = types.StatusUnreachable })

	for i := 0; i < 2; i++ {
		c.CheckAll(ctx)
		assert.Equal(t, "A", c.Status().Active, "two failed checks do not fail over")
	}
	c.CheckAll(ctx)

	st := c.Status()
	assert.Equal(t, "C", st.Active)
	assert.Equal(t, types.StatusUnreachable, statusOf(st, "A").Status)
	assert.Equal(t, types.StatusUnreachable, statusOf(st, "B").Status)

	require.NoError(t, c.Write(ctx, "put", putEntity(team("kkr"))))
	assert.Contains(t, file.entities, "team:kkr")
	assert.Zero(t, a.callCount())
}

func TestWrite_AllBackendsFailReturnsOneAggregatedError(t *testing.T) {
	ctx := context.Background()
	c, a, b, file := setupController(t, testSettings())
	for _, f := range []*fakeAdapter{a, b, file} {
		f.set(func(f *fakeAdapter) { f.failWith = fmt.Errorf("%w: %s down", types.ErrBackendUnavailable, f.name) })
	}

	err := c.Write(ctx, "put", putEntity(team("srh")))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBackendUnavailable)

	var unavailable *types.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Len(t, unavailable.Attempts, 3)
	assert.Equal(t, "put", unavailable.Operation)
	for _, f := range []*fakeAdapter{a, b, file} {
		assert.Equal(t, 1, f.callCount(), "each backend is tried exactly once")
	}
}

func TestWrite_NonAvailabilityErrorDoesNotFailOver(t *testing.T) {
	ctx := context.Background()
	c, a, b, _ := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.failWith = errors.New("document too large") })

	err := c.Write(ctx, "put", putEntity(team("gt")))
	assert.EqualError(t, err, "document too large")
	assert.Equal(t, "A", c.Status().Active)
	assert.Zero(t, b.callCount())
}

func TestRead_NotFoundDoesNotFailOver(t *testing.T) {
	ctx := context.Background()
	c, _, b, _ := setupController(t, testSettings())

	err := c.Read(ctx, "get", func(ctx context.Context, a backend.Adapter) error {
		_, err := a.Get(ctx, types.EntityTeam, "missing")
		return err
	})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "A", c.Status().Active)
	assert.Zero(t, b.callCount())
}

func TestWrite_FailureThenFailbackAfterRecovery(t *testing.T) {
	ctx := context.Background()
	c, a, _, _ := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.failWith = fmt.Errorf("%w: timeout", types.ErrBackendUnavailable) })

	require.NoError(t, c.Write(ctx, "put", putEntity(team("lsg"))))
	st := c.Status()
	assert.Equal(t, "B", st.Active)
	assert.Equal(t, types.StatusDegraded, statusOf(st, "A").Status)
	assert.Equal(t, int64(1), statusOf(st, "A").ErrorCount)

	a.set(func(f *fakeAdapter) { f.failWith = nil })
	_, err := c.CheckBackend(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "B", c.Status().Active, "one success keeps A degraded")

	_, err = c.CheckBackend(ctx, "A")
	require.NoError(t, err)
	st = c.Status()
	assert.Equal(t, types.StatusHealthy, statusOf(st, "A").Status)
	assert.Equal(t, "A", st.Active)
}

func TestWrite_NoFailbackWhenDisabled(t *testing.T) {
	ctx := context.Background()
	s := testSettings()
	s.Failback = false
	c, a, _, _ := setupController(t, s)
	a.set(func(f *fakeAdapter) { f.failWith = fmt.Errorf("%w: timeout", types.ErrBackendUnavailable) })

	require.NoError(t, c.Write(ctx, "put", putEntity(team("pbks"))))
	a.set(func(f *fakeAdapter) { f.failWith = nil })
	c.CheckAll(ctx)
	c.CheckAll(ctx)

	assert.Equal(t, "B", c.Status().Active)
}

func TestWrite_AutoFailoverDisabledReturnsError(t *testing.T) {
	ctx := context.Background()
	s := testSettings()
	s.AutoFailover = false
	c, a, b, _ := setupController(t, s)
	a.set(func(f *fakeAdapter) { f.failWith = fmt.Errorf("%w: timeout", types.ErrBackendUnavailable) })

	err := c.Write(ctx, "put", putEntity(team("dc")))
	assert.ErrorIs(t, err, types.ErrBackendUnavailable)
	assert.Equal(t, "A", c.Status().Active)
	assert.Zero(t, b.callCount())
}

func TestPressureHook(t *testing.T) {
	ctx := context.Background()
	c, a, _, _ := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.usage = 0.9 })

	var fired []float64
	c.OnPressure(func(name string, usage float64) {
		assert.Equal(t, "A", name)
		fired = append(fired, usage)
	})

	require.NoError(t, c.Write(ctx, "put", putEntity(team("mi"))))
	assert.Equal(t, []float64{0.9}, fired)
	assert.Equal(t, "A", c.Status().Active, "pressure prunes before failover is forced")
}

func TestForceSwitch(t *testing.T) {
	ctx := context.Background()
	c, _, b, _ := setupController(t, testSettings())

	assert.Error(t, c.ForceSwitch(ctx, "Z"))

	require.NoError(t, c.ForceSwitch(ctx, "C"))
	assert.Equal(t, "C", c.Active().Name)

	b.set(func(f *fakeAdapter) { f.health = types.StatusUnreachable })
	for i := 0; i < 3; i++ {
		_, err := c.CheckBackend(ctx, "B")
		require.NoError(t, err)
	}
	assert.Equal(t, "C", c.Active().Name, "failback does not undo a manual switch")
	assert.ErrorIs(t, c.ForceSwitch(ctx, "B"), types.ErrBackendUnavailable)
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	unreachable := func(name string, kind types.BackendKind) *fakeAdapter {
		f := newFake(name, kind)
		f.health = types.StatusUnreachable
		return f
	}

	t.Run("fails when no remote answers and there is no file fallback", func(t *testing.T) {
		a := unreachable("A", types.KindRemoteDocument)
		b := unreachable("B", types.KindRemoteKeyValue)
		c, err := New([]backend.Adapter{a, b}, DefaultSettings())
		require.NoError(t, err)
		assert.ErrorIs(t, c.Start(ctx), types.ErrConfiguration)
	})

	t.Run("one answering remote is enough", func(t *testing.T) {
		a := unreachable("A", types.KindRemoteDocument)
		c, err := New([]backend.Adapter{a, newFake("B", types.KindRemoteKeyValue)}, DefaultSettings())
		require.NoError(t, err)
		assert.NoError(t, c.Start(ctx))
	})

	t.Run("file fallback is always enough", func(t *testing.T) {
		a := unreachable("A", types.KindRemoteDocument)
		c, err := New([]backend.Adapter{a, newFake("C", types.KindLocalFile)}, DefaultSettings())
		require.NoError(t, err)
		assert.NoError(t, c.Start(ctx))
	})
}

func TestWrite_QuotaErrorFromMockSwitches(t *testing.T) {
	ctx := context.Background()
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	primary := mocks.NewMockAdapter(mockCtrl)
	primary.EXPECT().Name().Return("A").AnyTimes()
	primary.EXPECT().Kind().Return(types.KindRemoteDocument).AnyTimes()
	primary.EXPECT().UsageEstimate(gomock.Any()).Return(0.5, nil).Times(1)
	primary.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("%w: over your space quota", types.ErrQuotaExceeded)).
		Times(1)

	secondary := newFake("B", types.KindRemoteKeyValue)
	c, err := New([]backend.Adapter{primary, secondary}, testSettings())
	require.NoError(t, err)

	var reasons []string
	c.OnSwitch(func(ev SwitchEvent) { reasons = append(reasons, ev.Reason) })

	require.NoError(t, c.Write(ctx, "put", putEntity(team("rr"))))
	assert.Equal(t, []string{ReasonQuota}, reasons)

	st := c.Status()
	assert.Equal(t, "B", st.Active)
	assert.Equal(t, 1.0, statusOf(st, "A").Usage)
}

func TestWrite_ConcurrentWritesDuringFailover(t *testing.T) {
	ctx := context.Background()
	c, a, b, _ := setupController(t, testSettings())
	a.set(func(f *fakeAdapter) { f.failWith = fmt.Errorf("%w: reset", types.ErrBackendUnavailable) })

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- c.Write(ctx, "put", putEntity(team(fmt.Sprintf("team-%d", i))))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Len(t, b.entities, 50)
	assert.Equal(t, "B", c.Status().Active)
}
