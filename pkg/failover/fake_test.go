package failover

import (
	"context"
	"sync"

	"github.com/xzinc/IPL/pkg/types"
)

// fakeAdapter is a scriptable in-memory backend
type fakeAdapter struct {
	mu           sync.Mutex
	name         string
	kind         types.BackendKind
	health       types.HealthStatus
	usage        float64
	failWith     error
	entities     map[string]types.Entity
	interactions []types.Interaction
	calls        int
}

func newFake(name string, kind types.BackendKind) *fakeAdapter {
	return &fakeAdapter{
		name:     name,
		kind:     kind,
		health:   types.StatusHealthy,
		entities: make(map[string]types.Entity),
	}
}

func (f *fakeAdapter) set(fn func(f *fakeAdapter)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) Name() string            { return f.name }
func (f *fakeAdapter) Kind() types.BackendKind { return f.kind }

func (f *fakeAdapter) Get(_ context.Context, t types.EntityType, key string) (types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return types.Entity{}, f.failWith
	}
	e, ok := f.entities[types.EntityID(t, key)]
	if !ok {
		return types.Entity{}, types.ErrNotFound
	}
	return e, nil
}

func (f *fakeAdapter) Put(_ context.Context, e types.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return f.failWith
	}
	f.entities[e.ID()] = e
	return nil
}

func (f *fakeAdapter) Append(_ context.Context, it types.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return f.failWith
	}
	f.interactions = append(f.interactions, it)
	return nil
}

func (f *fakeAdapter) Recent(_ context.Context, userID string, limit int) ([]types.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Interaction
	for i := len(f.interactions) - 1; i >= 0; i-- {
		if f.interactions[i].UserID == userID {
			out = append(out, f.interactions[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAdapter) Prune(_ context.Context, _ types.PrunePolicy) (int, error) {
	return 0, nil
}

func (f *fakeAdapter) HealthCheck(_ context.Context) types.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

func (f *fakeAdapter) UsageEstimate(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, nil
}

func (f *fakeAdapter) Close(_ context.Context) error { return nil }
