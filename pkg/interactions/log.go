package interactions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/telemetry"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 2
	flushPollPeriod  = 10 * time.Millisecond
)

// Router is the part of the failover controller the log routes through
type Router interface {
	Write(ctx context.Context, op string, fn func(ctx context.Context, a backend.Adapter) error) error
	Read(ctx context.Context, op string, fn func(ctx context.Context, a backend.Adapter) error) error
	Reachable() []backend.Adapter
}

type Stats struct {
	Recorded   int64 `json:"recorded"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
	Pruned     int64 `json:"pruned"`
	QueueDepth int   `json:"queue_depth"`
}

// PruneResult reports one prune pass over every reachable backend
type PruneResult struct {
	Removed    int            `json:"removed"`
	PerBackend map[string]int `json:"per_backend"`
	Before     time.Time      `json:"before"`
	MaxPerUser int            `json:"max_per_user"`
}

// Log records interactions asynchronously. Record never blocks the caller and
// never reports a storage failure; those only show up in Stats.
type Log struct {
	router Router
	holder *config.Holder

	queue   chan types.Interaction
	workers int
	pending atomic.Int64
	pruneCh chan struct{}
	pruneMu sync.Mutex

	recorded, dropped, failed, skipped, pruned atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now     func() time.Time
	metrics *telemetry.DatastoreMetrics
}

// New creates a log. Queue size and worker count are read once from holder.
func New(router Router, holder *config.Holder) *Log {
	cfg := holder.Snapshot().Interactions
	size, workers := cfg.QueueSize, cfg.Workers
	if size <= 0 {
		size = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Log{
		router:  router,
		holder:  holder,
		queue:   make(chan types.Interaction, size),
		workers: workers,
		pruneCh: make(chan struct{}, 1),
		now:     time.Now,
		metrics: telemetry.GetDatastoreMetrics(),
	}
}

// Start launches the writer workers and the prune loop
func (l *Log) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, l.cancel = context.WithCancel(ctx)
	log := logger.Logger(ctx).WithField("component", "interactions")
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.work(ctx)
		}()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.pruneCh:
				if _, err := l.Prune(ctx); err != nil {
					log.WithError(err).Warn("triggered prune failed")
				}
			}
		}
	}()
	log.WithField("workers", l.workers).Info("interaction log started")
}

// Stop drains the queue within ctx and stops every goroutine
func (l *Log) Stop(ctx context.Context) error {
	flushErr := l.Flush(ctx)

	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return flushErr
	}
	cancel()
	l.wg.Wait()
	return flushErr
}

// Record assigns a fresh ID and, when missing, a timestamp, then queues the
// record for writing. Any caller-supplied ID is replaced so that two Record
// calls always store two interactions. A full queue drops the record.
func (l *Log) Record(ctx context.Context, it types.Interaction) {
	if !l.holder.Snapshot().Learning.Enabled {
		l.skipped.Add(1)
		return
	}
	it.ID = uuid.NewString()
	if it.Timestamp.IsZero() {
		it.Timestamp = l.now().UTC()
	}
	if it.ChatType == "" {
		it.ChatType = types.ChatPrivate
	}

	l.pending.Add(1)
	select {
	case l.queue <- it:
		l.metrics.RecordQueueDepth(ctx, 1)
	default:
		l.pending.Add(-1)
		l.dropped.Add(1)
		l.metrics.RecordInteractionDropped(ctx)
		logger.Logger(ctx).WithField("user_id", it.UserID).Debug("interaction queue full, dropping record")
	}
}

// Flush waits until every queued interaction has been written or has failed
func (l *Log) Flush(ctx context.Context) error {
	return wait.PollUntilContextCancel(ctx, flushPollPeriod, true, func(context.Context) (bool, error) {
		return l.pending.Load() == 0, nil
	})
}

func (l *Log) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-l.queue:
			l.write(ctx, it)
		}
	}
}

func (l *Log) write(ctx context.Context, it types.Interaction) {
	defer func() {
		l.pending.Add(-1)
		l.metrics.RecordQueueDepth(ctx, -1)
	}()

	err := l.router.Write(ctx, "append", func(ctx context.Context, a backend.Adapter) error {
		return a.Append(ctx, it)
	})
	l.metrics.RecordInteraction(ctx, err)
	if err != nil {
		l.failed.Add(1)
		logger.Logger(ctx).WithFields(logrus.Fields{
			"user_id":        it.UserID,
			"interaction_id": it.ID,
		}).WithError(err).Warn("failed to record interaction")
		return
	}
	l.recorded.Add(1)
}

// Recent returns a user's interactions newest first. The active backend serves
// first; when it has fewer than limit the other reachable backends top it up,
// which covers records written before a failover. limit <= 0 returns everything.
func (l *Log) Recent(ctx context.Context, userID string, limit int) ([]types.Interaction, error) {
	var (
		served string
		found  []types.Interaction
	)
	err := l.router.Read(ctx, "recent", func(ctx context.Context, a backend.Adapter) error {
		items, err := a.Recent(ctx, userID, limit)
		if err != nil {
			return err
		}
		served, found = a.Name(), items
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(found) >= limit {
		return found[:limit], nil
	}

	for _, a := range l.router.Reachable() {
		if a.Name() == served {
			continue
		}
		items, err := a.Recent(ctx, userID, limit)
		if err != nil {
			logger.Logger(ctx).WithField("backend", a.Name()).WithError(err).Debug("skipping backend for recent top-up")
			continue
		}
		found = append(found, items...)
	}
	return merge(found, limit), nil
}

// merge sorts newest first, drops duplicate IDs and applies limit
func merge(items []types.Interaction, limit int) []types.Interaction {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	seen := make(map[string]bool, len(items))
	out := make([]types.Interaction, 0, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Policy is the prune policy of the current learning profile
func (l *Log) Policy() types.PrunePolicy {
	profile := l.holder.Snapshot().LearningProfile()
	p := types.PrunePolicy{MaxPerUser: profile.MaxPerUser}
	if profile.Retention > 0 {
		p.Before = l.now().Add(-profile.Retention)
	}
	return p
}

// Prune applies the current policy to every reachable backend concurrently.
// Backends that fail are reported in the aggregated error; the rest still count.
func (l *Log) Prune(ctx context.Context) (PruneResult, error) {
	l.pruneMu.Lock()
	defer l.pruneMu.Unlock()

	policy := l.Policy()
	adapters := l.router.Reachable()
	removed := make([]int, len(adapters))
	errs := make([]error, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		g.Go(func() error {
			n, err := a.Prune(gctx, policy)
			removed[i] = n
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", a.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := PruneResult{
		PerBackend: make(map[string]int, len(adapters)),
		Before:     policy.Before,
		MaxPerUser: policy.MaxPerUser,
	}
	for i, a := range adapters {
		result.PerBackend[a.Name()] = removed[i]
		result.Removed += removed[i]
		l.metrics.RecordPruned(ctx, a.Name(), removed[i])
	}
	l.pruned.Add(int64(result.Removed))

	logger.Logger(ctx).WithFields(logrus.Fields{
		"removed":      result.Removed,
		"max_per_user": policy.MaxPerUser,
		"before":       policy.Before,
	}).Info("interactions pruned")
	return result, utilerrors.NewAggregate(errs)
}

// TriggerPrune requests an asynchronous prune. Requests made while one is
// pending are coalesced into it.
func (l *Log) TriggerPrune() {
	select {
	case l.pruneCh <- struct{}{}:
	default:
	}
}

func (l *Log) Stats() Stats {
	return Stats{
		Recorded:   l.recorded.Load(),
		Dropped:    l.dropped.Load(),
		Failed:     l.failed.Load(),
		Skipped:    l.skipped.Load(),
		Pruned:     l.pruned.Load(),
		QueueDepth: len(l.queue),
	}
}
