package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/telemetry"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	ReasonUnreachable = "unreachable"
	ReasonUsage       = "usage"
	ReasonFailure     = "operation-failure"
	ReasonQuota       = "quota"
	ReasonManual      = "manual"
	ReasonFailback    = "failback"
)

// SwitchEvent describes one change of the active backend
type SwitchEvent struct {
	From   string
	To     string
	Reason string
	At     time.Time
}

// Status is a consistent snapshot of every backend descriptor
type Status struct {
	Active   string                    `json:"active"`
	Backends []types.BackendDescriptor `json:"backends"`
}

type member struct {
	adapter        backend.Adapter
	desc           types.BackendDescriptor
	usageCheckedAt time.Time
}

// Controller owns active-backend selection. mu guards every descriptor and the
// active index; it is never held across adapter I/O.
type Controller struct {
	mu       sync.Mutex
	members  []*member
	active   int
	fallback int
	settings Settings
	// pinned suspends failback after an operator switch until the next automatic one
	pinned bool

	onSwitch   []func(SwitchEvent)
	onPressure func(name string, usage float64)

	now     func() time.Time
	metrics *telemetry.DatastoreMetrics
}

// New creates a controller over adapters in priority order. The last local-file
// adapter is the fallback that is used when nothing else qualifies.
func New(adapters []backend.Adapter, settings Settings) (*Controller, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no backends configured", types.ErrConfiguration)
	}

	c := &Controller{
		fallback: -1,
		settings: settings.withDefaults(),
		now:      time.Now,
		metrics:  telemetry.GetDatastoreMetrics(),
	}
	seen := make(map[string]bool)
	for i, a := range adapters {
		if seen[a.Name()] {
			return nil, fmt.Errorf("%w: duplicate backend name %s", types.ErrConfiguration, a.Name())
		}
		seen[a.Name()] = true
		c.members = append(c.members, &member{
			adapter: a,
			desc: types.BackendDescriptor{
				Name:     a.Name(),
				Kind:     a.Kind(),
				Priority: i,
				Status:   types.StatusHealthy,
			},
		})
		if a.Kind() == types.KindLocalFile {
			c.fallback = i
		}
	}
	c.members[0].desc.Active = true
	return c, nil
}

// OnSwitch registers a hook called after every active backend change
func (c *Controller) OnSwitch(fn func(SwitchEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSwitch = append(c.onSwitch, fn)
}

// OnPressure registers the hook fired when the active backend crosses the prune threshold.
// The hook must not block.
func (c *Controller) OnPressure(fn func(name string, usage float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPressure = fn
}

// UpdateSettings swaps thresholds, e.g. after an admin config update
func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	c.settings = s.withDefaults()
	ev := c.reevaluateLocked()
	c.mu.Unlock()
	c.emit(context.Background(), ev)
}

// Start checks every backend once. With no backend answering that first check
// and no file fallback configured the process cannot serve writes and Start
// fails. The decision uses the check outcomes, not the derived state, since a
// single failed check only degrades a backend.
func (c *Controller) Start(ctx context.Context) error {
	outcomes, _ := c.checkAll(ctx)

	c.mu.Lock()
	fallback := c.fallback
	c.mu.Unlock()
	if fallback >= 0 {
		return nil
	}
	for _, outcome := range outcomes {
		if outcome != types.StatusUnreachable {
			return nil
		}
	}
	return fmt.Errorf("%w: no backend is reachable and no local file fallback is configured", types.ErrConfiguration)
}

// CheckAll runs one health check against every backend concurrently and
// returns the resulting state of each
func (c *Controller) CheckAll(ctx context.Context) map[string]types.HealthStatus {
	_, states := c.checkAll(ctx)
	return states
}

func (c *Controller) checkAll(ctx context.Context) (outcomes, states map[string]types.HealthStatus) {
	names := c.names()
	raw := make([]types.HealthStatus, len(names))
	results := make([]types.HealthStatus, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			outcome, status, err := c.check(gctx, name)
			raw[i], results[i] = outcome, status
			return err
		})
	}
	_ = g.Wait()

	outcomes = make(map[string]types.HealthStatus, len(names))
	states = make(map[string]types.HealthStatus, len(names))
	for i, name := range names {
		outcomes[name] = raw[i]
		states[name] = results[i]
	}
	return outcomes, states
}

// CheckBackend runs one health check and usage estimate against a backend and
// applies the outcome to its state. It returns the resulting state.
func (c *Controller) CheckBackend(ctx context.Context, name string) (types.HealthStatus, error) {
	_, status, err := c.check(ctx, name)
	return status, err
}

// check returns the raw check outcome alongside the state it led to
func (c *Controller) check(ctx context.Context, name string) (types.HealthStatus, types.HealthStatus, error) {
	c.mu.Lock()
	m, ok := c.lookupLocked(name)
	settings := c.settings
	c.mu.Unlock()
	if !ok {
		return "", "", fmt.Errorf("%w: unknown backend %q", types.ErrNotFound, name)
	}

	outcome := m.adapter.HealthCheck(ctx)

	usage, usageErr := -1.0, error(nil)
	if outcome != types.StatusUnreachable {
		uctx, cancel := context.WithTimeout(ctx, settings.OperationTimeout)
		usage, usageErr = m.adapter.UsageEstimate(uctx)
		cancel()
	}

	c.mu.Lock()
	applyCheck(&m.desc, outcome, c.settings)
	m.desc.LastChecked = c.now()
	if usageErr == nil && usage >= 0 {
		m.desc.Usage = usage
		m.usageCheckedAt = m.desc.LastChecked
	}
	status := m.desc.Status
	ev := c.reevaluateLocked()
	pressure := c.pressureLocked()
	c.mu.Unlock()

	log := logger.Logger(ctx).WithFields(logrus.Fields{"backend": name, "outcome": outcome, "status": status})
	if usageErr != nil {
		log.WithError(usageErr).Debug("usage estimate failed")
	}
	log.Debug("health check completed")

	c.emit(ctx, ev)
	pressure()
	return outcome, status, nil
}

// Write runs fn against the active backend. Availability and quota failures
// move traffic to the next candidate and retry there until one succeeds or
// every backend has failed, which yields a single *types.UnavailableError.
func (c *Controller) Write(ctx context.Context, op string, fn func(ctx context.Context, a backend.Adapter) error) error {
	c.refreshActiveUsage(ctx)
	return c.run(ctx, op, fn)
}

// Read routes fn like Write. types.ErrNotFound is returned as is.
func (c *Controller) Read(ctx context.Context, op string, fn func(ctx context.Context, a backend.Adapter) error) error {
	return c.run(ctx, op, fn)
}

func (c *Controller) run(ctx context.Context, op string, fn func(ctx context.Context, a backend.Adapter) error) error {
	attempts := make(map[string]error)

	c.mu.Lock()
	idx := c.active
	c.mu.Unlock()

	for idx >= 0 {
		m := c.members[idx]
		c.mu.Lock()
		timeout := c.settings.OperationTimeout
		c.mu.Unlock()

		opCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := fn(opCtx, m.adapter)
		cancel()
		c.metrics.RecordOperation(ctx, m.desc.Name, op, time.Since(start), err)

		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
		}
		if !types.IsFailoverError(err) || ctx.Err() != nil {
			return err
		}

		attempts[m.desc.Name] = err
		var ev *SwitchEvent
		idx, ev = c.operationFailed(idx, err, attempts)
		c.emit(ctx, ev)

		logger.Logger(ctx).WithFields(logrus.Fields{
			"backend":   m.desc.Name,
			"operation": op,
		}).WithError(err).Warn("backend operation failed")
	}

	c.mu.Lock()
	for _, m := range c.members {
		if _, tried := attempts[m.desc.Name]; !tried {
			attempts[m.desc.Name] = fmt.Errorf("%w: skipped while %s", types.ErrBackendUnavailable, m.desc.Status)
		}
	}
	c.mu.Unlock()
	return &types.UnavailableError{Operation: op, Attempts: attempts}
}

// operationFailed records the failure and picks the backend to retry on, or -1
func (c *Controller) operationFailed(idx int, err error, attempts map[string]error) (int, *SwitchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.members[idx]
	applyFailure(&m.desc, err.Error(), c.settings)
	reason := ReasonFailure
	if errors.Is(err, types.ErrQuotaExceeded) {
		m.desc.Usage = 1
		m.usageCheckedAt = c.now()
		reason = ReasonQuota
	}
	if !c.settings.AutoFailover {
		return -1, nil
	}

	next := c.candidateLocked(func(i int) bool {
		_, tried := attempts[c.members[i].desc.Name]
		return tried
	})
	if next < 0 {
		return -1, nil
	}
	if c.active == idx {
		return next, c.switchLocked(next, reason)
	}
	return next, nil
}

// refreshActiveUsage re-reads the active backend's usage when the cached value is stale
func (c *Controller) refreshActiveUsage(ctx context.Context) {
	c.mu.Lock()
	m := c.members[c.active]
	ttl := c.settings.UsageCacheTTL
	timeout := c.settings.OperationTimeout
	stale := ttl <= 0 || c.now().Sub(m.usageCheckedAt) >= ttl
	c.mu.Unlock()
	if !stale {
		return
	}

	uctx, cancel := context.WithTimeout(ctx, timeout)
	usage, err := m.adapter.UsageEstimate(uctx)
	cancel()
	if err != nil {
		logger.Logger(ctx).WithField("backend", m.desc.Name).WithError(err).Debug("usage estimate failed")
		return
	}

	c.mu.Lock()
	m.desc.Usage = usage
	m.usageCheckedAt = c.now()
	ev := c.reevaluateLocked()
	pressure := c.pressureLocked()
	c.mu.Unlock()

	c.emit(ctx, ev)
	pressure()
}

// reevaluateLocked moves the active pointer when the active backend is
// unreachable or over the high-water mark, or fails back to a recovered
// higher-priority backend.
func (c *Controller) reevaluateLocked() *SwitchEvent {
	cur := c.members[c.active]

	reason := ""
	switch {
	case cur.desc.Status == types.StatusUnreachable:
		reason = ReasonUnreachable
	case cur.desc.Usage > c.settings.HighWaterMark:
		reason = ReasonUsage
	}

	if reason != "" {
		if !c.settings.AutoFailover {
			return nil
		}
		next := c.candidateLocked(func(i int) bool { return i == c.active })
		if next < 0 || next == c.active {
			return nil
		}
		return c.switchLocked(next, reason)
	}

	if !c.settings.Failback || c.pinned {
		return nil
	}
	for i := 0; i < c.active; i++ {
		if c.members[i].desc.Status == types.StatusHealthy && c.eligibleLocked(i) {
			return c.switchLocked(i, ReasonFailback)
		}
	}
	return nil
}

func (c *Controller) eligibleLocked(i int) bool {
	d := c.members[i].desc
	return d.Status != types.StatusUnreachable && d.Usage <= c.settings.HighWaterMark
}

// candidateLocked returns the first Healthy eligible backend in priority order,
// else the first Degraded one, else the file fallback, else -1.
func (c *Controller) candidateLocked(exclude func(i int) bool) int {
	degraded := -1
	for i, m := range c.members {
		if exclude(i) || !c.eligibleLocked(i) {
			continue
		}
		if m.desc.Status == types.StatusHealthy {
			return i
		}
		if degraded < 0 {
			degraded = i
		}
	}
	if degraded >= 0 {
		return degraded
	}
	if c.fallback >= 0 && !exclude(c.fallback) {
		return c.fallback
	}
	return -1
}

func (c *Controller) switchLocked(next int, reason string) *SwitchEvent {
	prev := c.active
	if prev == next {
		return nil
	}
	c.members[prev].desc.Active = false
	c.members[next].desc.Active = true
	c.active = next
	c.pinned = reason == ReasonManual
	return &SwitchEvent{
		From:   c.members[prev].desc.Name,
		To:     c.members[next].desc.Name,
		Reason: reason,
		At:     c.now(),
	}
}

// pressureLocked returns a call that fires the pressure hook if the active
// backend is at or above the prune threshold
func (c *Controller) pressureLocked() func() {
	m := c.members[c.active]
	hook := c.onPressure
	if hook == nil || c.settings.PruneThreshold <= 0 || m.desc.Usage < c.settings.PruneThreshold {
		return func() {}
	}
	name, usage := m.desc.Name, m.desc.Usage
	return func() { hook(name, usage) }
}

func (c *Controller) emit(ctx context.Context, ev *SwitchEvent) {
	if ev == nil {
		return
	}
	logger.Logger(ctx).WithFields(logrus.Fields{
		"from":   ev.From,
		"to":     ev.To,
		"reason": ev.Reason,
	}).Warn("active backend switched")
	c.metrics.RecordFailover(ctx, ev.To, ev.Reason)

	c.mu.Lock()
	hooks := append([]func(SwitchEvent){}, c.onSwitch...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(*ev)
	}
}

// ForceSwitch makes name the active backend. Unreachable backends are refused
// except the file fallback.
func (c *Controller) ForceSwitch(ctx context.Context, name string) error {
	c.mu.Lock()
	idx := -1
	for i, m := range c.members {
		if m.desc.Name == name {
			idx = i
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: unknown backend %q", types.ErrNotFound, name)
	}
	if c.members[idx].desc.Status == types.StatusUnreachable && idx != c.fallback {
		c.mu.Unlock()
		return fmt.Errorf("%w: backend %s is unreachable", types.ErrBackendUnavailable, name)
	}
	ev := c.switchLocked(idx, ReasonManual)
	c.mu.Unlock()

	c.emit(ctx, ev)
	return nil
}

// Active returns the descriptor of the active backend
func (c *Controller) Active() types.BackendDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members[c.active].desc
}

// Status returns every descriptor in priority order
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Status{
		Active:   c.members[c.active].desc.Name,
		Backends: make([]types.BackendDescriptor, 0, len(c.members)),
	}
	for _, m := range c.members {
		out.Backends = append(out.Backends, m.desc)
	}
	return out
}

// Adapters returns every adapter in priority order
func (c *Controller) Adapters() []backend.Adapter {
	out := make([]backend.Adapter, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m.adapter)
	}
	return out
}

// Reachable returns the adapters not currently Unreachable, plus the fallback
func (c *Controller) Reachable() []backend.Adapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []backend.Adapter
	for i, m := range c.members {
		if m.desc.Status != types.StatusUnreachable || i == c.fallback {
			out = append(out, m.adapter)
		}
	}
	return out
}

// UsageObservations feeds the backend usage gauge
func (c *Controller) UsageObservations(_ context.Context) []telemetry.Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]telemetry.Observation, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, telemetry.Observation{
			Value: m.desc.Usage,
			Attrs: []attribute.KeyValue{
				telemetry.WithBackend(m.desc.Name),
				telemetry.WithBackendKind(string(m.desc.Kind)),
			},
		})
	}
	return out
}

// Close closes every adapter
func (c *Controller) Close(ctx context.Context) error {
	var errs []error
	for _, m := range c.members {
		if err := m.adapter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.desc.Name, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (c *Controller) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m.desc.Name)
	}
	return out
}

func (c *Controller) lookupLocked(name string) (*member, bool) {
	for _, m := range c.members {
		if m.desc.Name == name {
			return m, true
		}
	}
	return nil, false
}
