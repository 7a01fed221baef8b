package scrape

import (
	"context"
	"sync"
	"time"
)

// Tier identifies the scope at which a cancellation cause is
// interpreted. Engine-tier aborts are recoverable (the waterfall moves
// to the next engine); scrape- and external-tier aborts terminate the
// scrape.
type Tier int

const (
	TierExternal Tier = iota
	TierScrape
	TierEngine
)

func (t Tier) String() string {
	switch t {
	case TierExternal:
		return "external"
	case TierScrape:
		return "scrape"
	case TierEngine:
		return "engine"
	}
	return "unknown"
}

// WrappedAbort carries the tier of the abort source together with the
// tier-specific cause.
type WrappedAbort struct {
	Tier  Tier
	Inner error
}

func (w *WrappedAbort) Error() string {
	return "aborted at " + w.Tier.String() + " tier: " + w.Inner.Error()
}

func (w *WrappedAbort) Unwrap() error { return w.Inner }

// AbortInstance is one cancellation source: a context plus the tier it
// belongs to and a factory for the error raised when it fires.
type AbortInstance struct {
	Ctx       context.Context
	Tier      Tier
	Throwable func() error
	// Deadline is set for timeout-backed instances so remaining-budget
	// queries do not rely on ctx.Deadline being meaningful.
	Deadline time.Time
}

// NewTimeoutInstance builds a timeout-backed AbortInstance. The caller
// owns the returned cancel.
func NewTimeoutInstance(parent context.Context, tier Tier, d time.Duration, throwable func() error) (AbortInstance, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return AbortInstance{
		Ctx:       ctx,
		Tier:      tier,
		Throwable: throwable,
		Deadline:  time.Now().Add(d),
	}, cancel
}

// AbortManager holds an ordered list of abort sources and answers
// "has anything fired, and at what tier". Instances are checked in
// insertion order, so callers should register the most authoritative
// source (external) first.
type AbortManager struct {
	instances []AbortInstance
}

// NewAbortManager builds a manager over the given instances.
func NewAbortManager(instances ...AbortInstance) *AbortManager {
	return &AbortManager{instances: instances}
}

// Child derives a manager that inherits all parent sources plus the
// extras, typically engine-scoped timeouts and the snipe context.
func (m *AbortManager) Child(extra ...AbortInstance) *AbortManager {
	merged := make([]AbortInstance, 0, len(m.instances)+len(extra))
	merged = append(merged, m.instances...)
	merged = append(merged, extra...)
	return &AbortManager{instances: merged}
}

// ThrowIfAborted scans the sources in order and returns a WrappedAbort
// for the first one that has fired, or nil.
func (m *AbortManager) ThrowIfAborted() error {
	for _, inst := range m.instances {
		select {
		case <-inst.Ctx.Done():
			return &WrappedAbort{Tier: inst.Tier, Inner: inst.throwableOrCtxErr()}
		default:
		}
	}
	return nil
}

func (inst AbortInstance) throwableOrCtxErr() error {
	if inst.Throwable != nil {
		return inst.Throwable()
	}
	return inst.Ctx.Err()
}

// AsContext returns a context that is cancelled as soon as any source
// fires, and a lookup for the originating abort. The returned stop must
// be called to release the watcher goroutines.
func (m *AbortManager) AsContext(parent context.Context) (ctx context.Context, cause func() error, stop func()) {
	merged, cancel := context.WithCancel(parent)

	var once sync.Once
	var mu sync.Mutex
	var firedErr error

	done := make(chan struct{})
	for _, inst := range m.instances {
		inst := inst
		go func() {
			select {
			case <-inst.Ctx.Done():
				once.Do(func() {
					mu.Lock()
					firedErr = &WrappedAbort{Tier: inst.Tier, Inner: inst.throwableOrCtxErr()}
					mu.Unlock()
					cancel()
				})
			case <-done:
			}
		}()
	}

	cause = func() error {
		mu.Lock()
		defer mu.Unlock()
		return firedErr
	}
	stop = func() {
		close(done)
		cancel()
	}
	return merged, cause, stop
}

// ScrapeTimeout reports the time remaining until the nearest scrape- or
// external-tier deadline, and whether one exists.
func (m *AbortManager) ScrapeTimeout() (time.Duration, bool) {
	return m.nearestDeadline(func(t Tier) bool { return t == TierScrape || t == TierExternal })
}

// EngineNearestTimeout reports the time remaining until the nearest
// engine-tier deadline, and whether one exists.
func (m *AbortManager) EngineNearestTimeout() (time.Duration, bool) {
	return m.nearestDeadline(func(t Tier) bool { return t == TierEngine })
}

func (m *AbortManager) nearestDeadline(match func(Tier) bool) (time.Duration, bool) {
	var nearest time.Time
	found := false
	for _, inst := range m.instances {
		if !match(inst.Tier) || inst.Deadline.IsZero() {
			continue
		}
		if !found || inst.Deadline.Before(nearest) {
			nearest = inst.Deadline
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return time.Until(nearest), true
}

// Recoverable reports whether the error is an engine-tier abort, which
// the orchestrator absorbs by moving to the next engine.
func Recoverable(err error) bool {
	if wa, ok := err.(*WrappedAbort); ok {
		return wa.Tier == TierEngine
	}
	return false
}
