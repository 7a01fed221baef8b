package scrape

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAbortManager_ThrowIfAbortedReportsTier(t *testing.T) {
	extCtx, extCancel := context.WithCancel(context.Background())
	defer extCancel()
	engCtx, engCancel := context.WithCancel(context.Background())

	m := NewAbortManager(
		AbortInstance{Ctx: extCtx, Tier: TierExternal},
		AbortInstance{Ctx: engCtx, Tier: TierEngine, Throwable: func() error { return &EngineSnipedError{} }},
	)

	if err := m.ThrowIfAborted(); err != nil {
		t.Fatalf("nothing aborted yet, got %v", err)
	}

	engCancel()
	err := m.ThrowIfAborted()
	wa := &WrappedAbort{}
	if !errors.As(err, &wa) {
		t.Fatalf("expected WrappedAbort, got %v", err)
	}
	if wa.Tier != TierEngine {
		t.Fatalf("tier = %v, want engine", wa.Tier)
	}
	var sniped *EngineSnipedError
	if !errors.As(wa.Inner, &sniped) {
		t.Fatalf("inner = %v, want EngineSnipedError", wa.Inner)
	}
}

func TestAbortManager_ExternalWinsOverEngineByOrder(t *testing.T) {
	extCtx, extCancel := context.WithCancel(context.Background())
	engCtx, engCancel := context.WithCancel(context.Background())
	extCancel()
	engCancel()

	m := NewAbortManager(
		AbortInstance{Ctx: extCtx, Tier: TierExternal},
		AbortInstance{Ctx: engCtx, Tier: TierEngine},
	)

	wa := &WrappedAbort{}
	if err := m.ThrowIfAborted(); !errors.As(err, &wa) || wa.Tier != TierExternal {
		t.Fatalf("expected external-tier abort to win, got %v", err)
	}
}

func TestAbortManager_AsContextFiresWithCause(t *testing.T) {
	scrCtx, scrCancel := context.WithCancel(context.Background())
	m := NewAbortManager(AbortInstance{
		Ctx:       scrCtx,
		Tier:      TierScrape,
		Throwable: func() error { return &ScrapeTimeoutError{} },
	})

	ctx, cause, stop := m.AsContext(context.Background())
	defer stop()

	scrCancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("merged context never fired")
	}

	// The watcher records the cause concurrently with cancellation.
	deadline := time.Now().Add(time.Second)
	for cause() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	wa := &WrappedAbort{}
	if err := cause(); !errors.As(err, &wa) || wa.Tier != TierScrape {
		t.Fatalf("cause = %v, want scrape-tier WrappedAbort", err)
	}
}

func TestAbortManager_ChildMergesInstances(t *testing.T) {
	extCtx := context.Background()
	parent := NewAbortManager(AbortInstance{Ctx: extCtx, Tier: TierExternal})

	engInst, cancel := NewTimeoutInstance(context.Background(), TierEngine, 50*time.Millisecond, func() error {
		return &EngineSnipedError{}
	})
	defer cancel()

	child := parent.Child(engInst)
	if _, ok := child.EngineNearestTimeout(); !ok {
		t.Fatalf("child should expose engine deadline")
	}
	if _, ok := parent.EngineNearestTimeout(); ok {
		t.Fatalf("parent must not see the child's engine deadline")
	}

	time.Sleep(80 * time.Millisecond)
	if err := child.ThrowIfAborted(); !Recoverable(err) {
		t.Fatalf("engine-tier timeout should be recoverable, got %v", err)
	}
	if err := parent.ThrowIfAborted(); err != nil {
		t.Fatalf("parent should be unaffected, got %v", err)
	}
}

func TestScrapeTimeout_RemainingBudget(t *testing.T) {
	inst, cancel := NewTimeoutInstance(context.Background(), TierScrape, 500*time.Millisecond, func() error {
		return &ScrapeTimeoutError{}
	})
	defer cancel()

	m := NewAbortManager(inst)
	remaining, ok := m.ScrapeTimeout()
	if !ok {
		t.Fatalf("expected a scrape deadline")
	}
	if remaining <= 0 || remaining > 500*time.Millisecond {
		t.Fatalf("remaining = %v, want (0, 500ms]", remaining)
	}
}
