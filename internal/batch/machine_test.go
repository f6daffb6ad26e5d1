package batch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"labelflow/internal/batch"
	"labelflow/internal/config"
	"labelflow/internal/lineage"
	"labelflow/internal/logging"
	"labelflow/internal/provider"
	"labelflow/internal/services"
	"labelflow/internal/testsupport"
)

// fakeAdapter satisfies provider.Adapter without network access. Paths
// listed in failPaths return errors; paths in panicPaths panic.
type fakeAdapter struct {
	name       string
	failPaths  map[string]bool
	panicPaths map[string]bool
	calls      []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) ProcessImage(_ context.Context, req provider.Request) (*provider.Result, error) {
	f.calls = append(f.calls, req.ImagePath)
	if f.panicPaths[req.ImagePath] {
		panic("adapter blew up")
	}
	if f.failPaths[req.ImagePath] {
		return nil, errors.New("model unavailable")
	}
	raw := fmt.Sprintf(
		`{"country":"Australia","locality":"Cairns","collector":"%s","date":"N/A","habitat":"N/A"}`,
		f.name,
	)
	return &provider.Result{
		RawContent: raw,
		Model:      "demo-model",
		Costs:      lineage.CostData{InputUnits: 100, OutputUnits: 10, InputCost: 0.001},
	}, nil
}

func (f *fakeAdapter) HealthCheck(context.Context) error { return nil }

type fixture struct {
	cfg     *config.Config
	store   *batch.Store
	manager *lineage.Manager
	adapter *fakeAdapter
	machine *batch.Machine
}

func newFixture(t *testing.T, adapters ...provider.Adapter) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := testsupport.MustNewManager(t, cfg)

	var primary *fakeAdapter
	if len(adapters) == 0 {
		primary = &fakeAdapter{name: "gemini"}
		adapters = []provider.Adapter{primary}
	} else if fa, ok := adapters[0].(*fakeAdapter); ok {
		primary = fa
	}

	machine, err := batch.NewMachine(store, manager, adapters, testsupport.SamplePrompt, logging.NewNop())
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	return &fixture{cfg: cfg, store: store, manager: manager, adapter: primary, machine: machine}
}

func refsOf(items []*batch.Item) []string {
	refs := make([]string, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.ImageRef)
	}
	return refs
}

func TestRunDrainsQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paths := []string{
		testsupport.WriteImage(t, f.cfg, "a.jpg"),
		testsupport.WriteImage(t, f.cfg, "b.jpg"),
		testsupport.WriteImage(t, f.cfg, "c.jpg"),
	}
	testsupport.AddItems(t, f.store, paths...)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Paused || snapshot.Running {
		t.Fatalf("unexpected flags: %+v", snapshot)
	}
	if len(snapshot.Processed) != 3 || len(snapshot.ToProcess) != 0 || len(snapshot.Failed) != 0 {
		t.Fatalf("unexpected snapshot: processed=%v failed=%v pending=%v",
			refsOf(snapshot.Processed), refsOf(snapshot.Failed), refsOf(snapshot.ToProcess))
	}
	// Items were processed in insertion order.
	if len(f.adapter.calls) != 3 || f.adapter.calls[0] != paths[0] || f.adapter.calls[2] != paths[2] {
		t.Fatalf("unexpected call order: %v", f.adapter.calls)
	}

	// Every processed item has a head version authored by the adapter.
	head, err := f.manager.Head(ctx, snapshot.Processed[0].ImageRef)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Generation.CreatedBy != "gemini" || !head.Generation.IsAIGenerated {
		t.Fatalf("unexpected head generation: %+v", head.Generation)
	}
	if head.Content["country"].Value != "Australia" {
		t.Fatalf("unexpected head content: %+v", head.Content)
	}
}

func TestFailurePausesRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pathA := testsupport.WriteImage(t, f.cfg, "a.jpg")
	pathB := testsupport.WriteImage(t, f.cfg, "b.jpg")
	pathC := testsupport.WriteImage(t, f.cfg, "c.jpg")
	f.adapter.failPaths = map[string]bool{pathB: true}
	testsupport.AddItems(t, f.store, pathA, pathB, pathC)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snapshot.Paused {
		t.Fatal("expected machine to pause after failure")
	}
	if len(snapshot.Processed) != 1 || len(snapshot.Failed) != 1 || len(snapshot.ToProcess) != 1 {
		t.Fatalf("unexpected snapshot: processed=%v failed=%v pending=%v",
			refsOf(snapshot.Processed), refsOf(snapshot.Failed), refsOf(snapshot.ToProcess))
	}
	if snapshot.Failed[0].ImagePath != pathB {
		t.Fatalf("failed item = %q, want %q", snapshot.Failed[0].ImagePath, pathB)
	}
	if !strings.Contains(snapshot.Failed[0].ErrorMessage, "model unavailable") {
		t.Fatalf("error message = %q", snapshot.Failed[0].ErrorMessage)
	}
}

func TestResumeSkipsFailedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pathB := testsupport.WriteImage(t, f.cfg, "b.jpg")
	f.adapter.failPaths = map[string]bool{pathB: true}
	testsupport.AddItems(t, f.store,
		testsupport.WriteImage(t, f.cfg, "a.jpg"),
		pathB,
		testsupport.WriteImage(t, f.cfg, "c.jpg"),
	)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := f.machine.Resume(ctx, false); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.Processed) != 2 || len(snapshot.Failed) != 1 || len(snapshot.ToProcess) != 0 {
		t.Fatalf("unexpected snapshot: processed=%v failed=%v pending=%v",
			refsOf(snapshot.Processed), refsOf(snapshot.Failed), refsOf(snapshot.ToProcess))
	}
}

func TestResumeRetryFailedRequeues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pathB := testsupport.WriteImage(t, f.cfg, "b.jpg")
	f.adapter.failPaths = map[string]bool{pathB: true}
	testsupport.AddItems(t, f.store,
		testsupport.WriteImage(t, f.cfg, "a.jpg"),
		pathB,
		testsupport.WriteImage(t, f.cfg, "c.jpg"),
	)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The transient condition clears before the operator retries.
	f.adapter.failPaths = nil
	if err := f.machine.Resume(ctx, true); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.Processed) != 3 || len(snapshot.Failed) != 0 || len(snapshot.ToProcess) != 0 {
		t.Fatalf("unexpected snapshot: processed=%v failed=%v pending=%v",
			refsOf(snapshot.Processed), refsOf(snapshot.Failed), refsOf(snapshot.ToProcess))
	}
}

func TestAdapterPanicRecordedAsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := testsupport.WriteImage(t, f.cfg, "a.jpg")
	f.adapter.panicPaths = map[string]bool{path: true}
	testsupport.AddItems(t, f.store, path)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.Failed) != 1 {
		t.Fatalf("expected one failed item, got %v", refsOf(snapshot.Failed))
	}
	if !strings.Contains(snapshot.Failed[0].ErrorMessage, "panic") {
		t.Fatalf("error message = %q", snapshot.Failed[0].ErrorMessage)
	}
	if !snapshot.Paused {
		t.Fatal("expected machine to pause after panic")
	}
}

func TestMultipleAdaptersChainVersions(t *testing.T) {
	first := &fakeAdapter{name: "gemini"}
	second := &fakeAdapter{name: "claude"}
	f := newFixture(t, first, second)
	ctx := context.Background()

	testsupport.AddItems(t, f.store, testsupport.WriteImage(t, f.cfg, "a.jpg"))
	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.Processed) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	history, err := f.manager.History(ctx, snapshot.Processed[0].ImageRef)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("chain length = %d, want 2", len(history))
	}
	if history[0].Generation.CreatedBy != "gemini" || history[1].Generation.CreatedBy != "claude" {
		t.Fatalf("unexpected creators: %q, %q",
			history[0].Generation.CreatedBy, history[1].Generation.CreatedBy)
	}
	if len(history[1].Comparisons) != 1 {
		t.Fatalf("second version should compare to its predecessor: %+v", history[1].Comparisons)
	}
}

func TestRunRejectedWhilePaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := testsupport.WriteImage(t, f.cfg, "a.jpg")
	f.adapter.failPaths = map[string]bool{path: true}
	testsupport.AddItems(t, f.store, path)

	if err := f.machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := f.machine.Run(ctx); err == nil {
		t.Fatal("expected Run to refuse while paused")
	}
}

func TestCancelDiscardsRemainingWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paths := []string{
		testsupport.WriteImage(t, f.cfg, "a.jpg"),
		testsupport.WriteImage(t, f.cfg, "b.jpg"),
		testsupport.WriteImage(t, f.cfg, "c.jpg"),
		testsupport.WriteImage(t, f.cfg, "d.jpg"),
	}
	items := testsupport.AddItems(t, f.store, paths...)

	items[0].SetProcessed()
	if err := f.store.Update(ctx, items[0]); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	items[1].SetFailed("model unavailable")
	if err := f.store.Update(ctx, items[1]); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := f.machine.Cancel(ctx); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	snapshot, err := f.machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.ToProcess) != 0 || len(snapshot.InProcess) != 0 {
		t.Fatalf("cancel must discard remaining work: to_process=%d in_process=%d",
			len(snapshot.ToProcess), len(snapshot.InProcess))
	}
	if len(snapshot.Processed) != 1 || len(snapshot.Failed) != 1 {
		t.Fatalf("cancel must keep the final record: %+v", snapshot)
	}
}

func TestCancelRequestDiscardsQueuedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := testsupport.MustNewManager(t, cfg)
	adapter := &fakeAdapter{name: "gemini"}

	checks := 0
	machine, err := batch.NewMachine(store, manager, []provider.Adapter{adapter}, testsupport.SamplePrompt, logging.NewNop(),
		batch.WithCancelCheck(func() bool {
			checks++
			return checks > 1
		}),
	)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}

	ctx := context.Background()
	paths := []string{
		testsupport.WriteImage(t, cfg, "a.jpg"),
		testsupport.WriteImage(t, cfg, "b.jpg"),
		testsupport.WriteImage(t, cfg, "c.jpg"),
	}
	testsupport.AddItems(t, store, paths...)

	if err := machine.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snapshot, err := machine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot.Processed) != 1 {
		t.Fatalf("expected the in-flight item to finish, got %d processed", len(snapshot.Processed))
	}
	if len(snapshot.ToProcess) != 0 || len(snapshot.InProcess) != 0 {
		t.Fatalf("cancel request must discard queued items: %+v", snapshot)
	}
}

func TestRunRetriesQueueReadErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := testsupport.MustNewManager(t, cfg)
	adapter := &fakeAdapter{name: "gemini"}

	checks := 0
	machine, err := batch.NewMachine(store, manager, []provider.Adapter{adapter}, testsupport.SamplePrompt, logging.NewNop(),
		batch.WithErrorRetry(time.Millisecond),
		batch.WithCancelCheck(func() bool {
			checks++
			if checks == 1 {
				store.Close()
			}
			return false
		}),
	)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}

	err = machine.Run(context.Background())
	if err == nil || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error after retries, got %v", err)
	}
	if checks != 3 {
		t.Fatalf("expected 3 queue reads before giving up, got %d", checks)
	}
}
