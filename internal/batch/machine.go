package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"labelflow/internal/lineage"
	"labelflow/internal/logging"
	"labelflow/internal/provider"
	"labelflow/internal/services"
)

const (
	defaultStaleReset   = 30 * time.Minute
	defaultErrorRetry   = 10 * time.Second
	maxQueueReadRetries = 3
)

// Machine drives the batch through its lifecycle. Items are processed
// strictly one at a time; every configured adapter appends its own version
// to the subject's lineage in invocation order. The first failure records
// the error on the item and pauses the run.
type Machine struct {
	store    *Store
	manager  *lineage.Manager
	adapters []provider.Adapter
	prompt   string
	logger   *slog.Logger

	staleReset  time.Duration
	errorRetry  time.Duration
	cancelCheck func() bool

	mu      sync.Mutex
	running bool
	paused  bool
	runID   string
	cancel  context.CancelFunc
}

// Snapshot captures machine and batch state at a point in time.
type Snapshot struct {
	Running   bool
	Paused    bool
	RunID     string
	ToProcess []*Item
	InProcess []*Item
	Processed []*Item
	Failed    []*Item
}

// MachineOption customizes machine construction.
type MachineOption func(*Machine)

// WithStaleReset overrides how old an in-flight marker must be before an
// interrupted item is returned to the queue at run start.
func WithStaleReset(age time.Duration) MachineOption {
	return func(m *Machine) {
		if age > 0 {
			m.staleReset = age
		}
	}
}

// WithErrorRetry overrides the delay before the machine re-reads the queue
// after a store error.
func WithErrorRetry(delay time.Duration) MachineOption {
	return func(m *Machine) {
		if delay > 0 {
			m.errorRetry = delay
		}
	}
}

// WithCancelCheck installs a predicate polled between items. When it returns
// true the run stops after the current item and the remaining queued work is
// discarded. It lets a separate process request cancellation of a run it
// cannot signal directly.
func WithCancelCheck(check func() bool) MachineOption {
	return func(m *Machine) {
		m.cancelCheck = check
	}
}

// NewMachine constructs a batch machine.
func NewMachine(store *Store, manager *lineage.Manager, adapters []provider.Adapter, prompt string, logger *slog.Logger, opts ...MachineOption) (*Machine, error) {
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new", "store required", nil)
	}
	if manager == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new", "lineage manager required", nil)
	}
	if len(adapters) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new", "at least one provider adapter required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	machine := &Machine{
		store:      store,
		manager:    manager,
		adapters:   adapters,
		prompt:     prompt,
		logger:     logging.NewComponentLogger(logger, "batch"),
		staleReset: defaultStaleReset,
		errorRetry: defaultErrorRetry,
	}
	for _, opt := range opts {
		opt(machine)
	}
	return machine, nil
}

// Run processes queued items until the batch drains, an item fails, or the
// context is canceled. A failure pauses the machine; Resume restarts it.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "run", "batch run already in progress", nil)
	}
	if m.paused {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "run", "batch is paused; resume it instead", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.runID = uuid.NewString()
	m.cancel = cancel
	runID := m.runID
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	runCtx = services.WithRequestID(runCtx, runID)
	logger := logging.WithContext(runCtx, m.logger)

	if reset, err := m.store.ResetStale(runCtx, time.Now().Add(-m.staleReset)); err != nil {
		return services.Wrap(services.ErrTransient, "batch", "run", "reset stale items", err)
	} else if reset > 0 {
		logger.Info("returned interrupted items to queue", logging.Int64("count", reset))
	}

	logger.Info("batch run started")
	readFailures := 0
	for {
		if err := runCtx.Err(); err != nil {
			logger.Info("batch run canceled")
			return err
		}
		if m.cancelCheck != nil && m.cancelCheck() {
			cleared, err := m.store.ClearPending(runCtx)
			if err != nil {
				return services.Wrap(services.ErrTransient, "batch", "run", "clear pending items", err)
			}
			logger.Info("batch run canceled by request", logging.Int64("discarded", cleared))
			return nil
		}

		item, err := m.store.NextPending(runCtx)
		if err != nil {
			readFailures++
			if readFailures >= maxQueueReadRetries {
				return services.Wrap(services.ErrTransient, "batch", "run", "fetch next item", err)
			}
			logger.Warn("queue read failed; retrying", logging.Error(err))
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(m.errorRetry):
			}
			continue
		}
		readFailures = 0
		if item == nil {
			logger.Info("batch drained")
			return nil
		}

		if err := m.processItem(runCtx, item, runID); err != nil {
			return err
		}

		m.mu.Lock()
		paused := m.paused
		m.mu.Unlock()
		if paused {
			logger.Warn("batch paused after failure", logging.Int64("item_id", item.ID))
			return nil
		}
	}
}

// Resume unpauses the machine and continues processing. With retryFailed,
// failed items are first returned to the queue; otherwise they stay failed
// and processing continues with the remaining items.
func (m *Machine) Resume(ctx context.Context, retryFailed bool) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "batch", "resume", "batch run already in progress", nil)
	}
	m.paused = false
	m.mu.Unlock()

	if retryFailed {
		requeued, err := m.store.RetryFailed(ctx)
		if err != nil {
			return services.Wrap(services.ErrTransient, "batch", "resume", "requeue failed items", err)
		}
		m.logger.Info("failed items returned to queue", logging.Int64("count", requeued))
	}
	return m.Run(ctx)
}

// Cancel stops any in-flight run after the current item and discards the
// remaining work: to_process and in_process items are removed, leaving
// processed and failed items as the batch's final record.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	cleared, err := m.store.ClearPending(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "batch", "cancel", "clear pending items", err)
	}
	if cleared > 0 {
		m.logger.Info("discarded remaining batch items", logging.Int64("count", cleared))
	}
	return nil
}

// Paused reports whether the machine is paused after a failure.
func (m *Machine) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Snapshot returns the four status sequences plus machine flags.
func (m *Machine) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	snapshot := Snapshot{
		Running: m.running,
		Paused:  m.paused,
		RunID:   m.runID,
	}
	m.mu.Unlock()

	items, err := m.store.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, item := range items {
		switch item.Status {
		case StatusToProcess:
			snapshot.ToProcess = append(snapshot.ToProcess, item)
		case StatusInProcess:
			snapshot.InProcess = append(snapshot.InProcess, item)
		case StatusProcessed:
			snapshot.Processed = append(snapshot.Processed, item)
		case StatusFailed:
			snapshot.Failed = append(snapshot.Failed, item)
		}
	}
	return snapshot, nil
}

func (m *Machine) processItem(ctx context.Context, item *Item, runID string) error {
	started := time.Now().UTC()
	item.Status = StatusInProcess
	item.RunID = runID
	item.StartedAt = &started
	if err := m.store.Update(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "batch", "process", "mark item in process", err)
	}

	itemCtx := services.WithItemID(ctx, item.ID)
	itemCtx = services.WithSubject(itemCtx, item.ImageRef)
	logger := logging.WithContext(itemCtx, m.logger)
	logger.Info("processing item", logging.String("image", item.ImagePath))

	if failure := m.transcribe(itemCtx, item); failure != "" {
		item.SetFailed(failure)
		if err := m.store.Update(ctx, item); err != nil {
			return services.Wrap(services.ErrTransient, "batch", "process", "record item failure", err)
		}
		m.mu.Lock()
		m.paused = true
		m.mu.Unlock()
		logger.Error("item failed", logging.String("reason", failure))
		return nil
	}

	item.SetProcessed()
	if err := m.store.Update(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "batch", "process", "mark item processed", err)
	}
	logger.Info("item processed", logging.Duration("elapsed", time.Since(started)))
	return nil
}

// transcribe runs every adapter against the item's image. It returns an
// empty string on success, or a failure message to record on the item.
// Adapter panics are absorbed the same way as errors.
func (m *Machine) transcribe(ctx context.Context, item *Item) (failure string) {
	for _, adapter := range m.adapters {
		result, err := m.callAdapter(ctx, adapter, item)
		if err != nil {
			return fmt.Sprintf("%s: %v", adapter.Name(), err)
		}

		content := m.manager.Schema().ExtractContent(result.RawContent)
		versionID, err := m.manager.CreateVersion(ctx, item.ImageRef, lineage.CreateParams{
			Creator:       adapter.Name(),
			Content:       content,
			Costs:         result.Costs,
			IsAIGenerated: true,
		})
		if err != nil {
			return fmt.Sprintf("%s: record version: %v", adapter.Name(), err)
		}
		item.Provider = adapter.Name()
		logging.WithContext(ctx, m.logger).Info("version recorded",
			logging.String("provider", adapter.Name()),
			logging.String("version_id", versionID))
	}
	return ""
}

func (m *Machine) callAdapter(ctx context.Context, adapter provider.Adapter, item *Item) (result *provider.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("adapter panic: %v", recovered)
		}
	}()
	providerCtx := services.WithProvider(ctx, adapter.Name())
	return adapter.ProcessImage(providerCtx, provider.Request{
		ImagePath: item.ImagePath,
		Prompt:    m.prompt,
	})
}
