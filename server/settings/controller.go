package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
	"github.com/mattermost/mattermost-plugin-tunnel/server/bundle"
)

//go:generate mockgen -destination=mocks/mock_settings.go -package=mocks . ConfigStore,Bundler,BundleConsumer

// ConfigStore persists the account configuration.
type ConfigStore interface {
	Get() (account.Config, error)
	Save(accountID, authBaseURL, apiURL, logFilter string) (account.Config, error)
}

// Bundler archives the diagnostics directory.
type Bundler interface {
	CreateBundle(ctx context.Context, sourceDir, destPath string) (<-chan bundle.Event, error)
	Discard(destPath string) error
}

// BundleConsumer receives the path of a complete, closed archive.
type BundleConsumer interface {
	ConsumeBundle(ctx context.Context, path string) error
}

// BundleConsumerFunc adapts a function to BundleConsumer.
type BundleConsumerFunc func(ctx context.Context, path string) error

// ConsumeBundle calls f(ctx, path).
func (f BundleConsumerFunc) ConsumeBundle(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Logger is the subset of pluginapi.LogService used by this package.
type Logger = bundle.Logger

// Options configures a Controller.
type Options struct {
	Store    ConfigStore
	Bundler  Bundler
	Consumer BundleConsumer
	Logger   Logger

	// DiagnosticsDir is the log directory that is measured and bundled.
	DiagnosticsDir string

	// ArchivePath defaults to bundle.SiblingArchivePath(DiagnosticsDir).
	ArchivePath string

	// DirSize defaults to bundle.DirSize.
	DirSize func(dir string) (int64, error)
}

// Controller drives one settings screen session. Commands return immediately;
// store and bundler work runs on worker goroutines and reports back through
// the UiState snapshot and the action stream.
type Controller struct {
	id          string
	store       ConfigStore
	bundler     Bundler
	consumer    BundleConsumer
	logger      Logger
	diagDir     string
	archivePath string
	dirSize     func(string) (int64, error)

	// ctx is canceled on Close; it only stops delivery of bundler events.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	phase      Phase
	draft      Draft
	closed     bool
	lastActive time.Time
	resumeSeq  uint64

	state   *stateHolder
	actions *actionStream
	workers sync.WaitGroup
}

// NewController creates an idle session.
func NewController(opts Options) *Controller {
	archivePath := opts.ArchivePath
	if archivePath == "" {
		archivePath = bundle.SiblingArchivePath(opts.DiagnosticsDir)
	}

	dirSize := opts.DirSize
	if dirSize == nil {
		dirSize = bundle.DirSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		id:          uuid.New().String(),
		store:       opts.Store,
		bundler:     opts.Bundler,
		consumer:    opts.Consumer,
		logger:      opts.Logger,
		diagDir:     opts.DiagnosticsDir,
		archivePath: archivePath,
		dirSize:     dirSize,
		ctx:         ctx,
		cancel:      cancel,
		phase:       PhaseIdle,
		lastActive:  time.Now(),
		state:       newStateHolder(),
		actions:     &actionStream{},
	}
}

// ID returns the session's unique identifier.
func (c *Controller) ID() string {
	return c.id
}

// Phase returns the current state machine phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Draft returns the current uncommitted draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.draft
}

// State returns the latest UiState snapshot.
func (c *Controller) State() UiState {
	return c.state.get()
}

// Subscribe streams UiState snapshots, starting with the current one. The
// channel is closed when the session closes or the returned func is called.
func (c *Controller) Subscribe() (<-chan UiState, func()) {
	return c.state.subscribe()
}

// Actions attaches the session's single action consumer, replacing any
// previous one. Actions emitted while nothing is attached are dropped.
func (c *Controller) Actions() (<-chan Action, func()) {
	return c.actions.attach()
}

// LastActive returns the time of the last command.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastActive
}

// Open loads the stored configuration into a new draft and emits FillFields.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(PhaseIdle); err != nil {
		return err
	}

	c.phase = PhaseLoading
	c.goLocked(func() {
		cfg, err := c.store.Get()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			return
		}

		if err != nil {
			c.logger.Error("Failed to load account config", "session", c.id, "error", err.Error())
			c.draft = Draft{}
			c.emitLocked(failure(OperationLoad, err))
		} else {
			c.draft = DraftFromConfig(cfg)
			c.emitLocked(fillFields(c.draft))
		}

		c.phase = PhaseEditing
		c.publishValidityLocked()
	})

	return nil
}

// Update applies fn to the draft and republishes validity.
func (c *Controller) Update(fn func(Draft) Draft) (UiState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return UiState{}, ErrClosed
	}

	if c.phase != PhaseEditing && c.phase != PhaseBundling {
		return c.state.get(), ErrBusy
	}

	c.touchLocked()
	c.draft = fn(c.draft)
	c.publishValidityLocked()

	return c.state.get(), nil
}

// UpdateAccountID sets the draft account id.
func (c *Controller) UpdateAccountID(v string) (UiState, error) {
	return c.Update(func(d Draft) Draft { return d.WithAccountID(v) })
}

// UpdateAuthBaseURL sets the draft auth base url.
func (c *Controller) UpdateAuthBaseURL(v string) (UiState, error) {
	return c.Update(func(d Draft) Draft { return d.WithAuthBaseURL(v) })
}

// UpdateAPIURL sets the draft api url.
func (c *Controller) UpdateAPIURL(v string) (UiState, error) {
	return c.Update(func(d Draft) Draft { return d.WithAPIURL(v) })
}

// UpdateLogFilter sets the draft log filter.
func (c *Controller) UpdateLogFilter(v string) (UiState, error) {
	return c.Update(func(d Draft) Draft { return d.WithLogFilter(v) })
}

// Save persists the draft. The draft is validated again even though the view
// only offers save when UiState.IsSaveEnabled is true.
func (c *Controller) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(PhaseEditing); err != nil {
		return err
	}

	draft := c.draft
	if err := account.ValidateFields(draft.Fields()); err != nil {
		c.publishValidityLocked()
		return err
	}

	c.phase = PhaseSaving
	c.goLocked(func() {
		_, err := c.store.Save(draft.AccountID, draft.AuthBaseURL, draft.APIURL, draft.LogFilter)

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			return
		}

		if err != nil {
			c.logger.Error("Failed to save account config", "session", c.id, "error", err.Error())
			c.phase = PhaseEditing
			c.emitLocked(failure(OperationSave, err))
			return
		}

		c.logger.Info("Account config saved", "session", c.id, "accountId", draft.AccountID)
		c.phase = PhaseIdle
		c.draft = Draft{}
		c.emitLocked(navigateBack())
	})

	return nil
}

// Cancel discards the draft and navigates back. A running export keeps going.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.phase == PhaseSaving {
		return ErrBusy
	}

	c.touchLocked()
	c.phase = PhaseIdle
	c.draft = Draft{}
	c.emitLocked(navigateBack())

	return nil
}

// ExportLogs bundles the diagnostics directory and hands the archive to the
// bundle consumer. Progress and failures are reported as actions.
func (c *Controller) ExportLogs() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.phase == PhaseBundling {
		return bundle.ErrBundlingInProgress
	}

	if err := c.checkLocked(PhaseEditing); err != nil {
		return err
	}

	events, err := c.bundler.CreateBundle(c.ctx, c.diagDir, c.archivePath)
	if err != nil {
		if !errors.Is(err, bundle.ErrBundlingInProgress) {
			c.logger.Error("Failed to start diagnostics bundle", "session", c.id, "error", err.Error())
		}
		return err
	}

	c.phase = PhaseBundling
	c.goLocked(func() {
		c.forwardBundle(events)
	})

	return nil
}

func (c *Controller) forwardBundle(events <-chan bundle.Event) {
	var terminal bundle.Event
	var finished bool

	for ev := range events {
		if ev.Done {
			terminal = ev
			finished = true
			continue
		}
		c.emit(bundleProgress(ev.Entry, ev.Entries))
	}

	// The stream only closes without a terminal event once the session is closed,
	// and the bundler has then released the destination itself.
	if !finished {
		return
	}

	// The archive stays reserved until the consumer is done with it.
	var err error
	if !c.isClosed() {
		if terminal.Succeeded() {
			err = c.consumer.ConsumeBundle(c.ctx, terminal.Path)
			if err != nil {
				c.logger.Error("Failed to hand off diagnostics bundle", "session", c.id, "path", terminal.Path, "error", err.Error())
			}
		} else {
			err = terminal.Err
		}
	}
	terminal.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.phase == PhaseBundling {
		c.phase = PhaseEditing
	}

	if err != nil {
		c.emitLocked(failure(OperationExport, err))
	}
}

// Resume recomputes the diagnostics size and removes a previously exported
// archive so the size reflects only the raw logs.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.touchLocked()
	c.resumeSeq++
	seq := c.resumeSeq
	c.goLocked(func() {
		size, err := c.dirSize(c.diagDir)
		if err != nil {
			c.logger.Warn("Failed to measure diagnostics directory", "session", c.id, "dir", c.diagDir, "error", err.Error())
		}

		if discardErr := c.bundler.Discard(c.archivePath); discardErr != nil {
			if errors.Is(discardErr, bundle.ErrBundlingInProgress) {
				c.logger.Debug("Keeping diagnostics bundle that is still being written", "session", c.id, "path", c.archivePath)
			} else {
				c.logger.Warn("Failed to remove previous diagnostics bundle", "session", c.id, "path", c.archivePath, "error", discardErr.Error())
			}
		}

		if err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		// A later Resume owns the size; this measurement is stale.
		if c.closed || seq != c.resumeSeq {
			return
		}

		c.state.update(func(s UiState) UiState {
			s.LogBundleSizeBytes = size
			return s
		})
	})

	return nil
}

// Close tears the session down. Work already in flight runs to completion but
// its results are no longer published.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	c.state.close()
	c.actions.close()
}

// Wait blocks until all worker goroutines have finished.
func (c *Controller) Wait() {
	c.workers.Wait()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// busy reports whether a save or export is running.
func (c *Controller) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase == PhaseSaving || c.phase == PhaseBundling
}

func (c *Controller) checkLocked(want Phase) error {
	if c.closed {
		return ErrClosed
	}

	if c.phase != want {
		return ErrBusy
	}

	c.touchLocked()
	return nil
}

func (c *Controller) touchLocked() {
	c.lastActive = time.Now()
}

func (c *Controller) goLocked(fn func()) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		fn()
	}()
}

func (c *Controller) publishValidityLocked() {
	valid := account.IsValid(c.draft.Fields())
	c.state.update(func(s UiState) UiState {
		s.IsSaveEnabled = valid
		return s
	})
}

func (c *Controller) emit(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emitLocked(a)
}

func (c *Controller) emitLocked(a Action) {
	if c.closed {
		return
	}

	if !c.actions.emit(a) {
		c.logger.Debug("Dropped settings action without consumer", "session", c.id, "kind", string(a.Kind))
	}
}
