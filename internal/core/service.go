package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/PriceImport/internal/config"
	"github.com/JonMunkholm/PriceImport/internal/logging"
)

// ErrImportNotFound is returned for ids the service is not tracking.
var ErrImportNotFound = errors.New("import not found")

// Service runs price imports against a repository and tracks their progress.
type Service struct {
	repo    Repository
	history HistoryRecorder
	cfg     config.ImportConfig
	limiter *ImportLimiter
	logger  *slog.Logger

	mu      sync.RWMutex
	imports map[string]*activeImport
}

// ImportRequest describes one run. Source is consumed by the run and Cleanup,
// when set, is called once the run has finished with it.
type ImportRequest struct {
	FileName string
	Source   BunchSource
	Cleanup  func() error

	Behavior Behavior
	Scoped   bool
	DryRun   bool

	// Policy overrides the configured validation strategy when non-nil.
	Policy TerminationPolicy
}

// ImportRun is a point-in-time view of a tracked import.
type ImportRun struct {
	ID         string       `json:"import_id"`
	FileName   string       `json:"file_name"`
	Scoped     bool         `json:"scoped"`
	DryRun     bool         `json:"dry_run"`
	Status     ImportStatus `json:"status"`
	Progress   Progress     `json:"progress"`
	Summary    *Summary     `json:"summary,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Done reports whether the run has finished.
func (r ImportRun) Done() bool { return r.Status != StatusRunning }

type activeImport struct {
	id       string
	fileName string
	scoped   bool
	dryRun   bool
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}

	mu       sync.RWMutex
	progress Progress
	summary  *Summary
	err      error
	finished time.Time
}

func (a *activeImport) setProgress(p Progress) {
	a.mu.Lock()
	a.progress = p
	a.mu.Unlock()
}

func (a *activeImport) snapshot() ImportRun {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run := ImportRun{
		ID:        a.id,
		FileName:  a.fileName,
		Scoped:    a.scoped,
		DryRun:    a.dryRun,
		Status:    StatusRunning,
		Progress:  a.progress,
		Summary:   a.summary,
		StartedAt: a.started,
	}
	if a.finished.IsZero() {
		return run
	}
	finished := a.finished
	run.FinishedAt = &finished
	switch {
	case a.err == nil:
		run.Status = StatusCompleted
	case isCancellation(a.err):
		run.Status = StatusCancelled
		run.Error = FormatUserError(a.err)
	default:
		run.Status = StatusFailed
		run.Error = FormatUserError(a.err)
	}
	return run
}

// NewService creates a Service. A nil history discards run records.
func NewService(repo Repository, history HistoryRecorder, cfg config.ImportConfig) *Service {
	if history == nil {
		history = NopHistory{}
	}
	return &Service{
		repo:    repo,
		history: history,
		cfg:     cfg,
		limiter: NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		logger:  slog.Default().With("component", "import_service"),
		imports: make(map[string]*activeImport),
	}
}

// StartImport begins an asynchronous import and returns its id.
// ctx bounds only the wait for a free slot; the run itself uses the configured timeout.
// Returns ErrTooManyImports if no slot frees up in time.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		closeRequest(req, s.logger)
		return "", err
	}

	imp, runCtx := s.track(context.Background(), req)
	logger := s.runLogger(ctx, imp)
	go func() {
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in import", "panic", r)
				s.finish(imp, req, Summary{Behavior: req.Behavior, DryRun: req.DryRun}, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.execute(runCtx, imp, req, logger)
	}()

	return imp.id, nil
}

// RunImport runs an import in the calling goroutine and returns its final view.
// The returned error is the run error, if any; the view is populated either way.
func (s *Service) RunImport(ctx context.Context, req ImportRequest) (ImportRun, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		closeRequest(req, s.logger)
		return ImportRun{}, err
	}
	defer s.limiter.Release()

	imp, runCtx := s.track(ctx, req)
	err := s.execute(runCtx, imp, req, s.runLogger(ctx, imp))
	return imp.snapshot(), err
}

func (s *Service) track(parent context.Context, req ImportRequest) (*activeImport, context.Context) {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(parent, timeout)

	imp := &activeImport{
		id:       uuid.New().String(),
		fileName: req.FileName,
		scoped:   req.Scoped,
		dryRun:   req.DryRun,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: Progress{State: StateIdle},
	}

	s.mu.Lock()
	s.imports[imp.id] = imp
	s.mu.Unlock()
	return imp, runCtx
}

// runLogger carries the caller's request id into the run's log entries.
func (s *Service) runLogger(ctx context.Context, imp *activeImport) *slog.Logger {
	return logging.WithFields(ctx, "component", "import_service", "import_id", imp.id, "file", imp.fileName)
}

func (s *Service) execute(ctx context.Context, imp *activeImport, req ImportRequest, logger *slog.Logger) error {
	defer imp.cancel()

	logger.Info("import started", "behavior", string(req.Behavior), "scoped", req.Scoped, "dry_run", req.DryRun)

	policy := req.Policy
	if policy == nil {
		policy = s.policy()
	}
	style, err := ParseWriteStyle(s.cfg.WriteStyle)
	if err != nil {
		logger.Warn("invalid write style, using patch", "write_style", s.cfg.WriteStyle)
	}
	writer := NewRepositoryWriter(s.repo, WithWriteStyle(style), WithWriterLogger(logger))
	importer := NewBatchImporter(req.Source, writer, ImporterOptions{
		Behavior:   req.Behavior,
		Columns:    Columns(req.Scoped),
		Policy:     policy,
		DryRun:     req.DryRun,
		Logger:     logger,
		OnProgress: imp.setProgress,
	})

	summary, err := importer.Run(ctx)
	if err != nil {
		logger.Error("import failed", "error", err)
	}
	s.finish(imp, req, summary, err)
	return err
}

// finish publishes the result, records history and schedules removal.
func (s *Service) finish(imp *activeImport, req ImportRequest, summary Summary, runErr error) {
	closeRequest(req, s.logger)

	imp.mu.Lock()
	imp.summary = &summary
	imp.err = runErr
	imp.finished = time.Now()
	imp.mu.Unlock()

	entry := NewHistoryEntry(imp.id, imp.fileName, imp.scoped, imp.started, summary, runErr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.history.RecordImport(ctx, entry); err != nil {
		s.logger.Error("failed to record import history", "import_id", imp.id, "error", err)
	}

	close(imp.done)
	s.cleanup(imp.id, s.cfg.Retention)
}

func closeRequest(req ImportRequest, logger *slog.Logger) {
	if req.Cleanup == nil {
		return
	}
	if err := req.Cleanup(); err != nil {
		logger.Warn("failed to close import source", "file", req.FileName, "error", err)
	}
}

func (s *Service) policy() TerminationPolicy {
	strategy := ValidationStrategy(strings.ToLower(s.cfg.ValidationStrategy))
	return PolicyFor(strategy, s.cfg.MaxErrors, s.cfg.MaxErrorPercent, s.cfg.MinRowsForPercent)
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	if delay <= 0 {
		delay = time.Hour
	}
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}

func (s *Service) lookup(id string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return imp, nil
}

// GetImport returns the current view of an import.
func (s *Service) GetImport(id string) (ImportRun, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportRun{}, err
	}
	return imp.snapshot(), nil
}

// WaitImport blocks until the import finishes or ctx is done.
func (s *Service) WaitImport(ctx context.Context, id string) (ImportRun, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportRun{}, err
	}
	select {
	case <-imp.done:
		return imp.snapshot(), nil
	case <-ctx.Done():
		return imp.snapshot(), ctx.Err()
	}
}

// CancelImport cancels a running import. Cancelling a finished import is a no-op.
func (s *Service) CancelImport(id string) error {
	imp, err := s.lookup(id)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// ListImports returns every tracked import, newest first.
func (s *Service) ListImports() []ImportRun {
	s.mu.RLock()
	runs := make([]ImportRun, 0, len(s.imports))
	for _, imp := range s.imports {
		runs = append(runs, imp.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs
}

// RecentImports returns persisted runs, newest first.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return s.history.RecentImports(ctx, limit)
}

// LimiterStatus reports slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import finishes or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
