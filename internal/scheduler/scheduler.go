package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"socialmonitor/internal/crawler"
	"socialmonitor/internal/models"
	"socialmonitor/internal/repository"
)

const (
	tickInterval = time.Second
	retryDelay   = 60 * time.Second
	stopTimeout  = 5 * time.Second
)

// ErrTaskNotFound is returned by RunNow for an unknown task name.
var ErrTaskNotFound = errors.New("task not found")

// Scheduler drives the per-platform crawl tasks. A single loop goroutine
// ticks once per second and fires every enabled task whose daily HH:MM has
// arrived, at most once per minute. Fired tasks run on their own goroutine;
// a per-task lock keeps two runs of the same task from overlapping.
//
// Whole-batch faults are retried through an in-memory due queue with a fixed
// delay. The queue is drained by the loop and cleared by Stop, so no retry
// outlives the scheduler as an orphan timer.
type Scheduler struct {
	store    repository.Store
	crawlers crawler.Registry
	targets  map[string][]string
	logger   *zap.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	entries   []taskEntry
	retries   []RetryEntry
	lastFired map[uint]string

	locksMu sync.Mutex
	locks   map[uint]*sync.Mutex

	// test seams
	now   func() time.Time
	delay time.Duration
}

type taskEntry struct {
	taskID       uint
	name         string
	scheduleTime string
	enabled      bool
}

type RetryEntry struct {
	TaskID uint
	Due    time.Time
}

// Options wires the scheduler's collaborators. Targets maps platform code
// to the operator-configured native account ids.
type Options struct {
	Store    repository.Store
	Crawlers crawler.Registry
	Targets  map[string][]string
	Logger   *zap.Logger
}

func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := opts.Targets
	if targets == nil {
		targets = map[string][]string{}
	}
	return &Scheduler{
		store:     opts.Store,
		crawlers:  opts.Crawlers,
		targets:   targets,
		logger:    logger,
		lastFired: map[uint]string{},
		locks:     map[uint]*sync.Mutex{},
		now:       time.Now,
		delay:     retryDelay,
	}
}

// Start loads the task registry and launches the tick loop. Calling Start
// on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	entries, err := s.loadEntries(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load schedule tasks: %w", err)
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.entries = entries
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(loopCtx, done)
	s.logger.Info("scheduler started", zap.Int("tasks", len(entries)))
	return nil
}

// Stop signals the loop to exit after its current tick and waits for it,
// bounded by a timeout. In-flight batches are not interrupted. Pending
// retries are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.retries = nil
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler loop did not exit in time")
	}
	s.logger.Info("scheduler stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loadEntries(ctx context.Context) ([]taskEntry, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]taskEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, taskEntry{
			taskID:       t.ID,
			name:         t.TaskName,
			scheduleTime: t.ScheduleTime,
			enabled:      t.IsEnabled,
		})
	}
	return entries, nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	minute := now.Format("15:04")
	minuteKey := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	var fire []uint
	for _, e := range s.entries {
		if !e.enabled || e.scheduleTime != minute {
			continue
		}
		if s.lastFired[e.taskID] == minuteKey {
			continue
		}
		s.lastFired[e.taskID] = minuteKey
		fire = append(fire, e.taskID)
	}
	var due []uint
	var remaining []RetryEntry
	for _, r := range s.retries {
		if !r.Due.After(now) {
			due = append(due, r.TaskID)
		} else {
			remaining = append(remaining, r)
		}
	}
	s.retries = remaining
	s.mu.Unlock()

	// Fired batches are detached from the loop's cancellation: Stop only
	// takes down the tick loop, never an in-flight run, and the run's log
	// and task-row writes must still land after Stop returns.
	runCtx := context.WithoutCancel(ctx)
	for _, taskID := range fire {
		go s.runLocked(runCtx, taskID, true)
	}
	for _, taskID := range due {
		go s.runLocked(runCtx, taskID, true)
	}
}

// RunNow executes one task immediately on the caller, with the same
// execution logic as a scheduled fire.
func (s *Scheduler) RunNow(ctx context.Context, taskName string) error {
	task, err := s.store.GetTaskByName(ctx, taskName)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}
	s.runLocked(ctx, task.ID, false)
	return nil
}

// UpdateTaskSchedule persists the new time/enabled flag and atomically swaps
// the in-memory registry so the task cannot fire on both the old and new
// time during the transition.
func (s *Scheduler) UpdateTaskSchedule(ctx context.Context, taskName, scheduleTime string, enabled *bool) error {
	if _, err := time.Parse("15:04", scheduleTime); err != nil {
		return fmt.Errorf("invalid schedule time %q, want HH:MM", scheduleTime)
	}
	found, err := s.store.UpdateTaskSchedule(ctx, taskName, scheduleTime, enabled)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	entries, err := s.loadEntries(ctx)
	if err != nil {
		return fmt.Errorf("reload schedule tasks: %w", err)
	}
	s.entries = entries
	s.logger.Info("task rescheduled",
		zap.String("task", taskName), zap.String("schedule_time", scheduleTime))
	return nil
}

// TaskStatus is one task's line in the status snapshot.
type TaskStatus struct {
	Name             string     `json:"name"`
	Enabled          bool       `json:"enabled"`
	ScheduleTime     string     `json:"schedule_time"`
	Status           string     `json:"status"`
	LastRunTime      *time.Time `json:"last_run_time"`
	RetryCount       int        `json:"retry_count"`
	LastRunLogStatus string     `json:"last_run_log_status"`
}

type StatusSnapshot struct {
	Running bool         `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}

func (s *Scheduler) Status(ctx context.Context) (*StatusSnapshot, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	snap := &StatusSnapshot{Running: s.Running(), Tasks: make([]TaskStatus, 0, len(tasks))}
	for _, t := range tasks {
		line := TaskStatus{
			Name:         t.TaskName,
			Enabled:      t.IsEnabled,
			ScheduleTime: t.ScheduleTime,
			Status:       t.Status,
			LastRunTime:  t.LastRunTime,
			RetryCount:   t.RetryCount,
		}
		logs, err := s.store.ListRunLogs(ctx, &t.ID, 1)
		if err != nil {
			return nil, err
		}
		if len(logs) > 0 {
			line.LastRunLogStatus = logs[0].Status
		}
		snap.Tasks = append(snap.Tasks, line)
	}
	return snap, nil
}

// PendingRetries returns a copy of the due-retry queue.
func (s *Scheduler) PendingRetries() []RetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RetryEntry, len(s.retries))
	copy(out, s.retries)
	return out
}

func (s *Scheduler) taskLock(taskID uint) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

func (s *Scheduler) runLocked(ctx context.Context, taskID uint, scheduled bool) {
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()
	s.execute(ctx, taskID, scheduled)
}

// execute runs one task firing end to end. Nothing escaping it may take the
// loop down; every fault path lands in the run log and the task row.
// Scheduled fires skip a task that was disabled between queueing and firing;
// manual runs execute regardless.
func (s *Scheduler) execute(ctx context.Context, taskID uint, scheduled bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task execution panic",
				zap.Uint("task_id", taskID), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		s.logger.Error("load task failed", zap.Uint("task_id", taskID), zap.Error(err))
		return
	}
	if task == nil {
		s.logger.Warn("task vanished before firing", zap.Uint("task_id", taskID))
		return
	}
	if scheduled && !task.IsEnabled {
		s.logger.Info("task disabled, skipping", zap.String("task", task.TaskName))
		return
	}

	start := s.now()
	logID, err := s.store.OpenRunLog(ctx, taskID, start)
	if err != nil {
		s.logger.Error("open run log failed", zap.String("task", task.TaskName), zap.Error(err))
		return
	}
	if err := s.store.UpdateTaskStatus(ctx, taskID, models.TaskStatusRunning, repository.UpdateTaskStatusParams{}); err != nil {
		s.logger.Error("mark task running failed", zap.String("task", task.TaskName), zap.Error(err))
	}
	s.logger.Info("task started", zap.String("task", task.TaskName))

	success, failed, batchErr := s.runBatch(ctx, task)
	end := s.now()

	if batchErr != nil {
		s.closeLog(ctx, repository.CloseRunLogParams{
			LogID:        logID,
			EndTime:      end,
			Status:       models.TaskStatusFailed,
			RecordsCount: success + failed,
			SuccessCount: success,
			FailedCount:  failed,
			ErrorMessage: batchErr.Error(),
		})
		retryCount := task.RetryCount + 1
		if retryCount <= task.MaxRetry {
			s.updateTask(ctx, taskID, models.TaskStatusRetrying, &end, &retryCount)
			s.queueRetry(taskID)
			s.logger.Warn("task failed, retry queued",
				zap.String("task", task.TaskName),
				zap.Int("retry_count", retryCount),
				zap.Error(batchErr))
		} else {
			s.updateTask(ctx, taskID, models.TaskStatusFailed, &end, &retryCount)
			s.logger.Error("task failed, retry budget exhausted",
				zap.String("task", task.TaskName),
				zap.Int("retry_count", retryCount),
				zap.Error(batchErr))
		}
		return
	}

	status := batchStatus(success, failed)
	s.closeLog(ctx, repository.CloseRunLogParams{
		LogID:        logID,
		EndTime:      end,
		Status:       status,
		RecordsCount: success + failed,
		SuccessCount: success,
		FailedCount:  failed,
	})
	if status == models.TaskStatusFailed {
		// All targets failed (or there were none). Not a batch fault, so
		// the retry counter is left untouched and no retry is queued.
		s.updateTask(ctx, taskID, status, &end, nil)
	} else {
		zero := 0
		s.updateTask(ctx, taskID, status, &end, &zero)
	}
	s.logger.Info("task finished",
		zap.String("task", task.TaskName),
		zap.String("status", status),
		zap.Int("success", success),
		zap.Int("failed", failed))
}

// runBatch walks the task's target list sequentially. A target's fetch
// failure is counted and the batch continues; a persistence failure or a
// resolution fault aborts the whole batch.
func (s *Scheduler) runBatch(ctx context.Context, task *models.ScheduleTask) (success, failed int, err error) {
	platforms, err := s.store.ListPlatforms(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list platforms: %w", err)
	}
	var code string
	for _, p := range platforms {
		if p.ID == task.PlatformID {
			code = p.Code
			break
		}
	}
	if code == "" {
		return 0, 0, fmt.Errorf("unknown platform id %d", task.PlatformID)
	}
	c, ok := s.crawlers.Lookup(code)
	if !ok {
		return 0, 0, fmt.Errorf("no crawler registered for platform %s", code)
	}

	for _, nativeID := range s.targets[code] {
		snap, ferr := c.FetchAccount(ctx, nativeID)
		if ferr != nil {
			failed++
			s.logger.Warn("target fetch failed",
				zap.String("task", task.TaskName),
				zap.String("target", nativeID),
				zap.Error(ferr))
			continue
		}
		if err := s.persistSnapshot(ctx, task.PlatformID, nativeID, snap); err != nil {
			return success, failed, err
		}
		success++
	}
	return success, failed, nil
}

func (s *Scheduler) persistSnapshot(ctx context.Context, platformID uint, nativeID string, snap *crawler.AccountSnapshot) error {
	userID := snap.NativeID
	if userID == "" {
		userID = nativeID
	}
	accountID, err := s.store.UpsertAccount(ctx, repository.UpsertAccountParams{
		PlatformID: platformID,
		UserID:     userID,
		Username:   snap.Name,
	})
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", userID, err)
	}
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", accountID, err)
	}
	identity := models.DefaultUserIdentity
	if account != nil {
		identity = account.UserIdentity
	}

	var extra datatypes.JSON
	if raw, err := json.Marshal(snap.Extra); err == nil {
		extra = raw
	}
	record := &models.FollowerRecord{
		AccountID:     accountID,
		PlatformID:    platformID,
		UserIdentity:  identity,
		FollowerCount: snap.FollowerCount,
		RecordTime:    s.now(),
		Status:        models.RecordStatusSuccess,
		Extra:         extra,
	}
	if _, err := s.store.RecordSnapshot(ctx, record); err != nil {
		return fmt.Errorf("record snapshot for account %d: %w", accountID, err)
	}
	return nil
}

func (s *Scheduler) queueRetry(taskID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, RetryEntry{TaskID: taskID, Due: s.now().Add(s.delay)})
}

func (s *Scheduler) closeLog(ctx context.Context, params repository.CloseRunLogParams) {
	if err := s.store.CloseRunLog(ctx, params); err != nil {
		s.logger.Error("close run log failed", zap.Uint64("log_id", params.LogID), zap.Error(err))
	}
}

func (s *Scheduler) updateTask(ctx context.Context, taskID uint, status string, lastRun *time.Time, retryCount *int) {
	err := s.store.UpdateTaskStatus(ctx, taskID, status, repository.UpdateTaskStatusParams{
		LastRunTime: lastRun,
		RetryCount:  retryCount,
	})
	if err != nil {
		s.logger.Error("update task status failed", zap.Uint("task_id", taskID), zap.Error(err))
	}
}

func batchStatus(success, failed int) string {
	switch {
	case success > 0 && failed == 0:
		return models.TaskStatusSuccess
	case success > 0:
		return models.TaskStatusPartialSuccess
	default:
		return models.TaskStatusFailed
	}
}
