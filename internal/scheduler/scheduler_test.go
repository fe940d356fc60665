package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"socialmonitor/internal/crawler"
	"socialmonitor/internal/db"
	"socialmonitor/internal/models"
	"socialmonitor/internal/repository"
	gormrepository "socialmonitor/internal/repository/gorm"
)

type stubCrawler struct {
	code  string
	fetch func(nativeID string) (*crawler.AccountSnapshot, error)
}

func (s *stubCrawler) PlatformCode() string { return s.code }

func (s *stubCrawler) FetchAccount(_ context.Context, nativeID string) (*crawler.AccountSnapshot, error) {
	return s.fetch(nativeID)
}

func newTestScheduler(t *testing.T, crawlers crawler.Registry, targets map[string][]string) (*Scheduler, repository.Store) {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := gormrepository.New(conn.Gorm)
	if err := store.SeedDefaults(context.Background(), "23:59", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sched := New(Options{Store: store, Crawlers: crawlers, Targets: targets})
	return sched, store
}

func countingCrawler(code string, failIDs ...string) *stubCrawler {
	bad := map[string]bool{}
	for _, id := range failIDs {
		bad[id] = true
	}
	return &stubCrawler{
		code: code,
		fetch: func(nativeID string) (*crawler.AccountSnapshot, error) {
			if bad[nativeID] {
				return nil, &crawler.FetchError{Platform: code, Kind: crawler.KindHTTP, StatusCode: 403, Err: errors.New("forbidden")}
			}
			return &crawler.AccountSnapshot{
				NativeID:      nativeID,
				Name:          "user-" + nativeID,
				FollowerCount: 1000,
			}, nil
		},
	}
}

func taskByName(t *testing.T, store repository.Store, name string) *models.ScheduleTask {
	t.Helper()
	task, err := store.GetTaskByName(context.Background(), name)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task == nil {
		t.Fatalf("task %s not found", name)
	}
	return task
}

func lastLog(t *testing.T, store repository.Store, taskID uint) models.TaskLog {
	t.Helper()
	logs, err := store.ListRunLogs(context.Background(), &taskID, 1)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("no run logs")
	}
	return logs[0]
}

func TestRunNowSuccess(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo")},
		map[string][]string{"weibo": {"100", "200"}},
	)
	ctx := context.Background()

	if err := sched.RunNow(ctx, "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	task := taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusSuccess {
		t.Fatalf("status=%s want success", task.Status)
	}
	if task.RetryCount != 0 {
		t.Fatalf("retry_count=%d want 0", task.RetryCount)
	}
	if task.LastRunTime == nil {
		t.Fatal("last_run_time not set")
	}

	log := lastLog(t, store, task.ID)
	if log.Status != models.TaskStatusSuccess || log.SuccessCount != 2 || log.FailedCount != 0 {
		t.Fatalf("log=%+v", log)
	}

	accounts, err := store.ListAccounts(ctx, nil)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("accounts=%d want 2", len(accounts))
	}
	records, err := store.QuerySnapshots(ctx, repository.QuerySnapshotsParams{})
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d want 2", len(records))
	}
	if records[0].FollowerCount != 1000 {
		t.Fatalf("follower_count=%d", records[0].FollowerCount)
	}
}

func TestRunNowPartialSuccess(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo", "bad")},
		map[string][]string{"weibo": {"good", "bad", "also-good"}},
	)

	if err := sched.RunNow(context.Background(), "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	task := taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusPartialSuccess {
		t.Fatalf("status=%s want partial_success", task.Status)
	}
	log := lastLog(t, store, task.ID)
	if log.SuccessCount != 2 || log.FailedCount != 1 || log.RecordsCount != 3 {
		t.Fatalf("log counts=%+v", log)
	}
}

func TestAllTargetsFailingIsFailedWithoutRetry(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo", "a", "b")},
		map[string][]string{"weibo": {"a", "b"}},
	)

	if err := sched.RunNow(context.Background(), "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	task := taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("status=%s want failed", task.Status)
	}
	if task.RetryCount != 0 {
		t.Fatalf("retry_count=%d want 0 (target failures are not batch faults)", task.RetryCount)
	}
	if pending := sched.PendingRetries(); len(pending) != 0 {
		t.Fatalf("pending=%v want none", pending)
	}
}

func TestEmptyTargetListIsFailed(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo")},
		map[string][]string{},
	)

	if err := sched.RunNow(context.Background(), "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	task := taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("status=%s want failed for empty batch", task.Status)
	}
	log := lastLog(t, store, task.ID)
	if log.RecordsCount != 0 {
		t.Fatalf("records_count=%d want 0", log.RecordsCount)
	}
}

func TestMissingCrawlerIsBatchFaultWithRetry(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{},
		map[string][]string{"weibo": {"100"}},
	)

	if err := sched.RunNow(context.Background(), "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	task := taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusRetrying {
		t.Fatalf("status=%s want retrying", task.Status)
	}
	if task.RetryCount != 1 {
		t.Fatalf("retry_count=%d want 1", task.RetryCount)
	}
	log := lastLog(t, store, task.ID)
	if log.Status != models.TaskStatusFailed || log.ErrorMessage == "" {
		t.Fatalf("log=%+v want failed with error message", log)
	}
	pending := sched.PendingRetries()
	if len(pending) != 1 || pending[0].TaskID != task.ID {
		t.Fatalf("pending=%v want one entry for task %d", pending, task.ID)
	}
}

func TestBatchFaultBeyondBudgetIsTerminalFailed(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()
	task := taskByName(t, store, "weibo_follower_crawler")
	retries := task.MaxRetry
	if err := store.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRetrying, repository.UpdateTaskStatusParams{RetryCount: &retries}); err != nil {
		t.Fatalf("prime retry count: %v", err)
	}

	if err := sched.RunNow(ctx, "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	task = taskByName(t, store, "weibo_follower_crawler")
	if task.Status != models.TaskStatusFailed {
		t.Fatalf("status=%s want terminal failed", task.Status)
	}
	if task.RetryCount != retries+1 {
		t.Fatalf("retry_count=%d want %d", task.RetryCount, retries+1)
	}
	if pending := sched.PendingRetries(); len(pending) != 0 {
		t.Fatalf("pending=%v want none past the budget", pending)
	}
}

func TestSuccessResetsRetryCounter(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo")},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()
	task := taskByName(t, store, "weibo_follower_crawler")
	two := 2
	if err := store.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRetrying, repository.UpdateTaskStatusParams{RetryCount: &two}); err != nil {
		t.Fatalf("prime retry count: %v", err)
	}

	if err := sched.RunNow(ctx, "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	task = taskByName(t, store, "weibo_follower_crawler")
	if task.RetryCount != 0 {
		t.Fatalf("retry_count=%d want 0 after success", task.RetryCount)
	}
	if task.Status != models.TaskStatusSuccess {
		t.Fatalf("status=%s", task.Status)
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	sched, _ := newTestScheduler(t, crawler.Registry{}, nil)
	err := sched.RunNow(context.Background(), "nope_follower_crawler")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err=%v want ErrTaskNotFound", err)
	}
}

func TestRunNowPreservesIdentityTag(t *testing.T) {
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": countingCrawler("weibo")},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()

	platform, err := store.GetPlatformByCode(ctx, "weibo")
	if err != nil || platform == nil {
		t.Fatalf("platform: %v", err)
	}
	if _, err := store.UpsertAccount(ctx, repository.UpsertAccountParams{
		PlatformID: platform.ID, UserID: "100",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.SetIdentityTag(ctx, platform.ID, "100", "person-9"); err != nil {
		t.Fatalf("set identity: %v", err)
	}

	if err := sched.RunNow(ctx, "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	account, err := store.GetAccount(ctx, platform.ID, "100")
	if err != nil || account == nil {
		t.Fatalf("account: %v", err)
	}
	if account.UserIdentity != "person-9" {
		t.Fatalf("identity=%q want person-9", account.UserIdentity)
	}
	records, err := store.QuerySnapshots(ctx, repository.QuerySnapshotsParams{})
	if err != nil || len(records) != 1 {
		t.Fatalf("records=%v err=%v", records, err)
	}
	if records[0].UserIdentity != "person-9" {
		t.Fatalf("snapshot identity=%q want person-9", records[0].UserIdentity)
	}
}

func TestUpdateTaskScheduleValidation(t *testing.T) {
	sched, store := newTestScheduler(t, crawler.Registry{}, nil)
	ctx := context.Background()

	if err := sched.UpdateTaskSchedule(ctx, "weibo_follower_crawler", "25:99", nil); err == nil {
		t.Fatal("want error for malformed time")
	}
	if err := sched.UpdateTaskSchedule(ctx, "nope", "08:30", nil); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err=%v want ErrTaskNotFound", err)
	}

	enabled := true
	if err := sched.UpdateTaskSchedule(ctx, "weibo_follower_crawler", "08:30", &enabled); err != nil {
		t.Fatalf("UpdateTaskSchedule: %v", err)
	}
	task := taskByName(t, store, "weibo_follower_crawler")
	if task.ScheduleTime != "08:30" || !task.IsEnabled {
		t.Fatalf("task=%+v", task)
	}
}

func TestStartStopClearsPendingRetries(t *testing.T) {
	sched, _ := newTestScheduler(t,
		crawler.Registry{},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()

	if err := sched.RunNow(ctx, "weibo_follower_crawler"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if len(sched.PendingRetries()) != 1 {
		t.Fatal("want one pending retry")
	}

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sched.Running() {
		t.Fatal("scheduler not running after Start")
	}
	sched.Stop()
	if sched.Running() {
		t.Fatal("scheduler still running after Stop")
	}
	if pending := sched.PendingRetries(); len(pending) != 0 {
		t.Fatalf("pending=%v want cleared by Stop", pending)
	}
}

type blockingCrawler struct {
	code    string
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingCrawler) PlatformCode() string { return b.code }

func (b *blockingCrawler) FetchAccount(ctx context.Context, nativeID string) (*crawler.AccountSnapshot, error) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &crawler.AccountSnapshot{NativeID: nativeID, Name: "user-" + nativeID, FollowerCount: 42}, nil
}

// Stop only takes the tick loop down. A batch fired just before Stop keeps
// an uncancelled context, finishes its fetch, and closes its run log.
func TestStopDoesNotInterruptInFlightRun(t *testing.T) {
	bc := &blockingCrawler{
		code:    "weibo",
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": bc},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }
	enabled := true
	if err := sched.UpdateTaskSchedule(ctx, "weibo_follower_crawler", "08:30", &enabled); err != nil {
		t.Fatalf("UpdateTaskSchedule: %v", err)
	}

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-bc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not fire")
	}

	sched.Stop()
	close(bc.release)

	select {
	case err := <-bc.ctxErr:
		if err != nil {
			t.Fatalf("in-flight fetch context: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not finish after release")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		task := taskByName(t, store, "weibo_follower_crawler")
		if task.Status == models.TaskStatusSuccess {
			log := lastLog(t, store, task.ID)
			if log.Status != models.TaskStatusSuccess || log.EndTime == nil {
				t.Fatalf("log=%+v want closed success", log)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("task status=%s want success after Stop", task.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDisabledTaskIsSkipped(t *testing.T) {
	called := false
	sched, store := newTestScheduler(t,
		crawler.Registry{"weibo": &stubCrawler{
			code: "weibo",
			fetch: func(string) (*crawler.AccountSnapshot, error) {
				called = true
				return nil, fmt.Errorf("should not be called")
			},
		}},
		map[string][]string{"weibo": {"100"}},
	)
	ctx := context.Background()
	task := taskByName(t, store, "weibo_follower_crawler")

	// Disabled between being queued and firing.
	sched.runLocked(ctx, task.ID, true)
	if called {
		t.Fatal("crawler called for disabled task")
	}
	logs, err := store.ListRunLogs(ctx, &task.ID, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("logs=%d want 0 for skipped task", len(logs))
	}
}
