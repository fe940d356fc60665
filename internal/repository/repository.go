package repository

import (
	"context"
	"time"

	"socialmonitor/internal/models"
)

// Store owns all operational entities: platforms, accounts, follower
// records, tasks and task logs. Every method is a single logical
// transaction; lookups return nil (not an error) when nothing matches.
type Store interface {
	// Platforms. Seeded once at startup, never deleted.
	SeedDefaults(ctx context.Context, defaultScheduleTime string, scheduleEnabled bool) error
	GetPlatformByCode(ctx context.Context, code string) (*models.Platform, error)
	ListPlatforms(ctx context.Context) ([]models.Platform, error)

	// Accounts.
	UpsertAccount(ctx context.Context, params UpsertAccountParams) (uint, error)
	SetIdentityTag(ctx context.Context, platformID uint, userID string, tag string) (bool, error)
	GetAccount(ctx context.Context, platformID uint, userID string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id uint) (*models.Account, error)
	ListAccounts(ctx context.Context, platformID *uint) ([]models.Account, error)
	DeleteAccount(ctx context.Context, id uint, deleteRecords bool) (bool, error)

	// Follower records (append-only).
	RecordSnapshot(ctx context.Context, item *models.FollowerRecord) (uint64, error)
	QuerySnapshots(ctx context.Context, params QuerySnapshotsParams) ([]models.FollowerRecord, error)
	LatestFollowerCount(ctx context.Context, accountID uint) (*int64, error)
	DeleteSnapshot(ctx context.Context, id uint64) (bool, error)

	// Tasks.
	GetTaskByID(ctx context.Context, id uint) (*models.ScheduleTask, error)
	GetTaskByName(ctx context.Context, name string) (*models.ScheduleTask, error)
	ListTasks(ctx context.Context) ([]models.ScheduleTask, error)
	UpdateTaskStatus(ctx context.Context, taskID uint, status string, params UpdateTaskStatusParams) error
	UpdateTaskSchedule(ctx context.Context, taskName string, scheduleTime string, enabled *bool) (bool, error)

	// Run logs.
	OpenRunLog(ctx context.Context, taskID uint, startTime time.Time) (uint64, error)
	CloseRunLog(ctx context.Context, params CloseRunLogParams) error
	ListRunLogs(ctx context.Context, taskID *uint, limit int) ([]models.TaskLog, error)
	PruneTaskLogs(ctx context.Context, before time.Time) (int64, error)
}

// UpsertAccountParams: empty Username/UserIdentity/Avatar leave the stored
// value untouched on update; updated_at is always refreshed.
type UpsertAccountParams struct {
	PlatformID   uint
	UserID       string
	Username     string
	UserIdentity string
	Avatar       string
}

type QuerySnapshotsParams struct {
	AccountID    *uint
	PlatformID   *uint
	PlatformIDs  []uint
	UserIdentity *string
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

type UpdateTaskStatusParams struct {
	LastRunTime *time.Time
	NextRunTime *time.Time
	RetryCount  *int
}

type CloseRunLogParams struct {
	LogID        uint64
	EndTime      time.Time
	Status       string
	RecordsCount int
	SuccessCount int
	FailedCount  int
	ErrorMessage string
}
