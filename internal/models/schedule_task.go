package models

import "time"

const (
	TaskStatusIdle           = "idle"
	TaskStatusRunning        = "running"
	TaskStatusSuccess        = "success"
	TaskStatusPartialSuccess = "partial_success"
	TaskStatusFailed         = "failed"
	TaskStatusRetrying       = "retrying"
)

// DefaultMaxRetry bounds consecutive whole-batch retries per task.
const DefaultMaxRetry = 3

// ScheduleTask is one recurring crawl job, 1:1 with a platform. ScheduleTime
// is "HH:MM" (24h) evaluated in the local timezone. NextRunTime is advisory.
type ScheduleTask struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskName     string     `gorm:"type:text;not null;uniqueIndex;comment:任务名称" json:"task_name"`
	PlatformID   uint       `gorm:"index;comment:平台ID" json:"platform_id"`
	ScheduleTime string     `gorm:"type:text;not null;comment:每日执行时间 HH:MM" json:"schedule_time"`
	IsEnabled    bool       `gorm:"not null;default:true;comment:是否启用" json:"is_enabled"`
	LastRunTime  *time.Time `gorm:"comment:最后运行时间" json:"last_run_time"`
	NextRunTime  *time.Time `gorm:"comment:下次运行时间" json:"next_run_time"`
	RetryCount   int        `gorm:"not null;default:0;comment:连续失败重试计数" json:"retry_count"`
	MaxRetry     int        `gorm:"not null;default:3;comment:最大重试次数" json:"max_retry"`
	Status       string     `gorm:"type:text;default:'idle';comment:任务状态" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ScheduleTask) TableName() string {
	return "schedule_tasks"
}
