package models

import "time"

// TaskLog records one execution attempt of a task: opened with status
// "running" at batch start and closed exactly once at batch end.
type TaskLog struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID       uint       `gorm:"not null;index;comment:任务ID" json:"task_id"`
	StartTime    time.Time  `gorm:"not null;index;comment:开始时间" json:"start_time"`
	EndTime      *time.Time `gorm:"comment:结束时间" json:"end_time"`
	Status       string     `gorm:"type:text;not null;comment:执行状态" json:"status"`
	RecordsCount int        `gorm:"not null;default:0;comment:目标总数" json:"records_count"`
	SuccessCount int        `gorm:"not null;default:0;comment:成功数" json:"success_count"`
	FailedCount  int        `gorm:"not null;default:0;comment:失败数" json:"failed_count"`
	ErrorMessage string     `gorm:"type:text;comment:错误信息" json:"error_message"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (TaskLog) TableName() string {
	return "task_logs"
}
