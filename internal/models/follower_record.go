package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RecordStatusSuccess        = "success"
	RecordStatusPartialSuccess = "partial_success"
	RecordStatusFailed         = "failed"
)

// FollowerRecord is one append-only follower-count observation. Rows are
// never updated after insert; the only mutation is explicit deletion by id.
type FollowerRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID  uint   `gorm:"column:user_id;not null;index;comment:用户ID" json:"user_id"`
	PlatformID uint   `gorm:"not null;index;comment:平台ID" json:"platform_id"`

	// UserIdentity is copied from the account at insert time so identity
	// re-tagging does not rewrite history.
	UserIdentity string `gorm:"type:text;default:'0';comment:跨平台用户标识" json:"user_identity"`

	FollowerCount int64          `gorm:"not null;comment:粉丝数量" json:"follower_count"`
	RecordTime    time.Time      `gorm:"not null;index;comment:记录时间" json:"record_time"`
	Status        string         `gorm:"type:text;default:'success';comment:采集状态" json:"status"`
	ErrorMessage  string         `gorm:"type:text;comment:错误信息" json:"error_message"`
	Extra         datatypes.JSON `gorm:"comment:平台附加属性" json:"extra,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (FollowerRecord) TableName() string {
	return "follower_records"
}
