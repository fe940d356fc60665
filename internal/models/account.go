package models

import "time"

// DefaultUserIdentity marks an account not yet tied to a person.
const DefaultUserIdentity = "0"

// Account is one tracked user on one platform. The native UserID format is
// platform-specific: a numeric UID on weibo, a profile slug on xiaohongshu,
// an opaque sec_user_id on douyin.
type Account struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PlatformID uint   `gorm:"not null;uniqueIndex:idx_accounts_platform_user;comment:平台ID" json:"platform_id"`
	UserID     string `gorm:"type:text;not null;uniqueIndex:idx_accounts_platform_user;comment:平台原生用户ID" json:"user_id"`
	Username   string `gorm:"type:text;comment:用户名" json:"username"`

	// UserIdentity groups accounts belonging to the same real-world person
	// across platforms. "0" means unassigned.
	UserIdentity string `gorm:"type:text;default:'0';comment:跨平台用户标识" json:"user_identity"`

	Avatar    string    `gorm:"type:text;comment:头像URL" json:"avatar"`
	IsActive  bool      `gorm:"not null;default:true;comment:是否启用" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "users"
}
