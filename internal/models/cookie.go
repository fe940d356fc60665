package models

import "time"

// Cookie holds the most recently saved authentication token for one
// platform. Lives in its own database file, apart from operational data.
type Cookie struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Platform  string    `gorm:"type:text;not null;uniqueIndex;comment:平台代码" json:"platform"`
	Cookie    string    `gorm:"type:text;not null;comment:Cookie串" json:"cookie"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Cookie) TableName() string {
	return "cookies"
}
