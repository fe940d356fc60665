package models

import "time"

type Platform struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:text;not null;uniqueIndex;comment:平台名称" json:"name"`
	Code        string    `gorm:"type:text;not null;uniqueIndex;comment:平台代码" json:"code"`
	Description string    `gorm:"type:text;comment:平台描述" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Platform) TableName() string {
	return "platforms"
}
