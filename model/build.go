package model

import "time"

// SavedBuild is one shared build: the exported build code plus display
// metadata. Code is the engine's transport string and is validated by a
// full import before a row is created.
type SavedBuild struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_build_account;not null" json:"account_id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Class     string    `gorm:"size:32" json:"class"`
	SkillID   string    `gorm:"size:64" json:"skill_id"`
	Code      string    `gorm:"type:text;not null" json:"code"`
	Views     int64     `gorm:"default:0" json:"views"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
