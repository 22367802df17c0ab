package models

import "time"

// User is the local record of an account managed by the external auth service.
type User struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Workspaces []WorkspaceMember `gorm:"foreignKey:UserID" json:"-"`
}
