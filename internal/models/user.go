package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record consumed from the host application.
// This service only ever reads users; account management lives upstream.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Email     string    `gorm:"size:255" json:"-"`
	Sysadmin  bool      `gorm:"default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName prefers the full name over the account name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Name
}
