package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is the published dataset record issues are filed against.
// Identity and publishing live upstream; the issue system reads these rows
// and only ever writes the Private flag (review gate).
type Dataset struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Title         string    `gorm:"size:255" json:"title"`
	OwnerOrgID    uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_org_id"`
	CreatorUserID uuid.UUID `gorm:"type:uuid;not null" json:"creator_user_id"`
	Private       bool      `gorm:"default:false" json:"private"`

	// Contact fields used by the notification dispatcher (author wins
	// over maintainer when both are set).
	Author          string `gorm:"size:255" json:"author"`
	AuthorEmail     string `gorm:"size:255" json:"-"`
	Maintainer      string `gorm:"size:255" json:"maintainer"`
	MaintainerEmail string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`

	Organization Organization `gorm:"foreignKey:OwnerOrgID" json:"-"`
}

// ContactAddress returns the owner contact used when notify_owner is on.
func (d *Dataset) ContactAddress() (name, email string) {
	if d.AuthorEmail != "" {
		return d.Author, d.AuthorEmail
	}
	return d.Maintainer, d.MaintainerEmail
}
