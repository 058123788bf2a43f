package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opendatahq/issues-backend/internal/roles"
)

// Organization is a publisher group. Organizations form a hierarchy via
// ParentID; searching "by organization" may expand to the full descendant
// set.
type Organization struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Title     string     `gorm:"size:255" json:"title"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// OrganizationMember records a user's capacity within an organization and
// whether they opted in to issue notifications.
type OrganizationMember struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_org_members_org_user" json:"org_id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_org_members_org_user" json:"user_id"`
	Capacity      roles.Role `gorm:"size:20;not null;default:'member'" json:"capacity"`
	NotifyEnabled bool       `gorm:"default:true" json:"notify_enabled"`
	CreatedAt     time.Time  `json:"created_at"`

	Organization Organization `gorm:"foreignKey:OrgID" json:"-"`
	User         User         `gorm:"foreignKey:UserID" json:"-"`
}
