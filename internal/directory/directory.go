// Package directory resolves identity, organization and permission
// questions against the host application's tables. The issue tracker
// consumes these as read-only lookups.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/roles"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrOrgNotFound     = errors.New("organization not found")
)

type Directory struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Dataset resolves a dataset by id or by name, mirroring the host
// application's name-or-id reference convention.
func (d *Directory) Dataset(ctx context.Context, ref string) (*models.Dataset, error) {
	var dataset models.Dataset
	query := d.db.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("name = ?", ref)
	}
	if err := query.First(&dataset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	return &dataset, nil
}

// Organization resolves an organization by id or name.
func (d *Directory) Organization(ctx context.Context, ref string) (*models.Organization, error) {
	var org models.Organization
	query := d.db.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("name = ?", ref)
	}
	if err := query.First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

// Members returns the membership rows for an organization, with users
// preloaded for notification delivery.
func (d *Directory) Members(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	err := d.db.WithContext(ctx).
		Preload("User").
		Where("org_id = ?", orgID).
		Find(&members).Error
	return members, err
}

// Descendants returns the organization's id plus every organization below
// it in the hierarchy, walking parent links breadth-first. A cycle in the
// data terminates the walk rather than looping.
func (d *Directory) Descendants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{orgID: true}
	out := []uuid.UUID{orgID}
	frontier := []uuid.UUID{orgID}

	for len(frontier) > 0 {
		var children []models.Organization
		err := d.db.WithContext(ctx).
			Where("parent_id IN ?", frontier).
			Find(&children).Error
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child.ID)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}

func (d *Directory) memberRole(ctx context.Context, userID, orgID uuid.UUID) (roles.Role, bool, error) {
	var member models.OrganizationMember
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return member.Capacity, true, nil
}

// IsSysadmin reports whether the user record carries the sysadmin flag.
// An unknown user is simply not a sysadmin.
func (d *Directory) IsSysadmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := d.User(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Sysadmin, nil
}

// HasRoleAtLeast reports whether the user holds at least min capacity in
// the organization. Sysadmins pass every check.
func (d *Directory) HasRoleAtLeast(ctx context.Context, userID, orgID uuid.UUID, min roles.Role) (bool, error) {
	if sysadmin, err := d.IsSysadmin(ctx, userID); err != nil || sysadmin {
		return sysadmin, err
	}
	role, ok, err := d.memberRole(ctx, userID, orgID)
	if err != nil || !ok {
		return false, err
	}
	return role.AtLeast(min), nil
}

// CanUpdateDataset is the dataset-update-equivalent permission: the
// dataset creator, an org editor or admin, or a sysadmin.
func (d *Directory) CanUpdateDataset(ctx context.Context, userID uuid.UUID, dataset *models.Dataset) (bool, error) {
	if dataset.CreatorUserID == userID {
		return true, nil
	}
	return d.HasRoleAtLeast(ctx, userID, dataset.OwnerOrgID, roles.RoleEditor)
}

// CanUpdateOrganization is the organization-update-equivalent permission.
func (d *Directory) CanUpdateOrganization(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	return d.HasRoleAtLeast(ctx, userID, orgID, roles.RoleAdmin)
}

// CanCreateIssue applies the configured minimum role for filing issues
// against a dataset. The zero role means any authenticated user.
func (d *Directory) CanCreateIssue(ctx context.Context, userID uuid.UUID, dataset *models.Dataset, min roles.Role) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	if min == "" || !min.Valid() {
		return true, nil
	}
	if dataset.CreatorUserID == userID {
		return true, nil
	}
	return d.HasRoleAtLeast(ctx, userID, dataset.OwnerOrgID, min)
}
