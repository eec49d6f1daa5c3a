// Package roster adapts the external membership system's data into the
// collaborator interfaces the schedule services consume. The membership
// table is owned by that system; this module only reads it.
package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/raid-scheduler/internal/persistence"
)

// Directory answers group membership questions from the shared membership
// table. It implements schedule.MemberDirectory.
type Directory struct {
	memberships persistence.MembershipRepository
}

// NewDirectory creates a directory over the membership repository.
func NewDirectory(memberships persistence.MembershipRepository) *Directory {
	return &Directory{memberships: memberships}
}

// ActiveMemberIDs returns the IDs of the group's active members, used for
// attendance seeding.
func (d *Directory) ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	if d == nil || d.memberships == nil {
		return nil, fmt.Errorf("membership repository not configured")
	}

	members, err := d.memberships.ListGroupMembers(ctx, groupID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		if member.Active {
			ids = append(ids, member.MemberID)
		}
	}
	return ids, nil
}

// MemberGroups returns the groups the member actively belongs to.
func (d *Directory) MemberGroups(ctx context.Context, memberID string) ([]string, error) {
	if d == nil || d.memberships == nil {
		return nil, fmt.Errorf("membership repository not configured")
	}
	return d.memberships.ListMemberGroups(ctx, memberID)
}

// IsMember reports whether the member actively belongs to the group.
func (d *Directory) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	if d == nil || d.memberships == nil {
		return false, fmt.Errorf("membership repository not configured")
	}

	member, err := d.memberships.GetGroupMember(ctx, groupID, memberID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Active, nil
}

// CanManageSchedule reports whether the member holds the group's
// schedule-management permission. The schedule services receive this as a
// pre-checked boolean and never inspect roles themselves.
func (d *Directory) CanManageSchedule(ctx context.Context, groupID, memberID string) (bool, error) {
	if d == nil || d.memberships == nil {
		return false, fmt.Errorf("membership repository not configured")
	}

	member, err := d.memberships.GetGroupMember(ctx, groupID, memberID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Active && member.CanManageSchedule, nil
}
