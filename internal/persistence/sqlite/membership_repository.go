package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
)

// MembershipRepository reads the roster system's group_members table. This
// module never writes it.
type MembershipRepository struct {
	pool *ConnectionPool
}

// NewMembershipRepository creates a read-only membership repository.
func NewMembershipRepository(pool *ConnectionPool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

const memberColumns = "group_id, member_id, role, is_active, can_manage_schedule, joined_at"

// ListGroupMembers returns every membership row for a group.
func (r *MembershipRepository) ListGroupMembers(ctx context.Context, groupID string) ([]persistence.GroupMember, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM group_members WHERE group_id = ? ORDER BY member_id ASC", memberColumns),
		groupID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var members []persistence.GroupMember
	for rows.Next() {
		member, err := scanGroupMember(rows)
		if err != nil {
			return nil, mapSQLError(err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return members, nil
}

// GetGroupMember returns one membership row.
func (r *MembershipRepository) GetGroupMember(ctx context.Context, groupID, memberID string) (persistence.GroupMember, error) {
	row := r.pool.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM group_members WHERE group_id = ? AND member_id = ?", memberColumns),
		groupID, memberID)
	member, err := scanGroupMember(row)
	if err != nil {
		return persistence.GroupMember{}, mapSQLError(err)
	}
	return member, nil
}

// ListMemberGroups returns the IDs of groups the member actively belongs to.
func (r *MembershipRepository) ListMemberGroups(ctx context.Context, memberID string) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT group_id FROM group_members WHERE member_id = ? AND is_active = 1 ORDER BY group_id ASC",
		memberID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, mapSQLError(err)
		}
		groups = append(groups, groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return groups, nil
}

func scanGroupMember(row rowScanner) (persistence.GroupMember, error) {
	var member persistence.GroupMember
	var active, canManage int
	var joinedAtStr string

	err := row.Scan(
		&member.GroupID,
		&member.MemberID,
		&member.Role,
		&active,
		&canManage,
		&joinedAtStr,
	)
	if err != nil {
		return persistence.GroupMember{}, err
	}

	member.Active = active != 0
	member.CanManageSchedule = canManage != 0
	if member.JoinedAt, err = time.Parse(time.RFC3339, joinedAtStr); err != nil {
		return persistence.GroupMember{}, fmt.Errorf("failed to parse joined_at: %w", err)
	}
	return member, nil
}
