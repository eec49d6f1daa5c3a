package roster

import (
	"context"
	"testing"

	"github.com/example/raid-scheduler/internal/persistence"
	"github.com/example/raid-scheduler/internal/persistence/memory"
)

func seedMembers(storage *memory.Storage) {
	storage.PutGroupMember(persistence.GroupMember{
		GroupID: "group-1", MemberID: "leader", Role: "leader",
		Active: true, CanManageSchedule: true,
	})
	storage.PutGroupMember(persistence.GroupMember{
		GroupID: "group-1", MemberID: "member-2", Role: "member", Active: true,
	})
	storage.PutGroupMember(persistence.GroupMember{
		GroupID: "group-1", MemberID: "retired", Role: "member", Active: false,
	})
}

func TestDirectory_ActiveMemberIDs(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	seedMembers(storage)
	directory := NewDirectory(storage)

	ids, err := directory.ActiveMemberIDs(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("ActiveMemberIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 active members, got %v", ids)
	}
	for _, id := range ids {
		if id == "retired" {
			t.Fatalf("inactive member included: %v", ids)
		}
	}
}

func TestDirectory_IsMember(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	seedMembers(storage)
	directory := NewDirectory(storage)

	cases := map[string]struct {
		memberID string
		want     bool
	}{
		"active member":   {memberID: "member-2", want: true},
		"inactive member": {memberID: "retired", want: false},
		"unknown member":  {memberID: "stranger", want: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := directory.IsMember(context.Background(), "group-1", tc.memberID)
			if err != nil {
				t.Fatalf("IsMember failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDirectory_CanManageSchedule(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	seedMembers(storage)
	directory := NewDirectory(storage)

	can, err := directory.CanManageSchedule(context.Background(), "group-1", "leader")
	if err != nil {
		t.Fatalf("CanManageSchedule failed: %v", err)
	}
	if !can {
		t.Fatalf("leader should manage the schedule")
	}

	can, err = directory.CanManageSchedule(context.Background(), "group-1", "member-2")
	if err != nil {
		t.Fatalf("CanManageSchedule failed: %v", err)
	}
	if can {
		t.Fatalf("plain member should not manage the schedule")
	}
}

func TestDirectory_MemberGroups(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	seedMembers(storage)
	storage.PutGroupMember(persistence.GroupMember{
		GroupID: "group-2", MemberID: "member-2", Role: "member", Active: true,
	})
	directory := NewDirectory(storage)

	groups, err := directory.MemberGroups(context.Background(), "member-2")
	if err != nil {
		t.Fatalf("MemberGroups failed: %v", err)
	}
	if len(groups) != 2 || groups[0] != "group-1" || groups[1] != "group-2" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}
