package persistence

import (
	"context"
	"time"
)

// OccurrenceFilter narrows occurrence queries. GroupIDs takes precedence
// over GroupID when both are set.
type OccurrenceFilter struct {
	GroupID   string
	GroupIDs  []string
	From      *time.Time
	To        *time.Time
	Confirmed *bool
	Completed *bool
	Cancelled *bool
}

// OccurrenceRepository stores occurrence rows. Bulk operations execute in a
// single transaction so readers never observe a partially rewritten series.
type OccurrenceRepository interface {
	// CreateSeries inserts the given occurrences and attendance seeds
	// atomically.
	CreateSeries(ctx context.Context, occurrences []Occurrence, seeds []Attendance) error
	GetOccurrence(ctx context.Context, id string) (Occurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence Occurrence) error
	// UpdateOccurrences applies the given rows atomically. When expectIDs is
	// non-nil the current membership of seriesID must equal expectIDs or the
	// call fails with ErrPreconditionFailed.
	UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []Occurrence) error
	// ReplaceSeries rewrites a series in one transaction: deleteIDs are
	// removed (cascading attendance), updates are rewritten in place,
	// inserts are added with their attendance seeds. The expectIDs
	// precondition is verified first.
	ReplaceSeries(ctx context.Context, seriesID string, expectIDs []string, deleteIDs []string, updates []Occurrence, inserts []Occurrence, seeds []Attendance) error
	// DeleteOccurrences removes the given rows and their attendance.
	DeleteOccurrences(ctx context.Context, ids []string) error
	ListOccurrences(ctx context.Context, filter OccurrenceFilter) ([]Occurrence, error)
	// ListSeries returns every occurrence sharing the series ID in date order.
	ListSeries(ctx context.Context, seriesID string) ([]Occurrence, error)
}

// AttendanceRepository stores attendance rows keyed by (occurrence, member).
type AttendanceRepository interface {
	// SeedAttendance inserts rows that do not already exist; existing rows
	// are left untouched.
	SeedAttendance(ctx context.Context, rows []Attendance) error
	GetAttendance(ctx context.Context, occurrenceID, memberID string) (Attendance, error)
	UpdateAttendance(ctx context.Context, row Attendance) error
	ListAttendance(ctx context.Context, occurrenceID string) ([]Attendance, error)
}

// MembershipRepository reads the roster system's membership table.
type MembershipRepository interface {
	ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error)
	GetGroupMember(ctx context.Context, groupID, memberID string) (GroupMember, error)
	ListMemberGroups(ctx context.Context, memberID string) ([]string, error)
}
