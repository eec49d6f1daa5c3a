package persistence

import "time"

// Occurrence represents one concrete session row. Date carries the civil
// date at midnight UTC; StartTime and EndTime are zero-padded "HH:MM"
// strings so lexical order matches temporal order. SeriesID is empty for
// standalone occurrences.
type Occurrence struct {
	ID              string
	GroupID         string
	SeriesID        string
	CreatedBy       string
	Title           string
	Description     string
	Date            time.Time
	StartTime       string
	EndTime         *string
	Target          string
	MinimumMembers  int
	Confirmed       bool
	Completed       bool
	Cancelled       bool
	Notes           string
	CompletionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// Attendance represents one member's response row for an occurrence.
// Uniqueness holds on (OccurrenceID, MemberID).
type Attendance struct {
	OccurrenceID     string
	MemberID         string
	Status           string
	Reason           string
	RespondedAt      *time.Time
	ActuallyAttended *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GroupMember is a read-only projection of the roster system's membership
// table. This module never writes it.
type GroupMember struct {
	GroupID           string
	MemberID          string
	Role              string
	Active            bool
	CanManageSchedule bool
	JoinedAt          time.Time
}
