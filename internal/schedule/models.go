package schedule

import (
	"time"

	"github.com/example/raid-scheduler/internal/recurrence"
)

// Principal represents the authenticated member invoking a service method.
// CanManage carries the pre-checked schedule-management permission; the
// services never inspect roles themselves.
type Principal struct {
	MemberID  string
	CanManage bool
}

// AttendanceStatus enumerates a member's response to an occurrence.
type AttendanceStatus string

const (
	// StatusPending is the initial state for every seeded row.
	StatusPending AttendanceStatus = "pending"
	// StatusConfirmed indicates the member committed to attend.
	StatusConfirmed AttendanceStatus = "confirmed"
	// StatusDeclined indicates the member will not attend.
	StatusDeclined AttendanceStatus = "declined"
	// StatusTentative indicates the member is unsure.
	StatusTentative AttendanceStatus = "tentative"
)

// ParseAttendanceStatus converts a wire value into an AttendanceStatus.
func ParseAttendanceStatus(value string) (AttendanceStatus, bool) {
	status := AttendanceStatus(value)
	return status, status.Valid()
}

// Valid reports whether the status is one of the known values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDeclined, StatusTentative:
		return true
	default:
		return false
	}
}

// Scope selects which occurrences of a series an update or delete affects.
type Scope string

const (
	// ScopeThisOnly affects the single target occurrence, detaching it from
	// its series.
	ScopeThisOnly Scope = "this-only"
	// ScopeThisAndFuture affects the target and every later occurrence in
	// the same series.
	ScopeThisAndFuture Scope = "this-and-future"
	// ScopeAll affects every occurrence in the series.
	ScopeAll Scope = "all"
)

// ParseScope converts a wire value into a Scope. The empty string defaults
// to ScopeThisOnly.
func ParseScope(value string) (Scope, bool) {
	switch Scope(value) {
	case ScopeThisOnly, ScopeThisAndFuture, ScopeAll:
		return Scope(value), true
	case "":
		return ScopeThisOnly, true
	default:
		return "", false
	}
}

// Occurrence is one concrete, dated session instance. Date is the civil
// date at midnight UTC; StartTime and EndTime are zero-padded "HH:MM"
// strings. SeriesID is empty for standalone occurrences.
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

// Terminal reports whether the occurrence reached a terminal lifecycle
// state. Terminal occurrences are immutable except for completion notes.
func (o Occurrence) Terminal() bool {
	return o.Completed || o.Cancelled
}

// OccurrenceInput captures the caller-provided occurrence template. Date is
// the anchor date for series creation; bulk updates apply every field
// except Date, which each occurrence keeps.
type OccurrenceInput struct {
	Title          string
	Description    string
	Date           time.Time
	StartTime      string
	EndTime        *string
	Target         string
	MinimumMembers int
	Confirmed      bool
	Notes          string
}

// AttendanceRecord is one member's response row for an occurrence.
type AttendanceRecord struct {
	OccurrenceID     string
	MemberID         string
	Status           AttendanceStatus
	Reason           string
	RespondedAt      *time.Time
	ActuallyAttended *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AttendanceSummary aggregates the attendance rows of one occurrence.
// QuorumMet is true when the confirmed count meets the occurrence's
// minimum-members threshold. It is always recomputed from the rows, never
// persisted.
type AttendanceSummary struct {
	Pending   int
	Confirmed int
	Declined  int
	Tentative int
	QuorumMet bool
}

// Total returns the number of rows the summary was computed from.
func (s AttendanceSummary) Total() int {
	return s.Pending + s.Confirmed + s.Declined + s.Tentative
}

// OccurrenceQuery narrows occurrence reads issued to the store. GroupIDs
// takes precedence over GroupID when both are set.
type OccurrenceQuery struct {
	GroupID   string
	GroupIDs  []string
	From      *time.Time
	To        *time.Time
	Confirmed *bool
	Completed *bool
	Cancelled *bool
}

// CreateSeriesParams wraps the data required to create a series.
type CreateSeriesParams struct {
	Principal Principal
	GroupID   string
	Input     OccurrenceInput
	Rule      recurrence.Rule
}

// UpdateOccurrenceParams wraps the data required to update an occurrence.
// A nil Rule keeps each affected occurrence on its current date; a non-nil
// Rule re-expands the affected range.
type UpdateOccurrenceParams struct {
	Principal    Principal
	OccurrenceID string
	Scope        Scope
	Input        OccurrenceInput
	Rule         *recurrence.Rule
}

// DeleteOccurrenceParams wraps the data required to delete occurrences.
type DeleteOccurrenceParams struct {
	Principal    Principal
	OccurrenceID string
	Scope        Scope
}

// ListOccurrencesParams wraps the data required to list a group's
// occurrences.
type ListOccurrencesParams struct {
	Principal Principal
	GroupID   string
	From      *time.Time
	To        *time.Time
	Confirmed *bool
	Completed *bool
	Cancelled *bool
}

// CompleteOccurrenceParams wraps the data required to complete an
// occurrence.
type CompleteOccurrenceParams struct {
	Principal       Principal
	OccurrenceID    string
	CompletionNotes string
}

// SetAttendanceParams wraps the data required to update an attendance row.
// MemberID is ignored by SetSelf, which always acts on the principal.
type SetAttendanceParams struct {
	Principal    Principal
	OccurrenceID string
	MemberID     string
	Status       AttendanceStatus
	Reason       string
}

// MemberStats reports one member's attendance record over a date range.
// Completed counts the rows belonging to completed occurrences; Attended
// counts the rows marked as actually attended.
type MemberStats struct {
	MemberID         string
	Total            int
	Confirmed        int
	Completed        int
	Attended         int
	ConfirmationRate float64
	AttendanceRate   float64
}

// DashboardParams wraps the data required to build a member's dashboard.
// Zero DaysAhead or DaysBehind fall back to the service default. A zero Now
// falls back to the service clock.
type DashboardParams struct {
	MemberID   string
	GroupID    string
	DaysAhead  int
	DaysBehind int
	Now        time.Time
}

// DashboardEntry is one occurrence annotated with the calling member's own
// status and the aggregate counts. SelfStatus is empty when the member has
// no attendance row.
type DashboardEntry struct {
	Occurrence Occurrence
	SelfStatus AttendanceStatus
	Summary    AttendanceSummary
}

// Dashboard partitions a member's occurrences around "now". Upcoming is
// ordered ascending by (date, start time); Past descending.
type Dashboard struct {
	Past     []DashboardEntry
	Upcoming []DashboardEntry
}
