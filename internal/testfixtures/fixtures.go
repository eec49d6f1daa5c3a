package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
	"github.com/example/raid-scheduler/internal/schedule"
)

var (
	occurrenceCounter uint64
	memberCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ------------------------- Occurrence fixtures ---------------------------

// OccurrenceFixture represents a deterministic occurrence record that can
// be materialised for service or persistence tests.
type OccurrenceFixture struct {
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

// OccurrenceOption configures the generated occurrence fixture.
type OccurrenceOption func(*OccurrenceFixture)

// NewOccurrenceFixture returns a deterministic occurrence fixture with
// optional overrides. Successive calls advance the scheduled date by one
// week.
func NewOccurrenceFixture(opts ...OccurrenceOption) OccurrenceFixture {
	idx := atomic.AddUint64(&occurrenceCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := OccurrenceFixture{
		ID:             fmt.Sprintf("occurrence-%03d", idx),
		GroupID:        "group-001",
		CreatedBy:      "member-001",
		Title:          fmt.Sprintf("Raid night %03d", idx),
		Date:           time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(idx-1)*7),
		StartTime:      "20:00",
		Target:         "Progression",
		MinimumMembers: 4,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithOccurrenceID overrides the generated occurrence ID.
func WithOccurrenceID(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ID = id
	}
}

// WithOccurrenceGroup overrides the owning group.
func WithOccurrenceGroup(groupID string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.GroupID = groupID
	}
}

// WithOccurrenceSeries places the occurrence in a series.
func WithOccurrenceSeries(seriesID string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.SeriesID = seriesID
	}
}

// WithOccurrenceDate sets the civil date.
func WithOccurrenceDate(date time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Date = date
	}
}

// WithOccurrenceTimes sets the start and optional end clock times.
func WithOccurrenceTimes(start string, end *string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithOccurrenceMinimumMembers sets the quorum threshold.
func WithOccurrenceMinimumMembers(minimum int) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.MinimumMembers = minimum
	}
}

// WithOccurrenceCompleted marks the occurrence completed at the given time.
func WithOccurrenceCompleted(at time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Completed = true
		f.CompletedAt = &at
	}
}

// WithOccurrenceCancelled marks the occurrence cancelled at the given time.
func WithOccurrenceCancelled(at time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Cancelled = true
		f.CancelledAt = &at
	}
}

// Schedule returns the fixture as a schedule.Occurrence value.
func (f OccurrenceFixture) Schedule() schedule.Occurrence {
	return schedule.Occurrence{
		ID:              f.ID,
		GroupID:         f.GroupID,
		SeriesID:        f.SeriesID,
		CreatedBy:       f.CreatedBy,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		Target:          f.Target,
		MinimumMembers:  f.MinimumMembers,
		Confirmed:       f.Confirmed,
		Completed:       f.Completed,
		Cancelled:       f.Cancelled,
		Notes:           f.Notes,
		CompletionNotes: f.CompletionNotes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
		CompletedAt:     f.CompletedAt,
		CancelledAt:     f.CancelledAt,
	}
}

// Persistence returns the fixture as a persistence.Occurrence row.
func (f OccurrenceFixture) Persistence() persistence.Occurrence {
	return persistence.Occurrence{
		ID:              f.ID,
		GroupID:         f.GroupID,
		SeriesID:        f.SeriesID,
		CreatedBy:       f.CreatedBy,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		Target:          f.Target,
		MinimumMembers:  f.MinimumMembers,
		Confirmed:       f.Confirmed,
		Completed:       f.Completed,
		Cancelled:       f.Cancelled,
		Notes:           f.Notes,
		CompletionNotes: f.CompletionNotes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
		CompletedAt:     f.CompletedAt,
		CancelledAt:     f.CancelledAt,
	}
}

// ------------------------- Attendance fixtures ---------------------------

// AttendanceFixture represents one member's attendance row.
type AttendanceFixture struct {
	OccurrenceID     string
	MemberID         string
	Status           schedule.AttendanceStatus
	Reason           string
	RespondedAt      *time.Time
	ActuallyAttended *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AttendanceOption configures the generated attendance fixture.
type AttendanceOption func(*AttendanceFixture)

// NewAttendanceFixture returns a deterministic pending attendance fixture
// with optional overrides.
func NewAttendanceFixture(occurrenceID, memberID string, opts ...AttendanceOption) AttendanceFixture {
	fixture := AttendanceFixture{
		OccurrenceID: occurrenceID,
		MemberID:     memberID,
		Status:       schedule.StatusPending,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAttendanceStatus sets the status and stamps the response time.
func WithAttendanceStatus(status schedule.AttendanceStatus, respondedAt time.Time) AttendanceOption {
	return func(f *AttendanceFixture) {
		f.Status = status
		f.RespondedAt = &respondedAt
	}
}

// WithActuallyAttended records the post-session attendance flag.
func WithActuallyAttended(attended bool) AttendanceOption {
	return func(f *AttendanceFixture) {
		f.ActuallyAttended = &attended
	}
}

// Schedule returns the fixture as a schedule.AttendanceRecord value.
func (f AttendanceFixture) Schedule() schedule.AttendanceRecord {
	return schedule.AttendanceRecord{
		OccurrenceID:     f.OccurrenceID,
		MemberID:         f.MemberID,
		Status:           f.Status,
		Reason:           f.Reason,
		RespondedAt:      f.RespondedAt,
		ActuallyAttended: f.ActuallyAttended,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Attendance row.
func (f AttendanceFixture) Persistence() persistence.Attendance {
	return persistence.Attendance{
		OccurrenceID:     f.OccurrenceID,
		MemberID:         f.MemberID,
		Status:           string(f.Status),
		Reason:           f.Reason,
		RespondedAt:      f.RespondedAt,
		ActuallyAttended: f.ActuallyAttended,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// ------------------------- Membership fixtures ---------------------------

// MemberFixture represents a roster membership row.
type MemberFixture struct {
	GroupID           string
	MemberID          string
	Role              string
	Active            bool
	CanManageSchedule bool
	JoinedAt          time.Time
}

// MemberOption configures the generated membership fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns a deterministic active membership fixture with
// optional overrides.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	fixture := MemberFixture{
		GroupID:  "group-001",
		MemberID: fmt.Sprintf("member-%03d", idx),
		Role:     "member",
		Active:   true,
		JoinedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the generated member ID.
func WithMemberID(id string) MemberOption {
	return func(f *MemberFixture) {
		f.MemberID = id
	}
}

// WithMemberGroup overrides the group.
func WithMemberGroup(groupID string) MemberOption {
	return func(f *MemberFixture) {
		f.GroupID = groupID
	}
}

// WithMemberManagement grants the schedule-management permission.
func WithMemberManagement() MemberOption {
	return func(f *MemberFixture) {
		f.Role = "leader"
		f.CanManageSchedule = true
	}
}

// WithMemberInactive deactivates the membership.
func WithMemberInactive() MemberOption {
	return func(f *MemberFixture) {
		f.Active = false
	}
}

// Persistence returns the fixture as a persistence.GroupMember row.
func (f MemberFixture) Persistence() persistence.GroupMember {
	return persistence.GroupMember{
		GroupID:           f.GroupID,
		MemberID:          f.MemberID,
		Role:              f.Role,
		Active:            f.Active,
		CanManageSchedule: f.CanManageSchedule,
		JoinedAt:          f.JoinedAt,
	}
}
