package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/raid-scheduler/internal/recurrence"
)

// AttendanceStore captures the persistence interactions for attendance
// rows, keyed by (occurrence, member).
type AttendanceStore interface {
	// SeedAttendance inserts rows that do not already exist; existing rows
	// are left untouched.
	SeedAttendance(ctx context.Context, rows []AttendanceRecord) error
	GetAttendance(ctx context.Context, occurrenceID, memberID string) (AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, row AttendanceRecord) error
	ListAttendance(ctx context.Context, occurrenceID string) ([]AttendanceRecord, error)
}

// AttendanceService owns per-occurrence, per-member attendance state and
// its aggregation.
type AttendanceService struct {
	attendance  AttendanceStore
	occurrences OccurrenceStore
	now         func() time.Time
}

// NewAttendanceService wires dependencies for attendance operations.
func NewAttendanceService(attendance AttendanceStore, occurrences OccurrenceStore, now func() time.Time) *AttendanceService {
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		attendance:  attendance,
		occurrences: occurrences,
		now:         now,
	}
}

// Seed creates one pending row per member that does not already have one
// for the occurrence. Re-seeding is a no-op for existing rows.
func (s *AttendanceService) Seed(ctx context.Context, occurrenceID string, memberIDs []string) error {
	if s == nil {
		return fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil || s.occurrences == nil {
		return fmt.Errorf("attendance store not configured")
	}

	occ, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return mapStoreError(err)
	}

	now := s.now()
	seeds := seedRecords([]Occurrence{occ}, uniqueMemberIDs(memberIDs), now)
	if len(seeds) == 0 {
		return nil
	}
	return mapStoreError(s.attendance.SeedAttendance(ctx, seeds))
}

// SeedForMember backfills pending rows for a member who joined the group
// after occurrences already existed: one row per future, non-completed,
// non-cancelled occurrence.
func (s *AttendanceService) SeedForMember(ctx context.Context, groupID, memberID string) error {
	if s == nil {
		return fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil || s.occurrences == nil {
		return fmt.Errorf("attendance store not configured")
	}

	now := s.now()
	today := recurrence.DateOf(now)
	notCompleted := false
	notCancelled := false

	occurrences, err := s.occurrences.ListOccurrences(ctx, OccurrenceQuery{
		GroupID:   groupID,
		From:      &today,
		Completed: &notCompleted,
		Cancelled: &notCancelled,
	})
	if err != nil {
		return mapStoreError(err)
	}

	seeds := seedRecords(occurrences, []string{memberID}, now)
	if len(seeds) == 0 {
		return nil
	}
	return mapStoreError(s.attendance.SeedAttendance(ctx, seeds))
}

// SetSelf updates the principal's own attendance row, stamping the
// response time. Seeding is the only creator of rows; a member without a
// row gets ErrNotFound.
func (s *AttendanceService) SetSelf(ctx context.Context, params SetAttendanceParams) (AttendanceRecord, error) {
	if s == nil {
		return AttendanceRecord{}, fmt.Errorf("AttendanceService is nil")
	}
	return s.setStatus(ctx, params.OccurrenceID, params.Principal.MemberID, params.Status, params.Reason)
}

// SetMember updates another member's attendance row on their behalf. The
// principal must hold the pre-checked schedule-management permission.
func (s *AttendanceService) SetMember(ctx context.Context, params SetAttendanceParams) (AttendanceRecord, error) {
	if s == nil {
		return AttendanceRecord{}, fmt.Errorf("AttendanceService is nil")
	}
	if !params.Principal.CanManage {
		return AttendanceRecord{}, ErrForbidden
	}
	return s.setStatus(ctx, params.OccurrenceID, params.MemberID, params.Status, params.Reason)
}

// MarkActual records whether the member actually attended, management-only.
func (s *AttendanceService) MarkActual(ctx context.Context, principal Principal, occurrenceID, memberID string, attended bool) (AttendanceRecord, error) {
	if s == nil {
		return AttendanceRecord{}, fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil {
		return AttendanceRecord{}, fmt.Errorf("attendance store not configured")
	}
	if !principal.CanManage {
		return AttendanceRecord{}, ErrForbidden
	}

	row, err := s.attendance.GetAttendance(ctx, occurrenceID, memberID)
	if err != nil {
		return AttendanceRecord{}, mapStoreError(err)
	}

	row.ActuallyAttended = &attended
	row.UpdatedAt = s.now()

	if err := s.attendance.UpdateAttendance(ctx, row); err != nil {
		return AttendanceRecord{}, mapStoreError(err)
	}
	return row, nil
}

// Aggregate recomputes the per-status counts and the quorum signal from the
// occurrence's current attendance rows.
func (s *AttendanceService) Aggregate(ctx context.Context, occurrenceID string) (AttendanceSummary, error) {
	if s == nil {
		return AttendanceSummary{}, fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil || s.occurrences == nil {
		return AttendanceSummary{}, fmt.Errorf("attendance store not configured")
	}

	occ, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return AttendanceSummary{}, mapStoreError(err)
	}
	rows, err := s.attendance.ListAttendance(ctx, occurrenceID)
	if err != nil {
		return AttendanceSummary{}, mapStoreError(err)
	}
	return summarize(rows, occ.MinimumMembers), nil
}

// Attendance returns every row for the occurrence together with the
// aggregate counts, ordered by member ID.
func (s *AttendanceService) Attendance(ctx context.Context, occurrenceID string) ([]AttendanceRecord, AttendanceSummary, error) {
	if s == nil {
		return nil, AttendanceSummary{}, fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil || s.occurrences == nil {
		return nil, AttendanceSummary{}, fmt.Errorf("attendance store not configured")
	}

	occ, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, AttendanceSummary{}, mapStoreError(err)
	}
	rows, err := s.attendance.ListAttendance(ctx, occurrenceID)
	if err != nil {
		return nil, AttendanceSummary{}, mapStoreError(err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })
	return rows, summarize(rows, occ.MinimumMembers), nil
}

// Stats builds the per-member attendance report over a date range,
// excluding cancelled occurrences.
func (s *AttendanceService) Stats(ctx context.Context, groupID string, from, to *time.Time) ([]MemberStats, error) {
	if s == nil {
		return nil, fmt.Errorf("AttendanceService is nil")
	}
	if s.attendance == nil || s.occurrences == nil {
		return nil, fmt.Errorf("attendance store not configured")
	}

	notCancelled := false
	occurrences, err := s.occurrences.ListOccurrences(ctx, OccurrenceQuery{
		GroupID:   groupID,
		From:      from,
		To:        to,
		Cancelled: &notCancelled,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	byMember := make(map[string]*MemberStats)
	for _, occ := range occurrences {
		rows, err := s.attendance.ListAttendance(ctx, occ.ID)
		if err != nil {
			return nil, mapStoreError(err)
		}
		for _, row := range rows {
			stats, ok := byMember[row.MemberID]
			if !ok {
				stats = &MemberStats{MemberID: row.MemberID}
				byMember[row.MemberID] = stats
			}
			stats.Total++
			if row.Status == StatusConfirmed {
				stats.Confirmed++
			}
			if occ.Completed {
				stats.Completed++
				if row.ActuallyAttended != nil && *row.ActuallyAttended {
					stats.Attended++
				}
			}
		}
	}

	result := make([]MemberStats, 0, len(byMember))
	for _, stats := range byMember {
		if stats.Total > 0 {
			stats.ConfirmationRate = float64(stats.Confirmed) / float64(stats.Total)
		}
		if stats.Completed > 0 {
			stats.AttendanceRate = float64(stats.Attended) / float64(stats.Completed)
		}
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MemberID < result[j].MemberID })
	return result, nil
}

func (s *AttendanceService) setStatus(ctx context.Context, occurrenceID, memberID string, status AttendanceStatus, reason string) (AttendanceRecord, error) {
	if s.attendance == nil {
		return AttendanceRecord{}, fmt.Errorf("attendance store not configured")
	}

	if !status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "unknown attendance status")
		return AttendanceRecord{}, vErr
	}

	row, err := s.attendance.GetAttendance(ctx, occurrenceID, memberID)
	if err != nil {
		return AttendanceRecord{}, mapStoreError(err)
	}

	now := s.now()
	row.Status = status
	row.Reason = reason
	row.RespondedAt = &now
	row.UpdatedAt = now

	if err := s.attendance.UpdateAttendance(ctx, row); err != nil {
		return AttendanceRecord{}, mapStoreError(err)
	}
	return row, nil
}

func summarize(rows []AttendanceRecord, minimumMembers int) AttendanceSummary {
	var summary AttendanceSummary
	for _, row := range rows {
		switch row.Status {
		case StatusConfirmed:
			summary.Confirmed++
		case StatusDeclined:
			summary.Declined++
		case StatusTentative:
			summary.Tentative++
		default:
			summary.Pending++
		}
	}
	summary.QuorumMet = summary.Confirmed >= minimumMembers
	return summary
}

func uniqueMemberIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
