package schedule

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/example/raid-scheduler/internal/recurrence"
)

const (
	defaultWindowDays = 30
	defaultMaxWindow  = 90
)

// DashboardService composes read-only summary views across a member's
// groups. It never mutates; cached views are flushed per group by the
// series service on every structural change.
type DashboardService struct {
	occurrences   OccurrenceStore
	attendance    AttendanceStore
	members       MemberDirectory
	cache         *dashboardCache
	now           func() time.Time
	maxWindowDays int
}

// NewDashboardService wires dependencies for dashboard reads. cacheTTL
// bounds how long an unchanged view may be served; maxWindowDays caps the
// caller-requested day window.
func NewDashboardService(occurrences OccurrenceStore, attendance AttendanceStore, members MemberDirectory, cacheTTL time.Duration, maxWindowDays int, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	if maxWindowDays <= 0 {
		maxWindowDays = defaultMaxWindow
	}
	return &DashboardService{
		occurrences:   occurrences,
		attendance:    attendance,
		members:       members,
		cache:         newDashboardCache(cacheTTL, 0, now),
		now:           now,
		maxWindowDays: maxWindowDays,
	}
}

// InvalidateGroup flushes cached dashboards covering the group.
func (s *DashboardService) InvalidateGroup(groupID string) {
	if s == nil {
		return
	}
	s.cache.InvalidateGroup(groupID)
}

// Dashboard returns the member's occurrences inside the day window,
// partitioned into past and upcoming relative to now. An occurrence is past
// when its date precedes today or it is completed; cancelled occurrences
// are excluded entirely.
func (s *DashboardService) Dashboard(ctx context.Context, params DashboardParams) (Dashboard, error) {
	if s == nil {
		return Dashboard{}, fmt.Errorf("DashboardService is nil")
	}
	if s.occurrences == nil || s.attendance == nil {
		return Dashboard{}, fmt.Errorf("dashboard stores not configured")
	}

	daysAhead, daysBehind, err := s.windowDays(params)
	if err != nil {
		return Dashboard{}, err
	}

	now := params.Now
	if now.IsZero() {
		now = s.now()
	}
	today := recurrence.DateOf(now)

	groupIDs, err := s.resolveGroups(ctx, params)
	if err != nil {
		return Dashboard{}, err
	}
	if len(groupIDs) == 0 {
		return Dashboard{}, nil
	}

	key := buildDashboardCacheKey(params.MemberID, params.GroupID, daysAhead, daysBehind, today)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	from := today.AddDate(0, 0, -daysBehind)
	to := today.AddDate(0, 0, daysAhead)
	notCancelled := false

	occurrences, err := s.occurrences.ListOccurrences(ctx, OccurrenceQuery{
		GroupIDs:  groupIDs,
		From:      &from,
		To:        &to,
		Cancelled: &notCancelled,
	})
	if err != nil {
		return Dashboard{}, mapStoreError(err)
	}
	sortOccurrences(occurrences)

	var dashboard Dashboard
	for _, occ := range occurrences {
		rows, err := s.attendance.ListAttendance(ctx, occ.ID)
		if err != nil {
			return Dashboard{}, mapStoreError(err)
		}

		entry := DashboardEntry{
			Occurrence: occ,
			Summary:    summarize(rows, occ.MinimumMembers),
		}
		for _, row := range rows {
			if row.MemberID == params.MemberID {
				entry.SelfStatus = row.Status
				break
			}
		}

		if occ.Date.Before(today) || occ.Completed {
			dashboard.Past = append(dashboard.Past, entry)
		} else {
			dashboard.Upcoming = append(dashboard.Upcoming, entry)
		}
	}

	// Upcoming stays in ascending store order; past reads newest first.
	slices.Reverse(dashboard.Past)

	s.cache.Store(key, groupIDs, dashboard)
	return dashboard, nil
}

func (s *DashboardService) windowDays(params DashboardParams) (int, int, error) {
	daysAhead := params.DaysAhead
	if daysAhead == 0 {
		daysAhead = defaultWindowDays
	}
	daysBehind := params.DaysBehind
	if daysBehind == 0 {
		daysBehind = defaultWindowDays
	}

	vErr := &ValidationError{}
	if daysAhead < 1 || daysAhead > s.maxWindowDays {
		vErr.add("days_ahead", fmt.Sprintf("must be between 1 and %d", s.maxWindowDays))
	}
	if daysBehind < 1 || daysBehind > s.maxWindowDays {
		vErr.add("days_behind", fmt.Sprintf("must be between 1 and %d", s.maxWindowDays))
	}
	if vErr.HasErrors() {
		return 0, 0, vErr
	}
	return daysAhead, daysBehind, nil
}

func (s *DashboardService) resolveGroups(ctx context.Context, params DashboardParams) ([]string, error) {
	if s.members == nil {
		return nil, fmt.Errorf("member directory not configured")
	}

	if params.GroupID != "" {
		ok, err := s.members.IsMember(ctx, params.GroupID, params.MemberID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
		return []string{params.GroupID}, nil
	}

	return s.members.MemberGroups(ctx, params.MemberID)
}
