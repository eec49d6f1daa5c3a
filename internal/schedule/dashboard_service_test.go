package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newDashboardServiceForTest(store *storeStub, directory *directoryStub, now time.Time) *DashboardService {
	return NewDashboardService(store, store, directory, time.Minute, 0, fixedClock(now))
}

func seedDashboardFixtures(store *storeStub) {
	putOccurrence(store, "old", civilDate(2024, time.January, 20), nil)
	putOccurrence(store, "done", civilDate(2024, time.February, 1), func(o *Occurrence) { o.Completed = true })
	putOccurrence(store, "today", civilDate(2024, time.February, 1), func(o *Occurrence) { o.StartTime = "21:00" })
	putOccurrence(store, "soon", civilDate(2024, time.February, 5), nil)
	putOccurrence(store, "cancelled", civilDate(2024, time.February, 7), func(o *Occurrence) { o.Cancelled = true })

	putAttendance(store, "soon", "member-1", StatusConfirmed)
	putAttendance(store, "soon", "member-2", StatusDeclined)
}

func TestDashboardService_PartitionsAroundNow(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	seedDashboardFixtures(store)

	directory := &directoryStub{groups: []string{"group-1"}}
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := newDashboardServiceForTest(store, directory, now)

	dashboard, err := svc.Dashboard(context.Background(), DashboardParams{MemberID: "member-1", Now: now})
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}

	// "old" predates today and "done" is completed; "today" stays upcoming
	// because its date has not passed. Cancelled occurrences never appear.
	if len(dashboard.Past) != 2 {
		t.Fatalf("expected 2 past entries, got %d", len(dashboard.Past))
	}
	if len(dashboard.Upcoming) != 2 {
		t.Fatalf("expected 2 upcoming entries, got %d", len(dashboard.Upcoming))
	}

	// Past reads newest first.
	if dashboard.Past[0].Occurrence.ID != "done" || dashboard.Past[1].Occurrence.ID != "old" {
		t.Fatalf("past not in descending order: %s, %s",
			dashboard.Past[0].Occurrence.ID, dashboard.Past[1].Occurrence.ID)
	}
	if dashboard.Upcoming[0].Occurrence.ID != "today" || dashboard.Upcoming[1].Occurrence.ID != "soon" {
		t.Fatalf("upcoming not in ascending order: %s, %s",
			dashboard.Upcoming[0].Occurrence.ID, dashboard.Upcoming[1].Occurrence.ID)
	}

	for _, entry := range append(dashboard.Past, dashboard.Upcoming...) {
		if entry.Occurrence.Cancelled {
			t.Fatalf("cancelled occurrence leaked into the dashboard")
		}
	}
}

func TestDashboardService_AnnotatesSelfStatus(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	seedDashboardFixtures(store)

	directory := &directoryStub{groups: []string{"group-1"}}
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := newDashboardServiceForTest(store, directory, now)

	dashboard, err := svc.Dashboard(context.Background(), DashboardParams{MemberID: "member-1", Now: now})
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}

	var soon *DashboardEntry
	for i := range dashboard.Upcoming {
		if dashboard.Upcoming[i].Occurrence.ID == "soon" {
			soon = &dashboard.Upcoming[i]
		}
	}
	if soon == nil {
		t.Fatalf("occurrence soon missing from dashboard")
	}

	if soon.SelfStatus != StatusConfirmed {
		t.Fatalf("expected own status confirmed, got %q", soon.SelfStatus)
	}
	if soon.Summary.Confirmed != 1 || soon.Summary.Declined != 1 {
		t.Fatalf("unexpected aggregate: %+v", soon.Summary)
	}

	// Occurrences without a row for the member carry an empty status.
	if dashboard.Upcoming[0].SelfStatus != "" {
		t.Fatalf("expected empty status without a row, got %q", dashboard.Upcoming[0].SelfStatus)
	}
}

func TestDashboardService_GroupFilterRequiresMembership(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	directory := &directoryStub{member: false}
	svc := newDashboardServiceForTest(store, directory, civilDate(2024, time.February, 1))

	_, err := svc.Dashboard(context.Background(), DashboardParams{MemberID: "outsider", GroupID: "group-1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDashboardService_ValidatesWindow(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	directory := &directoryStub{groups: []string{"group-1"}}
	svc := newDashboardServiceForTest(store, directory, civilDate(2024, time.February, 1))

	_, err := svc.Dashboard(context.Background(), DashboardParams{MemberID: "member-1", DaysAhead: 500})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["days_ahead"]; !ok {
		t.Fatalf("expected days_ahead validation error, got %v", vErr.FieldErrors)
	}
}

func TestDashboardService_NoGroupsYieldsEmptyDashboard(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	directory := &directoryStub{}
	svc := newDashboardServiceForTest(store, directory, civilDate(2024, time.February, 1))

	dashboard, err := svc.Dashboard(context.Background(), DashboardParams{MemberID: "loner"})
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if len(dashboard.Past) != 0 || len(dashboard.Upcoming) != 0 {
		t.Fatalf("expected empty dashboard, got %+v", dashboard)
	}
	if store.listCalls != 0 {
		t.Fatalf("store should not be queried without groups")
	}
}

func TestDashboardService_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	seedDashboardFixtures(store)

	directory := &directoryStub{groups: []string{"group-1"}}
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := newDashboardServiceForTest(store, directory, now)

	params := DashboardParams{MemberID: "member-1", Now: now}

	if _, err := svc.Dashboard(context.Background(), params); err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.listCalls)
	}

	if _, err := svc.Dashboard(context.Background(), params); err != nil {
		t.Fatalf("cached Dashboard failed: %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected cached read, got %d store reads", store.listCalls)
	}

	// A structural change flushes the group's views; the next read must
	// reflect the mutation.
	putOccurrence(store, "new", civilDate(2024, time.February, 9), nil)
	svc.InvalidateGroup("group-1")

	dashboard, err := svc.Dashboard(context.Background(), params)
	if err != nil {
		t.Fatalf("Dashboard after invalidation failed: %v", err)
	}
	if store.listCalls != 2 {
		t.Fatalf("expected a fresh store read, got %d", store.listCalls)
	}

	found := false
	for _, entry := range dashboard.Upcoming {
		if entry.Occurrence.ID == "new" {
			found = true
		}
	}
	if !found {
		t.Fatalf("dashboard does not reflect the mutation after invalidation")
	}
}
