package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
	"github.com/example/raid-scheduler/internal/testfixtures"
)

func seedSeries(t *testing.T, harness *testfixtures.SQLiteHarness, seriesID string, dates ...time.Time) []persistence.Occurrence {
	t.Helper()

	occurrences := make([]persistence.Occurrence, 0, len(dates))
	seeds := make([]persistence.Attendance, 0, len(dates))
	for _, date := range dates {
		fixture := testfixtures.NewOccurrenceFixture(
			testfixtures.WithOccurrenceSeries(seriesID),
			testfixtures.WithOccurrenceDate(date),
		)
		occurrences = append(occurrences, fixture.Persistence())
		seeds = append(seeds, testfixtures.NewAttendanceFixture(fixture.ID, "member-001").Persistence())
	}

	if err := harness.Occurrences.CreateSeries(context.Background(), occurrences, seeds); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}
	return occurrences
}

func insertGroupMember(t *testing.T, harness *testfixtures.SQLiteHarness, member persistence.GroupMember) {
	t.Helper()

	active := 0
	if member.Active {
		active = 1
	}
	canManage := 0
	if member.CanManageSchedule {
		canManage = 1
	}
	_, err := harness.Pool.DB().Exec(`INSERT INTO group_members
		(group_id, member_id, role, is_active, can_manage_schedule, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		member.GroupID, member.MemberID, member.Role, active, canManage,
		member.JoinedAt.UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("failed to insert group member: %v", err)
	}
}

func TestOccurrenceRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	end := "22:30"
	fixture := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceSeries("series-1"),
		testfixtures.WithOccurrenceTimes("20:00", &end),
	)

	err := harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{fixture.Persistence()},
		[]persistence.Attendance{testfixtures.NewAttendanceFixture(fixture.ID, "member-001").Persistence()})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	stored, err := harness.Occurrences.GetOccurrence(context.Background(), fixture.ID)
	if err != nil {
		t.Fatalf("GetOccurrence failed: %v", err)
	}
	if stored.SeriesID != "series-1" {
		t.Fatalf("expected series-1, got %q", stored.SeriesID)
	}
	if !stored.Date.Equal(fixture.Date) {
		t.Fatalf("expected date %s, got %s", fixture.Date, stored.Date)
	}
	if stored.EndTime == nil || *stored.EndTime != "22:30" {
		t.Fatalf("unexpected end time: %v", stored.EndTime)
	}
	if stored.Completed || stored.Cancelled {
		t.Fatal("fresh occurrence must not be terminal")
	}

	if _, err := harness.Occurrences.GetOccurrence(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOccurrenceRepositoryDuplicateID(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	fixture := testfixtures.NewOccurrenceFixture()

	if err := harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{fixture.Persistence()}, nil); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	err := harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{fixture.Persistence()}, nil)
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestOccurrenceRepositoryConstraints(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)

	noQuorum := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceMinimumMembers(0),
	).Persistence()
	err := harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{noQuorum}, nil)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	inverted := testfixtures.NewOccurrenceFixture().Persistence()
	before := "19:00"
	inverted.StartTime = "20:00"
	inverted.EndTime = &before
	err = harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{inverted}, nil)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestOccurrenceRepositoryUpdate(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	occurrences := seedSeries(t, harness, "series-upd",
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC))

	updated := occurrences[0]
	updated.Title = "Renamed session"
	updated.StartTime = "21:00"
	if err := harness.Occurrences.UpdateOccurrence(context.Background(), updated); err != nil {
		t.Fatalf("UpdateOccurrence failed: %v", err)
	}

	stored, err := harness.Occurrences.GetOccurrence(context.Background(), updated.ID)
	if err != nil {
		t.Fatalf("GetOccurrence failed: %v", err)
	}
	if stored.Title != "Renamed session" || stored.StartTime != "21:00" {
		t.Fatalf("update not persisted: %+v", stored)
	}

	missing := updated
	missing.ID = "missing"
	if err := harness.Occurrences.UpdateOccurrence(context.Background(), missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOccurrenceRepositoryPrecondition(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	occurrences := seedSeries(t, harness, "series-pre",
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC))

	stale := []string{occurrences[0].ID}
	err := harness.Occurrences.UpdateOccurrences(context.Background(), "series-pre", stale, occurrences[:1])
	if !errors.Is(err, persistence.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	current := []string{occurrences[0].ID, occurrences[1].ID}
	renamed := occurrences[0]
	renamed.Title = "Adjusted"
	if err := harness.Occurrences.UpdateOccurrences(context.Background(), "series-pre", current, []persistence.Occurrence{renamed}); err != nil {
		t.Fatalf("UpdateOccurrences failed: %v", err)
	}
}

func TestOccurrenceRepositoryReplaceSeries(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	occurrences := seedSeries(t, harness, "series-rep",
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC))

	detached := occurrences[0]
	detached.SeriesID = ""

	replacement := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceSeries("series-rep"),
		testfixtures.WithOccurrenceDate(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)),
	)
	seed := testfixtures.NewAttendanceFixture(replacement.ID, "member-002").Persistence()

	expect := []string{occurrences[0].ID, occurrences[1].ID, occurrences[2].ID}
	err := harness.Occurrences.ReplaceSeries(context.Background(), "series-rep", expect,
		[]string{occurrences[1].ID, occurrences[2].ID},
		[]persistence.Occurrence{detached},
		[]persistence.Occurrence{replacement.Persistence()},
		[]persistence.Attendance{seed})
	if err != nil {
		t.Fatalf("ReplaceSeries failed: %v", err)
	}

	series, err := harness.Occurrences.ListSeries(context.Background(), "series-rep")
	if err != nil {
		t.Fatalf("ListSeries failed: %v", err)
	}
	if len(series) != 1 || series[0].ID != replacement.ID {
		t.Fatalf("unexpected series contents: %+v", series)
	}

	standalone, err := harness.Occurrences.GetOccurrence(context.Background(), detached.ID)
	if err != nil {
		t.Fatalf("GetOccurrence failed: %v", err)
	}
	if standalone.SeriesID != "" {
		t.Fatalf("expected detached occurrence, got series %q", standalone.SeriesID)
	}

	if _, err := harness.Occurrences.GetOccurrence(context.Background(), occurrences[1].ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected deleted occurrence, got %v", err)
	}

	rows, err := harness.Attendance.ListAttendance(context.Background(), replacement.ID)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(rows) != 1 || rows[0].MemberID != "member-002" {
		t.Fatalf("unexpected seeds: %+v", rows)
	}
}

func TestOccurrenceRepositoryDeleteCascades(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	occurrences := seedSeries(t, harness, "series-del",
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC))

	if err := harness.Occurrences.DeleteOccurrences(context.Background(), []string{occurrences[0].ID}); err != nil {
		t.Fatalf("DeleteOccurrences failed: %v", err)
	}

	if _, err := harness.Occurrences.GetOccurrence(context.Background(), occurrences[0].ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rows, err := harness.Attendance.ListAttendance(context.Background(), occurrences[0].ID)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected attendance to be removed, got %d rows", len(rows))
	}
}

func TestOccurrenceRepositoryListFilters(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)

	groupA := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceGroup("alpha"),
		testfixtures.WithOccurrenceDate(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)),
	).Persistence()
	groupALater := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceGroup("alpha"),
		testfixtures.WithOccurrenceDate(time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC)),
	).Persistence()
	groupB := testfixtures.NewOccurrenceFixture(
		testfixtures.WithOccurrenceGroup("beta"),
		testfixtures.WithOccurrenceDate(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)),
	).Persistence()
	if err := harness.Occurrences.CreateSeries(context.Background(),
		[]persistence.Occurrence{groupA, groupALater, groupB}, nil); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	listed, err := harness.Occurrences.ListOccurrences(context.Background(), persistence.OccurrenceFilter{
		GroupID: "alpha",
		From:    &from,
		To:      &to,
	})
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != groupA.ID {
		t.Fatalf("unexpected filter result: %+v", listed)
	}

	both, err := harness.Occurrences.ListOccurrences(context.Background(), persistence.OccurrenceFilter{
		GroupIDs: []string{"alpha", "beta"},
	})
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(both) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(both))
	}
	for i := 1; i < len(both); i++ {
		if both[i].Date.Before(both[i-1].Date) {
			t.Fatalf("results out of date order: %+v", both)
		}
	}
}

func TestAttendanceRepositorySeedAndUpdate(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	occurrences := seedSeries(t, harness, "series-att",
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC))
	occurrenceID := occurrences[0].ID

	confirmed := testfixtures.NewAttendanceFixture(occurrenceID, "member-001").Persistence()
	confirmed.Status = "confirmed"
	if err := harness.Attendance.UpdateAttendance(context.Background(), confirmed); err != nil {
		t.Fatalf("UpdateAttendance failed: %v", err)
	}

	// Re-seeding must not overwrite the confirmed response.
	reseed := testfixtures.NewAttendanceFixture(occurrenceID, "member-001").Persistence()
	extra := testfixtures.NewAttendanceFixture(occurrenceID, "member-002").Persistence()
	if err := harness.Attendance.SeedAttendance(context.Background(), []persistence.Attendance{reseed, extra}); err != nil {
		t.Fatalf("SeedAttendance failed: %v", err)
	}

	stored, err := harness.Attendance.GetAttendance(context.Background(), occurrenceID, "member-001")
	if err != nil {
		t.Fatalf("GetAttendance failed: %v", err)
	}
	if stored.Status != "confirmed" {
		t.Fatalf("seed overwrote existing row: %q", stored.Status)
	}

	rows, err := harness.Attendance.ListAttendance(context.Background(), occurrenceID)
	if err != nil {
		t.Fatalf("ListAttendance failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].MemberID != "member-001" || rows[1].MemberID != "member-002" {
		t.Fatalf("rows out of member order: %+v", rows)
	}

	missing := testfixtures.NewAttendanceFixture(occurrenceID, "member-404").Persistence()
	if err := harness.Attendance.UpdateAttendance(context.Background(), missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipRepositoryReads(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)

	leader := testfixtures.NewMemberFixture(
		testfixtures.WithMemberGroup("raiders"),
		testfixtures.WithMemberID("leader"),
		testfixtures.WithMemberManagement(),
	).Persistence()
	regular := testfixtures.NewMemberFixture(
		testfixtures.WithMemberGroup("raiders"),
		testfixtures.WithMemberID("member-2"),
	).Persistence()
	retired := testfixtures.NewMemberFixture(
		testfixtures.WithMemberGroup("raiders"),
		testfixtures.WithMemberID("retired"),
		testfixtures.WithMemberInactive(),
	).Persistence()
	elsewhere := testfixtures.NewMemberFixture(
		testfixtures.WithMemberGroup("casuals"),
		testfixtures.WithMemberID("leader"),
	).Persistence()
	for _, member := range []persistence.GroupMember{leader, regular, retired, elsewhere} {
		insertGroupMember(t, harness, member)
	}

	members, err := harness.Memberships.ListGroupMembers(context.Background(), "raiders")
	if err != nil {
		t.Fatalf("ListGroupMembers failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	stored, err := harness.Memberships.GetGroupMember(context.Background(), "raiders", "leader")
	if err != nil {
		t.Fatalf("GetGroupMember failed: %v", err)
	}
	if !stored.CanManageSchedule || stored.Role != "leader" {
		t.Fatalf("unexpected member row: %+v", stored)
	}

	if _, err := harness.Memberships.GetGroupMember(context.Background(), "raiders", "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	groups, err := harness.Memberships.ListMemberGroups(context.Background(), "leader")
	if err != nil {
		t.Fatalf("ListMemberGroups failed: %v", err)
	}
	if len(groups) != 2 || groups[0] != "casuals" || groups[1] != "raiders" {
		t.Fatalf("unexpected groups: %v", groups)
	}

	inactive, err := harness.Memberships.ListMemberGroups(context.Background(), "retired")
	if err != nil {
		t.Fatalf("ListMemberGroups failed: %v", err)
	}
	if len(inactive) != 0 {
		t.Fatalf("inactive membership must be excluded, got %v", inactive)
	}
}
