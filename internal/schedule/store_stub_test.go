package schedule

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
)

// storeStub backs OccurrenceStore and AttendanceStore with maps, mirroring
// the persistence layer's semantics including the series precondition.
type storeStub struct {
	occurrences map[string]Occurrence
	attendance  map[string]AttendanceRecord

	failPrecondition bool
	listCalls        int
	err              error
}

func newStoreStub() *storeStub {
	return &storeStub{
		occurrences: make(map[string]Occurrence),
		attendance:  make(map[string]AttendanceRecord),
	}
}

func attendanceStubKey(occurrenceID, memberID string) string {
	return occurrenceID + "|" + memberID
}

func (s *storeStub) CreateSeries(ctx context.Context, occurrences []Occurrence, seeds []AttendanceRecord) error {
	if s.err != nil {
		return s.err
	}
	for _, occ := range occurrences {
		s.occurrences[occ.ID] = occ
	}
	s.seed(seeds)
	return nil
}

func (s *storeStub) GetOccurrence(ctx context.Context, id string) (Occurrence, error) {
	if s.err != nil {
		return Occurrence{}, s.err
	}
	occ, ok := s.occurrences[id]
	if !ok {
		return Occurrence{}, persistence.ErrNotFound
	}
	return occ, nil
}

func (s *storeStub) UpdateOccurrence(ctx context.Context, occurrence Occurrence) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.occurrences[occurrence.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.occurrences[occurrence.ID] = occurrence
	return nil
}

func (s *storeStub) UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []Occurrence) error {
	if s.err != nil {
		return s.err
	}
	if err := s.checkPrecondition(seriesID, expectIDs); err != nil {
		return err
	}
	for _, occ := range occurrences {
		s.occurrences[occ.ID] = occ
	}
	return nil
}

func (s *storeStub) ReplaceSeries(ctx context.Context, seriesID string, expectIDs []string, deleteIDs []string, updates []Occurrence, inserts []Occurrence, seeds []AttendanceRecord) error {
	if s.err != nil {
		return s.err
	}
	if err := s.checkPrecondition(seriesID, expectIDs); err != nil {
		return err
	}
	s.delete(deleteIDs)
	for _, occ := range updates {
		s.occurrences[occ.ID] = occ
	}
	for _, occ := range inserts {
		s.occurrences[occ.ID] = occ
	}
	s.seed(seeds)
	return nil
}

func (s *storeStub) DeleteOccurrences(ctx context.Context, ids []string) error {
	if s.err != nil {
		return s.err
	}
	s.delete(ids)
	return nil
}

func (s *storeStub) ListOccurrences(ctx context.Context, query OccurrenceQuery) ([]Occurrence, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.listCalls++

	groupIDs := query.GroupIDs
	if len(groupIDs) == 0 && query.GroupID != "" {
		groupIDs = []string{query.GroupID}
	}

	var result []Occurrence
	for _, occ := range s.occurrences {
		if len(groupIDs) > 0 && !slices.Contains(groupIDs, occ.GroupID) {
			continue
		}
		if query.From != nil && occ.Date.Before(*query.From) {
			continue
		}
		if query.To != nil && occ.Date.After(*query.To) {
			continue
		}
		if query.Confirmed != nil && occ.Confirmed != *query.Confirmed {
			continue
		}
		if query.Completed != nil && occ.Completed != *query.Completed {
			continue
		}
		if query.Cancelled != nil && occ.Cancelled != *query.Cancelled {
			continue
		}
		result = append(result, occ)
	}
	sortOccurrences(result)
	return result, nil
}

func (s *storeStub) ListSeries(ctx context.Context, seriesID string) ([]Occurrence, error) {
	if s.err != nil {
		return nil, s.err
	}
	var result []Occurrence
	for _, occ := range s.occurrences {
		if occ.SeriesID == seriesID && seriesID != "" {
			result = append(result, occ)
		}
	}
	sortOccurrences(result)
	return result, nil
}

func (s *storeStub) SeedAttendance(ctx context.Context, rows []AttendanceRecord) error {
	if s.err != nil {
		return s.err
	}
	s.seed(rows)
	return nil
}

func (s *storeStub) GetAttendance(ctx context.Context, occurrenceID, memberID string) (AttendanceRecord, error) {
	if s.err != nil {
		return AttendanceRecord{}, s.err
	}
	row, ok := s.attendance[attendanceStubKey(occurrenceID, memberID)]
	if !ok {
		return AttendanceRecord{}, persistence.ErrNotFound
	}
	return row, nil
}

func (s *storeStub) UpdateAttendance(ctx context.Context, row AttendanceRecord) error {
	if s.err != nil {
		return s.err
	}
	key := attendanceStubKey(row.OccurrenceID, row.MemberID)
	if _, ok := s.attendance[key]; !ok {
		return persistence.ErrNotFound
	}
	s.attendance[key] = row
	return nil
}

func (s *storeStub) ListAttendance(ctx context.Context, occurrenceID string) ([]AttendanceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var result []AttendanceRecord
	for _, row := range s.attendance {
		if row.OccurrenceID == occurrenceID {
			result = append(result, row)
		}
	}
	slices.SortFunc(result, func(a, b AttendanceRecord) int {
		switch {
		case a.MemberID < b.MemberID:
			return -1
		case a.MemberID > b.MemberID:
			return 1
		default:
			return 0
		}
	})
	return result, nil
}

func (s *storeStub) seed(rows []AttendanceRecord) {
	for _, row := range rows {
		key := attendanceStubKey(row.OccurrenceID, row.MemberID)
		if _, ok := s.attendance[key]; ok {
			continue
		}
		s.attendance[key] = row
	}
}

func (s *storeStub) delete(ids []string) {
	for _, id := range ids {
		delete(s.occurrences, id)
		for key, row := range s.attendance {
			if row.OccurrenceID == id {
				delete(s.attendance, key)
			}
		}
	}
}

func (s *storeStub) checkPrecondition(seriesID string, expectIDs []string) error {
	if s.failPrecondition {
		return persistence.ErrPreconditionFailed
	}
	if expectIDs == nil || seriesID == "" {
		return nil
	}
	var current []string
	for id, occ := range s.occurrences {
		if occ.SeriesID == seriesID {
			current = append(current, id)
		}
	}
	expected := slices.Clone(expectIDs)
	slices.Sort(expected)
	slices.Sort(current)
	if !slices.Equal(expected, current) {
		return persistence.ErrPreconditionFailed
	}
	return nil
}

func (s *storeStub) seriesOccurrences(seriesID string) []Occurrence {
	var result []Occurrence
	for _, occ := range s.occurrences {
		if occ.SeriesID == seriesID {
			result = append(result, occ)
		}
	}
	sortOccurrences(result)
	return result
}

func (s *storeStub) attendanceFor(occurrenceID string) []AttendanceRecord {
	var result []AttendanceRecord
	for _, row := range s.attendance {
		if row.OccurrenceID == occurrenceID {
			result = append(result, row)
		}
	}
	return result
}

type directoryStub struct {
	activeIDs []string
	groups    []string
	member    bool
	err       error
}

func (d *directoryStub) ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.activeIDs, nil
}

func (d *directoryStub) MemberGroups(ctx context.Context, memberID string) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.groups, nil
}

func (d *directoryStub) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.member, nil
}

type invalidatorStub struct {
	groups []string
}

func (i *invalidatorStub) InvalidateGroup(groupID string) {
	i.groups = append(i.groups, groupID)
}

// idCounter is shared across generators so that services built over the
// same store never hand out colliding IDs.
var idCounter atomic.Int64

func sequentialIDs(prefix string) func() string {
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func civilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
