// Package memory provides a map-backed implementation of the persistence
// repositories. It mirrors the SQLite implementation's semantics, including
// the series rewrite precondition, and is primarily used by tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
)

type attendanceKey struct {
	occurrenceID string
	memberID     string
}

// Storage implements the occurrence, attendance, and membership
// repositories in memory.
type Storage struct {
	mu          sync.RWMutex
	occurrences map[string]persistence.Occurrence
	attendances map[attendanceKey]persistence.Attendance
	members     map[string][]persistence.GroupMember
}

// NewStorage returns an empty in-memory store.
func NewStorage() *Storage {
	return &Storage{
		occurrences: make(map[string]persistence.Occurrence),
		attendances: make(map[attendanceKey]persistence.Attendance),
		members:     make(map[string][]persistence.GroupMember),
	}
}

// --- OccurrenceRepository implementation ---

// CreateSeries stores occurrences and their attendance seeds atomically.
func (s *Storage) CreateSeries(ctx context.Context, occurrences []persistence.Occurrence, seeds []persistence.Attendance) error {
	if len(occurrences) == 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, occ := range occurrences {
		if _, ok := s.occurrences[occ.ID]; ok {
			return persistence.ErrDuplicate
		}
	}
	for _, occ := range occurrences {
		s.occurrences[occ.ID] = occ
	}
	s.seedLocked(seeds)
	return nil
}

// GetOccurrence retrieves an occurrence by ID.
func (s *Storage) GetOccurrence(ctx context.Context, id string) (persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return persistence.Occurrence{}, persistence.ErrNotFound
	}
	return occ, nil
}

// UpdateOccurrence rewrites a single occurrence.
func (s *Storage) UpdateOccurrence(ctx context.Context, occurrence persistence.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurrences[occurrence.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.occurrences[occurrence.ID] = occurrence
	return nil
}

// UpdateOccurrences rewrites rows atomically after checking the series
// precondition.
func (s *Storage) UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []persistence.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPreconditionLocked(seriesID, expectIDs); err != nil {
		return err
	}
	for _, occ := range occurrences {
		if _, ok := s.occurrences[occ.ID]; !ok {
			return persistence.ErrNotFound
		}
	}
	for _, occ := range occurrences {
		s.occurrences[occ.ID] = occ
	}
	return nil
}

// ReplaceSeries deletes, rewrites, and reinserts rows atomically after
// checking the series precondition.
func (s *Storage) ReplaceSeries(ctx context.Context, seriesID string, expectIDs []string, deleteIDs []string, updates []persistence.Occurrence, inserts []persistence.Occurrence, seeds []persistence.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPreconditionLocked(seriesID, expectIDs); err != nil {
		return err
	}
	for _, occ := range updates {
		if _, ok := s.occurrences[occ.ID]; !ok {
			return persistence.ErrNotFound
		}
	}
	s.deleteLocked(deleteIDs)
	for _, occ := range updates {
		s.occurrences[occ.ID] = occ
	}
	for _, occ := range inserts {
		s.occurrences[occ.ID] = occ
	}
	s.seedLocked(seeds)
	return nil
}

// DeleteOccurrences removes rows and cascades their attendance.
func (s *Storage) DeleteOccurrences(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(ids)
	return nil
}

// ListOccurrences returns occurrences matching the filter ordered by
// (date, start time, id).
func (s *Storage) ListOccurrences(ctx context.Context, filter persistence.OccurrenceFilter) ([]persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []persistence.Occurrence
	for _, occ := range s.occurrences {
		if matchesFilter(occ, filter) {
			result = append(result, occ)
		}
	}
	sortOccurrences(result)
	return result, nil
}

// ListSeries returns the series' occurrences in date order.
func (s *Storage) ListSeries(ctx context.Context, seriesID string) ([]persistence.Occurrence, error) {
	if seriesID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []persistence.Occurrence
	for _, occ := range s.occurrences {
		if occ.SeriesID == seriesID {
			result = append(result, occ)
		}
	}
	sortOccurrences(result)
	return result, nil
}

// --- AttendanceRepository implementation ---

// SeedAttendance inserts rows that do not already exist.
func (s *Storage) SeedAttendance(ctx context.Context, rows []persistence.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seedLocked(rows)
	return nil
}

// GetAttendance retrieves one row by its (occurrence, member) key.
func (s *Storage) GetAttendance(ctx context.Context, occurrenceID, memberID string) (persistence.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attendances[attendanceKey{occurrenceID, memberID}]
	if !ok {
		return persistence.Attendance{}, persistence.ErrNotFound
	}
	return att, nil
}

// UpdateAttendance rewrites an existing row.
func (s *Storage) UpdateAttendance(ctx context.Context, row persistence.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{row.OccurrenceID, row.MemberID}
	if _, ok := s.attendances[key]; !ok {
		return persistence.ErrNotFound
	}
	s.attendances[key] = row
	return nil
}

// ListAttendance returns every row for an occurrence ordered by member ID.
func (s *Storage) ListAttendance(ctx context.Context, occurrenceID string) ([]persistence.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []persistence.Attendance
	for key, att := range s.attendances {
		if key.occurrenceID == occurrenceID {
			result = append(result, att)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].MemberID < result[j].MemberID
	})
	return result, nil
}

// --- MembershipRepository implementation ---

// PutGroupMember records a membership row for tests and local wiring.
func (s *Storage) PutGroupMember(member persistence.GroupMember) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	rows := s.members[member.GroupID]
	for i, existing := range rows {
		if existing.MemberID == member.MemberID {
			rows[i] = member
			return
		}
	}
	s.members[member.GroupID] = append(rows, member)
}

// ListGroupMembers returns every membership row for a group.
func (s *Storage) ListGroupMembers(ctx context.Context, groupID string) ([]persistence.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := slices.Clone(s.members[groupID])
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].MemberID < rows[j].MemberID
	})
	return rows, nil
}

// GetGroupMember returns one membership row.
func (s *Storage) GetGroupMember(ctx context.Context, groupID, memberID string) (persistence.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, member := range s.members[groupID] {
		if member.MemberID == memberID {
			return member, nil
		}
	}
	return persistence.GroupMember{}, persistence.ErrNotFound
}

// ListMemberGroups returns IDs of groups the member actively belongs to.
func (s *Storage) ListMemberGroups(ctx context.Context, memberID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []string
	for groupID, rows := range s.members {
		for _, member := range rows {
			if member.MemberID == memberID && member.Active {
				groups = append(groups, groupID)
				break
			}
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// --- Helpers ---

func (s *Storage) seedLocked(rows []persistence.Attendance) {
	for _, row := range rows {
		key := attendanceKey{row.OccurrenceID, row.MemberID}
		if _, ok := s.attendances[key]; ok {
			continue
		}
		s.attendances[key] = row
	}
}

func (s *Storage) deleteLocked(ids []string) {
	for _, id := range ids {
		delete(s.occurrences, id)
		for key := range s.attendances {
			if key.occurrenceID == id {
				delete(s.attendances, key)
			}
		}
	}
}

func (s *Storage) checkPreconditionLocked(seriesID string, expectIDs []string) error {
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

func matchesFilter(occ persistence.Occurrence, filter persistence.OccurrenceFilter) bool {
	groupIDs := filter.GroupIDs
	if len(groupIDs) == 0 && filter.GroupID != "" {
		groupIDs = []string{filter.GroupID}
	}
	if len(groupIDs) > 0 && !slices.Contains(groupIDs, occ.GroupID) {
		return false
	}

	if filter.From != nil && occ.Date.Before(*filter.From) {
		return false
	}
	if filter.To != nil && occ.Date.After(*filter.To) {
		return false
	}
	if filter.Confirmed != nil && occ.Confirmed != *filter.Confirmed {
		return false
	}
	if filter.Completed != nil && occ.Completed != *filter.Completed {
		return false
	}
	if filter.Cancelled != nil && occ.Cancelled != *filter.Cancelled {
		return false
	}
	return true
}

func sortOccurrences(occurrences []persistence.Occurrence) {
	sort.Slice(occurrences, func(i, j int) bool {
		if !occurrences[i].Date.Equal(occurrences[j].Date) {
			return occurrences[i].Date.Before(occurrences[j].Date)
		}
		if occurrences[i].StartTime != occurrences[j].StartTime {
			return occurrences[i].StartTime < occurrences[j].StartTime
		}
		return occurrences[i].ID < occurrences[j].ID
	})
}
