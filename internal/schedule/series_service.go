package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
	"github.com/example/raid-scheduler/internal/recurrence"
)

// OccurrenceStore captures the persistence interactions needed by the
// schedule services. Bulk operations are atomic: a reader never observes a
// partially rewritten series.
type OccurrenceStore interface {
	CreateSeries(ctx context.Context, occurrences []Occurrence, seeds []AttendanceRecord) error
	GetOccurrence(ctx context.Context, id string) (Occurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence Occurrence) error
	// UpdateOccurrences rewrites rows atomically. When expectIDs is non-nil
	// the series membership must still equal it, or the call fails with the
	// store's precondition error.
	UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []Occurrence) error
	// ReplaceSeries deletes, rewrites, and inserts rows in one atomic unit,
	// seeding attendance for the inserted rows.
	ReplaceSeries(ctx context.Context, seriesID string, expectIDs []string, deleteIDs []string, updates []Occurrence, inserts []Occurrence, seeds []AttendanceRecord) error
	DeleteOccurrences(ctx context.Context, ids []string) error
	ListOccurrences(ctx context.Context, query OccurrenceQuery) ([]Occurrence, error)
	ListSeries(ctx context.Context, seriesID string) ([]Occurrence, error)
}

// MemberDirectory exposes the roster lookups the schedule services consume.
// Membership itself is owned by an external collaborator.
type MemberDirectory interface {
	ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error)
	MemberGroups(ctx context.Context, memberID string) ([]string, error)
	IsMember(ctx context.Context, groupID, memberID string) (bool, error)
}

// DashboardInvalidator flushes cached dashboard views for a group after a
// structural change.
type DashboardInvalidator interface {
	InvalidateGroup(groupID string)
}

// SeriesService orchestrates occurrence creation, series-scoped mutation,
// and lifecycle transitions.
type SeriesService struct {
	occurrences OccurrenceStore
	members     MemberDirectory
	dashboards  DashboardInvalidator
	idGenerator func() string
	now         func() time.Time
}

// NewSeriesService wires dependencies for series operations.
func NewSeriesService(occurrences OccurrenceStore, members MemberDirectory, dashboards DashboardInvalidator, idGenerator func() string, now func() time.Time) *SeriesService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SeriesService{
		occurrences: occurrences,
		members:     members,
		dashboards:  dashboards,
		idGenerator: idGenerator,
		now:         now,
	}
}

// CreateSeries expands the rule, persists the occurrences under one series
// identifier, and seeds a pending attendance row per active group member.
func (s *SeriesService) CreateSeries(ctx context.Context, params CreateSeriesParams) ([]Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return nil, fmt.Errorf("occurrence store not configured")
	}
	if !params.Principal.CanManage {
		return nil, ErrForbidden
	}

	vErr := &ValidationError{}
	validateOccurrenceCore(params.Input, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	dates, err := recurrence.Expand(params.Input.Date, params.Rule)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: rule produces no occurrences", recurrence.ErrInvalidRule)
	}

	seriesID := ""
	if params.Rule.Type != recurrence.TypeNone {
		seriesID = s.idGenerator()
	}

	now := s.now()
	occurrences := make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		occ := s.newOccurrence(params.Principal, params.GroupID, params.Input, now)
		occ.SeriesID = seriesID
		occ.Date = date
		occurrences = append(occurrences, occ)
	}

	memberIDs, err := s.activeMembers(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	seeds := seedRecords(occurrences, memberIDs, now)

	if err := s.occurrences.CreateSeries(ctx, occurrences, seeds); err != nil {
		return nil, mapStoreError(err)
	}

	s.invalidateGroup(params.GroupID)
	serviceLogger(ctx, nil, "SeriesService", "CreateSeries",
		"group_id", params.GroupID, "series_id", seriesID).
		Info("series created", "occurrences", len(occurrences), "seeded_members", len(memberIDs))

	return occurrences, nil
}

// UpdateOccurrence applies the template to the occurrences selected by the
// scope. A standalone occurrence is always treated as this-only.
func (s *SeriesService) UpdateOccurrence(ctx context.Context, params UpdateOccurrenceParams) ([]Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return nil, fmt.Errorf("occurrence store not configured")
	}
	if !params.Principal.CanManage {
		return nil, ErrForbidden
	}

	target, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if target.Terminal() {
		return nil, ErrTerminal
	}

	vErr := &ValidationError{}
	validateOccurrenceCore(params.Input, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}
	if params.Rule != nil {
		if err := params.Rule.Validate(); err != nil {
			return nil, err
		}
	}

	scope := params.Scope
	if target.SeriesID == "" {
		scope = ScopeThisOnly
	}

	var updated []Occurrence
	switch scope {
	case ScopeThisOnly:
		updated, err = s.updateThisOnly(ctx, target, params)
	case ScopeThisAndFuture:
		updated, err = s.updateThisAndFuture(ctx, target, params)
	case ScopeAll:
		updated, err = s.updateAll(ctx, target, params)
	default:
		vErr.add("scope", "unknown scope")
		return nil, vErr
	}
	if err != nil {
		return nil, err
	}

	s.invalidateGroup(target.GroupID)
	serviceLogger(ctx, nil, "SeriesService", "UpdateOccurrence",
		"group_id", target.GroupID, "occurrence_id", target.ID).
		Info("occurrence updated", "scope", string(scope), "affected", len(updated))

	return updated, nil
}

// DeleteOccurrence removes the occurrences selected by the scope along with
// their attendance rows. Completed and cancelled occurrences inside a bulk
// scope are detached from the series instead of removed.
func (s *SeriesService) DeleteOccurrence(ctx context.Context, params DeleteOccurrenceParams) error {
	if s == nil {
		return fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return fmt.Errorf("occurrence store not configured")
	}
	if !params.Principal.CanManage {
		return ErrForbidden
	}

	target, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return mapStoreError(err)
	}
	if target.Terminal() {
		return ErrTerminal
	}

	scope := params.Scope
	if target.SeriesID == "" {
		scope = ScopeThisOnly
	}

	switch scope {
	case ScopeThisOnly:
		err = s.occurrences.DeleteOccurrences(ctx, []string{target.ID})
	case ScopeThisAndFuture, ScopeAll:
		err = s.deleteSeriesScope(ctx, target, scope)
	default:
		vErr := &ValidationError{}
		vErr.add("scope", "unknown scope")
		return vErr
	}
	if err != nil {
		return mapStoreError(err)
	}

	s.invalidateGroup(target.GroupID)
	serviceLogger(ctx, nil, "SeriesService", "DeleteOccurrence",
		"group_id", target.GroupID, "occurrence_id", target.ID).
		Info("occurrence deleted", "scope", string(scope))

	return nil
}

// ListOccurrences enumerates a group's occurrences visible to the
// requesting member, ordered by (date, start time).
func (s *SeriesService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) ([]Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return nil, fmt.Errorf("occurrence store not configured")
	}

	if err := s.ensureMembership(ctx, params.GroupID, params.Principal.MemberID); err != nil {
		return nil, err
	}

	occurrences, err := s.occurrences.ListOccurrences(ctx, OccurrenceQuery{
		GroupID:   params.GroupID,
		From:      params.From,
		To:        params.To,
		Confirmed: params.Confirmed,
		Completed: params.Completed,
		Cancelled: params.Cancelled,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapStoreError(err)
	}

	sortOccurrences(occurrences)
	return occurrences, nil
}

// GetOccurrence returns a single occurrence. The principal must belong to
// the occurrence's group.
func (s *SeriesService) GetOccurrence(ctx context.Context, principal Principal, occurrenceID string) (Occurrence, error) {
	if s == nil {
		return Occurrence{}, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return Occurrence{}, fmt.Errorf("occurrence store not configured")
	}

	target, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return Occurrence{}, mapStoreError(err)
	}
	if err := s.ensureMembership(ctx, target.GroupID, principal.MemberID); err != nil {
		return Occurrence{}, err
	}
	return target, nil
}

// CompleteOccurrence marks the occurrence completed, stamping the
// completion time and recording the completion notes.
func (s *SeriesService) CompleteOccurrence(ctx context.Context, params CompleteOccurrenceParams) (Occurrence, error) {
	if s == nil {
		return Occurrence{}, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return Occurrence{}, fmt.Errorf("occurrence store not configured")
	}
	if !params.Principal.CanManage {
		return Occurrence{}, ErrForbidden
	}

	target, err := s.occurrences.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return Occurrence{}, mapStoreError(err)
	}
	if target.Terminal() {
		return Occurrence{}, ErrTerminal
	}

	now := s.now()
	target.Completed = true
	target.CompletedAt = &now
	target.CompletionNotes = params.CompletionNotes
	target.UpdatedAt = now

	if err := s.occurrences.UpdateOccurrence(ctx, target); err != nil {
		return Occurrence{}, mapStoreError(err)
	}

	s.invalidateGroup(target.GroupID)
	return target, nil
}

// CancelOccurrence marks the occurrence cancelled, stamping the
// cancellation time.
func (s *SeriesService) CancelOccurrence(ctx context.Context, principal Principal, occurrenceID string) (Occurrence, error) {
	if s == nil {
		return Occurrence{}, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return Occurrence{}, fmt.Errorf("occurrence store not configured")
	}
	if !principal.CanManage {
		return Occurrence{}, ErrForbidden
	}

	target, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return Occurrence{}, mapStoreError(err)
	}
	if target.Terminal() {
		return Occurrence{}, ErrTerminal
	}

	now := s.now()
	target.Cancelled = true
	target.CancelledAt = &now
	target.UpdatedAt = now

	if err := s.occurrences.UpdateOccurrence(ctx, target); err != nil {
		return Occurrence{}, mapStoreError(err)
	}

	s.invalidateGroup(target.GroupID)
	return target, nil
}

// UpdateCompletionNotes edits the completion notes of a completed
// occurrence. This is the only mutation allowed after completion.
func (s *SeriesService) UpdateCompletionNotes(ctx context.Context, principal Principal, occurrenceID, notes string) (Occurrence, error) {
	if s == nil {
		return Occurrence{}, fmt.Errorf("SeriesService is nil")
	}
	if s.occurrences == nil {
		return Occurrence{}, fmt.Errorf("occurrence store not configured")
	}
	if !principal.CanManage {
		return Occurrence{}, ErrForbidden
	}

	target, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return Occurrence{}, mapStoreError(err)
	}
	if !target.Completed {
		vErr := &ValidationError{}
		vErr.add("completion_notes", "occurrence is not completed")
		return Occurrence{}, vErr
	}

	target.CompletionNotes = notes
	target.UpdatedAt = s.now()

	if err := s.occurrences.UpdateOccurrence(ctx, target); err != nil {
		return Occurrence{}, mapStoreError(err)
	}

	s.invalidateGroup(target.GroupID)
	return target, nil
}

func (s *SeriesService) updateThisOnly(ctx context.Context, target Occurrence, params UpdateOccurrenceParams) ([]Occurrence, error) {
	updated := target
	applyTemplate(&updated, params.Input, true)
	// Detach so later series-wide edits no longer affect this occurrence.
	updated.SeriesID = ""
	updated.UpdatedAt = s.now()

	if err := s.occurrences.UpdateOccurrence(ctx, updated); err != nil {
		return nil, mapStoreError(err)
	}
	return []Occurrence{updated}, nil
}

func (s *SeriesService) updateThisAndFuture(ctx context.Context, target Occurrence, params UpdateOccurrenceParams) ([]Occurrence, error) {
	series, err := s.occurrences.ListSeries(ctx, target.SeriesID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	sortOccurrences(series)
	expectIDs := occurrenceIDs(series)

	idx := slices.IndexFunc(series, func(occ Occurrence) bool { return occ.ID == target.ID })
	if idx < 0 {
		return nil, ErrConflict
	}
	tail := series[idx:]

	now := s.now()
	newSeriesID := s.idGenerator()

	if params.Rule == nil {
		// Relabel the tail as its own series and apply the template,
		// preserving each occurrence's date and its attendance rows.
		updates := make([]Occurrence, 0, len(tail))
		for _, occ := range tail {
			if occ.Terminal() {
				continue
			}
			applyTemplate(&occ, params.Input, false)
			occ.SeriesID = newSeriesID
			occ.UpdatedAt = now
			updates = append(updates, occ)
		}
		if err := s.occurrences.ReplaceSeries(ctx, target.SeriesID, expectIDs, nil, updates, nil, nil); err != nil {
			return nil, mapStoreError(err)
		}
		return updates, nil
	}

	// The rule changed: drop the tail and re-expand it as a new series
	// anchored at the target's date.
	deleteIDs, detached := partitionRemovals(tail, now)
	inserts, seeds, err := s.expandReplacement(ctx, target, params, newSeriesID, target.Date, now)
	if err != nil {
		return nil, err
	}
	if err := s.occurrences.ReplaceSeries(ctx, target.SeriesID, expectIDs, deleteIDs, detached, inserts, seeds); err != nil {
		return nil, mapStoreError(err)
	}
	return inserts, nil
}

func (s *SeriesService) updateAll(ctx context.Context, target Occurrence, params UpdateOccurrenceParams) ([]Occurrence, error) {
	series, err := s.occurrences.ListSeries(ctx, target.SeriesID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	sortOccurrences(series)
	expectIDs := occurrenceIDs(series)

	now := s.now()

	if params.Rule == nil {
		updates := make([]Occurrence, 0, len(series))
		for _, occ := range series {
			if occ.Terminal() {
				continue
			}
			applyTemplate(&occ, params.Input, false)
			occ.UpdatedAt = now
			updates = append(updates, occ)
		}
		if err := s.occurrences.UpdateOccurrences(ctx, target.SeriesID, expectIDs, updates); err != nil {
			return nil, mapStoreError(err)
		}
		return updates, nil
	}

	// Re-expansion replaces the full set: the new cadence starts from the
	// earliest occurrence's date, under the same series identifier.
	anchor := target.Date
	if len(series) > 0 {
		anchor = series[0].Date
	}
	deleteIDs, detached := partitionRemovals(series, now)
	inserts, seeds, err := s.expandReplacement(ctx, target, params, target.SeriesID, anchor, now)
	if err != nil {
		return nil, err
	}
	if err := s.occurrences.ReplaceSeries(ctx, target.SeriesID, expectIDs, deleteIDs, detached, inserts, seeds); err != nil {
		return nil, mapStoreError(err)
	}
	return inserts, nil
}

func (s *SeriesService) deleteSeriesScope(ctx context.Context, target Occurrence, scope Scope) error {
	series, err := s.occurrences.ListSeries(ctx, target.SeriesID)
	if err != nil {
		return mapStoreError(err)
	}
	sortOccurrences(series)
	expectIDs := occurrenceIDs(series)

	inScope := series
	if scope == ScopeThisAndFuture {
		idx := slices.IndexFunc(series, func(occ Occurrence) bool { return occ.ID == target.ID })
		if idx < 0 {
			return ErrConflict
		}
		inScope = series[idx:]
	}

	deleteIDs, detached := partitionRemovals(inScope, s.now())
	return s.occurrences.ReplaceSeries(ctx, target.SeriesID, expectIDs, deleteIDs, detached, nil, nil)
}

// expandReplacement materializes the new rule into fresh occurrences with
// their pending attendance seeds.
func (s *SeriesService) expandReplacement(ctx context.Context, target Occurrence, params UpdateOccurrenceParams, seriesID string, anchor time.Time, now time.Time) ([]Occurrence, []AttendanceRecord, error) {
	dates, err := recurrence.Expand(anchor, *params.Rule)
	if err != nil {
		return nil, nil, err
	}
	if len(dates) == 0 {
		return nil, nil, fmt.Errorf("%w: rule produces no occurrences", recurrence.ErrInvalidRule)
	}
	if params.Rule.Type == recurrence.TypeNone {
		seriesID = ""
	}

	inserts := make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		occ := s.newOccurrence(params.Principal, target.GroupID, params.Input, now)
		occ.SeriesID = seriesID
		occ.Date = date
		inserts = append(inserts, occ)
	}

	memberIDs, err := s.activeMembers(ctx, target.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return inserts, seedRecords(inserts, memberIDs, now), nil
}

func (s *SeriesService) newOccurrence(principal Principal, groupID string, input OccurrenceInput, now time.Time) Occurrence {
	return Occurrence{
		ID:             s.idGenerator(),
		GroupID:        groupID,
		CreatedBy:      principal.MemberID,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Date:           recurrence.DateOf(input.Date),
		StartTime:      input.StartTime,
		EndTime:        input.EndTime,
		Target:         input.Target,
		MinimumMembers: input.MinimumMembers,
		Confirmed:      input.Confirmed,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *SeriesService) activeMembers(ctx context.Context, groupID string) ([]string, error) {
	if s.members == nil {
		return nil, nil
	}
	return s.members.ActiveMemberIDs(ctx, groupID)
}

func (s *SeriesService) ensureMembership(ctx context.Context, groupID, memberID string) error {
	if s.members == nil {
		return nil
	}
	ok, err := s.members.IsMember(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *SeriesService) invalidateGroup(groupID string) {
	if s.dashboards == nil {
		return
	}
	s.dashboards.InvalidateGroup(groupID)
}

// applyTemplate copies the caller-provided fields onto the occurrence.
// Bulk scopes keep each occurrence's own date.
func applyTemplate(occ *Occurrence, input OccurrenceInput, includeDate bool) {
	occ.Title = strings.TrimSpace(input.Title)
	occ.Description = input.Description
	occ.StartTime = input.StartTime
	occ.EndTime = input.EndTime
	occ.Target = input.Target
	occ.MinimumMembers = input.MinimumMembers
	occ.Confirmed = input.Confirmed
	occ.Notes = input.Notes
	if includeDate {
		occ.Date = recurrence.DateOf(input.Date)
	}
}

// partitionRemovals splits occurrences slated for removal into deletable
// IDs and terminal rows, which are detached from the series instead so the
// historical record survives.
func partitionRemovals(occurrences []Occurrence, now time.Time) ([]string, []Occurrence) {
	var deleteIDs []string
	var detached []Occurrence
	for _, occ := range occurrences {
		if occ.Terminal() {
			occ.SeriesID = ""
			occ.UpdatedAt = now
			detached = append(detached, occ)
			continue
		}
		deleteIDs = append(deleteIDs, occ.ID)
	}
	return deleteIDs, detached
}

func seedRecords(occurrences []Occurrence, memberIDs []string, now time.Time) []AttendanceRecord {
	if len(occurrences) == 0 || len(memberIDs) == 0 {
		return nil
	}
	seeds := make([]AttendanceRecord, 0, len(occurrences)*len(memberIDs))
	for _, occ := range occurrences {
		for _, memberID := range memberIDs {
			if memberID == "" {
				continue
			}
			seeds = append(seeds, AttendanceRecord{
				OccurrenceID: occ.ID,
				MemberID:     memberID,
				Status:       StatusPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}
	return seeds
}

func occurrenceIDs(occurrences []Occurrence) []string {
	ids := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		ids = append(ids, occ.ID)
	}
	return ids
}

func sortOccurrences(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].Date.Equal(occurrences[j].Date) {
			return occurrences[i].Date.Before(occurrences[j].Date)
		}
		if occurrences[i].StartTime != occurrences[j].StartTime {
			return occurrences[i].StartTime < occurrences[j].StartTime
		}
		return occurrences[i].ID < occurrences[j].ID
	})
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrPreconditionFailed) {
		return ErrConflict
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrConflict
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "end time must be after start time")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("group_id", "related records are missing")
		return vErr
	}
	return err
}
