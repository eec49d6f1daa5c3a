package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/raid-scheduler/internal/calendar"
	"github.com/example/raid-scheduler/internal/recurrence"
	"github.com/example/raid-scheduler/internal/schedule"
)

type seriesService interface {
	CreateSeries(ctx context.Context, params schedule.CreateSeriesParams) ([]schedule.Occurrence, error)
	GetOccurrence(ctx context.Context, principal schedule.Principal, occurrenceID string) (schedule.Occurrence, error)
	UpdateOccurrence(ctx context.Context, params schedule.UpdateOccurrenceParams) ([]schedule.Occurrence, error)
	DeleteOccurrence(ctx context.Context, params schedule.DeleteOccurrenceParams) error
	ListOccurrences(ctx context.Context, params schedule.ListOccurrencesParams) ([]schedule.Occurrence, error)
	CompleteOccurrence(ctx context.Context, params schedule.CompleteOccurrenceParams) (schedule.Occurrence, error)
	CancelOccurrence(ctx context.Context, principal schedule.Principal, occurrenceID string) (schedule.Occurrence, error)
	UpdateCompletionNotes(ctx context.Context, principal schedule.Principal, occurrenceID, notes string) (schedule.Occurrence, error)
}

type attendanceAggregator interface {
	Aggregate(ctx context.Context, occurrenceID string) (schedule.AttendanceSummary, error)
}

// rosterDirectory resolves group membership and schedule management
// permission for a caller. Roster data is owned by an external system.
type rosterDirectory interface {
	IsMember(ctx context.Context, groupID, memberID string) (bool, error)
	CanManageSchedule(ctx context.Context, groupID, memberID string) (bool, error)
}

type ScheduleHandler struct {
	service    seriesService
	attendance attendanceAggregator
	roster     rosterDirectory
	now        func() time.Time
	responder  responder
}

func NewScheduleHandler(service seriesService, attendance attendanceAggregator, roster rosterDirectory, now func() time.Time, logger *slog.Logger) *ScheduleHandler {
	if now == nil {
		now = time.Now
	}
	return &ScheduleHandler{
		service:    service,
		attendance: attendance,
		roster:     roster,
		now:        now,
		responder:  newResponder(logger),
	}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groupID := r.PathValue("groupID")

	var req occurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	rule, err := req.toRule()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), groupID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrences, err := h.service.CreateSeries(r.Context(), schedule.CreateSeriesParams{
		Principal: principal,
		GroupID:   groupID,
		Input:     req.toInput(),
		Rule:      rule,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listOccurrencesResponse{
		Occurrences: toOccurrenceDTOs(occurrences),
	})
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, _ := MemberIDFromContext(r.Context())
	params := schedule.ListOccurrencesParams{
		Principal: schedule.Principal{MemberID: memberID},
		GroupID:   r.PathValue("groupID"),
	}
	if err := applyListFilters(&params, r.URL.Query()); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	occurrences, err := h.service.ListOccurrences(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOccurrencesResponse{
		Occurrences: toOccurrenceDTOs(occurrences),
	})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, _ := MemberIDFromContext(r.Context())
	occurrence, err := h.service.GetOccurrence(r.Context(), schedule.Principal{MemberID: memberID}, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if occurrence.GroupID != r.PathValue("groupID") {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errGroupMismatch)
		return
	}

	payload := occurrenceResponse{Occurrence: toOccurrenceDTO(occurrence)}
	if h.attendance != nil {
		summary, err := h.attendance.Aggregate(r.Context(), occurrence.ID)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		payload.Attendance = toSummaryDTO(summary)
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scope, ok := schedule.ParseScope(r.URL.Query().Get("scope"))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScope)
		return
	}

	var req occurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var rule *recurrence.Rule
	if req.Recurrence != nil {
		parsed, err := req.toRule()
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		rule = &parsed
	}

	principal, err := h.resolvePrincipal(r.Context(), r.PathValue("groupID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrences, err := h.service.UpdateOccurrence(r.Context(), schedule.UpdateOccurrenceParams{
		Principal:    principal,
		OccurrenceID: r.PathValue("id"),
		Scope:        scope,
		Input:        req.toInput(),
		Rule:         rule,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOccurrencesResponse{
		Occurrences: toOccurrenceDTOs(occurrences),
	})
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scope, ok := schedule.ParseScope(r.URL.Query().Get("scope"))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScope)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), r.PathValue("groupID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if err := h.service.DeleteOccurrence(r.Context(), schedule.DeleteOccurrenceParams{
		Principal:    principal,
		OccurrenceID: r.PathValue("id"),
		Scope:        scope,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), r.PathValue("groupID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrence, err := h.service.CompleteOccurrence(r.Context(), schedule.CompleteOccurrenceParams{
		Principal:       principal,
		OccurrenceID:    r.PathValue("id"),
		CompletionNotes: req.CompletionNotes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occurrence)})
}

func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), r.PathValue("groupID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrence, err := h.service.CancelOccurrence(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occurrence)})
}

func (h *ScheduleHandler) UpdateCompletionNotes(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), r.PathValue("groupID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occurrence, err := h.service.UpdateCompletionNotes(r.Context(), principal, r.PathValue("id"), req.CompletionNotes)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occurrence)})
}

// Calendar renders the group's upcoming non-cancelled occurrences as an
// iCalendar feed.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, _ := MemberIDFromContext(r.Context())
	today := h.now().UTC().Truncate(24 * time.Hour)
	notCancelled := false

	occurrences, err := h.service.ListOccurrences(r.Context(), schedule.ListOccurrencesParams{
		Principal: schedule.Principal{MemberID: memberID},
		GroupID:   r.PathValue("groupID"),
		From:      &today,
		Cancelled: &notCancelled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed, err := calendar.Feed(occurrences)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed)); err != nil {
		handlerLogger(r.Context(), h.responder.logger, "schedule", "calendar").
			ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

// resolvePrincipal builds the caller principal for a structural write,
// resolving the schedule management permission against the group.
func (h *ScheduleHandler) resolvePrincipal(ctx context.Context, groupID string) (schedule.Principal, error) {
	memberID, _ := MemberIDFromContext(ctx)
	principal := schedule.Principal{MemberID: memberID}
	if h.roster == nil {
		return principal, nil
	}

	canManage, err := h.roster.CanManageSchedule(ctx, groupID, memberID)
	if err != nil {
		return schedule.Principal{}, err
	}
	principal.CanManage = canManage
	return principal, nil
}

type occurrenceRequest struct {
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Date            string             `json:"date"`
	StartTime       string             `json:"start_time"`
	EndTime         *string            `json:"end_time"`
	Target          string             `json:"target"`
	MinimumMembers  int                `json:"minimum_members"`
	Confirmed       bool               `json:"confirmed"`
	Notes           string             `json:"notes"`
	Recurrence      *recurrenceRequest `json:"recurrence,omitempty"`
}

type recurrenceRequest struct {
	Type     string `json:"type"`
	Weekdays []int  `json:"weekdays,omitempty"`
	EndDate  string `json:"end_date,omitempty"`
	Count    int    `json:"count,omitempty"`
}

func (r occurrenceRequest) toInput() schedule.OccurrenceInput {
	return schedule.OccurrenceInput{
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		Date:           parseDate(r.Date),
		StartTime:      strings.TrimSpace(r.StartTime),
		EndTime:        r.EndTime,
		Target:         strings.TrimSpace(r.Target),
		MinimumMembers: r.MinimumMembers,
		Confirmed:      r.Confirmed,
		Notes:          r.Notes,
	}
}

func (r occurrenceRequest) toRule() (recurrence.Rule, error) {
	if r.Recurrence == nil {
		return recurrence.Rule{Type: recurrence.TypeNone}, nil
	}

	ruleType, err := recurrence.ParseType(r.Recurrence.Type)
	if err != nil {
		return recurrence.Rule{}, err
	}

	rule := recurrence.Rule{Type: ruleType, Count: r.Recurrence.Count}
	for _, weekday := range r.Recurrence.Weekdays {
		rule.Weekdays = append(rule.Weekdays, time.Weekday(weekday))
	}
	if end := strings.TrimSpace(r.Recurrence.EndDate); end != "" {
		parsed := parseDate(end)
		rule.EndDate = &parsed
	}
	return rule, nil
}

type completionRequest struct {
	CompletionNotes string `json:"completion_notes"`
}

func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func applyListFilters(params *schedule.ListOccurrencesParams, values url.Values) error {
	if from := strings.TrimSpace(values.Get("from")); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return errInvalidDateFilter
		}
		params.From = &parsed
	}
	if to := strings.TrimSpace(values.Get("to")); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return errInvalidDateFilter
		}
		params.To = &parsed
	}

	var err error
	if params.Confirmed, err = parseFlag(values.Get("confirmed")); err != nil {
		return err
	}
	if params.Completed, err = parseFlag(values.Get("completed")); err != nil {
		return err
	}
	if params.Cancelled, err = parseFlag(values.Get("cancelled")); err != nil {
		return err
	}
	return nil
}

func parseFlag(value string) (*bool, error) {
	switch strings.TrimSpace(value) {
	case "":
		return nil, nil
	case "true":
		flag := true
		return &flag, nil
	case "false":
		flag := false
		return &flag, nil
	default:
		return nil, errInvalidFlagFilter
	}
}

type occurrenceResponse struct {
	Occurrence occurrenceDTO         `json:"occurrence"`
	Attendance *attendanceSummaryDTO `json:"attendance,omitempty"`
}

type listOccurrencesResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type occurrenceDTO struct {
	ID              string  `json:"id"`
	GroupID         string  `json:"group_id"`
	SeriesID        string  `json:"series_id,omitempty"`
	CreatedBy       string  `json:"created_by"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Date            string  `json:"date"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time,omitempty"`
	Target          string  `json:"target,omitempty"`
	MinimumMembers  int     `json:"minimum_members"`
	Confirmed       bool    `json:"confirmed"`
	Completed       bool    `json:"completed"`
	Cancelled       bool    `json:"cancelled"`
	Notes           string  `json:"notes,omitempty"`
	CompletionNotes string  `json:"completion_notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	CancelledAt     *string `json:"cancelled_at,omitempty"`
}

func toOccurrenceDTO(occurrence schedule.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		ID:              occurrence.ID,
		GroupID:         occurrence.GroupID,
		SeriesID:        occurrence.SeriesID,
		CreatedBy:       occurrence.CreatedBy,
		Title:           occurrence.Title,
		Description:     occurrence.Description,
		Date:            occurrence.Date.Format("2006-01-02"),
		StartTime:       occurrence.StartTime,
		EndTime:         occurrence.EndTime,
		Target:          occurrence.Target,
		MinimumMembers:  occurrence.MinimumMembers,
		Confirmed:       occurrence.Confirmed,
		Completed:       occurrence.Completed,
		Cancelled:       occurrence.Cancelled,
		Notes:           occurrence.Notes,
		CompletionNotes: occurrence.CompletionNotes,
		CreatedAt:       occurrence.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       occurrence.UpdatedAt.UTC().Format(time.RFC3339Nano),
		CompletedAt:     formatTimePtr(occurrence.CompletedAt),
		CancelledAt:     formatTimePtr(occurrence.CancelledAt),
	}
}

func toOccurrenceDTOs(occurrences []schedule.Occurrence) []occurrenceDTO {
	if len(occurrences) == 0 {
		return nil
	}
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, toOccurrenceDTO(occurrence))
	}
	return out
}

func formatTimePtr(ts *time.Time) *string {
	if ts == nil {
		return nil
	}
	formatted := ts.UTC().Format(time.RFC3339Nano)
	return &formatted
}
