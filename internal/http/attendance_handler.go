package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/raid-scheduler/internal/schedule"
)

type attendanceService interface {
	SetSelf(ctx context.Context, params schedule.SetAttendanceParams) (schedule.AttendanceRecord, error)
	SetMember(ctx context.Context, params schedule.SetAttendanceParams) (schedule.AttendanceRecord, error)
	MarkActual(ctx context.Context, principal schedule.Principal, occurrenceID, memberID string, attended bool) (schedule.AttendanceRecord, error)
	Attendance(ctx context.Context, occurrenceID string) ([]schedule.AttendanceRecord, schedule.AttendanceSummary, error)
	Stats(ctx context.Context, groupID string, from, to *time.Time) ([]schedule.MemberStats, error)
}

type AttendanceHandler struct {
	service   attendanceService
	schedules seriesService
	roster    rosterDirectory
	responder responder
}

func NewAttendanceHandler(service attendanceService, schedules seriesService, roster rosterDirectory, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service:   service,
		schedules: schedules,
		roster:    roster,
		responder: newResponder(logger),
	}
}

// List returns the attendance rows and aggregate summary of one
// occurrence. The occurrence lookup enforces group membership.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrence, ok := h.lookupOccurrence(w, r)
	if !ok {
		return
	}

	records, summary, err := h.service.Attendance(r.Context(), occurrence.ID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceListResponse{
		Records: toAttendanceDTOs(records),
		Summary: toSummaryDTO(summary),
	})
}

// SetSelf records the caller's own response for an occurrence.
func (h *AttendanceHandler) SetSelf(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrence, ok := h.lookupOccurrence(w, r)
	if !ok {
		return
	}

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	memberID, _ := MemberIDFromContext(r.Context())
	record, err := h.service.SetSelf(r.Context(), schedule.SetAttendanceParams{
		Principal:    schedule.Principal{MemberID: memberID},
		OccurrenceID: occurrence.ID,
		Status:       schedule.AttendanceStatus(strings.TrimSpace(req.Status)),
		Reason:       req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceResponse{Record: toAttendanceDTO(record)})
}

// SetMember records another member's response, or their actual attendance
// after the session, on behalf of a schedule manager.
func (h *AttendanceHandler) SetMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrence, ok := h.lookupOccurrence(w, r)
	if !ok {
		return
	}

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, err := h.resolvePrincipal(r.Context(), occurrence.GroupID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	targetID := r.PathValue("memberID")

	var record schedule.AttendanceRecord
	if req.ActuallyAttended != nil {
		record, err = h.service.MarkActual(r.Context(), principal, occurrence.ID, targetID, *req.ActuallyAttended)
	} else {
		record, err = h.service.SetMember(r.Context(), schedule.SetAttendanceParams{
			Principal:    principal,
			OccurrenceID: occurrence.ID,
			MemberID:     targetID,
			Status:       schedule.AttendanceStatus(strings.TrimSpace(req.Status)),
			Reason:       req.Reason,
		})
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceResponse{Record: toAttendanceDTO(record)})
}

// Stats returns the per-member attendance statistics of a group.
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groupID := r.PathValue("groupID")
	memberID, _ := MemberIDFromContext(r.Context())
	if h.roster != nil {
		member, err := h.roster.IsMember(r.Context(), groupID, memberID)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		if !member {
			h.responder.handleServiceError(r.Context(), w, schedule.ErrForbidden)
			return
		}
	}

	from, to, err := parseStatsRange(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), groupID, from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsResponse{Stats: toStatsDTOs(stats)})
}

// lookupOccurrence fetches the occurrence named in the path and verifies
// it belongs to the group named in the path. The fetch itself enforces the
// caller's group membership.
func (h *AttendanceHandler) lookupOccurrence(w http.ResponseWriter, r *http.Request) (schedule.Occurrence, bool) {
	if h.schedules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return schedule.Occurrence{}, false
	}

	memberID, _ := MemberIDFromContext(r.Context())
	occurrence, err := h.schedules.GetOccurrence(r.Context(), schedule.Principal{MemberID: memberID}, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return schedule.Occurrence{}, false
	}
	if occurrence.GroupID != r.PathValue("groupID") {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errGroupMismatch)
		return schedule.Occurrence{}, false
	}
	return occurrence, true
}

func (h *AttendanceHandler) resolvePrincipal(ctx context.Context, groupID string) (schedule.Principal, error) {
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

func parseStatsRange(values url.Values) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := strings.TrimSpace(values.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, errInvalidDateFilter
		}
		from = &parsed
	}
	if raw := strings.TrimSpace(values.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, errInvalidDateFilter
		}
		to = &parsed
	}
	return from, to, nil
}

type attendanceRequest struct {
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	ActuallyAttended *bool  `json:"actually_attended,omitempty"`
}

type attendanceResponse struct {
	Record attendanceRecordDTO `json:"record"`
}

type attendanceListResponse struct {
	Records []attendanceRecordDTO `json:"records"`
	Summary *attendanceSummaryDTO `json:"summary"`
}

type attendanceRecordDTO struct {
	OccurrenceID     string  `json:"occurrence_id"`
	MemberID         string  `json:"member_id"`
	Status           string  `json:"status"`
	Reason           string  `json:"reason,omitempty"`
	RespondedAt      *string `json:"responded_at,omitempty"`
	ActuallyAttended *bool   `json:"actually_attended,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toAttendanceDTO(record schedule.AttendanceRecord) attendanceRecordDTO {
	return attendanceRecordDTO{
		OccurrenceID:     record.OccurrenceID,
		MemberID:         record.MemberID,
		Status:           string(record.Status),
		Reason:           record.Reason,
		RespondedAt:      formatTimePtr(record.RespondedAt),
		ActuallyAttended: record.ActuallyAttended,
		CreatedAt:        record.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAttendanceDTOs(records []schedule.AttendanceRecord) []attendanceRecordDTO {
	if len(records) == 0 {
		return nil
	}
	out := make([]attendanceRecordDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toAttendanceDTO(record))
	}
	return out
}

type attendanceSummaryDTO struct {
	Pending   int  `json:"pending"`
	Confirmed int  `json:"confirmed"`
	Declined  int  `json:"declined"`
	Tentative int  `json:"tentative"`
	Total     int  `json:"total"`
	QuorumMet bool `json:"quorum_met"`
}

func toSummaryDTO(summary schedule.AttendanceSummary) *attendanceSummaryDTO {
	return &attendanceSummaryDTO{
		Pending:   summary.Pending,
		Confirmed: summary.Confirmed,
		Declined:  summary.Declined,
		Tentative: summary.Tentative,
		Total:     summary.Total(),
		QuorumMet: summary.QuorumMet,
	}
}

type statsResponse struct {
	Stats []memberStatsDTO `json:"stats"`
}

type memberStatsDTO struct {
	MemberID         string  `json:"member_id"`
	Total            int     `json:"total"`
	Confirmed        int     `json:"confirmed"`
	Completed        int     `json:"completed"`
	Attended         int     `json:"attended"`
	ConfirmationRate float64 `json:"confirmation_rate"`
	AttendanceRate   float64 `json:"attendance_rate"`
}

func toStatsDTOs(stats []schedule.MemberStats) []memberStatsDTO {
	if len(stats) == 0 {
		return nil
	}
	out := make([]memberStatsDTO, 0, len(stats))
	for _, entry := range stats {
		out = append(out, memberStatsDTO{
			MemberID:         entry.MemberID,
			Total:            entry.Total,
			Confirmed:        entry.Confirmed,
			Completed:        entry.Completed,
			Attended:         entry.Attended,
			ConfirmationRate: entry.ConfirmationRate,
			AttendanceRate:   entry.AttendanceRate,
		})
	}
	return out
}
