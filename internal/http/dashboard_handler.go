package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/raid-scheduler/internal/schedule"
)

type dashboardService interface {
	Dashboard(ctx context.Context, params schedule.DashboardParams) (schedule.Dashboard, error)
}

type DashboardHandler struct {
	service   dashboardService
	responder responder
}

func NewDashboardHandler(service dashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, responder: newResponder(logger)}
}

// Get returns the caller's dashboard. An optional group_id query parameter
// narrows the view to one group; days_ahead and days_behind adjust the
// window.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, _ := MemberIDFromContext(r.Context())
	params := schedule.DashboardParams{
		MemberID: memberID,
		GroupID:  strings.TrimSpace(r.URL.Query().Get("group_id")),
	}

	var err error
	if params.DaysAhead, err = parseWindow(r.URL.Query().Get("days_ahead")); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if params.DaysBehind, err = parseWindow(r.URL.Query().Get("days_behind")); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, dashboardResponse{
		Past:     toEntryDTOs(dashboard.Past),
		Upcoming: toEntryDTOs(dashboard.Upcoming),
	})
}

func parseWindow(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errInvalidWindowParam
	}
	return parsed, nil
}

type dashboardResponse struct {
	Past     []dashboardEntryDTO `json:"past"`
	Upcoming []dashboardEntryDTO `json:"upcoming"`
}

type dashboardEntryDTO struct {
	Occurrence occurrenceDTO         `json:"occurrence"`
	SelfStatus string                `json:"self_status,omitempty"`
	Summary    *attendanceSummaryDTO `json:"summary"`
}

func toEntryDTOs(entries []schedule.DashboardEntry) []dashboardEntryDTO {
	if len(entries) == 0 {
		return nil
	}
	out := make([]dashboardEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dashboardEntryDTO{
			Occurrence: toOccurrenceDTO(entry.Occurrence),
			SelfStatus: string(entry.SelfStatus),
			Summary:    toSummaryDTO(entry.Summary),
		})
	}
	return out
}
