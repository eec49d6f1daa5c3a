package http

import (
	"net/http"
)

type RouterConfig struct {
	Schedules  *ScheduleHandler
	Attendance *AttendanceHandler
	Dashboard  *DashboardHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Schedules != nil {
		mux.HandleFunc("POST /groups/{groupID}/schedules", cfg.Schedules.Create)
		mux.HandleFunc("GET /groups/{groupID}/schedules", cfg.Schedules.List)
		mux.HandleFunc("GET /groups/{groupID}/schedules/{id}", cfg.Schedules.Get)
		mux.HandleFunc("PUT /groups/{groupID}/schedules/{id}", cfg.Schedules.Update)
		mux.HandleFunc("DELETE /groups/{groupID}/schedules/{id}", cfg.Schedules.Delete)
		mux.HandleFunc("POST /groups/{groupID}/schedules/{id}/complete", cfg.Schedules.Complete)
		mux.HandleFunc("POST /groups/{groupID}/schedules/{id}/cancel", cfg.Schedules.Cancel)
		mux.HandleFunc("PUT /groups/{groupID}/schedules/{id}/completion-notes", cfg.Schedules.UpdateCompletionNotes)
		mux.HandleFunc("GET /groups/{groupID}/calendar.ics", cfg.Schedules.Calendar)
	}

	if cfg.Attendance != nil {
		mux.HandleFunc("GET /groups/{groupID}/schedules/{id}/attendance", cfg.Attendance.List)
		mux.HandleFunc("PUT /groups/{groupID}/schedules/{id}/attendance/me", cfg.Attendance.SetSelf)
		mux.HandleFunc("PUT /groups/{groupID}/schedules/{id}/attendance/{memberID}", cfg.Attendance.SetMember)
		mux.HandleFunc("GET /groups/{groupID}/attendance-stats", cfg.Attendance.Stats)
	}

	if cfg.Dashboard != nil {
		mux.HandleFunc("GET /dashboard", cfg.Dashboard.Get)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
