// Package http provides HTTP handlers and middleware for the raid
// scheduler API.
//
// The router exposes the following endpoints:
//   - POST /groups/{groupID}/schedules: creates an occurrence or, when the
//     body carries a recurrence rule, a whole series. Exchanges the
//     `occurrenceDTO` payload defined in schedule_handler.go.
//   - GET /groups/{groupID}/schedules: lists a group's occurrences with
//     optional from/to date-range and confirmed/completed/cancelled flag
//     filters.
//   - GET /groups/{groupID}/schedules/{id}: returns a single occurrence
//     together with its aggregated attendance counts.
//   - PUT /groups/{groupID}/schedules/{id}?scope=: updates an occurrence.
//     The scope query parameter selects this-only (default),
//     this-and-future, or all.
//   - DELETE /groups/{groupID}/schedules/{id}?scope=: deletes occurrences
//     with the same scope semantics.
//   - POST /groups/{groupID}/schedules/{id}/complete: marks an occurrence
//     completed, recording completion notes from the body.
//   - PUT /groups/{groupID}/schedules/{id}/completion-notes: edits the
//     notes of an already completed occurrence.
//   - POST /groups/{groupID}/schedules/{id}/cancel: cancels an occurrence.
//   - GET /groups/{groupID}/schedules/{id}/attendance: returns the
//     attendance rows and the aggregate summary.
//   - PUT /groups/{groupID}/schedules/{id}/attendance/me: records the
//     caller's own attendance response.
//   - PUT /groups/{groupID}/schedules/{id}/attendance/{memberID}: records
//     another member's response, or their actual attendance after the
//     session, on behalf of a schedule manager.
//   - GET /groups/{groupID}/attendance-stats: per-member attendance
//     statistics over an optional from/to date range.
//   - GET /groups/{groupID}/calendar.ics: the group's upcoming occurrences
//     as an iCalendar feed.
//   - GET /dashboard: the caller's upcoming and recent occurrences across
//     all their groups.
//
// Callers are identified by the `X-Member-ID` header set by the
// authenticating gateway in front of this service. Request/response DTOs
// live alongside their respective handlers so tests and documentation
// share the same ground truth.
package http
