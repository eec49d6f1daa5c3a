package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/raid-scheduler/internal/config"
	httptransport "github.com/example/raid-scheduler/internal/http"
	"github.com/example/raid-scheduler/internal/persistence"
	"github.com/example/raid-scheduler/internal/persistence/sqlite"
	"github.com/example/raid-scheduler/internal/roster"
	"github.com/example/raid-scheduler/internal/schedule"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	occurrenceStore := newOccurrenceStoreAdapter(sqlite.NewOccurrenceRepository(pool))
	attendanceStore := newAttendanceStoreAdapter(sqlite.NewAttendanceRepository(pool))
	directory := roster.NewDirectory(sqlite.NewMembershipRepository(pool))

	dashboardService := schedule.NewDashboardService(occurrenceStore, attendanceStore, directory, cfg.DashboardCacheTTL, cfg.MaxWindowDays, now)
	seriesService := schedule.NewSeriesService(occurrenceStore, directory, dashboardService, idGenerator, now)
	attendanceService := schedule.NewAttendanceService(attendanceStore, occurrenceStore, now)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:  httptransport.NewScheduleHandler(seriesService, attendanceService, directory, now, logger),
		Attendance: httptransport.NewAttendanceHandler(attendanceService, seriesService, directory, logger),
		Dashboard:  httptransport.NewDashboardHandler(dashboardService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireMember(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("raid scheduler API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

type occurrenceStoreAdapter struct {
	repo persistence.OccurrenceRepository
}

func newOccurrenceStoreAdapter(repo persistence.OccurrenceRepository) *occurrenceStoreAdapter {
	return &occurrenceStoreAdapter{repo: repo}
}

func (a *occurrenceStoreAdapter) CreateSeries(ctx context.Context, occurrences []schedule.Occurrence, seeds []schedule.AttendanceRecord) error {
	return a.repo.CreateSeries(ctx, toPersistenceOccurrences(occurrences), toPersistenceAttendances(seeds))
}

func (a *occurrenceStoreAdapter) GetOccurrence(ctx context.Context, id string) (schedule.Occurrence, error) {
	stored, err := a.repo.GetOccurrence(ctx, id)
	if err != nil {
		return schedule.Occurrence{}, err
	}
	return toScheduleOccurrence(stored), nil
}

func (a *occurrenceStoreAdapter) UpdateOccurrence(ctx context.Context, occurrence schedule.Occurrence) error {
	return a.repo.UpdateOccurrence(ctx, toPersistenceOccurrence(occurrence))
}

func (a *occurrenceStoreAdapter) UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []schedule.Occurrence) error {
	return a.repo.UpdateOccurrences(ctx, seriesID, expectIDs, toPersistenceOccurrences(occurrences))
}

func (a *occurrenceStoreAdapter) ReplaceSeries(ctx context.Context, seriesID string, expectIDs, deleteIDs []string, updates, inserts []schedule.Occurrence, seeds []schedule.AttendanceRecord) error {
	return a.repo.ReplaceSeries(ctx, seriesID, expectIDs, deleteIDs,
		toPersistenceOccurrences(updates), toPersistenceOccurrences(inserts), toPersistenceAttendances(seeds))
}

func (a *occurrenceStoreAdapter) DeleteOccurrences(ctx context.Context, ids []string) error {
	return a.repo.DeleteOccurrences(ctx, ids)
}

func (a *occurrenceStoreAdapter) ListOccurrences(ctx context.Context, query schedule.OccurrenceQuery) ([]schedule.Occurrence, error) {
	models, err := a.repo.ListOccurrences(ctx, persistence.OccurrenceFilter{
		GroupID:   query.GroupID,
		GroupIDs:  append([]string(nil), query.GroupIDs...),
		From:      query.From,
		To:        query.To,
		Confirmed: query.Confirmed,
		Completed: query.Completed,
		Cancelled: query.Cancelled,
	})
	if err != nil {
		return nil, err
	}
	return toScheduleOccurrences(models), nil
}

func (a *occurrenceStoreAdapter) ListSeries(ctx context.Context, seriesID string) ([]schedule.Occurrence, error) {
	models, err := a.repo.ListSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return toScheduleOccurrences(models), nil
}

type attendanceStoreAdapter struct {
	repo persistence.AttendanceRepository
}

func newAttendanceStoreAdapter(repo persistence.AttendanceRepository) *attendanceStoreAdapter {
	return &attendanceStoreAdapter{repo: repo}
}

func (a *attendanceStoreAdapter) SeedAttendance(ctx context.Context, rows []schedule.AttendanceRecord) error {
	return a.repo.SeedAttendance(ctx, toPersistenceAttendances(rows))
}

func (a *attendanceStoreAdapter) GetAttendance(ctx context.Context, occurrenceID, memberID string) (schedule.AttendanceRecord, error) {
	stored, err := a.repo.GetAttendance(ctx, occurrenceID, memberID)
	if err != nil {
		return schedule.AttendanceRecord{}, err
	}
	return toScheduleAttendance(stored), nil
}

func (a *attendanceStoreAdapter) UpdateAttendance(ctx context.Context, row schedule.AttendanceRecord) error {
	return a.repo.UpdateAttendance(ctx, toPersistenceAttendance(row))
}

func (a *attendanceStoreAdapter) ListAttendance(ctx context.Context, occurrenceID string) ([]schedule.AttendanceRecord, error) {
	models, err := a.repo.ListAttendance(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	records := make([]schedule.AttendanceRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toScheduleAttendance(model))
	}
	return records, nil
}

func toScheduleOccurrence(model persistence.Occurrence) schedule.Occurrence {
	return schedule.Occurrence{
		ID:              model.ID,
		GroupID:         model.GroupID,
		SeriesID:        model.SeriesID,
		CreatedBy:       model.CreatedBy,
		Title:           model.Title,
		Description:     model.Description,
		Date:            model.Date,
		StartTime:       model.StartTime,
		EndTime:         cloneString(model.EndTime),
		Target:          model.Target,
		MinimumMembers:  model.MinimumMembers,
		Confirmed:       model.Confirmed,
		Completed:       model.Completed,
		Cancelled:       model.Cancelled,
		Notes:           model.Notes,
		CompletionNotes: model.CompletionNotes,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		CompletedAt:     cloneTime(model.CompletedAt),
		CancelledAt:     cloneTime(model.CancelledAt),
	}
}

func toPersistenceOccurrence(occurrence schedule.Occurrence) persistence.Occurrence {
	return persistence.Occurrence{
		ID:              occurrence.ID,
		GroupID:         occurrence.GroupID,
		SeriesID:        occurrence.SeriesID,
		CreatedBy:       occurrence.CreatedBy,
		Title:           occurrence.Title,
		Description:     occurrence.Description,
		Date:            occurrence.Date,
		StartTime:       occurrence.StartTime,
		EndTime:         cloneString(occurrence.EndTime),
		Target:          occurrence.Target,
		MinimumMembers:  occurrence.MinimumMembers,
		Confirmed:       occurrence.Confirmed,
		Completed:       occurrence.Completed,
		Cancelled:       occurrence.Cancelled,
		Notes:           occurrence.Notes,
		CompletionNotes: occurrence.CompletionNotes,
		CreatedAt:       occurrence.CreatedAt,
		UpdatedAt:       occurrence.UpdatedAt,
		CompletedAt:     cloneTime(occurrence.CompletedAt),
		CancelledAt:     cloneTime(occurrence.CancelledAt),
	}
}

func toScheduleOccurrences(models []persistence.Occurrence) []schedule.Occurrence {
	if len(models) == 0 {
		return nil
	}
	occurrences := make([]schedule.Occurrence, 0, len(models))
	for _, model := range models {
		occurrences = append(occurrences, toScheduleOccurrence(model))
	}
	return occurrences
}

func toPersistenceOccurrences(occurrences []schedule.Occurrence) []persistence.Occurrence {
	if len(occurrences) == 0 {
		return nil
	}
	models := make([]persistence.Occurrence, 0, len(occurrences))
	for _, occurrence := range occurrences {
		models = append(models, toPersistenceOccurrence(occurrence))
	}
	return models
}

func toScheduleAttendance(model persistence.Attendance) schedule.AttendanceRecord {
	return schedule.AttendanceRecord{
		OccurrenceID:     model.OccurrenceID,
		MemberID:         model.MemberID,
		Status:           schedule.AttendanceStatus(model.Status),
		Reason:           model.Reason,
		RespondedAt:      cloneTime(model.RespondedAt),
		ActuallyAttended: cloneBool(model.ActuallyAttended),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toPersistenceAttendance(record schedule.AttendanceRecord) persistence.Attendance {
	return persistence.Attendance{
		OccurrenceID:     record.OccurrenceID,
		MemberID:         record.MemberID,
		Status:           string(record.Status),
		Reason:           record.Reason,
		RespondedAt:      cloneTime(record.RespondedAt),
		ActuallyAttended: cloneBool(record.ActuallyAttended),
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func toPersistenceAttendances(records []schedule.AttendanceRecord) []persistence.Attendance {
	if len(records) == 0 {
		return nil
	}
	models := make([]persistence.Attendance, 0, len(records))
	for _, record := range records {
		models = append(models, toPersistenceAttendance(record))
	}
	return models
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
