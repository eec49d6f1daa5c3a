package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
)

const dateLayout = "2006-01-02"

// OccurrenceRepository implements persistence.OccurrenceRepository on SQLite.
type OccurrenceRepository struct {
	pool *ConnectionPool
}

// NewOccurrenceRepository creates a SQLite-backed occurrence repository.
func NewOccurrenceRepository(pool *ConnectionPool) *OccurrenceRepository {
	return &OccurrenceRepository{pool: pool}
}

const occurrenceColumns = `id, group_id, series_id, created_by, title, description,
	scheduled_date, start_time, end_time, target, minimum_members,
	is_confirmed, is_completed, is_cancelled, notes, completion_notes,
	created_at, updated_at, completed_at, cancelled_at`

// CreateSeries inserts occurrences and their attendance seeds in one
// transaction.
func (r *OccurrenceRepository) CreateSeries(ctx context.Context, occurrences []persistence.Occurrence, seeds []persistence.Attendance) error {
	if len(occurrences) == 0 {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, occ := range occurrences {
			if err := insertOccurrenceTx(tx, occ); err != nil {
				return err
			}
		}
		return insertAttendanceSeedsTx(tx, seeds)
	})
}

// GetOccurrence retrieves a single occurrence by ID.
func (r *OccurrenceRepository) GetOccurrence(ctx context.Context, id string) (persistence.Occurrence, error) {
	if id == "" {
		return persistence.Occurrence{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM occurrences WHERE id = ?", occurrenceColumns), id)
	occ, err := scanOccurrence(row)
	if err != nil {
		return persistence.Occurrence{}, mapSQLError(err)
	}
	return occ, nil
}

// UpdateOccurrence rewrites a single occurrence row.
func (r *OccurrenceRepository) UpdateOccurrence(ctx context.Context, occurrence persistence.Occurrence) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return updateOccurrenceTx(tx, occurrence)
	})
}

// UpdateOccurrences rewrites the given rows atomically, verifying the series
// membership precondition first.
func (r *OccurrenceRepository) UpdateOccurrences(ctx context.Context, seriesID string, expectIDs []string, occurrences []persistence.Occurrence) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkSeriesPreconditionTx(tx, seriesID, expectIDs); err != nil {
			return err
		}
		for _, occ := range occurrences {
			if err := updateOccurrenceTx(tx, occ); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceSeries deletes the outgoing rows, rewrites the surviving ones, and
// inserts the replacement set with its attendance seeds in a single
// transaction.
func (r *OccurrenceRepository) ReplaceSeries(ctx context.Context, seriesID string, expectIDs []string, deleteIDs []string, updates []persistence.Occurrence, inserts []persistence.Occurrence, seeds []persistence.Attendance) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := checkSeriesPreconditionTx(tx, seriesID, expectIDs); err != nil {
			return err
		}
		if err := deleteOccurrencesTx(tx, deleteIDs); err != nil {
			return err
		}
		for _, occ := range updates {
			if err := updateOccurrenceTx(tx, occ); err != nil {
				return err
			}
		}
		for _, occ := range inserts {
			if err := insertOccurrenceTx(tx, occ); err != nil {
				return err
			}
		}
		return insertAttendanceSeedsTx(tx, seeds)
	})
}

// DeleteOccurrences removes the given rows. Attendance rows cascade via the
// foreign key.
func (r *OccurrenceRepository) DeleteOccurrences(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return deleteOccurrencesTx(tx, ids)
	})
}

// ListOccurrences returns occurrences matching the filter ordered by
// (date, start time, id).
func (r *OccurrenceRepository) ListOccurrences(ctx context.Context, filter persistence.OccurrenceFilter) ([]persistence.Occurrence, error) {
	query, args := buildOccurrenceListQuery(filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var occurrences []persistence.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, mapSQLError(err)
		}
		occurrences = append(occurrences, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return occurrences, nil
}

// ListSeries returns every occurrence in the series ordered by date.
func (r *OccurrenceRepository) ListSeries(ctx context.Context, seriesID string) ([]persistence.Occurrence, error) {
	if seriesID == "" {
		return nil, nil
	}

	rows, err := r.pool.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM occurrences WHERE series_id = ? ORDER BY scheduled_date ASC, start_time ASC, id ASC", occurrenceColumns),
		seriesID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var occurrences []persistence.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, mapSQLError(err)
		}
		occurrences = append(occurrences, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return occurrences, nil
}

func insertOccurrenceTx(tx *sql.Tx, occ persistence.Occurrence) error {
	if occ.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := tx.Exec(fmt.Sprintf(`INSERT INTO occurrences (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, occurrenceColumns),
		occ.ID,
		occ.GroupID,
		nullString(occ.SeriesID),
		occ.CreatedBy,
		occ.Title,
		occ.Description,
		occ.Date.Format(dateLayout),
		occ.StartTime,
		nullStringPtr(occ.EndTime),
		occ.Target,
		occ.MinimumMembers,
		boolToInt(occ.Confirmed),
		boolToInt(occ.Completed),
		boolToInt(occ.Cancelled),
		occ.Notes,
		occ.CompletionNotes,
		occ.CreatedAt.UTC().Format(time.RFC3339),
		occ.UpdatedAt.UTC().Format(time.RFC3339),
		nullTimePtr(occ.CompletedAt),
		nullTimePtr(occ.CancelledAt),
	)
	return mapSQLError(err)
}

func updateOccurrenceTx(tx *sql.Tx, occ persistence.Occurrence) error {
	if occ.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := tx.Exec(`UPDATE occurrences
		SET group_id = ?, series_id = ?, created_by = ?, title = ?, description = ?,
			scheduled_date = ?, start_time = ?, end_time = ?, target = ?, minimum_members = ?,
			is_confirmed = ?, is_completed = ?, is_cancelled = ?, notes = ?, completion_notes = ?,
			updated_at = ?, completed_at = ?, cancelled_at = ?
		WHERE id = ?`,
		occ.GroupID,
		nullString(occ.SeriesID),
		occ.CreatedBy,
		occ.Title,
		occ.Description,
		occ.Date.Format(dateLayout),
		occ.StartTime,
		nullStringPtr(occ.EndTime),
		occ.Target,
		occ.MinimumMembers,
		boolToInt(occ.Confirmed),
		boolToInt(occ.Completed),
		boolToInt(occ.Cancelled),
		occ.Notes,
		occ.CompletionNotes,
		occ.UpdatedAt.UTC().Format(time.RFC3339),
		nullTimePtr(occ.CompletedAt),
		nullTimePtr(occ.CancelledAt),
		occ.ID,
	)
	if err != nil {
		return mapSQLError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func deleteOccurrencesTx(tx *sql.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	// Attendance rows cascade, but the explicit delete keeps the behavior
	// independent of the foreign_keys pragma.
	if _, err := tx.Exec("DELETE FROM attendances WHERE occurrence_id IN ("+placeholders+")", args...); err != nil {
		return mapSQLError(err)
	}
	if _, err := tx.Exec("DELETE FROM occurrences WHERE id IN ("+placeholders+")", args...); err != nil {
		return mapSQLError(err)
	}
	return nil
}

// checkSeriesPreconditionTx verifies that the series still consists of
// exactly the rows the caller based its edit on.
func checkSeriesPreconditionTx(tx *sql.Tx, seriesID string, expectIDs []string) error {
	if expectIDs == nil || seriesID == "" {
		return nil
	}

	rows, err := tx.Query("SELECT id FROM occurrences WHERE series_id = ?", seriesID)
	if err != nil {
		return mapSQLError(err)
	}
	defer rows.Close()

	var current []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return mapSQLError(err)
		}
		current = append(current, id)
	}
	if err := rows.Err(); err != nil {
		return mapSQLError(err)
	}

	expected := slices.Clone(expectIDs)
	slices.Sort(expected)
	slices.Sort(current)
	if !slices.Equal(expected, current) {
		return persistence.ErrPreconditionFailed
	}
	return nil
}

func insertAttendanceSeedsTx(tx *sql.Tx, seeds []persistence.Attendance) error {
	for _, seed := range seeds {
		_, err := tx.Exec(`INSERT INTO attendances
			(occurrence_id, member_id, status, reason, responded_at, actually_attended, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (occurrence_id, member_id) DO NOTHING`,
			seed.OccurrenceID,
			seed.MemberID,
			seed.Status,
			seed.Reason,
			nullTimePtr(seed.RespondedAt),
			nullBoolPtr(seed.ActuallyAttended),
			seed.CreatedAt.UTC().Format(time.RFC3339),
			seed.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

func buildOccurrenceListQuery(filter persistence.OccurrenceFilter) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM occurrences", occurrenceColumns)

	var conditions []string
	var args []any

	groupIDs := filter.GroupIDs
	if len(groupIDs) == 0 && filter.GroupID != "" {
		groupIDs = []string{filter.GroupID}
	}
	if len(groupIDs) > 0 {
		placeholders := make([]string, len(groupIDs))
		for i, id := range groupIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conditions = append(conditions, "group_id IN ("+strings.Join(placeholders, ",")+")")
	}

	if filter.From != nil {
		conditions = append(conditions, "scheduled_date >= ?")
		args = append(args, filter.From.Format(dateLayout))
	}
	if filter.To != nil {
		conditions = append(conditions, "scheduled_date <= ?")
		args = append(args, filter.To.Format(dateLayout))
	}
	if filter.Confirmed != nil {
		conditions = append(conditions, "is_confirmed = ?")
		args = append(args, boolToInt(*filter.Confirmed))
	}
	if filter.Completed != nil {
		conditions = append(conditions, "is_completed = ?")
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.Cancelled != nil {
		conditions = append(conditions, "is_cancelled = ?")
		args = append(args, boolToInt(*filter.Cancelled))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_date ASC, start_time ASC, id ASC"

	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOccurrence(row rowScanner) (persistence.Occurrence, error) {
	var occ persistence.Occurrence
	var seriesID, endTime, completedAt, cancelledAt sql.NullString
	var dateStr, createdAtStr, updatedAtStr string
	var confirmed, completed, cancelled int

	err := row.Scan(
		&occ.ID,
		&occ.GroupID,
		&seriesID,
		&occ.CreatedBy,
		&occ.Title,
		&occ.Description,
		&dateStr,
		&occ.StartTime,
		&endTime,
		&occ.Target,
		&occ.MinimumMembers,
		&confirmed,
		&completed,
		&cancelled,
		&occ.Notes,
		&occ.CompletionNotes,
		&createdAtStr,
		&updatedAtStr,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return persistence.Occurrence{}, err
	}

	occ.SeriesID = seriesID.String
	if endTime.Valid {
		occ.EndTime = &endTime.String
	}
	occ.Confirmed = confirmed != 0
	occ.Completed = completed != 0
	occ.Cancelled = cancelled != 0

	if occ.Date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse scheduled_date: %w", err)
	}
	if occ.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if occ.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if occ.CompletedAt, err = parseNullTime(completedAt, "completed_at"); err != nil {
		return persistence.Occurrence{}, err
	}
	if occ.CancelledAt, err = parseNullTime(cancelledAt, "cancelled_at"); err != nil {
		return persistence.Occurrence{}, err
	}

	return occ, nil
}

func parseNullTime(value sql.NullString, column string) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return &t, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullStringPtr(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTimePtr(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}

func nullBoolPtr(value *bool) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(boolToInt(*value)), Valid: true}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
