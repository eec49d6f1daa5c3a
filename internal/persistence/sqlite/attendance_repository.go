package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/raid-scheduler/internal/persistence"
)

// AttendanceRepository implements persistence.AttendanceRepository on SQLite.
type AttendanceRepository struct {
	pool *ConnectionPool
}

// NewAttendanceRepository creates a SQLite-backed attendance repository.
func NewAttendanceRepository(pool *ConnectionPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `occurrence_id, member_id, status, reason, responded_at,
	actually_attended, created_at, updated_at`

// SeedAttendance inserts the given rows, leaving existing (occurrence,
// member) pairs untouched.
func (r *AttendanceRepository) SeedAttendance(ctx context.Context, rows []persistence.Attendance) error {
	if len(rows) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertAttendanceSeedsTx(tx, rows)
	})
}

// GetAttendance retrieves one row by its (occurrence, member) key.
func (r *AttendanceRepository) GetAttendance(ctx context.Context, occurrenceID, memberID string) (persistence.Attendance, error) {
	if occurrenceID == "" || memberID == "" {
		return persistence.Attendance{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM attendances WHERE occurrence_id = ? AND member_id = ?", attendanceColumns),
		occurrenceID, memberID)
	att, err := scanAttendance(row)
	if err != nil {
		return persistence.Attendance{}, mapSQLError(err)
	}
	return att, nil
}

// UpdateAttendance rewrites a row's mutable fields.
func (r *AttendanceRepository) UpdateAttendance(ctx context.Context, row persistence.Attendance) error {
	result, err := r.pool.db.ExecContext(ctx, `UPDATE attendances
		SET status = ?, reason = ?, responded_at = ?, actually_attended = ?, updated_at = ?
		WHERE occurrence_id = ? AND member_id = ?`,
		row.Status,
		row.Reason,
		nullTimePtr(row.RespondedAt),
		nullBoolPtr(row.ActuallyAttended),
		row.UpdatedAt.UTC().Format(time.RFC3339),
		row.OccurrenceID,
		row.MemberID,
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

// ListAttendance returns every row for an occurrence ordered by member ID.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, occurrenceID string) ([]persistence.Attendance, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM attendances WHERE occurrence_id = ? ORDER BY member_id ASC", attendanceColumns),
		occurrenceID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var result []persistence.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, mapSQLError(err)
		}
		result = append(result, att)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return result, nil
}

func scanAttendance(row rowScanner) (persistence.Attendance, error) {
	var att persistence.Attendance
	var respondedAt sql.NullString
	var actuallyAttended sql.NullInt64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&att.OccurrenceID,
		&att.MemberID,
		&att.Status,
		&att.Reason,
		&respondedAt,
		&actuallyAttended,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Attendance{}, err
	}

	if att.RespondedAt, err = parseNullTime(respondedAt, "responded_at"); err != nil {
		return persistence.Attendance{}, err
	}
	if actuallyAttended.Valid {
		attended := actuallyAttended.Int64 != 0
		att.ActuallyAttended = &attended
	}
	if att.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Attendance{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if att.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Attendance{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return att, nil
}
