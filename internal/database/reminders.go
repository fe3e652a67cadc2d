package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turfbook/internal/models"
)

const scheduleColumns = `id, label, minutes_before, is_active, sort_order, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*models.ReminderSchedule, error) {
	var s models.ReminderSchedule
	err := row.Scan(&s.ID, &s.Label, &s.MinutesBefore, &s.IsActive, &s.SortOrder, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateReminderSchedule(ctx context.Context, schedule *models.ReminderSchedule) error {
	now := time.Now()
	result, err := db.db.ExecContext(ctx, `
        INSERT INTO reminder_schedules (label, minutes_before, is_active, sort_order, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		schedule.Label, schedule.MinutesBefore, schedule.IsActive, schedule.SortOrder, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reminder schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	schedule.ID = id
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	return nil
}

func (db *DB) UpdateReminderSchedule(ctx context.Context, schedule *models.ReminderSchedule) error {
	result, err := db.db.ExecContext(ctx, `
        UPDATE reminder_schedules
        SET label = ?, minutes_before = ?, is_active = ?, sort_order = ?, updated_at = ?
        WHERE id = ?`,
		schedule.Label, schedule.MinutesBefore, schedule.IsActive, schedule.SortOrder,
		time.Now(), schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (db *DB) DeleteReminderSchedule(ctx context.Context, id int64) error {
	result, err := db.db.ExecContext(ctx,
		`DELETE FROM reminder_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (db *DB) ToggleReminderSchedule(ctx context.Context, id int64, active bool) error {
	result, err := db.db.ExecContext(ctx, `
        UPDATE reminder_schedules SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to toggle reminder schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (db *DB) GetReminderSchedule(ctx context.Context, id int64) (*models.ReminderSchedule, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM reminder_schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotFound
	}
	return schedule, err
}

// ListReminderSchedules возвращает все расписания в порядке сортировки.
func (db *DB) ListReminderSchedules(ctx context.Context, activeOnly bool) ([]*models.ReminderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM reminder_schedules`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.ReminderSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// MarkReminderSent durably записывает пару (бронь, расписание).
// Возвращает false без ошибки, если маркер уже существует.
func (db *DB) MarkReminderSent(ctx context.Context, bookingID, scheduleID int64) (bool, error) {
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO reminder_sent (booking_id, schedule_id) VALUES (?, ?)`,
		bookingID, scheduleID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return true, nil
}

func (db *DB) WasReminderSent(ctx context.Context, bookingID, scheduleID int64) (bool, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM reminder_sent WHERE booking_id = ? AND schedule_id = ?`,
		bookingID, scheduleID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
