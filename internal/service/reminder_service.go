package service

import (
	"context"
	"time"

	"turfbook/internal/domain"
	"turfbook/internal/events"
	"turfbook/internal/metrics"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
)

// DispatchReport summarizes one reminder sweep.
type DispatchReport struct {
	Checked int              `json:"checked"`
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Results []DispatchResult `json:"results,omitempty"`
}

// DispatchResult records the outcome for one (booking, schedule) pair that
// was due in this sweep. Pairs outside the due window are not listed.
type DispatchResult struct {
	BookingID   int64  `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	ScheduleID  int64  `json:"schedule_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// ReminderService matches confirmed bookings against active reminder
// schedules and hands due reminders to the notifier. A durable sent marker
// per (booking, schedule) keeps redelivery at bay; delivery itself is
// at-least-once because the marker is written only after a successful send.
type ReminderService struct {
	store     domain.ReminderStore
	notifier  domain.Notifier
	eventBus  domain.EventPublisher
	loc       *time.Location
	tolerance time.Duration
	logger    *zerolog.Logger
}

func NewReminderService(store domain.ReminderStore, notifier domain.Notifier, eventBus domain.EventPublisher, loc *time.Location, toleranceMin int, logger *zerolog.Logger) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	if toleranceMin <= 0 {
		toleranceMin = models.DefaultReminderToleranceMin
	}
	return &ReminderService{
		store:     store,
		notifier:  notifier,
		eventBus:  eventBus,
		loc:       loc,
		tolerance: time.Duration(toleranceMin) * time.Minute,
		logger:    logger,
	}
}

// Dispatch runs one sweep at the given clock reading. A reminder is due when
// the time until the booking's earliest hour falls inside the schedule's
// offset, give or take the tolerance window.
func (s *ReminderService) Dispatch(ctx context.Context, now time.Time) (*DispatchReport, error) {
	report := &DispatchReport{}

	schedules, err := s.store.ListReminderSchedules(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return report, nil
	}

	var maxMinutes int64
	for _, schedule := range schedules {
		if schedule.MinutesBefore > maxMinutes {
			maxMinutes = schedule.MinutesBefore
		}
	}

	// Смотрим только на даты, до которых дотягивается самое раннее
	// расписание; остальные брони заведомо не due
	now = now.In(s.loc)
	horizon := now.Add(time.Duration(maxMinutes)*time.Minute + s.tolerance)
	start := now.Format("2006-01-02")
	end := horizon.Format("2006-01-02")

	bookings, err := s.store.GetConfirmedBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	for _, booking := range bookings {
		slotStart := booking.SlotStart(s.loc)
		if slotStart.IsZero() {
			continue
		}

		untilStart := slotStart.Sub(now)
		for _, schedule := range schedules {
			report.Checked++

			offset := time.Duration(schedule.MinutesBefore) * time.Minute
			if untilStart < offset-s.tolerance || untilStart > offset+s.tolerance {
				continue
			}

			sent, err := s.store.WasReminderSent(ctx, booking.ID, schedule.ID)
			if err != nil {
				s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("sent marker lookup failed")
				continue
			}
			result := DispatchResult{
				BookingID:   booking.ID,
				BookingCode: booking.BookingCode,
				ScheduleID:  schedule.ID,
			}

			if sent {
				report.Skipped++
				result.Status = "skipped"
				report.Results = append(report.Results, result)
				continue
			}

			if err := s.send(ctx, booking, schedule); err != nil {
				report.Failed++
				metrics.IncReminder("failed")
				result.Status = "failed"
				result.Error = err.Error()
				report.Results = append(report.Results, result)
				s.logger.Error().Err(err).
					Str("booking_code", booking.BookingCode).
					Int64("schedule_id", schedule.ID).
					Msg("reminder delivery failed")
				continue
			}

			if _, err := s.store.MarkReminderSent(ctx, booking.ID, schedule.ID); err != nil {
				s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to persist sent marker")
			}

			report.Sent++
			metrics.IncReminder("sent")
			result.Status = "sent"
			report.Results = append(report.Results, result)
			s.publishReminderSent(booking, schedule)
		}
	}

	return report, nil
}

func (s *ReminderService) send(ctx context.Context, booking *models.Booking, schedule *models.ReminderSchedule) error {
	payload := &models.ReminderPayload{
		BookingCode: booking.BookingCode,
		UserID:      booking.UserID,
		UserName:    booking.UserName,
		Phone:       booking.Phone,
		TurfName:    booking.TurfName,
		BookingDate: booking.BookingDate,
		TimeRange:   models.FormatTimeRange(booking.Hours),
		Amount:      booking.TotalAmount,
	}

	if turf, err := s.store.GetTurf(booking.TurfID); err == nil {
		payload.LocationName = turf.LocationName
		payload.ServiceName = turf.ServiceName
	}

	return s.notifier.SendReminder(ctx, payload)
}

// CreateSchedule converts a {value, unit} offset to minutes and stores it.
func (s *ReminderService) CreateSchedule(ctx context.Context, label string, value int64, unit string, sortOrder int64) (*models.ReminderSchedule, error) {
	minutes, err := models.ReminderMinutes(value, unit)
	if err != nil {
		return nil, err
	}

	schedule := &models.ReminderSchedule{
		Label:         label,
		MinutesBefore: minutes,
		IsActive:      true,
		SortOrder:     sortOrder,
	}
	if err := s.store.CreateReminderSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *ReminderService) UpdateSchedule(ctx context.Context, id int64, label string, value int64, unit string, sortOrder int64) (*models.ReminderSchedule, error) {
	minutes, err := models.ReminderMinutes(value, unit)
	if err != nil {
		return nil, err
	}

	schedule, err := s.store.GetReminderSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.Label = label
	schedule.MinutesBefore = minutes
	schedule.SortOrder = sortOrder
	if err := s.store.UpdateReminderSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *ReminderService) DeleteSchedule(ctx context.Context, id int64) error {
	return s.store.DeleteReminderSchedule(ctx, id)
}

func (s *ReminderService) ToggleSchedule(ctx context.Context, id int64, active bool) error {
	return s.store.ToggleReminderSchedule(ctx, id, active)
}

func (s *ReminderService) ListSchedules(ctx context.Context, activeOnly bool) ([]*models.ReminderSchedule, error) {
	return s.store.ListReminderSchedules(ctx, activeOnly)
}

func (s *ReminderService) publishReminderSent(booking *models.Booking, schedule *models.ReminderSchedule) {
	if s.eventBus == nil {
		return
	}

	payload := struct {
		BookingID   int64  `json:"booking_id"`
		BookingCode string `json:"booking_code"`
		ScheduleID  int64  `json:"schedule_id"`
		Label       string `json:"label"`
	}{booking.ID, booking.BookingCode, schedule.ID, schedule.Label}

	if err := s.eventBus.PublishJSON(events.EventReminderSent, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
