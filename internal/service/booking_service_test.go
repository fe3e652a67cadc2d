package service

import (
	"context"
	"io"
	"testing"
	"time"

	"turfbook/internal/database"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) GetTurf(id int64) (*models.Turf, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Turf), args.Error(1)
}
func (m *mockBookingStore) GetTurfs() []*models.Turf {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*models.Turf)
}
func (m *mockBookingStore) GetPricedHours(ctx context.Context, turfID int64) (map[int]int64, error) {
	args := m.Called(ctx, turfID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int]int64), args.Error(1)
}
func (m *mockBookingStore) GetHeldHours(ctx context.Context, turfID int64, date string) ([]int, error) {
	args := m.Called(ctx, turfID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}
func (m *mockBookingStore) CreateBookingWithSlots(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingStore) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingStore) TransitionBooking(ctx context.Context, id, version int64, to string) error {
	return m.Called(ctx, id, version, to).Error(0)
}
func (m *mockBookingStore) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) GetConfirmedBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingStore) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func TestValidateBookingDate(t *testing.T) {
	svc := NewBookingService(new(mockBookingStore), nil, nil, 30, time.UTC, testLogger())

	assert.ErrorIs(t, svc.ValidateBookingDate(futureDate(-1)), database.ErrPastDate)
	assert.ErrorIs(t, svc.ValidateBookingDate(futureDate(31)), database.ErrDateTooFar)
	assert.NoError(t, svc.ValidateBookingDate(futureDate(0)))
	assert.NoError(t, svc.ValidateBookingDate(futureDate(5)))
	assert.Error(t, svc.ValidateBookingDate("10-09-2026"))
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	turf := &models.Turf{ID: 1, Name: "Green Arena", IsAvailable: true}
	prices := map[int]int64{18: 500, 19: 700, 20: 700}

	t.Run("AdvancePlan", func(t *testing.T) {
		store := new(mockBookingStore)
		bus := new(mockEventBus)
		svc := NewBookingService(store, nil, bus, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		booking, err := svc.CreateBooking(ctx, CreateBookingRequest{
			UserID:      100,
			UserName:    "Ravi",
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{19, 18},
		})
		require.NoError(t, err)

		assert.Equal(t, []int{18, 19}, booking.Hours)
		assert.Equal(t, int64(1200), booking.TotalAmount)
		assert.Equal(t, int64(360), booking.AdvanceAmount) // 30% of 1200
		assert.Equal(t, models.BookingStatusPendingPayment, booking.Status)
		assert.Equal(t, models.PaymentStatusUnpaid, booking.PaymentStatus)
		assert.Contains(t, booking.BookingCode, "TRF-")
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("FullPlanGetsDiscount", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()

		booking, err := svc.CreateBooking(ctx, CreateBookingRequest{
			UserID:      100,
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{18, 19},
			PaymentPlan: models.PaymentPlanFull,
		})
		require.NoError(t, err)

		// 1200 minus 10% discount; the whole sum is due up front
		assert.Equal(t, int64(1080), booking.TotalAmount)
		assert.Equal(t, int64(1080), booking.AdvanceAmount)
		store.AssertExpectations(t)
	})

	t.Run("DuplicateHoursCollapse", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()

		booking, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{18, 18, 18},
		})
		require.NoError(t, err)
		assert.Equal(t, []int{18}, booking.Hours)
		assert.Equal(t, int64(500), booking.TotalAmount)
	})

	t.Run("EmptyHours", func(t *testing.T) {
		svc := NewBookingService(new(mockBookingStore), nil, nil, 30, time.UTC, testLogger())

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
		})
		assert.ErrorIs(t, err, database.ErrEmptyHours)
	})

	t.Run("HourOutOfRange", func(t *testing.T) {
		svc := NewBookingService(new(mockBookingStore), nil, nil, 30, time.UTC, testLogger())

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{24},
		})
		assert.Error(t, err)
	})

	t.Run("UnpricedHour", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{3},
		})
		assert.ErrorIs(t, err, database.ErrPricingIncomplete)
		store.AssertExpectations(t)
	})

	t.Run("UnknownTurf", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(99)).Return(nil, database.ErrTurfNotFound).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      99,
			BookingDate: futureDate(3),
			Hours:       []int{18},
		})
		assert.ErrorIs(t, err, database.ErrTurfNotFound)
	})

	t.Run("DisabledTurfRejected", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		closed := &models.Turf{ID: 2, Name: "Closed Arena", IsAvailable: false}
		store.On("GetTurf", int64(2)).Return(closed, nil).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			UserID:      100,
			TurfID:      2,
			BookingDate: futureDate(3),
			Hours:       []int{18},
		})
		assert.ErrorIs(t, err, ErrTurfNotAvailable)
		// До прайсинга и записи дело не доходит
		store.AssertNotCalled(t, "GetPricedHours", ctx, int64(2))
		store.AssertNotCalled(t, "CreateBookingWithSlots", ctx, mock.Anything)
	})

	t.Run("CodeCollisionRetries", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(database.ErrDuplicateCode).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{18},
		})
		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("SlotConflictSurfaces", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()
		store.On("CreateBookingWithSlots", ctx, mock.AnythingOfType("*models.Booking")).Return(database.ErrSlotConflict).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{18},
		})
		assert.ErrorIs(t, err, database.ErrSlotConflict)
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(prices, nil).Once()

		_, err := svc.CreateBooking(ctx, CreateBookingRequest{
			TurfID:      1,
			BookingDate: futureDate(3),
			Hours:       []int{18},
			PaymentPlan: "installments",
		})
		assert.Error(t, err)
	})
}

func TestCancelAndCompleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Cancel", func(t *testing.T) {
		store := new(mockBookingStore)
		bus := new(mockEventBus)
		svc := NewBookingService(store, nil, bus, 30, time.UTC, testLogger())

		booking := &models.Booking{ID: 5, TurfID: 1, BookingDate: futureDate(2), Status: models.BookingStatusCancelled}
		store.On("TransitionBooking", ctx, int64(5), int64(1), models.BookingStatusCancelled).Return(nil).Once()
		store.On("GetBooking", ctx, int64(5)).Return(booking, nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		err := svc.CancelBooking(ctx, 5, 1)
		assert.NoError(t, err)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("CancelInvalidTransition", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("TransitionBooking", ctx, int64(6), int64(1), models.BookingStatusCancelled).Return(database.ErrInvalidTransition).Once()

		err := svc.CancelBooking(ctx, 6, 1)
		assert.ErrorIs(t, err, database.ErrInvalidTransition)
	})

	t.Run("Complete", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		booking := &models.Booking{ID: 7, TurfID: 1, BookingDate: futureDate(0), Status: models.BookingStatusCompleted}
		store.On("TransitionBooking", ctx, int64(7), int64(2), models.BookingStatusCompleted).Return(nil).Once()
		store.On("GetBooking", ctx, int64(7)).Return(booking, nil).Once()

		err := svc.CompleteBooking(ctx, 7, 2)
		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("VersionConflict", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewBookingService(store, nil, nil, 30, time.UTC, testLogger())

		store.On("TransitionBooking", ctx, int64(8), int64(1), models.BookingStatusCompleted).Return(database.ErrVersionConflict).Once()

		err := svc.CompleteBooking(ctx, 8, 1)
		assert.ErrorIs(t, err, database.ErrVersionConflict)
	})
}
