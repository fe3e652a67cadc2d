package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetAvailability(ctx context.Context, turfID int64, date string) ([]int, bool, error) {
	args := m.Called(ctx, turfID, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]int), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetAvailability(ctx context.Context, turfID int64, date string, hours []int) error {
	args := m.Called(ctx, turfID, date, hours)
	return args.Error(0)
}

func (m *mockCache) InvalidateAvailability(ctx context.Context, turfID int64, date string) error {
	args := m.Called(ctx, turfID, date)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCacheRepository(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCacheRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetAvailability", ctx, int64(1), "2026-09-10").Return([]int{6, 7}, true, nil).Once()

		hours, hit, err := repo.GetAvailability(ctx, 1, "2026-09-10")
		assert.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, []int{6, 7}, hours)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("GetAvailability", ctx, int64(2), "2026-09-10").Return(nil, false, errors.New("fail")).Once()
		fallback.On("GetAvailability", ctx, int64(2), "2026-09-10").Return([]int{18}, true, nil).Once()

		hours, hit, err := repo.GetAvailability(ctx, 2, "2026-09-10")
		assert.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, []int{18}, hours)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("GetAvailability", ctx, int64(3), "2026-09-10").Return([]int{9}, true, nil).Once()

		hours, hit, err := repo.GetAvailability(ctx, 3, "2026-09-10")
		assert.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, []int{9}, hours)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("GetAvailability", ctx, int64(33), "2026-09-10").Return(nil, false, errors.New("still fail")).Once()
		fallback.On("GetAvailability", ctx, int64(33), "2026-09-10").Return(nil, false, nil).Once()

		_, hit, err := repo.GetAvailability(ctx, 33, "2026-09-10")
		assert.NoError(t, err)
		assert.False(t, hit)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("SetAvailability", ctx, int64(77), "2026-09-10", []int{6}).Return(nil).Once()

		err := repo.SetAvailability(ctx, 77, "2026-09-10", []int{6})
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("SetFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("SetAvailability", ctx, int64(4), "2026-09-10", []int{7}).Return(errors.New("fail")).Once()
		fallback.On("SetAvailability", ctx, int64(4), "2026-09-10", []int{7}).Return(nil).Once()

		err := repo.SetAvailability(ctx, 4, "2026-09-10", []int{7})
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateClearsBothCaches", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("InvalidateAvailability", ctx, int64(5), "2026-09-10").Return(nil).Once()
		fallback.On("InvalidateAvailability", ctx, int64(5), "2026-09-10").Return(nil).Once()

		err := repo.InvalidateAvailability(ctx, 5, "2026-09-10")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("InvalidateAvailability", ctx, int64(6), "2026-09-10").Return(errors.New("fail")).Once()
		fallback.On("InvalidateAvailability", ctx, int64(6), "2026-09-10").Return(nil).Once()

		err := repo.InvalidateAvailability(ctx, 6, "2026-09-10")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "webhook:razorpay", 60, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "webhook:razorpay", 60, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "webhook:cashfree", 60, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "webhook:cashfree", 60, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "webhook:cashfree", 60, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownGoesStraightToFallback", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now()
		fallback.On("SetAvailability", ctx, int64(44), "2026-09-10", []int{8}).Return(nil).Once()

		err := repo.SetAvailability(ctx, 44, "2026-09-10", []int{8})
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
	})
}
