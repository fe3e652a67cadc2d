package service

import (
	"context"
	"testing"
	"time"

	"turfbook/internal/models"
	"turfbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableHours(t *testing.T) {
	ctx := context.Background()
	turf := &models.Turf{ID: 1, Name: "Green Arena", IsAvailable: true}

	t.Run("PricedMinusHeld", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewAvailabilityService(store, nil, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(map[int]int64{6: 300, 18: 500, 19: 700}, nil).Once()
		store.On("GetHeldHours", ctx, int64(1), "2026-09-10").Return([]int{18}, nil).Once()

		hours, err := svc.AvailableHours(ctx, 1, "2026-09-10")
		require.NoError(t, err)
		assert.Equal(t, []int{6, 19}, hours)
		store.AssertExpectations(t)
	})

	t.Run("UnknownTurfIsEmpty", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewAvailabilityService(store, nil, testLogger())

		store.On("GetTurf", int64(99)).Return(nil, assert.AnError).Once()

		hours, err := svc.AvailableHours(ctx, 99, "2026-09-10")
		require.NoError(t, err)
		assert.Empty(t, hours)
	})

	t.Run("DisabledTurfIsEmpty", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewAvailabilityService(store, nil, testLogger())

		store.On("GetTurf", int64(2)).Return(&models.Turf{ID: 2, IsAvailable: false}, nil).Once()

		hours, err := svc.AvailableHours(ctx, 2, "2026-09-10")
		require.NoError(t, err)
		assert.Empty(t, hours)
	})

	t.Run("CacheHitSkipsStore", func(t *testing.T) {
		store := new(mockBookingStore)
		cache := repository.NewMemoryCacheRepository(time.Minute)
		svc := NewAvailabilityService(store, cache, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Once()
		store.On("GetPricedHours", ctx, int64(1)).Return(map[int]int64{18: 500}, nil).Once()
		store.On("GetHeldHours", ctx, int64(1), "2026-09-11").Return([]int{}, nil).Once()

		first, err := svc.AvailableHours(ctx, 1, "2026-09-11")
		require.NoError(t, err)

		// Second call must come from cache; the .Once() expectations above
		// fail the test if the store is touched again
		second, err := svc.AvailableHours(ctx, 1, "2026-09-11")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		store.AssertExpectations(t)
	})

	t.Run("InvalidateForcesRecompute", func(t *testing.T) {
		store := new(mockBookingStore)
		cache := repository.NewMemoryCacheRepository(time.Minute)
		svc := NewAvailabilityService(store, cache, testLogger())

		store.On("GetTurf", int64(1)).Return(turf, nil).Twice()
		store.On("GetPricedHours", ctx, int64(1)).Return(map[int]int64{18: 500, 19: 700}, nil).Twice()
		store.On("GetHeldHours", ctx, int64(1), "2026-09-12").Return([]int{}, nil).Once()
		store.On("GetHeldHours", ctx, int64(1), "2026-09-12").Return([]int{18}, nil).Once()

		hours, err := svc.AvailableHours(ctx, 1, "2026-09-12")
		require.NoError(t, err)
		assert.Equal(t, []int{18, 19}, hours)

		svc.Invalidate(ctx, 1, "2026-09-12")

		hours, err = svc.AvailableHours(ctx, 1, "2026-09-12")
		require.NoError(t, err)
		assert.Equal(t, []int{19}, hours)
		store.AssertExpectations(t)
	})

	t.Run("Turfs", func(t *testing.T) {
		store := new(mockBookingStore)
		svc := NewAvailabilityService(store, nil, testLogger())

		turfs := []*models.Turf{turf}
		store.On("GetTurfs").Return(turfs).Once()

		assert.Equal(t, turfs, svc.Turfs())
	})
}
