package repository

import (
	"context"
	"sync/atomic"
	"time"

	"turfbook/internal/domain"

	"github.com/rs/zerolog"
)

type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCacheRepository) GetAvailability(ctx context.Context, turfID int64, date string) ([]int, bool, error) {
	if !r.isDown.Load() {
		hours, hit, err := r.primary.GetAvailability(ctx, turfID, date)
		if err == nil {
			return hours, hit, nil
		}
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		hours, hit, err := r.primary.GetAvailability(ctx, turfID, date)
		if err == nil {
			r.isDown.Store(false)
			return hours, hit, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetAvailability(ctx, turfID, date)
}

func (r *FailoverCacheRepository) SetAvailability(ctx context.Context, turfID int64, date string, hours []int) error {
	if !r.isDown.Load() {
		err := r.primary.SetAvailability(ctx, turfID, date, hours)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.SetAvailability(ctx, turfID, date, hours)
}

func (r *FailoverCacheRepository) InvalidateAvailability(ctx context.Context, turfID int64, date string) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidateAvailability(ctx, turfID, date)
		if err == nil {
			// Инвалидируем и запасной кэш, чтобы после падения primary
			// не всплыл устаревший ответ
			_ = r.fallback.InvalidateAvailability(ctx, turfID, date)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.InvalidateAvailability(ctx, turfID, date)
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
