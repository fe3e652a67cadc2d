package service

import (
	"context"
	"sort"

	"turfbook/internal/domain"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityService отвечает на вопрос "какие часы этого корта еще
// свободны на дату". Ответ кэшируется с коротким TTL; источником истины
// остаются строки слотов в базе.
type AvailabilityService struct {
	store  domain.BookingStore
	cache  domain.CacheRepository
	logger *zerolog.Logger
}

func NewAvailabilityService(store domain.BookingStore, cache domain.CacheRepository, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// AvailableHours returns the bookable hours of a turf on a date, ascending.
// An hour is bookable when it has a configured price and no live slot row.
// Unknown turfs yield an empty list, not an error.
func (s *AvailabilityService) AvailableHours(ctx context.Context, turfID int64, date string) ([]int, error) {
	if s.cache != nil {
		hours, hit, err := s.cache.GetAvailability(ctx, turfID, date)
		if err == nil && hit {
			return hours, nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Int64("turf_id", turfID).Msg("availability cache read failed")
		}
	}

	hours, err := s.computeAvailableHours(ctx, turfID, date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, turfID, date, hours); err != nil {
			s.logger.Warn().Err(err).Int64("turf_id", turfID).Msg("availability cache write failed")
		}
	}

	return hours, nil
}

func (s *AvailabilityService) computeAvailableHours(ctx context.Context, turfID int64, date string) ([]int, error) {
	turf, err := s.store.GetTurf(turfID)
	if err != nil || turf == nil || !turf.IsAvailable {
		// Неизвестный или выключенный корт: свободных часов нет
		return []int{}, nil
	}

	priced, err := s.store.GetPricedHours(ctx, turfID)
	if err != nil {
		return nil, err
	}

	held, err := s.store.GetHeldHours(ctx, turfID, date)
	if err != nil {
		return nil, err
	}

	heldSet := make(map[int]bool, len(held))
	for _, h := range held {
		heldSet[h] = true
	}

	hours := make([]int, 0, len(priced))
	for hour := range priced {
		if !heldSet[hour] {
			hours = append(hours, hour)
		}
	}
	sort.Ints(hours)

	return hours, nil
}

// Invalidate drops the cached answer for a turf/date after slot rows change.
func (s *AvailabilityService) Invalidate(ctx context.Context, turfID int64, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, turfID, date); err != nil {
		s.logger.Warn().Err(err).Int64("turf_id", turfID).Str("date", date).Msg("availability cache invalidate failed")
	}
}

// Turfs returns the reference list of turfs, ordered for display.
func (s *AvailabilityService) Turfs() []*models.Turf {
	return s.store.GetTurfs()
}
