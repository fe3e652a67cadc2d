package database

import (
	"context"
	"fmt"

	"turfbook/internal/models"
)

// UpsertHourlyPrice пишет или обновляет цену часа.
func (db *DB) UpsertHourlyPrice(ctx context.Context, price *models.HourlyPrice) error {
	if price.Hour < 0 || price.Hour > 23 {
		return fmt.Errorf("hour %d out of range", price.Hour)
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO hourly_pricing (turf_id, hour, price)
        VALUES (?, ?, ?)
        ON CONFLICT(turf_id, hour) DO UPDATE SET price = excluded.price`,
		price.TurfID, price.Hour, price.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}
	return nil
}

// GetPricedHours возвращает карту час -> цена для часов с положительной ценой.
func (db *DB) GetPricedHours(ctx context.Context, turfID int64) (map[int]int64, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT hour, price FROM hourly_pricing
        WHERE turf_id = ? AND price > 0`, turfID)
	if err != nil {
		return nil, fmt.Errorf("failed to load priced hours: %w", err)
	}
	defer rows.Close()

	prices := make(map[int]int64)
	for rows.Next() {
		var hour int
		var price int64
		if err := rows.Scan(&hour, &price); err != nil {
			return nil, err
		}
		prices[hour] = price
	}
	return prices, rows.Err()
}

// GetHourlyPrices возвращает все строки цен площадки, включая нулевые.
func (db *DB) GetHourlyPrices(ctx context.Context, turfID int64) ([]*models.HourlyPrice, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, turf_id, hour, price FROM hourly_pricing
        WHERE turf_id = ? ORDER BY hour`, turfID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.HourlyPrice
	for rows.Next() {
		var p models.HourlyPrice
		if err := rows.Scan(&p.ID, &p.TurfID, &p.Hour, &p.Price); err != nil {
			return nil, err
		}
		prices = append(prices, &p)
	}
	return prices, rows.Err()
}
