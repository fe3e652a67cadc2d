package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"turfbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	db     *sql.DB
	logger *zerolog.Logger

	mu          sync.RWMutex
	turfsCache  map[int64]*models.Turf
	sortedTurfs []*models.Turf
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite пускает одного писателя; ждем вместо немедленного SQLITE_BUSY
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("db_path", path).Msg("database initialized")
	return &DB{db: db, logger: logger, turfsCache: make(map[int64]*models.Turf)}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Площадки (справочные данные, обновляются извне)
		`CREATE TABLE IF NOT EXISTS turfs (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            location_name TEXT NOT NULL,
            service_name TEXT NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT 1,
            sort_order INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Почасовые цены
		`CREATE TABLE IF NOT EXISTS hourly_pricing (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            turf_id INTEGER NOT NULL,
            hour INTEGER NOT NULL CHECK(hour >= 0 AND hour <= 23),
            price INTEGER NOT NULL,
            UNIQUE(turf_id, hour)
        )`,

		// Бронирования
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_code TEXT UNIQUE NOT NULL,
            user_id INTEGER NOT NULL,
            user_name TEXT NOT NULL,
            phone TEXT NOT NULL,
            turf_id INTEGER NOT NULL,
            turf_name TEXT NOT NULL,
            booking_date TEXT NOT NULL,
            total_amount INTEGER NOT NULL,
            advance_amount INTEGER NOT NULL,
            received_amount INTEGER NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL DEFAULT 'unpaid',
            status TEXT NOT NULL DEFAULT 'pending_payment',
            gateway TEXT,
            gateway_order_id TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,

		// Занятые часы; released=1 снимает бронь часа без удаления строки
		`CREATE TABLE IF NOT EXISTS booking_slots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            turf_id INTEGER NOT NULL,
            booking_date TEXT NOT NULL,
            hour INTEGER NOT NULL CHECK(hour >= 0 AND hour <= 23),
            released BOOLEAN NOT NULL DEFAULT 0
        )`,

		// Живая бронь держит час эксклюзивно; гонки ловит индекс, не приложение
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_live
            ON booking_slots(turf_id, booking_date, hour) WHERE released = 0`,

		// Платежные попытки
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            amount INTEGER NOT NULL,
            payment_type TEXT NOT NULL,
            gateway TEXT NOT NULL,
            gateway_order_id TEXT UNIQUE NOT NULL,
            gateway_payment_id TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Настройки напоминаний
		`CREATE TABLE IF NOT EXISTS reminder_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            label TEXT NOT NULL,
            minutes_before INTEGER NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            sort_order INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Маркеры отправленных напоминаний, по одному на пару (бронь, оффсет)
		`CREATE TABLE IF NOT EXISTS reminder_sent (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            schedule_id INTEGER NOT NULL REFERENCES reminder_schedules(id),
            sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(booking_id, schedule_id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_turf_id ON bookings(turf_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_booking_id ON booking_slots(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, opts)
}

// SetTurfs заполняет кэш площадок и синхронизирует справочную таблицу.
func (db *DB) SetTurfs(ctx context.Context, turfs []*models.Turf) error {
	cache := make(map[int64]*models.Turf, len(turfs))
	for _, turf := range turfs {
		if _, err := db.db.ExecContext(ctx, `
            INSERT INTO turfs (id, name, location_name, service_name, is_available, sort_order)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                location_name = excluded.location_name,
                service_name = excluded.service_name,
                is_available = excluded.is_available,
                sort_order = excluded.sort_order,
                updated_at = CURRENT_TIMESTAMP`,
			turf.ID, turf.Name, turf.LocationName, turf.ServiceName, turf.IsAvailable, turf.SortOrder,
		); err != nil {
			return fmt.Errorf("failed to upsert turf %d: %w", turf.ID, err)
		}
		cache[turf.ID] = turf
	}

	sorted := append([]*models.Turf(nil), turfs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SortOrder == sorted[j].SortOrder {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	db.mu.Lock()
	db.turfsCache = cache
	db.sortedTurfs = sorted
	db.mu.Unlock()
	return nil
}

// GetTurf возвращает площадку из кэша.
func (db *DB) GetTurf(id int64) (*models.Turf, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	turf, ok := db.turfsCache[id]
	if !ok {
		return nil, ErrTurfNotFound
	}
	return turf, nil
}

// GetTurfs возвращает площадки в порядке сортировки.
func (db *DB) GetTurfs() []*models.Turf {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*models.Turf(nil), db.sortedTurfs...)
}
