package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// Store читает и заполняет таблицу system_settings.
// Работает через database/sql: в приложении *sql.DB открывается поверх
// того же pgxpool (pgx/v5/stdlib), поэтому отдельного пула соединений нет.
type Store struct {
	db *sql.DB
}

// NewStore создаёт хранилище настроек.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadAll возвращает все настройки одной выборкой.
func (s *Store) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования настройки: %w", err)
		}
		values[key] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	return values, nil
}

// SeedMissing вставляет отсутствующие ключи и возвращает, сколько вставлено.
// Существующие значения не трогает.
func (s *Store) SeedMissing(ctx context.Context, entries []SeedEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, e := range entries {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO system_settings (key, value, category, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO NOTHING
		`, e.Key, e.Value, e.Category, e.Description)
		if err != nil {
			return 0, fmt.Errorf("ошибка записи настройки %s: %w", e.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("ошибка записи настройки %s: %w", e.Key, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации настроек: %w", err)
	}
	return inserted, nil
}
