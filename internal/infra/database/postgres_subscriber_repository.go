package database

import (
	"context"
	"database/sql"
	"fmt" // For error wrapping
	"strings"

	"sweep_reminder_bot/internal/domain/subscriber"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrSubscriberNotFound = fmt.Errorf("subscriber not found")
var ErrDuplicateTelegramID = fmt.Errorf("subscriber with this Telegram ID already exists")

type PostgresSubscriberRepository struct {
	db *sql.DB
}

func NewPostgresSubscriberRepository(db *sql.DB) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db}
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	query := `INSERT INTO subscribers (telegram_id, first_name, phone_number, is_active)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.TelegramID, s.FirstName, s.PhoneNumber, s.IsActive).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") && strings.Contains(err.Error(), "subscribers_telegram_id_key") {
			return ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating subscriber: %w", err)
	}
	return nil
}

func (r *PostgresSubscriberRepository) GetByID(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	query := `SELECT id, telegram_id, first_name, phone_number, is_active, created_at, updated_at
               FROM subscribers WHERE id = $1`
	s := &subscriber.Subscriber{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.TelegramID, &s.FirstName, &s.PhoneNumber, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriberRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	query := `SELECT id, telegram_id, first_name, phone_number, is_active, created_at, updated_at
               FROM subscribers WHERE telegram_id = $1`
	s := &subscriber.Subscriber{}
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(&s.ID, &s.TelegramID, &s.FirstName, &s.PhoneNumber, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by Telegram ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriberRepository) Update(ctx context.Context, s *subscriber.Subscriber) error {
	query := `UPDATE subscribers
               SET first_name = $1, phone_number = $2, is_active = $3, updated_at = NOW()
               WHERE id = $4
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, s.FirstName, s.PhoneNumber, s.IsActive, s.ID).Scan(&s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrSubscriberNotFound
		}
		return fmt.Errorf("error updating subscriber: %w", err)
	}
	return nil
}

func (r *PostgresSubscriberRepository) ListActive(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(ctx, `SELECT id, telegram_id, first_name, phone_number, is_active, created_at, updated_at
               FROM subscribers WHERE is_active = TRUE ORDER BY id`)
}

func (r *PostgresSubscriberRepository) ListAll(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(ctx, `SELECT id, telegram_id, first_name, phone_number, is_active, created_at, updated_at
               FROM subscribers ORDER BY id`)
}

func (r *PostgresSubscriberRepository) list(ctx context.Context, query string) ([]*subscriber.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s := &subscriber.Subscriber{}
		if err := rows.Scan(&s.ID, &s.TelegramID, &s.FirstName, &s.PhoneNumber, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning subscriber row: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}
	return subscribers, nil
}
