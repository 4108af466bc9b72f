package notification

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresTokenRepository is a PostgreSQL implementation of TokenRepository.
type PostgresTokenRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(db *sql.DB, logger *slog.Logger) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db, logger: logger}
}

// Register stores or reassigns a device token.
func (r *PostgresTokenRepository) Register(token *DeviceToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO device_tokens (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token)
		DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`
	if _, err := r.db.Exec(query, token.Token, token.UserID, token.Platform, token.CreatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			r.logger.Error("failed to register device token",
				"error", err,
				"pq_code", string(pqErr.Code),
				"user_id", token.UserID,
			)
		}
		return err
	}
	return nil
}

// Remove deletes a device token.
func (r *PostgresTokenRepository) Remove(token string) error {
	result, err := r.db.Exec(`DELETE FROM device_tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// TokensForUser returns all tokens registered to a user.
func (r *PostgresTokenRepository) TokensForUser(userID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
