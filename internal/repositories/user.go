package repositories

import (
	"database/sql"
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

// UserRepository persists chat users keyed by their front-end id.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure upserts a user row, refreshing the username on repeat contact.
func (r *UserRepository) Ensure(id int64, username string) error {
	query := `
		INSERT INTO users (id, username, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.Exec(query, id, username); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Get retrieves a user by id, or (nil, nil) when unknown.
func (r *UserRepository) Get(id int64) (*models.User, error) {
	query := `SELECT id, username, created_at, updated_at FROM users WHERE id = ?`

	var (
		user     models.User
		username sql.NullString
	)

	err := r.db.QueryRow(query, id).Scan(&user.ID, &username, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Username = username.String
	return &user, nil
}
