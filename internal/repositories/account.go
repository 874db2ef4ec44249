package repositories

import (
	"database/sql"
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

// AccountRepository persists remote service credentials: one shared default
// row (user_id NULL, is_default 1) plus at most one row per user.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// SetDefault upserts the shared default account credential. NULL user ids
// never conflict in sqlite, so this is an update-then-insert.
func (r *AccountRepository) SetDefault(token string) error {
	result, err := r.db.Exec("UPDATE accounts SET token = ? WHERE is_default = 1 AND user_id IS NULL", token)
	if err != nil {
		return fmt.Errorf("failed to set default account: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		return nil
	}

	if _, err := r.db.Exec("INSERT INTO accounts (user_id, token, is_default) VALUES (NULL, ?, 1)", token); err != nil {
		return fmt.Errorf("failed to set default account: %w", err)
	}
	return nil
}

// Default retrieves the shared default account.
func (r *AccountRepository) Default() (*models.Account, error) {
	query := `
		SELECT id, user_id, token, is_default, created_at
		FROM accounts
		WHERE is_default = 1 AND user_id IS NULL
	`
	acc, err := r.scanOne(r.db.QueryRow(query))
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("default account not configured")
	}
	return acc, nil
}

// ForUser retrieves a user's personal account, or (nil, nil) when the user
// has no stored credential.
func (r *AccountRepository) ForUser(userID int64) (*models.Account, error) {
	query := `
		SELECT id, user_id, token, is_default, created_at
		FROM accounts
		WHERE user_id = ?
	`
	return r.scanOne(r.db.QueryRow(query, userID))
}

// ByID retrieves an account by its id.
func (r *AccountRepository) ByID(id int64) (*models.Account, error) {
	query := `
		SELECT id, user_id, token, is_default, created_at
		FROM accounts
		WHERE id = ?
	`
	acc, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account not found: %d", id)
	}
	return acc, nil
}

// Save upserts a per-user credential and backfills the generated id.
func (r *AccountRepository) Save(acc *models.Account) error {
	if acc.UserID == nil {
		return r.SetDefault(acc.Token)
	}

	query := `
		INSERT INTO accounts (user_id, token, is_default)
		VALUES (?, ?, 0)
		ON CONFLICT(user_id) WHERE user_id IS NOT NULL DO UPDATE SET token = excluded.token
	`
	if _, err := r.db.Exec(query, *acc.UserID, acc.Token); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	row := r.db.QueryRow("SELECT id FROM accounts WHERE user_id = ?", *acc.UserID)
	if err := row.Scan(&acc.ID); err != nil {
		return fmt.Errorf("failed to read back account id: %w", err)
	}
	return nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var (
		acc    models.Account
		userID sql.NullInt64
	)

	err := row.Scan(&acc.ID, &userID, &acc.Token, &acc.IsDefault, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if userID.Valid {
		acc.UserID = &userID.Int64
	}
	return &acc, nil
}
