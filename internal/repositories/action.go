package repositories

import (
	"database/sql"
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

// ActionRepository is the append-only audit log. Rows are never updated.
type ActionRepository struct {
	db *sql.DB
}

// NewActionRepository creates a new ActionRepository with the given database connection
func NewActionRepository(db *sql.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Append records one action.
func (r *ActionRepository) Append(a *models.Action) error {
	query := `
		INSERT INTO actions (user_id, playlist_id, action_type, detail)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Exec(query, a.UserID, nullInt(a.PlaylistID), a.Type, nullString(a.Detail))
	if err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generated id: %w", err)
	}
	a.ID = id
	return nil
}

// ListForUser retrieves a user's most recent actions, newest first.
func (r *ActionRepository) ListForUser(userID int64, limit int) ([]*models.Action, error) {
	return r.list("user_id = ?", userID, limit)
}

// ListForPlaylist retrieves a playlist's most recent actions, newest first.
func (r *ActionRepository) ListForPlaylist(playlistID int64, limit int) ([]*models.Action, error) {
	return r.list("playlist_id = ?", playlistID, limit)
}

func (r *ActionRepository) list(where string, arg int64, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, playlist_id, action_type, detail, created_at
		FROM actions
		WHERE ` + where + `
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		var (
			a          models.Action
			playlistID sql.NullInt64
			detail     sql.NullString
		)
		err := rows.Scan(&a.ID, &a.UserID, &playlistID, &a.Type, &detail, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if playlistID.Valid {
			a.PlaylistID = &playlistID.Int64
		}
		a.Detail = detail.String
		actions = append(actions, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return actions, nil
}
