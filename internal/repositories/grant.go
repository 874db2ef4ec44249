package repositories

import (
	"database/sql"
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

// GrantRepository persists per-(playlist, user) capability rows. The UNIQUE
// pair constraint makes re-granting an upsert, never a duplicate.
type GrantRepository struct {
	db *sql.DB
}

// NewGrantRepository creates a new GrantRepository with the given database connection
func NewGrantRepository(db *sql.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Upsert creates or replaces the grant row for the (playlist, user) pair.
func (r *GrantRepository) Upsert(grant *models.AccessGrant) error {
	query := `
		INSERT INTO grants (playlist_id, user_id, can_add, can_edit, can_delete)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id, user_id) DO UPDATE SET
			can_add = excluded.can_add,
			can_edit = excluded.can_edit,
			can_delete = excluded.can_delete
	`

	_, err := r.db.Exec(query,
		grant.PlaylistID,
		grant.UserID,
		grant.Capabilities.Add,
		grant.Capabilities.Edit,
		grant.Capabilities.Delete,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// Get retrieves the grant row for the pair, or (nil, nil) when none exists.
func (r *GrantRepository) Get(playlistID, userID int64) (*models.AccessGrant, error) {
	query := `
		SELECT id, playlist_id, user_id, can_add, can_edit, can_delete, first_access_at
		FROM grants
		WHERE playlist_id = ? AND user_id = ?
	`

	var g models.AccessGrant
	err := r.db.QueryRow(query, playlistID, userID).Scan(
		&g.ID,
		&g.PlaylistID,
		&g.UserID,
		&g.Capabilities.Add,
		&g.Capabilities.Edit,
		&g.Capabilities.Delete,
		&g.FirstAccessAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan grant: %w", err)
	}
	return &g, nil
}

// ListForPlaylist retrieves every grant on a playlist.
func (r *GrantRepository) ListForPlaylist(playlistID int64) ([]*models.AccessGrant, error) {
	query := `
		SELECT id, playlist_id, user_id, can_add, can_edit, can_delete, first_access_at
		FROM grants
		WHERE playlist_id = ?
		ORDER BY first_access_at ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.AccessGrant
	for rows.Next() {
		var g models.AccessGrant
		err := rows.Scan(&g.ID, &g.PlaylistID, &g.UserID, &g.Capabilities.Add, &g.Capabilities.Edit, &g.Capabilities.Delete, &g.FirstAccessAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return grants, nil
}
