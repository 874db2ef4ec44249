package repositories

import (
	"database/sql"
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

const playlistColumns = `id, kind, owner_uid, uuid, creator_id, account_id, title, cover_url, insert_position, share_token, created_at, updated_at`

// PlaylistRepository persists local records of remote playlists. Deleting a
// record never touches the remote resource.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist record and backfills the generated id.
func (r *PlaylistRepository) Create(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (kind, owner_uid, uuid, creator_id, account_id, title, cover_url, insert_position, share_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		p.Kind,
		p.OwnerUID,
		nullString(p.UUID),
		p.CreatorID,
		nullInt(p.AccountID),
		p.Title,
		nullString(p.CoverURL),
		string(p.InsertPosition),
		nullString(p.ShareToken),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generated id: %w", err)
	}
	p.ID = id
	return nil
}

// Get retrieves a playlist by id, or (nil, nil) when no record exists.
func (r *PlaylistRepository) Get(id int64) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByShareToken retrieves a playlist by its invite token.
func (r *PlaylistRepository) GetByShareToken(token string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE share_token = ?`
	return r.scanOne(r.db.QueryRow(query, token))
}

// GetByKindAndOwner retrieves a playlist by its remote identifier pair.
func (r *PlaylistRepository) GetByKindAndOwner(kind, ownerUID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE kind = ? AND owner_uid = ?`
	return r.scanOne(r.db.QueryRow(query, kind, ownerUID))
}

// Update modifies an existing playlist record.
func (r *PlaylistRepository) Update(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE playlists
		SET title = ?, cover_url = ?, insert_position = ?, share_token = ?, uuid = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		p.Title,
		nullString(p.CoverURL),
		string(p.InsertPosition),
		nullString(p.ShareToken),
		nullString(p.UUID),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return mustAffect(result, fmt.Sprintf("playlist %d", p.ID))
}

// Delete removes the local record. Grants cascade; actions keep a NULL ref.
func (r *PlaylistRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return mustAffect(result, fmt.Sprintf("playlist %d", id))
}

// ListForUser retrieves playlists the user created, plus any they hold a
// grant on when includeShared is set, ordered by creation.
func (r *PlaylistRepository) ListForUser(userID int64, includeShared bool) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE creator_id = ?`
	args := []any{userID}

	if includeShared {
		query = `
			SELECT DISTINCT p.id, p.kind, p.owner_uid, p.uuid, p.creator_id, p.account_id, p.title, p.cover_url, p.insert_position, p.share_token, p.created_at, p.updated_at
			FROM playlists p
			LEFT JOIN grants g ON g.playlist_id = p.id
			WHERE p.creator_id = ? OR g.user_id = ?
		`
		args = []any{userID, userID}
	}

	query += " ORDER BY 1 ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// CountCreatedBy counts playlists the user created.
func (r *PlaylistRepository) CountCreatedBy(userID int64) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM playlists WHERE creator_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	p, err := scanPlaylist(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var (
		p          models.Playlist
		uuid       sql.NullString
		accountID  sql.NullInt64
		title      sql.NullString
		coverURL   sql.NullString
		position   string
		shareToken sql.NullString
	)

	err := s.Scan(&p.ID, &p.Kind, &p.OwnerUID, &uuid, &p.CreatorID, &accountID, &title, &coverURL, &position, &shareToken, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.UUID = uuid.String
	if accountID.Valid {
		p.AccountID = &accountID.Int64
	}
	p.Title = title.String
	p.CoverURL = coverURL.String
	p.InsertPosition = models.InsertPosition(position)
	p.ShareToken = shareToken.String
	return &p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
