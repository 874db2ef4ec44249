// Package access implements the permission predicate over (playlist, user)
// pairs. Pure data lookups against the persistence layer; no network I/O.
package access

import (
	"fmt"

	"github.com/chorusbot/chorus/internal/models"
)

// GrantStore is the persistence surface for capability rows.
type GrantStore interface {
	// Get returns the grant row for the pair, or nil when none exists.
	Get(playlistID, userID int64) (*models.AccessGrant, error)
	// Upsert creates or replaces the grant row for the pair.
	Upsert(grant *models.AccessGrant) error
}

// PlaylistGetter resolves playlists for creator checks.
type PlaylistGetter interface {
	Get(id int64) (*models.Playlist, error)
}

// Store answers capability questions. The creator implicitly holds all
// capabilities even without an explicit grant row.
type Store struct {
	grants    GrantStore
	playlists PlaylistGetter
}

// NewStore creates an access store over the given persistence surfaces.
func NewStore(grants GrantStore, playlists PlaylistGetter) *Store {
	return &Store{grants: grants, playlists: playlists}
}

// Grant upserts the capability set for a (playlist, user) pair. Re-granting
// the same capabilities is a no-op state change, not an error.
func (s *Store) Grant(playlistID, userID int64, caps models.Capabilities) error {
	grant := &models.AccessGrant{
		PlaylistID:   playlistID,
		UserID:       userID,
		Capabilities: caps,
	}
	if err := s.grants.Upsert(grant); err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

// Check reports whether the user holds every required capability on the
// playlist. No grant row and not the creator means false; never an error
// for "not found".
func (s *Store) Check(playlistID, userID int64, need models.Capabilities) (bool, error) {
	creator, err := s.IsCreator(playlistID, userID)
	if err != nil {
		return false, err
	}
	if creator {
		return true, nil
	}

	grant, err := s.grants.Get(playlistID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up grant: %w", err)
	}
	if grant == nil {
		return false, nil
	}

	return grant.Capabilities.Covers(need), nil
}

// IsCreator reports whether the user created the playlist.
func (s *Store) IsCreator(playlistID, userID int64) (bool, error) {
	pl, err := s.playlists.Get(playlistID)
	if err != nil {
		return false, fmt.Errorf("failed to look up playlist: %w", err)
	}
	if pl == nil {
		return false, nil
	}
	return pl.CreatorID == userID, nil
}
