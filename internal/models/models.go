package models

import (
	"fmt"
	"time"
)

// InsertPosition controls where new tracks land in a playlist.
type InsertPosition string

const (
	InsertStart InsertPosition = "start"
	InsertEnd   InsertPosition = "end"
)

// Toggle returns the opposite insert position.
func (p InsertPosition) Toggle() InsertPosition {
	if p == InsertStart {
		return InsertEnd
	}
	return InsertStart
}

// User represents a chat user. The id is assigned by the front-end.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is a remote service credential: either the single process-wide
// default (UserID nil) or bound to exactly one local user.
type Account struct {
	ID        int64
	UserID    *int64
	Token     string
	IsDefault bool
	CreatedAt time.Time
}

// Playlist is the local record of a remote playlist under curation.
//
// AccountID pins the account active at creation time; every future mutation
// routes through that account's session, never the account active "now".
type Playlist struct {
	ID             int64
	Kind           string
	OwnerUID       string
	UUID           string
	CreatorID      int64
	AccountID      *int64
	Title          string
	CoverURL       string
	InsertPosition InsertPosition
	ShareToken     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the remote identifier pair is present.
func (p *Playlist) Validate() error {
	if p.Kind == "" {
		return fmt.Errorf("playlist kind is required")
	}
	if p.OwnerUID == "" {
		return fmt.Errorf("playlist owner uid is required")
	}
	if p.InsertPosition != InsertStart && p.InsertPosition != InsertEnd {
		return fmt.Errorf("invalid insert position: %q", p.InsertPosition)
	}
	return nil
}

// Capabilities is the set of permission bits held per (playlist, user) pair.
type Capabilities struct {
	Add    bool
	Edit   bool
	Delete bool
}

// Covers reports whether c includes every bit set in need.
func (c Capabilities) Covers(need Capabilities) bool {
	if need.Add && !c.Add {
		return false
	}
	if need.Edit && !c.Edit {
		return false
	}
	if need.Delete && !c.Delete {
		return false
	}
	return true
}

// AllCapabilities is what a playlist creator holds.
var AllCapabilities = Capabilities{Add: true, Edit: true, Delete: true}

// AccessGrant maps a (playlist, user) pair to its capability set.
type AccessGrant struct {
	ID            int64
	PlaylistID    int64
	UserID        int64
	Capabilities  Capabilities
	FirstAccessAt time.Time
}

// Action is one audit log entry. PlaylistID is nil for actions not tied to a
// specific playlist (e.g. setting a credential).
type Action struct {
	ID         int64
	UserID     int64
	PlaylistID *int64
	Type       string
	Detail     string
	CreatedAt  time.Time
}

// TrackRef is the (track id, album id) pair the remote service requires for
// every playlist mutation.
type TrackRef struct {
	TrackID string
	AlbumID string
}

// Valid reports whether both ids are present.
func (r TrackRef) Valid() bool {
	return r.TrackID != "" && r.AlbumID != ""
}

// TrackEntry is one playlist entry with display metadata.
type TrackEntry struct {
	Ref     TrackRef
	Title   string
	Artists string
}

// String renders "Title — Artist" or just the title.
func (t TrackEntry) String() string {
	if t.Artists == "" {
		return t.Title
	}
	return t.Title + " — " + t.Artists
}

// CoverInfo describes playlist cover art. IsCustom distinguishes user
// uploads from service-generated mosaics.
type CoverInfo struct {
	URL      string
	IsCustom bool
}

// PlaylistSnapshot is a revision-stamped view of the remote playlist, taken
// immediately before constructing a write request. Revision is never stored
// locally.
type PlaylistSnapshot struct {
	Kind       string
	OwnerUID   string
	UUID       string
	Title      string
	Revision   int
	TrackCount int
	Tracks     []TrackEntry
	Cover      CoverInfo
}
