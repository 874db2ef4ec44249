// Package engine performs semantic changes against remote playlists using a
// fetch-check-apply loop with optimistic concurrency.
//
// The engine holds no lock across the fetch-check-apply steps; the remote
// revision counter is the only concurrency guard. Racing callers are
// expected and resolved purely through bounded revision-conflict retries.
// Every operation authorizes through the access store and routes through
// the account pinned at playlist creation before touching the network.
package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chorusbot/chorus/internal/models"
	"github.com/chorusbot/chorus/internal/router"
	"github.com/chorusbot/chorus/internal/shared"
	"github.com/chorusbot/chorus/internal/yamusic"
)

// PlaylistStore is the persistence surface for local playlist records.
// Lookups return (nil, nil) when no record exists.
type PlaylistStore interface {
	Get(id int64) (*models.Playlist, error)
	GetByShareToken(token string) (*models.Playlist, error)
	Create(p *models.Playlist) error
	Update(p *models.Playlist) error
	Delete(id int64) error
}

// Access answers capability questions; see the access package.
type Access interface {
	Grant(playlistID, userID int64, caps models.Capabilities) error
	Check(playlistID, userID int64, need models.Capabilities) (bool, error)
	IsCreator(playlistID, userID int64) (bool, error)
}

// Sessions resolves authenticated remote sessions; see the router package.
type Sessions interface {
	SessionForPlaylist(ctx context.Context, playlistID int64) (*router.Session, error)
	SessionForUser(ctx context.Context, userID int64) (*router.Session, error)
	Evict(accountID int64)
}

// ActionLog is the append-only audit trail.
type ActionLog interface {
	Append(a *models.Action) error
}

// Engine coordinates authorization, session routing and revision-checked
// writes for a single playlist mutation at a time. Each call runs
// synchronously end-to-end in the calling goroutine.
type Engine struct {
	playlists PlaylistStore
	access    Access
	sessions  Sessions
	actions   ActionLog
	logger    *log.Logger

	// attempts bounds each fetch-check-apply loop.
	attempts int
}

// New creates an Engine. attempts <= 0 selects the default of 2.
func New(playlists PlaylistStore, access Access, sessions Sessions, actions ActionLog, logger *log.Logger, attempts int) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if attempts <= 0 {
		attempts = 2
	}
	return &Engine{
		playlists: playlists,
		access:    access,
		sessions:  sessions,
		actions:   actions,
		logger:    logger,
		attempts:  attempts,
	}
}

// audit appends one entry per attempted mutation, success or failure, with
// the resolved error kind when applicable.
func (e *Engine) audit(userID int64, actionType string, playlistID *int64, detail string, res Result) {
	if !res.OK {
		detail = fmt.Sprintf("%s error_kind=%s", detail, res.Kind)
	}
	entry := &models.Action{UserID: userID, PlaylistID: playlistID, Type: actionType, Detail: detail}
	if err := e.actions.Append(entry); err != nil {
		e.logger.Error("failed to append audit entry", "type", actionType, "err", err)
	}
}

// fail classifies a remote error into a Result, evicting the session when
// the credential itself was rejected.
func (e *Engine) fail(sess *router.Session, err error) Result {
	kind, message := classify(err)
	if sess != nil && isAuthInvalid(err) {
		e.sessions.Evict(sess.AccountID)
	}
	return failed(kind, message)
}

// lookup fetches the local record, mapping a missing row to NotFound.
func (e *Engine) lookup(playlistID int64) (*models.Playlist, Result) {
	pl, err := e.playlists.Get(playlistID)
	if err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}
	if pl == nil {
		return nil, failed(KindNotFound, "playlist not found")
	}
	return pl, succeeded()
}

// authorize runs the capability check and normalizes the answer.
func (e *Engine) authorize(playlistID, userID int64, need models.Capabilities) Result {
	ok, err := e.access.Check(playlistID, userID, need)
	if err != nil {
		return failed(KindUnavailable, err.Error())
	}
	if !ok {
		return failed(KindPermissionDenied, "you do not have permission for this playlist")
	}
	return succeeded()
}

// InsertTrack adds a track to the playlist at the position dictated by its
// insert policy. The insertion index is recomputed from a fresh snapshot on
// every attempt since the track count may change between attempts.
func (e *Engine) InsertTrack(ctx context.Context, playlistID int64, ref models.TrackRef, callerID int64) Result {
	detail := fmt.Sprintf("track=%s album=%s", ref.TrackID, ref.AlbumID)

	pl, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "track_added", nil, fmt.Sprintf("%s playlist=%d", detail, playlistID), res)
		return res
	}
	if res = e.authorize(playlistID, callerID, models.Capabilities{Add: true}); !res.OK {
		e.audit(callerID, "track_added", &playlistID, detail, res)
		return res
	}

	sess, err := e.sessions.SessionForPlaylist(ctx, playlistID)
	if err != nil {
		res = e.fail(sess, err)
		e.audit(callerID, "track_added", &playlistID, detail, res)
		return res
	}

	for attempt := 1; attempt <= e.attempts; attempt++ {
		snap, err := sess.API.FetchPlaylist(ctx, pl.OwnerUID, pl.Kind)
		if err != nil {
			res = e.fail(sess, err)
			e.audit(callerID, "track_added", &playlistID, detail, res)
			return res
		}

		at := 0
		if pl.InsertPosition == models.InsertEnd {
			at = snap.TrackCount
		}

		err = sess.API.InsertTrack(ctx, pl.OwnerUID, pl.Kind, ref, at, snap.Revision)
		if err == nil {
			res = succeeded()
			e.audit(callerID, "track_added", &playlistID, fmt.Sprintf("%s at=%d", detail, at), res)
			return res
		}

		if isConflict(err) {
			e.logger.Debug("insert hit stale revision", "playlist", playlistID, "attempt", attempt)
			continue
		}

		res = e.fail(sess, err)
		e.audit(callerID, "track_added", &playlistID, detail, res)
		return res
	}

	res = failed(KindRevisionConflict, "playlist kept changing concurrently, try again")
	e.audit(callerID, "track_added", &playlistID, detail, res)
	return res
}

// DeleteTrack removes the track at a 1-based position. The range is
// revalidated on every attempt because the list can shrink between
// attempts, and each accepted write is verified against a re-fetch: the
// remote service has been observed to accept a delete without applying it.
func (e *Engine) DeleteTrack(ctx context.Context, playlistID int64, position int, callerID int64) Result {
	detail := fmt.Sprintf("position=%d", position)

	pl, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "track_deleted", nil, fmt.Sprintf("%s playlist=%d", detail, playlistID), res)
		return res
	}
	if res = e.authorize(playlistID, callerID, models.Capabilities{Edit: true}); !res.OK {
		e.audit(callerID, "track_deleted", &playlistID, detail, res)
		return res
	}

	sess, err := e.sessions.SessionForPlaylist(ctx, playlistID)
	if err != nil {
		res = e.fail(sess, err)
		e.audit(callerID, "track_deleted", &playlistID, detail, res)
		return res
	}

	sawNoOp := false

	for attempt := 1; attempt <= e.attempts; attempt++ {
		snap, err := sess.API.FetchPlaylist(ctx, pl.OwnerUID, pl.Kind)
		if err != nil {
			res = e.fail(sess, err)
			e.audit(callerID, "track_deleted", &playlistID, detail, res)
			return res
		}

		if position < 1 || position > snap.TrackCount {
			res = failed(KindNotFound, fmt.Sprintf("no track at position %d (playlist has %d)", position, snap.TrackCount))
			e.audit(callerID, "track_deleted", &playlistID, detail, res)
			return res
		}

		from, to := position-1, position
		err = sess.API.ApplyDiff(ctx, pl.OwnerUID, pl.Kind, []yamusic.DiffOp{yamusic.DeleteRange(from, to)}, snap.Revision)
		if err != nil {
			if isConflict(err) {
				e.logger.Debug("delete hit stale revision", "playlist", playlistID, "attempt", attempt)
				continue
			}
			res = e.fail(sess, err)
			e.audit(callerID, "track_deleted", &playlistID, detail, res)
			return res
		}

		after, err := sess.API.FetchPlaylist(ctx, pl.OwnerUID, pl.Kind)
		if err != nil {
			res = e.fail(sess, err)
			e.audit(callerID, "track_deleted", &playlistID, detail, res)
			return res
		}

		removed := snap.TrackCount - after.TrackCount
		switch {
		case removed == 0:
			// Accepted but not applied. Retry rather than declare success.
			e.logger.Warn("delete accepted but track count unchanged", "playlist", playlistID, "attempt", attempt)
			sawNoOp = true
			continue
		case removed != 1:
			// Another actor deleted concurrently. Tolerated.
			e.logger.Warn("delete removed unexpected count", "playlist", playlistID, "removed", removed)
		}

		res = succeeded()
		e.audit(callerID, "track_deleted", &playlistID, fmt.Sprintf("from=%d to=%d", from, to), res)
		return res
	}

	if sawNoOp {
		res = failed(KindSilentNoOp, "the service accepted the delete but did not apply it")
	} else {
		res = failed(KindRevisionConflict, "playlist kept changing concurrently, try again")
	}
	e.audit(callerID, "track_deleted", &playlistID, detail, res)
	return res
}

// requireCreator gates operations stricter than generic edit rights.
func (e *Engine) requireCreator(playlistID, userID int64) Result {
	creator, err := e.access.IsCreator(playlistID, userID)
	if err != nil {
		return failed(KindUnavailable, err.Error())
	}
	if !creator {
		return failed(KindPermissionDenied, "only the playlist creator can do this")
	}
	return succeeded()
}

// Rename sets a new playlist title. Creator only. Moderation rejections are
// surfaced verbatim and never retried; transient failures are retried once.
func (e *Engine) Rename(ctx context.Context, playlistID int64, newTitle string, callerID int64) Result {
	detail := fmt.Sprintf("title=%s", newTitle)

	pl, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "playlist_renamed", nil, fmt.Sprintf("%s playlist=%d", detail, playlistID), res)
		return res
	}
	if res = e.requireCreator(playlistID, callerID); !res.OK {
		e.audit(callerID, "playlist_renamed", &playlistID, detail, res)
		return res
	}

	sess, err := e.sessions.SessionForPlaylist(ctx, playlistID)
	if err != nil {
		res = e.fail(sess, err)
		e.audit(callerID, "playlist_renamed", &playlistID, detail, res)
		return res
	}

	res = e.submitOnce(func() error {
		return sess.API.SetName(ctx, pl.OwnerUID, pl.Kind, newTitle)
	}, sess)

	if res.OK {
		pl.Title = newTitle
		if err := e.playlists.Update(pl); err != nil {
			e.logger.Error("failed to mirror new title locally", "playlist", playlistID, "err", err)
		}
	}
	e.audit(callerID, "playlist_renamed", &playlistID, detail, res)
	return res
}

// SetCover uploads new cover art. Creator only. On success the local record
// mirrors the remote custom cover URL.
func (e *Engine) SetCover(ctx context.Context, playlistID int64, image []byte, callerID int64) Result {
	detail := fmt.Sprintf("bytes=%d", len(image))

	pl, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "cover_set", nil, fmt.Sprintf("%s playlist=%d", detail, playlistID), res)
		return res
	}
	if res = e.requireCreator(playlistID, callerID); !res.OK {
		e.audit(callerID, "cover_set", &playlistID, detail, res)
		return res
	}

	sess, err := e.sessions.SessionForPlaylist(ctx, playlistID)
	if err != nil {
		res = e.fail(sess, err)
		e.audit(callerID, "cover_set", &playlistID, detail, res)
		return res
	}

	res = e.submitOnce(func() error {
		return sess.API.UploadCover(ctx, pl.OwnerUID, pl.Kind, image)
	}, sess)

	if res.OK {
		if snap, err := sess.API.FetchPlaylist(ctx, pl.OwnerUID, pl.Kind); err == nil && snap.Cover.IsCustom {
			pl.CoverURL = snap.Cover.URL
			if err := e.playlists.Update(pl); err != nil {
				e.logger.Error("failed to mirror cover locally", "playlist", playlistID, "err", err)
			}
		}
	}
	e.audit(callerID, "cover_set", &playlistID, detail, res)
	return res
}

// submitOnce runs a single-shot request, retrying exactly once on a
// transient failure. Everything else is terminal.
func (e *Engine) submitOnce(submit func() error, sess *router.Session) Result {
	err := submit()
	if err != nil && isUnavailable(err) {
		err = submit()
	}
	if err != nil {
		return e.fail(sess, err)
	}
	return succeeded()
}

// TogglePosition flips the playlist's insert policy between start and end.
func (e *Engine) TogglePosition(ctx context.Context, playlistID, callerID int64) (models.InsertPosition, Result) {
	pl, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "position_toggled", nil, fmt.Sprintf("playlist=%d", playlistID), res)
		return "", res
	}
	if res = e.authorize(playlistID, callerID, models.Capabilities{Edit: true}); !res.OK {
		e.audit(callerID, "position_toggled", &playlistID, "", res)
		return "", res
	}

	pl.InsertPosition = pl.InsertPosition.Toggle()
	if err := e.playlists.Update(pl); err != nil {
		res = failed(KindUnavailable, err.Error())
		e.audit(callerID, "position_toggled", &playlistID, "", res)
		return "", res
	}

	res = succeeded()
	e.audit(callerID, "position_toggled", &playlistID, fmt.Sprintf("position=%s", pl.InsertPosition), res)
	return pl.InsertPosition, res
}

// CreatePlaylist creates a remote playlist under the caller's routed account
// and records it locally, pinned to that account. The creator gets an
// explicit all-capability grant row for uniformity.
func (e *Engine) CreatePlaylist(ctx context.Context, title string, callerID int64) (*models.Playlist, Result) {
	sess, err := e.sessions.SessionForUser(ctx, callerID)
	if err != nil {
		res := e.fail(sess, err)
		e.audit(callerID, "playlist_created", nil, "title="+title, res)
		return nil, res
	}

	snap, err := sess.API.CreatePlaylist(ctx, title)
	if err != nil {
		res := e.fail(sess, err)
		e.audit(callerID, "playlist_created", nil, "title="+title, res)
		return nil, res
	}

	accountID := sess.AccountID
	pl := &models.Playlist{
		Kind:           snap.Kind,
		OwnerUID:       snap.OwnerUID,
		UUID:           snap.UUID,
		CreatorID:      callerID,
		AccountID:      &accountID,
		Title:          title,
		InsertPosition: models.InsertEnd,
		ShareToken:     shared.NewShareToken(),
	}
	if err := pl.Validate(); err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}
	if err := e.playlists.Create(pl); err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}
	if err := e.access.Grant(pl.ID, callerID, models.AllCapabilities); err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}

	res := succeeded()
	e.audit(callerID, "playlist_created", &pl.ID, fmt.Sprintf("title=%s kind=%s", title, pl.Kind), res)
	return pl, res
}

// RedeemShareToken grants the redeeming user add-only access to the
// playlist behind an invite token. Redeeming twice is harmless.
func (e *Engine) RedeemShareToken(ctx context.Context, token string, callerID int64) (*models.Playlist, Result) {
	pl, err := e.playlists.GetByShareToken(token)
	if err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}
	if pl == nil {
		res := failed(KindNotFound, "no playlist matches this invite")
		e.audit(callerID, "playlist_shared_access", nil, "via_token="+token, res)
		return nil, res
	}

	if err := e.access.Grant(pl.ID, callerID, models.Capabilities{Add: true}); err != nil {
		return nil, failed(KindUnavailable, err.Error())
	}

	res := succeeded()
	e.audit(callerID, "playlist_shared_access", &pl.ID, "via_token="+token, res)
	return pl, res
}

// DeletePlaylist removes the local record only; the remote resource stays
// with the remote service.
func (e *Engine) DeletePlaylist(ctx context.Context, playlistID, callerID int64) Result {
	_, res := e.lookup(playlistID)
	if !res.OK {
		e.audit(callerID, "playlist_deleted", nil, fmt.Sprintf("playlist=%d", playlistID), res)
		return res
	}
	if res = e.authorize(playlistID, callerID, models.Capabilities{Delete: true}); !res.OK {
		e.audit(callerID, "playlist_deleted", &playlistID, "", res)
		return res
	}

	if err := e.playlists.Delete(playlistID); err != nil {
		res = failed(KindUnavailable, err.Error())
	} else {
		res = succeeded()
	}
	e.audit(callerID, "playlist_deleted", &playlistID, "", res)
	return res
}

// Snapshot fetches the current remote state of a playlist.
func (e *Engine) Snapshot(ctx context.Context, playlistID int64) (*models.PlaylistSnapshot, Result) {
	pl, res := e.lookup(playlistID)
	if !res.OK {
		return nil, res
	}

	sess, err := e.sessions.SessionForPlaylist(ctx, playlistID)
	if err != nil {
		return nil, e.fail(sess, err)
	}

	snap, err := sess.API.FetchPlaylist(ctx, pl.OwnerUID, pl.Kind)
	if err != nil {
		return nil, e.fail(sess, err)
	}
	return snap, succeeded()
}

// Refresh mirrors the remote title and custom cover onto the local record.
func (e *Engine) Refresh(ctx context.Context, playlistID int64) Result {
	pl, res := e.lookup(playlistID)
	if !res.OK {
		return res
	}

	snap, res := e.Snapshot(ctx, playlistID)
	if !res.OK {
		return res
	}

	changed := false
	if snap.Title != "" && snap.Title != pl.Title {
		pl.Title = snap.Title
		changed = true
	}
	if snap.Cover.IsCustom && snap.Cover.URL != pl.CoverURL {
		pl.CoverURL = snap.Cover.URL
		changed = true
	}

	if changed {
		if err := e.playlists.Update(pl); err != nil {
			return failed(KindUnavailable, err.Error())
		}
	}
	return succeeded()
}
