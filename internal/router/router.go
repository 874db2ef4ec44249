// Package router resolves which remote account a user or playlist operates
// under and hands out cached, authenticated sessions.
//
// Sessions are created lazily and kept for the process lifetime; there is no
// TTL. A session is assumed valid until a call fails with an auth-invalid
// error, at which point the caller evicts it and the next use redials.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chorusbot/chorus/internal/models"
	"github.com/chorusbot/chorus/internal/yamusic"
)

// yamusicAPI aliases the remote surface so test doubles can stand in.
type yamusicAPI = yamusic.API

// defaultKey is the registry key for the shared default account's session.
const defaultKey int64 = 0

// ErrNoPersonalAccount is returned by OwnSession for users without a stored
// credential.
var ErrNoPersonalAccount = errors.New("user has no personal account")

// AccountStore is the persistence surface the router needs.
type AccountStore interface {
	Default() (*models.Account, error)
	ForUser(userID int64) (*models.Account, error)
	ByID(id int64) (*models.Account, error)
	Save(acc *models.Account) error
}

// PlaylistGetter resolves local playlists so sessions can be routed to the
// account that created them.
type PlaylistGetter interface {
	Get(id int64) (*models.Playlist, error)
}

// DialFunc performs a raw session handshake for a credential, returning the
// remote API handle and the account uid. The router wraps it with retry.
type DialFunc func(ctx context.Context, token string) (yamusic.API, string, error)

// RetryConfig bounds handshake retries. Backoff doubles per attempt starting
// at BaseDelay and applies only to transient failures.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

// Router maps users and playlists to live sessions.
type Router struct {
	accounts  AccountStore
	playlists PlaylistGetter
	dial      DialFunc
	retry     RetryConfig
	sleep     func(time.Duration)
	registry  *registry
	logger    *log.Logger
}

// New creates a Router. A nil dial uses the real yamusic client; a nil
// logger uses the package default.
func New(accounts AccountStore, playlists PlaylistGetter, dial DialFunc, retry RetryConfig, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	if dial == nil {
		dial = func(ctx context.Context, token string) (yamusic.API, string, error) {
			client := yamusic.NewClient(token, "", logger)
			info, err := client.AccountStatus(ctx)
			if err != nil {
				return nil, "", err
			}
			return client, info.UID, nil
		}
	}
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 500 * time.Millisecond
	}

	return &Router{
		accounts:  accounts,
		playlists: playlists,
		dial:      dial,
		retry:     retry,
		sleep:     time.Sleep,
		registry:  newRegistry(),
		logger:    logger,
	}
}

// handshake dials with bounded exponential backoff. Transient failures
// (timeouts, connection errors, 5xx) are retried; anything else fails
// immediately.
func (r *Router) handshake(ctx context.Context, token string) (yamusic.API, string, error) {
	delay := r.retry.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		api, uid, err := r.dial(ctx, token)
		if err == nil {
			return api, uid, nil
		}
		lastErr = err

		var unavailable *yamusic.UnavailableError
		if !errors.As(err, &unavailable) {
			return nil, "", err
		}

		if attempt < r.retry.Attempts {
			r.logger.Warn("session handshake failed, retrying", "attempt", attempt, "delay", delay, "err", err)
			r.sleep(delay)
			delay *= 2
		}
	}

	return nil, "", fmt.Errorf("handshake failed after %d attempts: %w", r.retry.Attempts, lastErr)
}

// sessionFor returns the cached session for an account, dialing under the
// per-key lock on first use.
func (r *Router) sessionFor(ctx context.Context, acc *models.Account) (*Session, error) {
	key := defaultKey
	if !acc.IsDefault {
		key = acc.ID
	}

	e := r.registry.acquire(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return e.session, nil
	}

	api, uid, err := r.handshake(ctx, acc.Token)
	if err != nil {
		return nil, err
	}

	e.session = &Session{API: api, UID: uid, AccountID: acc.ID, UserID: acc.UserID}
	r.logger.Info("session initialized", "account", acc.ID, "default", acc.IsDefault)
	return e.session, nil
}

// Default returns the shared default session, initializing it on first use.
// Exhausted retries here are fatal to baseline operation; callers at startup
// treat the error accordingly.
func (r *Router) Default(ctx context.Context) (*Session, error) {
	acc, err := r.accounts.Default()
	if err != nil {
		return nil, fmt.Errorf("no default account configured: %w", err)
	}
	return r.sessionFor(ctx, acc)
}

// SessionForUser returns the session for a user's personal credential, or
// the default session when the user has none or their handshake keeps
// failing. Suited to read-style needs; mutation paths that must write under
// the user's own identity use OwnSession.
func (r *Router) SessionForUser(ctx context.Context, userID int64) (*Session, error) {
	acc, err := r.accounts.ForUser(userID)
	if err != nil || acc == nil {
		return r.Default(ctx)
	}

	s, err := r.sessionFor(ctx, acc)
	if err != nil {
		r.logger.Warn("personal session unavailable, falling back to default", "user", userID, "err", err)
		return r.Default(ctx)
	}
	return s, nil
}

// OwnSession returns the session for the user's personal credential and
// never substitutes another account's write identity.
func (r *Router) OwnSession(ctx context.Context, userID int64) (*Session, error) {
	acc, err := r.accounts.ForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	if acc == nil {
		return nil, ErrNoPersonalAccount
	}
	return r.sessionFor(ctx, acc)
}

// SessionForPlaylist resolves the account pinned at playlist creation and
// returns its session. Mutations must use this write identity, so a failing
// personal account surfaces the error instead of substituting the default.
func (r *Router) SessionForPlaylist(ctx context.Context, playlistID int64) (*Session, error) {
	pl, err := r.playlists.Get(playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist: %w", err)
	}
	if pl == nil {
		return nil, fmt.Errorf("playlist %d not found", playlistID)
	}
	if pl.AccountID == nil {
		return r.Default(ctx)
	}

	acc, err := r.accounts.ByID(*pl.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account %d: %w", *pl.AccountID, err)
	}
	if acc.IsDefault {
		return r.Default(ctx)
	}
	return r.sessionFor(ctx, acc)
}

// SetCredential validates a user's credential with a handshake and stores it
// on success, replacing any cached session. On failure prior state is left
// untouched and false is returned: a bad token is user-correctable input,
// not a system fault.
func (r *Router) SetCredential(ctx context.Context, userID int64, token string) bool {
	api, uid, err := r.handshake(ctx, token)
	if err != nil {
		r.logger.Warn("credential rejected", "user", userID, "err", err)
		return false
	}

	acc := &models.Account{UserID: &userID, Token: token}
	if err := r.accounts.Save(acc); err != nil {
		r.logger.Error("failed to store credential", "user", userID, "err", err)
		return false
	}

	r.registry.replace(acc.ID, &Session{API: api, UID: uid, AccountID: acc.ID, UserID: &userID})
	r.logger.Info("credential set", "user", userID, "uid", uid)
	return true
}

// Evict drops the cached session for an account after an auth-invalid
// failure; the next use redials.
func (r *Router) Evict(accountID int64) {
	acc, err := r.accounts.ByID(accountID)
	if err == nil && acc.IsDefault {
		r.registry.evict(defaultKey)
		return
	}
	r.registry.evict(accountID)
}
