package yamusic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chorusbot/chorus/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.music.yandex.net"

// API is the remote playlist surface the rest of the system depends on.
// Implemented by [Client]; test doubles implement it in-memory.
type API interface {
	// AccountStatus performs the session handshake and identifies the
	// account behind the credential.
	AccountStatus(ctx context.Context) (*AccountInfo, error)

	// FetchPlaylist retrieves the current snapshot, including the revision
	// required for any subsequent write.
	FetchPlaylist(ctx context.Context, ownerUID, kind string) (*models.PlaylistSnapshot, error)

	// InsertTrack inserts a track at the given index, guarded by revision.
	InsertTrack(ctx context.Context, ownerUID, kind string, ref models.TrackRef, at, revision int) error

	// ApplyDiff submits structured edit ops, guarded by revision.
	ApplyDiff(ctx context.Context, ownerUID, kind string, ops []DiffOp, revision int) error

	// SetName renames the playlist. The name endpoint takes no revision.
	SetName(ctx context.Context, ownerUID, kind, name string) error

	// UploadCover replaces the playlist cover via the multipart endpoint.
	UploadCover(ctx context.Context, ownerUID, kind string, image []byte) error

	// CreatePlaylist creates a playlist owned by the session's account.
	CreatePlaylist(ctx context.Context, title string) (*models.PlaylistSnapshot, error)

	// Tracks resolves track ids into normalized entries.
	Tracks(ctx context.Context, trackIDs []string) ([]models.TrackEntry, error)

	// AlbumTracks lists an album's tracks as normalized entries.
	AlbumTracks(ctx context.Context, albumID string) ([]models.TrackEntry, error)
}

// Client implements [API] over HTTP with an OAuth credential.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	// uid of the authenticated account, filled in by AccountStatus.
	uid string
}

// NewClient creates a client for the given OAuth token. An empty baseURL
// selects [DefaultBaseURL]; a nil logger selects the package default.
func NewClient(token, baseURL string, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = log.Default()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "OAuth"})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: oauth2.NewClient(context.Background(), src),
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
		logger:     logger,
	}
}

// SetRateLimit adjusts the per-session request rate.
func (c *Client) SetRateLimit(rps float64) {
	c.limiter.SetLimit(rate.Limit(rps))
}

// SetTransport swaps the HTTP transport underneath the OAuth header layer.
func (c *Client) SetTransport(rt http.RoundTripper) {
	if t, ok := c.httpClient.Transport.(*oauth2.Transport); ok {
		t.Base = rt
		return
	}
	c.httpClient.Transport = rt
}

// do performs one rate-limited request and decodes the result envelope into
// target (when non-nil). Transport failures come back as UnavailableError.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, target any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return c.send(req, target)
}

func (c *Client) send(req *http.Request, target any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnavailableError{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}

	if target != nil {
		var env wireEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if err := json.Unmarshal(env.Result, target); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

// decodeError maps the service's error envelope onto the typed hierarchy.
// This is the single place error names are inspected as text.
func decodeError(status int, raw []byte) error {
	var env wireEnvelope
	name, message := "", ""
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		name = env.Error.Name
		message = env.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}

	switch {
	case name == "wrong-revision":
		return &RevisionConflictError{}
	case name == "unsuitable-content" || name == "validate" || name == "not-acceptable":
		return &ValidationRejectedError{Reason: message}
	case status == http.StatusUnauthorized || status == http.StatusForbidden || name == "session-expired":
		return &AuthInvalidError{Reason: message}
	case status == http.StatusNotFound:
		return &NotFoundError{Resource: "resource"}
	case status >= 500:
		return &UnavailableError{Cause: fmt.Errorf("%s", message)}
	default:
		return fmt.Errorf("api error: %s", message)
	}
}

// AccountStatus performs the session handshake.
func (c *Client) AccountStatus(ctx context.Context) (*AccountInfo, error) {
	var status wireAccountStatus
	if err := c.do(ctx, http.MethodGet, "/account/status", nil, &status); err != nil {
		return nil, err
	}
	if status.Account.UID.String() == "" {
		return nil, &AuthInvalidError{Reason: "no account behind credential"}
	}

	c.uid = status.Account.UID.String()
	return &AccountInfo{UID: c.uid, Login: status.Account.Login}, nil
}

// FetchPlaylist retrieves the current remote snapshot.
func (c *Client) FetchPlaylist(ctx context.Context, ownerUID, kind string) (*models.PlaylistSnapshot, error) {
	var pl wirePlaylist
	path := fmt.Sprintf("/users/%s/playlists/%s", url.PathEscape(ownerUID), url.PathEscape(kind))
	if err := c.do(ctx, http.MethodGet, path, nil, &pl); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{Resource: "playlist " + ownerUID + "/" + kind}
		}
		return nil, err
	}
	return pl.snapshot(), nil
}

// InsertTrack submits an insert diff at the given index.
func (c *Client) InsertTrack(ctx context.Context, ownerUID, kind string, ref models.TrackRef, at, revision int) error {
	if !ref.Valid() {
		return fmt.Errorf("track ref requires both track and album ids")
	}
	return c.ApplyDiff(ctx, ownerUID, kind, []DiffOp{InsertAt(at, ref)}, revision)
}

// ApplyDiff submits structured edits to the change-relative endpoint.
func (c *Client) ApplyDiff(ctx context.Context, ownerUID, kind string, ops []DiffOp, revision int) error {
	diff, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode diff: %w", err)
	}

	form := url.Values{}
	form.Set("diff", string(diff))
	form.Set("revision", fmt.Sprintf("%d", revision))

	path := fmt.Sprintf("/users/%s/playlists/%s/change-relative", url.PathEscape(ownerUID), url.PathEscape(kind))
	err = c.do(ctx, http.MethodPost, path, form, nil)

	var conflict *RevisionConflictError
	if errors.As(err, &conflict) {
		return &RevisionConflictError{Kind: kind, OwnerUID: ownerUID, Revision: revision}
	}
	return err
}

// SetName renames the playlist. No revision on this endpoint.
func (c *Client) SetName(ctx context.Context, ownerUID, kind, name string) error {
	form := url.Values{}
	form.Set("value", name)

	path := fmt.Sprintf("/users/%s/playlists/%s/name", url.PathEscape(ownerUID), url.PathEscape(kind))
	return c.do(ctx, http.MethodPost, path, form, nil)
}

// UploadCover replaces the playlist cover art via the multipart endpoint.
func (c *Client) UploadCover(ctx context.Context, ownerUID, kind string, image []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("image", "cover.jpg")
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}

	path := fmt.Sprintf("/users/%s/playlists/%s/cover/upload", url.PathEscape(ownerUID), url.PathEscape(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug("uploading cover", "playlist", ownerUID+"/"+kind, "bytes", len(image))
	return c.send(req, nil)
}

// CreatePlaylist creates a playlist on the session's account. AccountStatus
// must have been called first so the owner uid is known.
func (c *Client) CreatePlaylist(ctx context.Context, title string) (*models.PlaylistSnapshot, error) {
	if c.uid == "" {
		if _, err := c.AccountStatus(ctx); err != nil {
			return nil, err
		}
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("visibility", "public")

	var pl wirePlaylist
	path := fmt.Sprintf("/users/%s/playlists/create", url.PathEscape(c.uid))
	if err := c.do(ctx, http.MethodPost, path, form, &pl); err != nil {
		return nil, err
	}

	snap := pl.snapshot()
	if snap.OwnerUID == "" {
		snap.OwnerUID = c.uid
	}
	return snap, nil
}

// Tracks resolves track ids into normalized entries. Unknown ids are
// silently absent from the result.
func (c *Client) Tracks(ctx context.Context, trackIDs []string) ([]models.TrackEntry, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}

	form := url.Values{}
	form.Set("track-ids", strings.Join(trackIDs, ","))

	var tracks []wireTrack
	if err := c.do(ctx, http.MethodPost, "/tracks", form, &tracks); err != nil {
		return nil, err
	}

	entries := make([]models.TrackEntry, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, t.normalize())
	}
	return entries, nil
}

// AlbumTracks lists an album's tracks. Albums arrive as volumes (disc
// sides); they are flattened in order.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]models.TrackEntry, error) {
	var album wireAlbum
	path := fmt.Sprintf("/albums/%s/with-tracks", url.PathEscape(albumID))
	if err := c.do(ctx, http.MethodGet, path, nil, &album); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{Resource: "album " + albumID}
		}
		return nil, err
	}

	var entries []models.TrackEntry
	for _, volume := range album.Volumes {
		for _, t := range volume {
			entry := t.normalize()
			if entry.Ref.AlbumID == "" {
				entry.Ref.AlbumID = album.ID.String()
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
