// Wire types for the remote playlist API and their normalization into typed DTOs.
//
// The service is inconsistent about ids (numbers or strings) and about where
// track/album ids live (on the playlist entry, or on the wrapped track
// object). All of that is resolved here, once, at the API boundary.
package yamusic

import (
	"encoding/json"
	"strings"

	"github.com/chorusbot/chorus/internal/models"
)

// flexID accepts a JSON number or string and holds it as a string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

func (f flexID) String() string { return string(f) }

type wireEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error"`
}

type wireError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type wireAccountStatus struct {
	Account struct {
		UID   flexID `json:"uid"`
		Login string `json:"login"`
	} `json:"account"`
}

type wireOwner struct {
	UID flexID `json:"uid"`
}

type wireCover struct {
	Type   string `json:"type"`
	URI    string `json:"uri"`
	Custom bool   `json:"custom"`
}

type wireArtist struct {
	Name string `json:"name"`
}

type wireAlbum struct {
	ID      flexID        `json:"id"`
	Title   string        `json:"title"`
	Volumes [][]wireTrack `json:"volumes"`
}

type wireTrack struct {
	ID      flexID       `json:"id"`
	Title   string       `json:"title"`
	Albums  []wireAlbum  `json:"albums"`
	Artists []wireArtist `json:"artists"`
}

// wireEntry is one playlist entry. Ids may live here, on the wrapped track,
// or both; see normalize.
type wireEntry struct {
	ID      flexID     `json:"id"`
	AlbumID flexID     `json:"albumId"`
	Track   *wireTrack `json:"track"`
}

type wirePlaylist struct {
	Kind         flexID      `json:"kind"`
	UID          flexID      `json:"uid"`
	Owner        *wireOwner  `json:"owner"`
	PlaylistUUID string      `json:"playlistUuid"`
	Title        string      `json:"title"`
	Revision     int         `json:"revision"`
	TrackCount   int         `json:"trackCount"`
	Cover        *wireCover  `json:"cover"`
	Tracks       []wireEntry `json:"tracks"`
}

// normalize converts a wire entry into a typed TrackEntry, preferring the
// entry-level ids and falling back to the wrapped track object.
func (e wireEntry) normalize() models.TrackEntry {
	ref := models.TrackRef{TrackID: e.ID.String(), AlbumID: e.AlbumID.String()}
	entry := models.TrackEntry{}

	if t := e.Track; t != nil {
		if ref.TrackID == "" {
			ref.TrackID = t.ID.String()
		}
		if ref.AlbumID == "" && len(t.Albums) > 0 {
			ref.AlbumID = t.Albums[0].ID.String()
		}
		entry.Title = t.Title
		entry.Artists = joinArtists(t.Artists)
	}

	entry.Ref = ref
	return entry
}

func (t wireTrack) normalize() models.TrackEntry {
	return wireEntry{Track: &t}.normalize()
}

func joinArtists(artists []wireArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// snapshot converts the wire playlist into the DTO the engine consumes.
func (w wirePlaylist) snapshot() *models.PlaylistSnapshot {
	ownerUID := w.UID.String()
	if ownerUID == "" && w.Owner != nil {
		ownerUID = w.Owner.UID.String()
	}

	snap := &models.PlaylistSnapshot{
		Kind:       w.Kind.String(),
		OwnerUID:   ownerUID,
		UUID:       w.PlaylistUUID,
		Title:      w.Title,
		Revision:   w.Revision,
		TrackCount: w.TrackCount,
	}

	if len(w.Tracks) > 0 {
		snap.Tracks = make([]models.TrackEntry, 0, len(w.Tracks))
		for _, e := range w.Tracks {
			snap.Tracks = append(snap.Tracks, e.normalize())
		}
		if snap.TrackCount == 0 {
			snap.TrackCount = len(snap.Tracks)
		}
	}

	if c := w.Cover; c != nil && c.URI != "" {
		snap.Cover = models.CoverInfo{URL: coverURL(c.URI), IsCustom: c.Custom}
	}

	return snap
}

// coverURL expands the service's scheme-less cover URIs. Size placeholders
// ("%%") resolve to a fixed rendition.
func coverURL(uri string) string {
	uri = strings.Replace(uri, "%%", "400x400", 1)
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "//"):
		return "https:" + uri
	case strings.HasPrefix(uri, "/"):
		return "https://music.yandex.ru" + uri
	default:
		return "https://" + uri
	}
}

// AccountInfo is the handshake result identifying the credential's account.
type AccountInfo struct {
	UID   string
	Login string
}

// DiffOp is a single structured edit instruction for the change-relative
// endpoint. Delete ranges are half-open: [From, To).
type DiffOp struct {
	Op     string
	From   int
	To     int
	At     int
	Tracks []diffTrack
}

type diffTrack struct {
	ID      string `json:"id"`
	AlbumID string `json:"albumId"`
}

// MarshalJSON emits only the fields the op kind uses; a zero From must still
// be serialized so deleting the first entry works.
func (d DiffOp) MarshalJSON() ([]byte, error) {
	switch d.Op {
	case "insert":
		return json.Marshal(struct {
			Op     string      `json:"op"`
			At     int         `json:"at"`
			Tracks []diffTrack `json:"tracks"`
		}{d.Op, d.At, d.Tracks})
	default:
		return json.Marshal(struct {
			Op   string `json:"op"`
			From int    `json:"from"`
			To   int    `json:"to"`
		}{d.Op, d.From, d.To})
	}
}

// DeleteRange builds a diff op deleting entries in [from, to).
func DeleteRange(from, to int) DiffOp {
	return DiffOp{Op: "delete", From: from, To: to}
}

// InsertAt builds a diff op inserting one track at the given index.
func InsertAt(at int, ref models.TrackRef) DiffOp {
	return DiffOp{Op: "insert", At: at, Tracks: []diffTrack{{ID: ref.TrackID, AlbumID: ref.AlbumID}}}
}
