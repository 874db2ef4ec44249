// Package linkparse extracts track, album, playlist and share
// identifiers from Yandex Music URLs or bare ids pasted by users.
package linkparse

import (
	"regexp"
	"strings"
)

// Kind identifies what a parsed link points at.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindShare    Kind = "share"
)

// Link is the result of classifying a pasted string. Exactly one of
// the id fields is populated depending on Kind; Owner accompanies
// playlist links that carry a user segment.
type Link struct {
	Kind         Kind
	TrackID      string
	AlbumID      string
	Owner        string
	PlaylistKind string
	Token        string
}

var (
	trackNumRe    = regexp.MustCompile(`track/(\d+)`)
	trackHexRe    = regexp.MustCompile(`track/([0-9a-fA-F-]{8,})`)
	bareNumRe     = regexp.MustCompile(`^\d+$`)
	playlistFull  = regexp.MustCompile(`users/([^/]+)/playlists/([0-9a-fA-F-]+)`)
	playlistShort = regexp.MustCompile(`/playlists?/([0-9a-fA-F-]+)`)
	albumNumRe    = regexp.MustCompile(`album/(\d+)`)
	albumHexRe    = regexp.MustCompile(`album/([0-9a-fA-F-]+)`)
	shareParamRe  = regexp.MustCompile(`[?&]start=([A-Za-z0-9_-]+)`)
	bareTokenRe   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Track extracts a track id from a link or a bare numeric id.
// Returns "" when the input does not look like a track reference.
func Track(link string) string {
	if link == "" {
		return ""
	}
	if m := trackNumRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := trackHexRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if trimmed := strings.TrimSpace(link); bareNumRe.MatchString(trimmed) {
		return trimmed
	}
	return ""
}

// Playlist extracts the owner login and playlist kind from a playlist
// link. Owner is "" for the short /playlists/<id> form. Both returns
// are "" when the input is not a playlist link.
func Playlist(link string) (owner, kind string) {
	if link == "" {
		return "", ""
	}
	if m := playlistFull.FindStringSubmatch(link); m != nil {
		return m[1], m[2]
	}
	if m := playlistShort.FindStringSubmatch(link); m != nil {
		return "", m[1]
	}
	return "", ""
}

// Album extracts an album id from a link. Returns "" when the input
// is not an album link.
func Album(link string) string {
	if link == "" {
		return ""
	}
	if m := albumNumRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := albumHexRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// ShareToken extracts an invite token from a deep link of the form
// ...?start=<token> or accepts a bare token made of url-safe
// characters. Returns "" otherwise.
func ShareToken(link string) string {
	if link == "" {
		return ""
	}
	if m := shareParamRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if trimmed := strings.TrimSpace(link); bareTokenRe.MatchString(trimmed) {
		return trimmed
	}
	return ""
}

// Classify tries the parsers in order of specificity: track first,
// then playlist, album and finally share token. A bare number is a
// track id. Returns nil when nothing matches.
func Classify(input string) *Link {
	if id := Track(input); id != "" {
		return &Link{Kind: KindTrack, TrackID: id}
	}
	if owner, kind := Playlist(input); kind != "" {
		return &Link{Kind: KindPlaylist, Owner: owner, PlaylistKind: kind}
	}
	if id := Album(input); id != "" {
		return &Link{Kind: KindAlbum, AlbumID: id}
	}
	if token := ShareToken(input); token != "" {
		return &Link{Kind: KindShare, Token: token}
	}
	return nil
}
