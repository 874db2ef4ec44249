// Package models defines domain entities and remote DTOs for the chorus playlist curation service.
//
// The package contains two categories of types:
//
// 1. Persistent entities, backed by the repositories package:
//   - [User] : chat users identified by their front-end id
//   - [Account] : remote service credentials (one shared default, or bound to a user)
//   - [Playlist] : local record of a curated remote playlist
//   - [AccessGrant] : per-(playlist, user) capability bits
//   - [Action] : append-only audit log entries
//
// 2. Remote DTOs, produced by normalization at the API boundary:
//   - [TrackRef] : the (track id, album id) pair every mutation requires
//   - [TrackEntry] : a playlist entry with display metadata
//   - [CoverInfo] : cover art with the custom-upload flag
//   - [PlaylistSnapshot] : a revision-stamped view of the remote playlist
//
// The rest of the system consumes only these typed DTOs and never probes
// remote objects dynamically.
package models
