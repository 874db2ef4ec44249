// Package yamusic is an HTTP client for the remote music service's playlist API.
//
// Every write against a playlist carries the revision read immediately
// before constructing the request; the service rejects stale revisions and
// callers re-read. The client normalizes heterogeneous remote objects into
// the typed DTOs in the models package and converts the service's error
// envelope into the typed hierarchy in errors.go, so callers branch on error
// type and never on message text.
package yamusic
