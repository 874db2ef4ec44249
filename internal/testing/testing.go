// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/chorusbot/chorus/internal/models"
	"github.com/chorusbot/chorus/internal/yamusic"
)

// FakeRemote is an in-memory [yamusic.API] holding one playlist. Writes
// go through the same revision check the real service enforces, so
// optimistic-concurrency paths can be driven without a network.
type FakeRemote struct {
	mu sync.Mutex

	UID      string
	OwnerUID string
	Kind     string
	Title    string
	Revision int
	Entries  []models.TrackEntry
	Custom   bool

	// Failure injection. Conflicts rejects that many writes with a
	// revision conflict, bumping the revision and appending one entry
	// as the winning concurrent writer would. NoOps accepts that many
	// diffs without applying them. ExtraDeletes drops that many extra
	// trailing entries after an applied delete, as a concurrent
	// deleter would.
	Conflicts    int
	NoOps        int
	ExtraDeletes int
	NextErr      error

	FetchCalls int
	Diffs      [][]yamusic.DiffOp
	Renames    []string
	Covers     [][]byte

	// Catalog backs Tracks and AlbumTracks lookups.
	Catalog map[string]models.TrackEntry
	Albums  map[string][]models.TrackEntry
}

var _ yamusic.API = (*FakeRemote)(nil)

// NewFakeRemote builds a remote playlist with n placeholder tracks.
func NewFakeRemote(n int) *FakeRemote {
	f := &FakeRemote{
		UID:      "100",
		OwnerUID: "100",
		Kind:     "1000",
		Title:    "fake playlist",
		Revision: 1,
		Catalog:  map[string]models.TrackEntry{},
		Albums:   map[string][]models.TrackEntry{},
	}
	for i := 0; i < n; i++ {
		f.Entries = append(f.Entries, Entry(fmt.Sprintf("%d", i+1), "10"))
	}
	return f
}

// Entry builds a track entry with a derived title.
func Entry(trackID, albumID string) models.TrackEntry {
	return models.TrackEntry{
		Ref:     models.TrackRef{TrackID: trackID, AlbumID: albumID},
		Title:   "track " + trackID,
		Artists: "artist",
	}
}

func (f *FakeRemote) AccountStatus(ctx context.Context) (*yamusic.AccountInfo, error) {
	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return nil, err
	}
	return &yamusic.AccountInfo{UID: f.UID, Login: "fake"}, nil
}

func (f *FakeRemote) FetchPlaylist(ctx context.Context, ownerUID, kind string) (*models.PlaylistSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if ownerUID != f.OwnerUID || kind != f.Kind {
		return nil, &yamusic.NotFoundError{Resource: "playlist " + ownerUID + "/" + kind}
	}
	return f.snapshotLocked(), nil
}

func (f *FakeRemote) snapshotLocked() *models.PlaylistSnapshot {
	tracks := make([]models.TrackEntry, len(f.Entries))
	copy(tracks, f.Entries)
	return &models.PlaylistSnapshot{
		Kind:       f.Kind,
		OwnerUID:   f.OwnerUID,
		Title:      f.Title,
		Revision:   f.Revision,
		TrackCount: len(f.Entries),
		Tracks:     tracks,
		Cover:      models.CoverInfo{IsCustom: f.Custom},
	}
}

func (f *FakeRemote) InsertTrack(ctx context.Context, ownerUID, kind string, ref models.TrackRef, at, revision int) error {
	return f.ApplyDiff(ctx, ownerUID, kind, []yamusic.DiffOp{yamusic.InsertAt(at, ref)}, revision)
}

func (f *FakeRemote) ApplyDiff(ctx context.Context, ownerUID, kind string, ops []yamusic.DiffOp, revision int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return err
	}
	f.Diffs = append(f.Diffs, ops)
	if f.Conflicts > 0 {
		f.Conflicts--
		f.Revision++
		f.Entries = append(f.Entries, Entry(fmt.Sprintf("concurrent-%d", f.Revision), "10"))
		return &yamusic.RevisionConflictError{Kind: kind, OwnerUID: ownerUID, Revision: revision}
	}
	if revision != f.Revision {
		return &yamusic.RevisionConflictError{Kind: kind, OwnerUID: ownerUID, Revision: revision}
	}
	if f.NoOps > 0 {
		f.NoOps--
		f.Revision++
		return nil
	}

	for _, op := range ops {
		switch op.Op {
		case "insert":
			at := op.At
			if at < 0 || at > len(f.Entries) {
				at = len(f.Entries)
			}
			inserted := make([]models.TrackEntry, 0, len(op.Tracks))
			for _, tr := range op.Tracks {
				inserted = append(inserted, Entry(tr.ID, tr.AlbumID))
			}
			f.Entries = append(f.Entries[:at], append(inserted, f.Entries[at:]...)...)
		case "delete":
			if op.From < 0 || op.To > len(f.Entries) || op.From >= op.To {
				return errors.New("fake remote: delete range out of bounds")
			}
			f.Entries = append(f.Entries[:op.From], f.Entries[op.To:]...)
			for f.ExtraDeletes > 0 && len(f.Entries) > 0 {
				f.ExtraDeletes--
				f.Entries = f.Entries[:len(f.Entries)-1]
			}
		default:
			return fmt.Errorf("fake remote: unsupported op %q", op.Op)
		}
	}
	f.Revision++
	return nil
}

func (f *FakeRemote) SetName(ctx context.Context, ownerUID, kind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return err
	}
	f.Title = name
	f.Renames = append(f.Renames, name)
	return nil
}

func (f *FakeRemote) UploadCover(ctx context.Context, ownerUID, kind string, image []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return err
	}
	f.Custom = true
	f.Covers = append(f.Covers, image)
	return nil
}

func (f *FakeRemote) CreatePlaylist(ctx context.Context, title string) (*models.PlaylistSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Title = title
	f.Entries = nil
	f.Revision = 1
	return f.snapshotLocked(), nil
}

func (f *FakeRemote) Tracks(ctx context.Context, trackIDs []string) ([]models.TrackEntry, error) {
	var entries []models.TrackEntry
	for _, id := range trackIDs {
		if e, ok := f.Catalog[id]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (f *FakeRemote) AlbumTracks(ctx context.Context, albumID string) ([]models.TrackEntry, error) {
	entries, ok := f.Albums[albumID]
	if !ok {
		return nil, &yamusic.NotFoundError{Resource: "album " + albumID}
	}
	return entries, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
