package yamusic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chorusbot/chorus/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("secret", srv.URL, nil)
	client.SetRateLimit(10000)
	return client, srv
}

func writeResult(w http.ResponseWriter, result string) {
	fmt.Fprintf(w, `{"result":%s}`, result)
}

func TestAccountStatus(t *testing.T) {
	t.Run("numeric uid", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/account/status" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "OAuth ") {
				t.Errorf("expected OAuth authorization header, got %q", auth)
			}
			writeResult(w, `{"account":{"uid":12345,"login":"listener"}}`)
		}))

		info, err := client.AccountStatus(context.Background())
		if err != nil {
			t.Fatalf("AccountStatus failed: %v", err)
		}
		if info.UID != "12345" || info.Login != "listener" {
			t.Errorf("unexpected account info: %+v", info)
		}
	})

	t.Run("anonymous session is auth invalid", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeResult(w, `{"account":{}}`)
		}))

		_, err := client.AccountStatus(context.Background())
		var authErr *AuthInvalidError
		if !errors.As(err, &authErr) {
			t.Errorf("expected AuthInvalidError, got %v", err)
		}
	})
}

func TestFetchPlaylist(t *testing.T) {
	t.Run("normalizes heterogeneous entries", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/42/playlists/1000" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			writeResult(w, `{
				"kind": 1000,
				"uid": 42,
				"title": "road trip",
				"revision": 7,
				"trackCount": 2,
				"cover": {"type": "pic", "uri": "avatars.example/%%", "custom": true},
				"tracks": [
					{"id": "11", "albumId": "21"},
					{"track": {"id": 12, "title": "Song", "albums": [{"id": 22}], "artists": [{"name": "A"}, {"name": "B"}]}}
				]
			}`)
		}))

		snap, err := client.FetchPlaylist(context.Background(), "42", "1000")
		if err != nil {
			t.Fatalf("FetchPlaylist failed: %v", err)
		}

		if snap.Revision != 7 || snap.TrackCount != 2 {
			t.Errorf("unexpected snapshot header: %+v", snap)
		}
		if snap.Kind != "1000" || snap.OwnerUID != "42" {
			t.Errorf("flex ids not normalized: kind=%q owner=%q", snap.Kind, snap.OwnerUID)
		}

		if got := snap.Tracks[0].Ref; got.TrackID != "11" || got.AlbumID != "21" {
			t.Errorf("entry-level ids not used: %+v", got)
		}
		if got := snap.Tracks[1].Ref; got.TrackID != "12" || got.AlbumID != "22" {
			t.Errorf("wrapped track ids not used: %+v", got)
		}
		if snap.Tracks[1].Artists != "A, B" {
			t.Errorf("artists not joined: %q", snap.Tracks[1].Artists)
		}

		if snap.Cover.URL != "https://avatars.example/400x400" {
			t.Errorf("cover uri not expanded: %q", snap.Cover.URL)
		}
		if !snap.Cover.IsCustom {
			t.Error("custom cover flag lost")
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"name":"not-found","message":"no such playlist"}}`)
		}))

		_, err := client.FetchPlaylist(context.Background(), "42", "9999")
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestApplyDiff(t *testing.T) {
	t.Run("delete of first track serializes from zero", func(t *testing.T) {
		var gotDiff, gotRevision string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/42/playlists/1000/change-relative" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			gotDiff = r.PostForm.Get("diff")
			gotRevision = r.PostForm.Get("revision")
			writeResult(w, `{"revision": 8}`)
		}))

		err := client.ApplyDiff(context.Background(), "42", "1000", []DiffOp{DeleteRange(0, 1)}, 7)
		if err != nil {
			t.Fatalf("ApplyDiff failed: %v", err)
		}

		if gotRevision != "7" {
			t.Errorf("expected revision 7, got %q", gotRevision)
		}

		var ops []map[string]any
		if err := json.Unmarshal([]byte(gotDiff), &ops); err != nil {
			t.Fatalf("diff is not valid JSON: %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("expected one op, got %d", len(ops))
		}
		if ops[0]["op"] != "delete" {
			t.Errorf("expected delete op, got %v", ops[0]["op"])
		}
		if from, ok := ops[0]["from"]; !ok || from != float64(0) {
			t.Errorf("from=0 must be serialized, got %v (present=%v)", from, ok)
		}
		if to := ops[0]["to"]; to != float64(1) {
			t.Errorf("expected to=1, got %v", to)
		}
	})

	t.Run("insert serializes op at tracks", func(t *testing.T) {
		var gotDiff string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			gotDiff = r.PostForm.Get("diff")
			writeResult(w, `{"revision": 8}`)
		}))

		ref := models.TrackRef{TrackID: "11", AlbumID: "21"}
		if err := client.InsertTrack(context.Background(), "42", "1000", ref, 3, 7); err != nil {
			t.Fatalf("InsertTrack failed: %v", err)
		}

		var ops []map[string]any
		if err := json.Unmarshal([]byte(gotDiff), &ops); err != nil {
			t.Fatalf("diff is not valid JSON: %v", err)
		}
		if ops[0]["op"] != "insert" || ops[0]["at"] != float64(3) {
			t.Errorf("unexpected insert op: %v", ops[0])
		}
		tracks := ops[0]["tracks"].([]any)
		track := tracks[0].(map[string]any)
		if track["id"] != "11" || track["albumId"] != "21" {
			t.Errorf("unexpected track payload: %v", track)
		}
	})

	t.Run("incomplete ref is rejected locally", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be sent for an invalid ref")
		}))

		err := client.InsertTrack(context.Background(), "42", "1000", models.TrackRef{TrackID: "11"}, 0, 7)
		if err == nil {
			t.Error("expected an error for a ref without album id")
		}
	})

	t.Run("wrong revision maps to conflict", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"name":"wrong-revision","message":"revision mismatch"}}`)
		}))

		err := client.ApplyDiff(context.Background(), "42", "1000", []DiffOp{DeleteRange(0, 1)}, 5)
		var conflict *RevisionConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected RevisionConflictError, got %v", err)
		}
		if conflict.Revision != 5 {
			t.Errorf("conflict should carry the stale revision, got %d", conflict.Revision)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	tc := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			"unsuitable content", http.StatusBadRequest,
			`{"error":{"name":"unsuitable-content","message":"bad title"}}`,
			func(err error) bool { var e *ValidationRejectedError; return errors.As(err, &e) },
		},
		{
			"unauthorized", http.StatusUnauthorized,
			`{"error":{"name":"session-expired","message":"expired"}}`,
			func(err error) bool { var e *AuthInvalidError; return errors.As(err, &e) },
		},
		{
			"forbidden", http.StatusForbidden, `{}`,
			func(err error) bool { var e *AuthInvalidError; return errors.As(err, &e) },
		},
		{
			"not found", http.StatusNotFound, `{}`,
			func(err error) bool { var e *NotFoundError; return errors.As(err, &e) },
		},
		{
			"server error", http.StatusBadGateway, `{}`,
			func(err error) bool { var e *UnavailableError; return errors.As(err, &e) },
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			err := client.SetName(context.Background(), "42", "1000", "x")
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error mapping: %v", err)
			}
		})
	}

	t.Run("validation reason is relayed", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"name":"validate","message":"title too long"}}`)
		}))

		err := client.SetName(context.Background(), "42", "1000", strings.Repeat("x", 500))
		var rejected *ValidationRejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("expected ValidationRejectedError, got %v", err)
		}
		if rejected.Reason != "title too long" {
			t.Errorf("reason not relayed: %q", rejected.Reason)
		}
	})

	t.Run("transport failure is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused from here on

		client := NewClient("secret", srv.URL, nil)
		client.SetRateLimit(10000)

		err := client.SetName(context.Background(), "42", "1000", "x")
		var unavailable *UnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("expected UnavailableError, got %v", err)
		}
	})
}

func TestUploadCover(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/playlists/1000/cover/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("expected multipart body: %v", err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("expected image part: %v", err)
		}
		defer file.Close()
		if header.Filename != "cover.jpg" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		writeResult(w, `{}`)
	}))

	if err := client.UploadCover(context.Background(), "42", "1000", []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("UploadCover failed: %v", err)
	}
}

func TestTracks(t *testing.T) {
	t.Run("resolves ids", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			r.ParseForm()
			if ids := r.PostForm.Get("track-ids"); ids != "11,12" {
				t.Errorf("unexpected track-ids %q", ids)
			}
			writeResult(w, `[
				{"id": 11, "title": "One", "albums": [{"id": 21}], "artists": [{"name": "A"}]},
				{"id": 12, "title": "Two", "albums": [{"id": 22}], "artists": []}
			]`)
		}))

		entries, err := client.Tracks(context.Background(), []string{"11", "12"})
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Ref.TrackID != "11" || entries[0].Ref.AlbumID != "21" {
			t.Errorf("unexpected first entry: %+v", entries[0])
		}
	})

	t.Run("empty input skips the network", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))

		entries, err := client.Tracks(context.Background(), nil)
		if err != nil || entries != nil {
			t.Errorf("expected nil, nil; got %v, %v", entries, err)
		}
	})
}

func TestAlbumTracks(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/albums/21/with-tracks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeResult(w, `{
			"id": 21,
			"title": "Album",
			"volumes": [
				[{"id": 11, "title": "One", "artists": [{"name": "A"}]}],
				[{"id": 12, "title": "Two", "albums": [{"id": 99}], "artists": [{"name": "A"}]}]
			]
		}`)
	}))

	entries, err := client.AlbumTracks(context.Background(), "21")
	if err != nil {
		t.Fatalf("AlbumTracks failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected volumes flattened into 2 entries, got %d", len(entries))
	}
	if entries[0].Ref.AlbumID != "21" {
		t.Errorf("album id should be backfilled, got %q", entries[0].Ref.AlbumID)
	}
	if entries[1].Ref.AlbumID != "99" {
		t.Errorf("explicit album id should win, got %q", entries[1].Ref.AlbumID)
	}
}

func TestCoverURL(t *testing.T) {
	tc := []struct {
		name string
		uri  string
		want string
	}{
		{"size placeholder", "avatars.example/abc/%%", "https://avatars.example/abc/400x400"},
		{"scheme-relative", "//avatars.example/abc", "https://avatars.example/abc"},
		{"absolute https", "https://a.example/x", "https://a.example/x"},
		{"absolute http", "http://a.example/x", "http://a.example/x"},
		{"rooted path", "/get/abc", "https://music.yandex.ru/get/abc"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := coverURL(tt.uri); got != tt.want {
				t.Errorf("coverURL(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}
