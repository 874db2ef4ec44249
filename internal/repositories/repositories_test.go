package repositories

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/chorusbot/chorus/internal/models"
	"github.com/chorusbot/chorus/internal/shared"
)

// newTestDB opens a migrated in-memory database pinned to a single
// connection so every query sees the same memory store.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Ensure inserts", func(t *testing.T) {
		if err := repo.Ensure(42, "alice"); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}

		user, err := repo.Get(42)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if user == nil || user.Username != "alice" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("Ensure refreshes the username", func(t *testing.T) {
		if err := repo.Ensure(42, "alice_renamed"); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}

		user, err := repo.Get(42)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if user.Username != "alice_renamed" {
			t.Errorf("expected refreshed username, got %q", user.Username)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected a single row, got %d", count)
		}
	})

	t.Run("Get unknown user", func(t *testing.T) {
		user, err := repo.Get(999)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if user != nil {
			t.Errorf("expected nil for unknown user, got %+v", user)
		}
	})
}

func TestAccountRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	users := NewUserRepository(db)

	if err := users.Ensure(1, "alice"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	t.Run("Default before configuration", func(t *testing.T) {
		if _, err := repo.Default(); err == nil {
			t.Error("expected an error before a default token is set")
		}
	})

	t.Run("SetDefault inserts then updates in place", func(t *testing.T) {
		if err := repo.SetDefault("token-one"); err != nil {
			t.Fatalf("SetDefault failed: %v", err)
		}

		first, err := repo.Default()
		if err != nil {
			t.Fatalf("Default failed: %v", err)
		}
		if first.Token != "token-one" || !first.IsDefault || first.UserID != nil {
			t.Errorf("unexpected default account: %+v", first)
		}

		if err := repo.SetDefault("token-two"); err != nil {
			t.Fatalf("SetDefault failed: %v", err)
		}

		second, err := repo.Default()
		if err != nil {
			t.Fatalf("Default failed: %v", err)
		}
		if second.Token != "token-two" {
			t.Errorf("expected updated token, got %q", second.Token)
		}
		if second.ID != first.ID {
			t.Errorf("expected the same row, got ids %d and %d", first.ID, second.ID)
		}
	})

	t.Run("Save upserts a personal credential", func(t *testing.T) {
		userID := int64(1)
		acc := &models.Account{UserID: &userID, Token: "personal-one"}

		if err := repo.Save(acc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if acc.ID == 0 {
			t.Error("expected the generated id to be backfilled")
		}

		replacement := &models.Account{UserID: &userID, Token: "personal-two"}
		if err := repo.Save(replacement); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if replacement.ID != acc.ID {
			t.Errorf("expected the same row, got ids %d and %d", acc.ID, replacement.ID)
		}

		stored, err := repo.ForUser(1)
		if err != nil {
			t.Fatalf("ForUser failed: %v", err)
		}
		if stored.Token != "personal-two" {
			t.Errorf("expected replaced token, got %q", stored.Token)
		}
	})

	t.Run("Save without a user id sets the default", func(t *testing.T) {
		if err := repo.Save(&models.Account{Token: "token-three"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		def, err := repo.Default()
		if err != nil {
			t.Fatalf("Default failed: %v", err)
		}
		if def.Token != "token-three" {
			t.Errorf("expected default token replaced, got %q", def.Token)
		}
	})

	t.Run("ForUser without a credential", func(t *testing.T) {
		acc, err := repo.ForUser(999)
		if err != nil {
			t.Fatalf("ForUser failed: %v", err)
		}
		if acc != nil {
			t.Errorf("expected nil, got %+v", acc)
		}
	})

	t.Run("ByID", func(t *testing.T) {
		stored, err := repo.ForUser(1)
		if err != nil {
			t.Fatalf("ForUser failed: %v", err)
		}

		acc, err := repo.ByID(stored.ID)
		if err != nil {
			t.Fatalf("ByID failed: %v", err)
		}
		if acc.Token != stored.Token {
			t.Errorf("unexpected account: %+v", acc)
		}

		if _, err := repo.ByID(9999); err == nil {
			t.Error("expected an error for a missing account")
		}
	})
}

func testPlaylist(creatorID int64, accountID *int64, token string) *models.Playlist {
	return &models.Playlist{
		Kind:           "1000",
		OwnerUID:       "100",
		CreatorID:      creatorID,
		AccountID:      accountID,
		Title:          "test playlist",
		InsertPosition: models.InsertEnd,
		ShareToken:     token,
	}
}

// seedUsers inserts the referenced user rows so foreign keys hold.
func seedUsers(t *testing.T, db *sql.DB, ids ...int64) {
	t.Helper()
	users := NewUserRepository(db)
	for _, id := range ids {
		if err := users.Ensure(id, fmt.Sprintf("user_%d", id)); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}
}

func TestPlaylistRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlaylistRepository(db)
	seedUsers(t, db, 1, 2)

	ownerID := int64(1)
	acc := &models.Account{UserID: &ownerID, Token: "tok"}
	if err := NewAccountRepository(db).Save(acc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Run("Create and Get roundtrip", func(t *testing.T) {
		pl := testPlaylist(1, &acc.ID, "token-a")
		pl.UUID = "uuid-a"

		if err := repo.Create(pl); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if pl.ID == 0 {
			t.Fatal("expected the generated id to be backfilled")
		}

		stored, err := repo.Get(pl.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if stored == nil {
			t.Fatal("expected a playlist")
		}
		if stored.Kind != "1000" || stored.OwnerUID != "100" || stored.UUID != "uuid-a" {
			t.Errorf("remote identifiers mangled: %+v", stored)
		}
		if stored.AccountID == nil || *stored.AccountID != acc.ID {
			t.Errorf("account pin mangled: %v", stored.AccountID)
		}
		if stored.InsertPosition != models.InsertEnd {
			t.Errorf("unexpected insert position %q", stored.InsertPosition)
		}
		if stored.ShareToken != "token-a" {
			t.Errorf("unexpected share token %q", stored.ShareToken)
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		pl := testPlaylist(1, nil, "")
		pl.Kind = ""
		if err := repo.Create(pl); err == nil {
			t.Error("expected validation error for a missing kind")
		}
	})

	t.Run("Get missing playlist", func(t *testing.T) {
		pl, err := repo.Get(9999)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if pl != nil {
			t.Errorf("expected nil, got %+v", pl)
		}
	})

	t.Run("GetByShareToken", func(t *testing.T) {
		pl, err := repo.GetByShareToken("token-a")
		if err != nil {
			t.Fatalf("GetByShareToken failed: %v", err)
		}
		if pl == nil || pl.ShareToken != "token-a" {
			t.Errorf("unexpected playlist: %+v", pl)
		}

		missing, err := repo.GetByShareToken("bogus")
		if err != nil {
			t.Fatalf("GetByShareToken failed: %v", err)
		}
		if missing != nil {
			t.Errorf("expected nil, got %+v", missing)
		}
	})

	t.Run("GetByKindAndOwner", func(t *testing.T) {
		pl, err := repo.GetByKindAndOwner("1000", "100")
		if err != nil {
			t.Fatalf("GetByKindAndOwner failed: %v", err)
		}
		if pl == nil {
			t.Error("expected a playlist")
		}
	})

	t.Run("share tokens are unique", func(t *testing.T) {
		if err := repo.Create(testPlaylist(1, nil, "token-a")); err == nil {
			t.Error("expected a unique constraint violation")
		}
	})

	t.Run("Update", func(t *testing.T) {
		pl, err := repo.GetByShareToken("token-a")
		if err != nil {
			t.Fatalf("GetByShareToken failed: %v", err)
		}

		pl.Title = "renamed"
		pl.InsertPosition = models.InsertStart
		pl.CoverURL = "https://covers.example/a.jpg"
		if err := repo.Update(pl); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		stored, err := repo.Get(pl.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if stored.Title != "renamed" || stored.InsertPosition != models.InsertStart || stored.CoverURL != "https://covers.example/a.jpg" {
			t.Errorf("update not applied: %+v", stored)
		}
	})

	t.Run("Update missing playlist", func(t *testing.T) {
		pl := testPlaylist(1, nil, "")
		pl.ID = 9999
		if err := repo.Update(pl); err == nil {
			t.Error("expected an error for a missing row")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		pl := testPlaylist(1, nil, "token-del")
		if err := repo.Create(pl); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		grants := NewGrantRepository(db)
		err := grants.Upsert(&models.AccessGrant{
			PlaylistID:   pl.ID,
			UserID:       2,
			Capabilities: models.Capabilities{Add: true},
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		action := &models.Action{UserID: 2, PlaylistID: &pl.ID, Type: "track_added", Detail: "track=1"}
		if err := NewActionRepository(db).Append(action); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		if err := repo.Delete(pl.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(pl.ID); err == nil {
			t.Error("expected an error on double delete")
		}

		var grantCount int
		if err := db.QueryRow("SELECT COUNT(*) FROM grants WHERE playlist_id = ?", pl.ID).Scan(&grantCount); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if grantCount != 0 {
			t.Errorf("expected grants to cascade with the playlist, %d left", grantCount)
		}

		var ref sql.NullInt64
		if err := db.QueryRow("SELECT playlist_id FROM actions WHERE id = ?", action.ID).Scan(&ref); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if ref.Valid {
			t.Errorf("expected the action playlist ref cleared, got %d", ref.Int64)
		}
	})
}

func TestPlaylistListForUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlaylistRepository(db)
	grants := NewGrantRepository(db)
	seedUsers(t, db, 1, 2)

	mine := testPlaylist(1, nil, "mine-1")
	mineToo := testPlaylist(1, nil, "mine-2")
	theirs := testPlaylist(2, nil, "theirs-1")
	for _, pl := range []*models.Playlist{mine, mineToo, theirs} {
		if err := repo.Create(pl); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// user 1 was invited to the other user's playlist and also holds a
	// redundant grant on their own.
	for _, playlistID := range []int64{theirs.ID, mine.ID} {
		err := grants.Upsert(&models.AccessGrant{
			PlaylistID:   playlistID,
			UserID:       1,
			Capabilities: models.Capabilities{Add: true},
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	t.Run("created only", func(t *testing.T) {
		playlists, err := repo.ListForUser(1, false)
		if err != nil {
			t.Fatalf("ListForUser failed: %v", err)
		}
		if len(playlists) != 2 {
			t.Errorf("expected 2 playlists, got %d", len(playlists))
		}
	})

	t.Run("including shared", func(t *testing.T) {
		playlists, err := repo.ListForUser(1, true)
		if err != nil {
			t.Fatalf("ListForUser failed: %v", err)
		}
		if len(playlists) != 3 {
			t.Errorf("expected 3 distinct playlists, got %d", len(playlists))
		}
	})

	t.Run("CountCreatedBy", func(t *testing.T) {
		n, err := repo.CountCreatedBy(1)
		if err != nil {
			t.Fatalf("CountCreatedBy failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}

		n, err = repo.CountCreatedBy(999)
		if err != nil {
			t.Fatalf("CountCreatedBy failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})
}

func TestGrantRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGrantRepository(db)
	playlists := NewPlaylistRepository(db)
	seedUsers(t, db, 1, 2, 3)

	pl := testPlaylist(1, nil, "granted")
	if err := playlists.Create(pl); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("Upsert and Get", func(t *testing.T) {
		grant := &models.AccessGrant{
			PlaylistID:   pl.ID,
			UserID:       2,
			Capabilities: models.Capabilities{Add: true},
		}
		if err := repo.Upsert(grant); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		stored, err := repo.Get(pl.ID, 2)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if stored == nil {
			t.Fatal("expected a grant")
		}
		if !stored.Capabilities.Add || stored.Capabilities.Edit || stored.Capabilities.Delete {
			t.Errorf("unexpected capabilities: %+v", stored.Capabilities)
		}
	})

	t.Run("Upsert replaces in place", func(t *testing.T) {
		before, err := repo.Get(pl.ID, 2)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		err = repo.Upsert(&models.AccessGrant{
			PlaylistID:   pl.ID,
			UserID:       2,
			Capabilities: models.AllCapabilities,
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		after, err := repo.Get(pl.ID, 2)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if after.ID != before.ID {
			t.Errorf("expected the same row, got ids %d and %d", before.ID, after.ID)
		}
		if !after.Capabilities.Covers(models.AllCapabilities) {
			t.Errorf("capabilities not widened: %+v", after.Capabilities)
		}
	})

	t.Run("Get missing grant", func(t *testing.T) {
		grant, err := repo.Get(pl.ID, 999)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if grant != nil {
			t.Errorf("expected nil, got %+v", grant)
		}
	})

	t.Run("ListForPlaylist", func(t *testing.T) {
		err := repo.Upsert(&models.AccessGrant{
			PlaylistID:   pl.ID,
			UserID:       3,
			Capabilities: models.Capabilities{Add: true},
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		listed, err := repo.ListForPlaylist(pl.ID)
		if err != nil {
			t.Fatalf("ListForPlaylist failed: %v", err)
		}
		if len(listed) != 2 {
			t.Errorf("expected 2 grants, got %d", len(listed))
		}
	})
}

func TestActionRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionRepository(db)
	playlists := NewPlaylistRepository(db)
	seedUsers(t, db, 1, 2)

	pl := testPlaylist(1, nil, "logged")
	if err := playlists.Create(pl); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	record := func(userID int64, playlistID *int64, actionType, detail string) {
		t.Helper()
		a := &models.Action{UserID: userID, PlaylistID: playlistID, Type: actionType, Detail: detail}
		if err := repo.Append(a); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if a.ID == 0 {
			t.Fatal("expected the generated id to be backfilled")
		}
	}

	record(1, &pl.ID, "track_added", "track=11 album=22")
	record(2, &pl.ID, "track_deleted", "from=0 to=1")
	record(1, nil, "credential_set", "")

	t.Run("ListForPlaylist newest first", func(t *testing.T) {
		actions, err := repo.ListForPlaylist(pl.ID, 10)
		if err != nil {
			t.Fatalf("ListForPlaylist failed: %v", err)
		}
		if len(actions) != 2 {
			t.Fatalf("expected 2 actions, got %d", len(actions))
		}
		if actions[0].Type != "track_deleted" || actions[1].Type != "track_added" {
			t.Errorf("unexpected ordering: %s then %s", actions[0].Type, actions[1].Type)
		}
	})

	t.Run("limit caps the result", func(t *testing.T) {
		actions, err := repo.ListForPlaylist(pl.ID, 1)
		if err != nil {
			t.Fatalf("ListForPlaylist failed: %v", err)
		}
		if len(actions) != 1 {
			t.Errorf("expected 1 action, got %d", len(actions))
		}
	})

	t.Run("ListForUser spans playlists", func(t *testing.T) {
		actions, err := repo.ListForUser(1, 10)
		if err != nil {
			t.Fatalf("ListForUser failed: %v", err)
		}
		if len(actions) != 2 {
			t.Fatalf("expected 2 actions, got %d", len(actions))
		}
		if actions[0].PlaylistID != nil {
			t.Error("expected the newest action to carry no playlist ref")
		}
		if actions[1].PlaylistID == nil || *actions[1].PlaylistID != pl.ID {
			t.Error("expected the older action to reference the playlist")
		}
	})
}
