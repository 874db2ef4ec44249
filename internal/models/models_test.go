package models

import "testing"

func TestInsertPositionToggle(t *testing.T) {
	if InsertStart.Toggle() != InsertEnd {
		t.Error("start should toggle to end")
	}
	if InsertEnd.Toggle() != InsertStart {
		t.Error("end should toggle to start")
	}
}

func TestCapabilitiesCovers(t *testing.T) {
	tc := []struct {
		name string
		have Capabilities
		need Capabilities
		want bool
	}{
		{"all covers everything", AllCapabilities, Capabilities{Add: true, Edit: true, Delete: true}, true},
		{"add-only covers add", Capabilities{Add: true}, Capabilities{Add: true}, true},
		{"add-only does not cover edit", Capabilities{Add: true}, Capabilities{Edit: true}, false},
		{"nothing covers nothing", Capabilities{}, Capabilities{}, true},
		{"empty does not cover delete", Capabilities{}, Capabilities{Delete: true}, false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.have.Covers(tt.need); got != tt.want {
				t.Errorf("Covers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaylistValidate(t *testing.T) {
	valid := Playlist{Kind: "1000", OwnerUID: "42", InsertPosition: InsertEnd}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid playlist should pass: %v", err)
	}

	missingKind := valid
	missingKind.Kind = ""
	if err := missingKind.Validate(); err == nil {
		t.Error("missing kind should fail")
	}

	missingOwner := valid
	missingOwner.OwnerUID = ""
	if err := missingOwner.Validate(); err == nil {
		t.Error("missing owner uid should fail")
	}

	badPosition := valid
	badPosition.InsertPosition = "middle"
	if err := badPosition.Validate(); err == nil {
		t.Error("unknown insert position should fail")
	}
}

func TestTrackRefValid(t *testing.T) {
	if (TrackRef{TrackID: "1", AlbumID: "2"}).Valid() != true {
		t.Error("full ref should be valid")
	}
	if (TrackRef{TrackID: "1"}).Valid() {
		t.Error("missing album id should be invalid")
	}
	if (TrackRef{AlbumID: "2"}).Valid() {
		t.Error("missing track id should be invalid")
	}
}

func TestTrackEntryString(t *testing.T) {
	entry := TrackEntry{Title: "Song", Artists: "Artist"}
	if got := entry.String(); got != "Song — Artist" {
		t.Errorf("String() = %q", got)
	}

	bare := TrackEntry{Title: "Song"}
	if got := bare.String(); got != "Song" {
		t.Errorf("String() without artists = %q", got)
	}
}
