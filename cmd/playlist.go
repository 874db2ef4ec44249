package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chorusbot/chorus/internal/engine"
	"github.com/chorusbot/chorus/internal/linkparse"
	"github.com/chorusbot/chorus/internal/models"
	"github.com/chorusbot/chorus/internal/shared"
	"github.com/chorusbot/chorus/internal/ui"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate creates a remote playlist on the user's routed account and
// prints the invite token.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	pl, res := r.engine.CreatePlaylist(ctx, title, userID)
	if !res.OK {
		return r.report(res, "")
	}

	r.writePlain("%s\n", ui.Success(fmt.Sprintf("created playlist %q (id %d)", pl.Title, pl.ID)))
	r.writePlain("invite token: %s\n", pl.ShareToken)
	r.writePlain("%s\n", ui.Help("share it with 'chorus share link' or hand out the token directly"))
	return nil
}

// PlaylistList prints the playlists the user created and, with --all, those
// shared with them.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	playlists, err := r.playlists.ListForUser(userID, cmd.Bool("all"))
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}
	if len(playlists) == 0 {
		r.writePlain("%s\n", ui.Help("no playlists yet, create one with 'chorus playlist create'"))
		return nil
	}

	r.writePlain("%s\n", ui.Title("Playlists"))
	for _, pl := range playlists {
		marker := "shared with you"
		if pl.CreatorID == userID {
			marker = "created by you"
		}
		r.writePlain("%4d  %s  (%s, inserts at %s)\n", pl.ID, pl.Title, marker, pl.InsertPosition)
	}
	return nil
}

// PlaylistShow fetches and prints the current remote state of a playlist.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	if _, err := r.user(cmd); err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))

	snap, res := r.engine.Snapshot(ctx, playlistID)
	if !res.OK {
		return r.report(res, "")
	}

	r.writePlain("%s\n", ui.Title(snap.Title))
	r.writePlain("%d tracks\n", snap.TrackCount)
	if snap.Cover.IsCustom {
		r.writePlain("cover: %s\n", snap.Cover.URL)
	}
	for i, entry := range snap.Tracks {
		r.writePlain("%4d. %s\n", i+1, entry)
	}
	return nil
}

// PlaylistAdd classifies the pasted link and inserts the referenced tracks.
// Album and playlist links expand into individual inserts, in order.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))
	link := cmd.StringArg("link")

	parsed := linkparse.Classify(link)
	if parsed == nil {
		return fmt.Errorf("%w: %q", shared.ErrInvalidLink, link)
	}

	entries, err := r.resolveLink(ctx, userID, parsed)
	if err != nil {
		r.writePlain("%s\n", ui.Error(fmt.Sprintf("could not resolve link: %v", err)))
		return nil
	}
	if len(entries) == 0 {
		r.writePlain("%s\n", ui.Warn("the link resolved to no usable tracks"))
		return nil
	}

	added := 0
	for _, entry := range entries {
		if !entry.Ref.Valid() {
			r.logger.Warn("skipping entry without full ids", "track", entry.Ref.TrackID)
			continue
		}
		res := r.engine.InsertTrack(ctx, playlistID, entry.Ref, userID)
		if !res.OK {
			if res.Kind == engine.KindPermissionDenied || res.Kind == engine.KindNotFound {
				return r.report(res, "")
			}
			r.writePlain("%s\n", ui.Warn(fmt.Sprintf("skipped %s: %s", entry, res.Message)))
			continue
		}
		added++
	}

	if added == 0 {
		r.writePlain("%s\n", ui.Error("no tracks were added"))
		return nil
	}
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("added %d of %d tracks", added, len(entries))))
	return nil
}

// resolveLink expands a classified link into the track entries to insert,
// using the user's routed session for catalog lookups.
func (r *Runner) resolveLink(ctx context.Context, userID int64, parsed *linkparse.Link) ([]models.TrackEntry, error) {
	sess, err := r.router.SessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch parsed.Kind {
	case linkparse.KindTrack:
		entries, err := sess.API.Tracks(ctx, []string{parsed.TrackID})
		if err != nil {
			return nil, err
		}
		return entries, nil
	case linkparse.KindAlbum:
		return sess.API.AlbumTracks(ctx, parsed.AlbumID)
	case linkparse.KindPlaylist:
		owner := parsed.Owner
		if owner == "" {
			return nil, fmt.Errorf("playlist link must include the owner (users/<login>/playlists/<id>)")
		}
		snap, err := sess.API.FetchPlaylist(ctx, owner, parsed.PlaylistKind)
		if err != nil {
			return nil, err
		}
		return snap.Tracks, nil
	case linkparse.KindShare:
		return nil, fmt.Errorf("that looks like an invite token, use 'chorus share join'")
	}
	return nil, fmt.Errorf("unrecognized link")
}

// PlaylistDel removes the track at a 1-based position.
func (r *Runner) PlaylistDel(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))
	position := cmd.IntArg("position")

	res := r.engine.DeleteTrack(ctx, playlistID, position, userID)
	return r.report(res, fmt.Sprintf("removed track %d", position))
}

// PlaylistRename sets a new title. Creator only.
func (r *Runner) PlaylistRename(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	res := r.engine.Rename(ctx, playlistID, title, userID)
	return r.report(res, fmt.Sprintf("renamed to %q", title))
}

// PlaylistCover uploads cover art from a local image file. Creator only.
func (r *Runner) PlaylistCover(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))
	file := cmd.StringArg("file")

	image, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	res := r.engine.SetCover(ctx, playlistID, image, userID)
	return r.report(res, "cover updated")
}

// PlaylistPosition flips where new tracks land.
func (r *Runner) PlaylistPosition(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))

	position, res := r.engine.TogglePosition(ctx, playlistID, userID)
	return r.report(res, fmt.Sprintf("new tracks now go to the %s", position))
}

// PlaylistDelete drops the local record; the remote playlist stays.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))

	res := r.engine.DeletePlaylist(ctx, playlistID, userID)
	return r.report(res, "playlist removed from curation (remote playlist untouched)")
}

// PlaylistSync mirrors remote title and custom cover changes made outside
// chorus onto the local record.
func (r *Runner) PlaylistSync(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	if _, err := r.user(cmd); err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))

	res := r.engine.Refresh(ctx, playlistID)
	return r.report(res, "local record is up to date with the remote playlist")
}

// PlaylistLog prints the audit trail for a playlist.
func (r *Runner) PlaylistLog(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	if _, err := r.user(cmd); err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))
	limit := cmd.Int("limit")

	entries, err := r.actions.ListForPlaylist(playlistID, limit)
	if err != nil {
		return fmt.Errorf("failed to read action log: %w", err)
	}
	if len(entries) == 0 {
		r.writePlain("%s\n", ui.Help("no recorded actions for this playlist"))
		return nil
	}

	r.writePlain("%s\n", ui.Title("Action log"))
	for _, a := range entries {
		r.writePlain("%s  user=%d  %s  %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.UserID, a.Type, a.Detail)
	}
	return nil
}
