package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chorusbot/chorus/internal/dialog"
	"github.com/chorusbot/chorus/internal/linkparse"
	"github.com/chorusbot/chorus/internal/ui"
	"github.com/urfave/cli/v3"
)

// Chat runs a line-based interactive session mirroring the conversation
// flows: commands open a pending step, the next line resolves it, and pasted
// links add tracks to the active playlist.
func (r *Runner) Chat(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	// The shared account is the baseline; without it nothing works.
	if _, err := r.router.Default(ctx); err != nil {
		return fmt.Errorf("default session unavailable: %w", err)
	}

	var active int64

	r.writePlain("%s\n", ui.Title("chorus chat"))
	r.writePlain("%s\n", ui.Help("commands: new, join, use <id>, list, show, rename, del, cover, position, cancel, quit"))
	r.writePlain("%s\n", ui.Help("paste a track, album or playlist link to add tracks"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		r.writePlain("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "quit" || line == "exit" {
			return nil
		}
		if line == "cancel" {
			if r.dialogs.Cancel(userID) {
				r.writePlain("%s\n", ui.Success("cancelled"))
			} else {
				r.writePlain("%s\n", ui.Help("nothing to cancel"))
			}
			continue
		}

		if pending, ok := r.dialogs.Resolve(userID); ok {
			active = r.resolveStep(ctx, userID, active, pending, line)
			continue
		}

		active = r.dispatch(ctx, userID, active, line)
	}
}

// dispatch handles a line when no conversation step is pending. Returns the
// (possibly updated) active playlist id.
func (r *Runner) dispatch(ctx context.Context, userID, active int64, line string) int64 {
	fields := strings.Fields(line)
	switch fields[0] {
	case "new":
		r.dialogs.Begin(userID, dialog.StateAwaitingPlaylistName, 0)
		r.writePlain("name for the new playlist?\n")
	case "join":
		r.dialogs.Begin(userID, dialog.StateAwaitingShareToken, 0)
		r.writePlain("paste the invite token or link\n")
	case "use":
		if len(fields) < 2 {
			r.writePlain("%s\n", ui.Error("usage: use <id>"))
			return active
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			r.writePlain("%s\n", ui.Error("playlist id must be a number"))
			return active
		}
		pl, err := r.playlists.Get(id)
		if err != nil || pl == nil {
			r.writePlain("%s\n", ui.Error("playlist not found"))
			return active
		}
		r.writePlain("%s\n", ui.Success(fmt.Sprintf("active playlist: %s", pl.Title)))
		return id
	case "list":
		playlists, err := r.playlists.ListForUser(userID, true)
		if err != nil {
			r.writePlain("%s\n", ui.Error(err.Error()))
			return active
		}
		for _, pl := range playlists {
			r.writePlain("%4d  %s\n", pl.ID, pl.Title)
		}
	case "show":
		if !r.requireActive(active) {
			return active
		}
		snap, res := r.engine.Snapshot(ctx, active)
		if !res.OK {
			r.report(res, "")
			return active
		}
		r.writePlain("%s (%d tracks)\n", snap.Title, snap.TrackCount)
		for i, entry := range snap.Tracks {
			r.writePlain("%4d. %s\n", i+1, entry)
		}
	case "rename":
		if !r.requireActive(active) {
			return active
		}
		r.dialogs.Begin(userID, dialog.StateAwaitingNewTitle, active)
		r.writePlain("new title?\n")
	case "del":
		if !r.requireActive(active) {
			return active
		}
		r.dialogs.Begin(userID, dialog.StateAwaitingTrackNumber, active)
		r.writePlain("which track number?\n")
	case "cover":
		if !r.requireActive(active) {
			return active
		}
		r.dialogs.Begin(userID, dialog.StateAwaitingCoverImage, active)
		r.writePlain("path to the image file?\n")
	case "position":
		if !r.requireActive(active) {
			return active
		}
		position, res := r.engine.TogglePosition(ctx, active, userID)
		r.report(res, fmt.Sprintf("new tracks now go to the %s", position))
	default:
		// Not a command: treat as a pasted link against the active playlist.
		r.addByLink(ctx, userID, active, line)
	}
	return active
}

// resolveStep feeds the awaited input to the handler behind the pending
// state. Returns the (possibly updated) active playlist id.
func (r *Runner) resolveStep(ctx context.Context, userID, active int64, pending dialog.Pending, input string) int64 {
	switch pending.State {
	case dialog.StateAwaitingPlaylistName:
		pl, res := r.engine.CreatePlaylist(ctx, input, userID)
		if !res.OK {
			r.report(res, "")
			return active
		}
		r.writePlain("%s\n", ui.Success(fmt.Sprintf("created %q, invite token %s", pl.Title, pl.ShareToken)))
		return pl.ID
	case dialog.StateAwaitingShareToken:
		token := linkparse.ShareToken(input)
		if token == "" {
			r.writePlain("%s\n", ui.Error("that does not look like an invite token"))
			return active
		}
		pl, res := r.engine.RedeemShareToken(ctx, token, userID)
		if !res.OK {
			r.report(res, "")
			return active
		}
		r.writePlain("%s\n", ui.Success(fmt.Sprintf("you can now add tracks to %q", pl.Title)))
		return pl.ID
	case dialog.StateAwaitingNewTitle:
		res := r.engine.Rename(ctx, pending.PlaylistID, input, userID)
		r.report(res, fmt.Sprintf("renamed to %q", input))
	case dialog.StateAwaitingTrackNumber:
		position, err := strconv.Atoi(input)
		if err != nil {
			r.writePlain("%s\n", ui.Error("track number must be a number"))
			return active
		}
		res := r.engine.DeleteTrack(ctx, pending.PlaylistID, position, userID)
		r.report(res, fmt.Sprintf("removed track %d", position))
	case dialog.StateAwaitingCoverImage:
		image, err := os.ReadFile(input)
		if err != nil {
			r.writePlain("%s\n", ui.Error(fmt.Sprintf("failed to read image: %v", err)))
			return active
		}
		res := r.engine.SetCover(ctx, pending.PlaylistID, image, userID)
		r.report(res, "cover updated")
	}
	return active
}

// addByLink classifies pasted text and inserts the referenced tracks into
// the active playlist.
func (r *Runner) addByLink(ctx context.Context, userID, active int64, line string) {
	parsed := linkparse.Classify(line)
	if parsed == nil {
		r.writePlain("%s\n", ui.Help("not a command or a recognizable link, try 'new' or paste a track link"))
		return
	}
	if parsed.Kind == linkparse.KindShare {
		r.writePlain("%s\n", ui.Help("that looks like an invite token, use 'join'"))
		return
	}
	if !r.requireActive(active) {
		return
	}

	entries, err := r.resolveLink(ctx, userID, parsed)
	if err != nil {
		r.writePlain("%s\n", ui.Error(fmt.Sprintf("could not resolve link: %v", err)))
		return
	}

	added := 0
	for _, entry := range entries {
		if !entry.Ref.Valid() {
			continue
		}
		res := r.engine.InsertTrack(ctx, active, entry.Ref, userID)
		if !res.OK {
			r.writePlain("%s\n", ui.Warn(fmt.Sprintf("skipped %s: %s", entry, res.Message)))
			continue
		}
		added++
	}
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("added %d of %d tracks", added, len(entries))))
}

func (r *Runner) requireActive(active int64) bool {
	if active == 0 {
		r.writePlain("%s\n", ui.Error("no active playlist, pick one with 'use <id>' or create one with 'new'"))
		return false
	}
	return true
}
