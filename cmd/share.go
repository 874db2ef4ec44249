package main

import (
	"context"
	"fmt"

	"github.com/chorusbot/chorus/internal/linkparse"
	"github.com/chorusbot/chorus/internal/shared"
	"github.com/chorusbot/chorus/internal/ui"
	"github.com/urfave/cli/v3"
)

// ShareLink prints a playlist's invite token. Creator only, so tokens do not
// leak through invitees.
func (r *Runner) ShareLink(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}
	playlistID := int64(cmd.IntArg("id"))

	pl, err := r.playlists.Get(playlistID)
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}
	if pl == nil {
		r.writePlain("%s\n", ui.Error("playlist not found"))
		return nil
	}

	creator, err := r.access.IsCreator(playlistID, userID)
	if err != nil {
		return err
	}
	if !creator {
		r.writePlain("%s\n", ui.Error("only the playlist creator can share it"))
		return nil
	}

	r.writePlain("%s\n", ui.Title(pl.Title))
	r.writePlain("invite token: %s\n", pl.ShareToken)
	r.writePlain("%s\n", ui.Help("anyone who joins with this token can add tracks"))
	return nil
}

// ShareJoin redeems an invite token (or a deep link carrying one) for
// add-only access.
func (r *Runner) ShareJoin(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("token")
	token := linkparse.ShareToken(raw)
	if token == "" {
		return fmt.Errorf("%w: %q", shared.ErrInvalidLink, raw)
	}

	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	pl, res := r.engine.RedeemShareToken(ctx, token, userID)
	if !res.OK {
		return r.report(res, "")
	}

	r.writePlain("%s\n", ui.Success(fmt.Sprintf("you can now add tracks to %q (id %d)", pl.Title, pl.ID)))
	return nil
}
