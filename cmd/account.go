package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/chorusbot/chorus/internal/router"
	"github.com/chorusbot/chorus/internal/shared"
	"github.com/chorusbot/chorus/internal/ui"
	"github.com/urfave/cli/v3"
)

// AccountToken validates a personal OAuth token with a handshake and stores
// it. A rejected token reports back to the user without touching prior state.
func (r *Runner) AccountToken(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		return fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}

	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	if !r.router.SetCredential(ctx, userID, token) {
		r.writePlain("%s\n", ui.Error("token rejected by the music service, nothing was changed"))
		r.writePlain("%s\n", ui.Help("playlists you create will keep using the shared account until a valid token is set"))
		return nil
	}

	r.writePlain("%s\n", ui.Success("token accepted"))
	r.writePlain("new playlists will be created on your own account\n")
	return nil
}

// AccountStatus shows which remote account the user currently operates under.
func (r *Runner) AccountStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}
	userID, err := r.user(cmd)
	if err != nil {
		return err
	}

	sess, err := r.router.OwnSession(ctx, userID)
	if errors.Is(err, router.ErrNoPersonalAccount) {
		r.writePlain("%s\n", ui.Warn("no personal token stored, operating on the shared account"))
		if _, err := r.router.Default(ctx); err != nil {
			r.writePlain("%s\n", ui.Error(fmt.Sprintf("shared account unavailable: %v", err)))
		}
		return nil
	}
	if err != nil {
		r.writePlain("%s\n", ui.Error(fmt.Sprintf("personal account unavailable: %v", err)))
		return nil
	}

	r.writePlain("%s\n", ui.Success(fmt.Sprintf("operating as remote account %s", sess.UID)))
	return nil
}
