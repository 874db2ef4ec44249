// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// commonFlags are shared by every command that touches the database: the
// config file location and the acting local user.
func commonFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.IntFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Acting local user id",
			Value:   1,
		},
		&cli.StringFlag{
			Name:  "username",
			Usage: "Display name stored on first sight of the user",
		},
	}
	return append(flags, extra...)
}

// setupCommand handles database initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database, run migrations and store the default credential",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.SetupDatabase,
	}
}

// accountCommand manages remote service credentials.
func accountCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"acc"},
		Usage:   "Manage remote service credentials",
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "Validate and store a personal OAuth token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
				},
				Flags:  commonFlags(),
				Action: r.AccountToken,
			},
			{
				Name:   "status",
				Usage:  "Show which remote account the user operates under",
				Flags:  commonFlags(),
				Action: r.AccountStatus,
			},
		},
	}
}

// playlistCommand groups all playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Create and curate shared playlists",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a playlist on the user's routed account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistCreate,
			},
			{
				Name:  "list",
				Usage: "List playlists the user created or was invited to",
				Flags: commonFlags(
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include playlists shared with the user",
						Value: true,
					},
				),
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "Show the current remote state of a playlist",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistShow,
			},
			{
				Name:  "add",
				Usage: "Add tracks from a track, album or playlist link",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
					&cli.StringArg{Name: "link"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistAdd,
			},
			{
				Name:    "del",
				Aliases: []string{"remove"},
				Usage:   "Delete the track at a 1-based position",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
					&cli.IntArg{Name: "position"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistDel,
			},
			{
				Name:  "rename",
				Usage: "Rename the playlist (creator only)",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
					&cli.StringArg{Name: "title"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistRename,
			},
			{
				Name:  "cover",
				Usage: "Upload cover art from an image file (creator only)",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
					&cli.StringArg{Name: "file"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistCover,
			},
			{
				Name:  "position",
				Usage: "Toggle whether new tracks go to the start or the end",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistPosition,
			},
			{
				Name:  "delete",
				Usage: "Remove the local playlist record (the remote playlist stays)",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistDelete,
			},
			{
				Name:  "sync",
				Usage: "Mirror the remote title and custom cover onto the local record",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags:  commonFlags(),
				Action: r.PlaylistSync,
			},
			{
				Name:  "log",
				Usage: "Show the audit trail for a playlist",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags: commonFlags(
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
				),
				Action: r.PlaylistLog,
			},
		},
	}
}

// shareCommand manages invite tokens.
func shareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Invite others to a playlist",
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Print the playlist's invite token",
				Arguments: []cli.Argument{
					&cli.IntArg{Name: "id"},
				},
				Flags:  commonFlags(),
				Action: r.ShareLink,
			},
			{
				Name:  "join",
				Usage: "Redeem an invite token or deep link for add access",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
				},
				Flags:  commonFlags(),
				Action: r.ShareJoin,
			},
		},
	}
}

// chatCommand runs the interactive line-based session that mirrors the bot
// conversation flows.
func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "chat",
		Usage:  "Interactive session: paste links, run multi-step commands",
		Flags:  commonFlags(),
		Action: r.Chat,
	}
}
