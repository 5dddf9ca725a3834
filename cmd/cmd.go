// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and register quota identities",
		Action: r.Setup,
	}
}

// authCommand seeds the token caches
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize access to Spotify and YouTube",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize read access to Spotify playlists",
				Action: r.AuthSpotify,
			},
			{
				Name:  "youtube",
				Usage: "Authorize a YouTube quota identity",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "identity",
						Aliases: []string{"i"},
						Usage:   "Identity name from youtube.identities (default: the first one)",
					},
				},
				Action: r.AuthYouTube,
			},
		},
	}
}

// syncCommand runs the mirror engine
func syncCommand(r *Runner) *cli.Command {
	playlistArg := func() []cli.Argument {
		return []cli.Argument{
			&cli.StringArg{
				Name:      "playlist",
				UsageText: "Spotify playlist id, URI or URL",
			},
		}
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror a Spotify playlist into YouTube",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Apply removals and additions to the target playlist",
				Arguments: playlistArg(),
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Show progress in the interactive terminal UI",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:      "diff",
				Usage:     "Show what a run would change without touching anything",
				Arguments: playlistArg(),
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncDiff,
			},
			{
				Name:  "status",
				Usage: "List recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncStatus,
			},
		},
	}
}

// mirrorCommand inspects and moves mirror records
func mirrorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mirror",
		Usage: "Inspect, export and import mirror records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List known mirrors",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MirrorList,
			},
			{
				Name:  "export",
				Usage: "Export the records of a mirror",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "mirror",
						UsageText: "Mirror key (source account/source playlist/target account) or source playlist id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: csv, markdown or text",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path, - for stdout",
					},
				},
				Action: r.MirrorExport,
			},
			{
				Name:  "import",
				Usage: "Import records from a CSV export or a legacy history file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Mirror key: source account/source playlist/target account",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "prune-duplicates",
						Usage: "Delete target items of duplicated source tracks",
					},
				},
				Action: r.MirrorImport,
			},
		},
	}
}

// quotaCommand inspects and edits the quota ledger
func quotaCommand(r *Runner) *cli.Command {
	nameArg := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "identity"}}
	}

	return &cli.Command{
		Name:  "quota",
		Usage: "Inspect and edit the quota ledger",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List identities and their availability",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QuotaList,
			},
			{
				Name:      "reset",
				Usage:     "Mark an identity, or every identity, as available",
				Arguments: nameArg(),
				Action:    r.QuotaReset,
			},
			{
				Name:      "mark",
				Usage:     "Mark an identity as exhausted",
				Arguments: nameArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "at",
						Usage: "Exhaustion time (RFC3339), defaults to now",
					},
				},
				Action: r.QuotaMark,
			},
		},
	}
}

// castCommand drives playback on a TV
func castCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cast",
		Usage: "Play YouTube playlists on a TV",
		Commands: []*cli.Command{
			{
				Name:  "shuffle",
				Usage: "Shuffle a YouTube playlist onto the configured screen",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "playlist",
						UsageText: "YouTube playlist id",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum number of videos to queue",
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "Shuffle seed, 0 for a random order",
					},
				},
				Action: r.CastShuffle,
			},
			{
				Name:  "watch",
				Usage: "Print the session state whenever the playing video changes",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CastWatch,
			},
		},
	}
}
