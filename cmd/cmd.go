// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles database initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
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

// serveCommand runs the HTTP API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind (defaults to config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (defaults to config)",
			},
		},
		Action: r.Serve,
	}
}

// convertCommand runs a playlist conversion end to end.
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "convert",
		Aliases: []string{"conv"},
		Usage:   "Convert a playlist to the other platform",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Usage:    "Source platform (spotify or netease)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "playlist",
				Usage:    "Source playlist ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Conversion mode (create or update)",
				Value: "create",
			},
			&cli.StringFlag{
				Name:  "dest-id",
				Usage: "Destination playlist ID (update mode)",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Destination playlist name (create mode, defaults to source name)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output summary as JSON",
			},
		},
		Action: r.ConvertRun,
	}
}

// jobsCommand inspects conversion jobs.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect conversion jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List conversion jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (queued, processing, review_pending, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show a single job with its matches",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsShow,
			},
		},
	}
}

// reviewCommand resolves matches that need human review.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Resolve matches that need human review",
		Commands: []*cli.Command{
			{
				Name:  "pending",
				Usage: "List a job's unresolved matches",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job",
						Usage:    "Job ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ReviewPending,
			},
			{
				Name:  "approve",
				Usage: "Approve a match and add its track to the destination playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "match",
						Usage:    "Match ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "track",
						Usage: "Override destination track ID (from review search)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Override track name",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Override track artist",
					},
					&cli.IntFlag{
						Name:  "duration-ms",
						Usage: "Override track duration in milliseconds",
					},
				},
				Action: r.ReviewApprove,
			},
			{
				Name:  "skip",
				Usage: "Skip a match, leaving the track out of the destination playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "match",
						Usage:    "Match ID",
						Required: true,
					},
				},
				Action: r.ReviewSkip,
			},
			{
				Name:  "search",
				Usage: "Search the destination platform for replacement candidates",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "job",
						Usage:    "Job ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ReviewSearch,
			},
		},
	}
}

// reportCommand exports a job's match report.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export a job's match report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "job",
				Usage:    "Job ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format (csv, markdown, or text)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (defaults to stdout)",
			},
		},
		Action: r.ReportWrite,
	}
}
