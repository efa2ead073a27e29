package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
	Author     = "unknown"
	Email      = "unknown"
)

// standalone commands run without the application container
var standalone = map[string]bool{
	"init": true,
	"help": true,
	"h":    true,
}

func main() {
	cliApp := &cli.App{
		Name:  "auditnest",
		Usage: "Lighthouse audit wrapper and agent project toolkit",
		Description: "auditnest runs Lighthouse audits, extracts actionable issues and keeps a history of runs.\n" +
			"It also scaffolds agent projects for Google Cloud and indexes documents for retrieval.",
		Version: fmt.Sprintf("%s (%s)", Version, CommitHash),
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Load configuration from this .env file",
				EnvVars: []string{"ENV_FILE_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			if standalone[c.Args().First()] || c.NArg() == 0 {
				return nil
			}
			if envFile := c.String("env-file"); envFile != "" {
				os.Setenv("ENV_FILE_PATH", envFile)
			}

			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			c.App.Metadata = map[string]interface{}{
				"app": application,
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if application, ok := c.App.Metadata["app"].(*app.App); ok {
				return application.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.InitCommand(),
			commands.MigrateCommand(),
			commands.AuditCommand(),
			commands.ExtractCommand(),
			commands.ChunkCommand(),
			commands.HistoryCommand(),
			commands.CreateCommand(),
			commands.IndexCommand(),
			commands.SearchCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
