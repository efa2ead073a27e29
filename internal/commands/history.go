package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/history"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// HistoryCommand returns the command group for recorded audit runs
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List, show and delete recorded audit runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of runs"},
					&cli.IntFlag{Name: "offset", Usage: "Number of runs to skip"},
				},
				Action: historyListAction,
			},
			{
				Name:      "show",
				Usage:     "Show the issues of a run",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{formatFlag},
				Action:    historyShowAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a run and its issues",
				ArgsUsage: "<run-id>",
				Action:    historyDeleteAction,
			},
		},
	}
}

func historyListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	runs, err := application.History.Runs(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to list runs: %s", err))
		return err
	}
	if len(runs) == 0 {
		utils.PrintInfo("No audit runs recorded yet")
		return nil
	}

	utils.PrintTable(c.App.Writer, []string{"ID", "URL", "Issues", "High", "Medium", "Low", "Lighthouse", "Duration", "Created"},
		runRows(runs), utils.TableOptions{Title: "Audit history", Style: utils.DefaultTableOptions().Style})
	return nil
}

func runRows(runs []*history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.URL,
			strconv.Itoa(r.Summary.Total),
			strconv.Itoa(r.Summary.High),
			strconv.Itoa(r.Summary.Medium),
			strconv.Itoa(r.Summary.Low),
			r.LighthouseVersion,
			r.Duration.Round(100 * time.Millisecond).String(),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func historyShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("a run id is required")
	}

	run, stored, err := application.History.Run(c.Context, id)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to load run %s: %s", id, err))
		return err
	}

	title := fmt.Sprintf("%s (%s)", run.URL, run.CreatedAt.Local().Format("2006-01-02 15:04"))
	return renderIssues(c.App.Writer, c.String("format"), title, history.Issues(stored))
}

func historyDeleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("a run id is required")
	}

	if err := application.History.Delete(c.Context, id); err != nil {
		utils.PrintError(fmt.Sprintf("Failed to delete run %s: %s", id, err))
		return err
	}
	utils.PrintSuccess("Deleted " + id)
	return nil
}
