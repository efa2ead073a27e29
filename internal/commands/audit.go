package commands

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/history"
	"github.com/tildaslashalef/auditnest/internal/lighthouse"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// AuditCommand returns the command that runs Lighthouse against a URL
func AuditCommand() *cli.Command {
	return &cli.Command{
		Name:      "audit",
		Usage:     "Run a Lighthouse audit and report the failing audits",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			formatFlag,
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Where to save the raw Lighthouse report (default: the configured reports directory)",
			},
			&cli.BoolFlag{
				Name:  "no-save",
				Usage: "Do not record the run in the audit history",
			},
		},
		Action: auditAction,
	}
}

func auditAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	target := c.Args().First()
	if target == "" {
		return fmt.Errorf("a url to audit is required")
	}

	cfg := application.Config.Lighthouse
	reportPath := c.String("output")
	if reportPath == "" && cfg.KeepRawReports {
		reportPath = defaultReportPath(cfg.OutputDir, target, time.Now())
	}

	format := c.String("format")
	quiet := format == FormatJSON || format == FormatMarkdown
	if !quiet {
		utils.PrintInfo("Auditing " + target)
	}

	start := time.Now()
	raw, err := application.Lighthouse.Fetch(c.Context, target, reportPath)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Lighthouse audit failed: %s", err))
		return err
	}

	report, err := audit.ParseReport(raw)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Could not read the Lighthouse report: %s", err))
		return err
	}
	issues := audit.ExtractIssues(report)

	if !c.Bool("no-save") {
		run, err := application.History.Record(c.Context, history.RecordParams{
			URL:               target,
			ReportPath:        reportPath,
			LighthouseVersion: lighthouse.Version(raw),
			Duration:          time.Since(start),
		}, issues)
		if err != nil {
			loggy.Warn("Failed to record audit run", "url", target, "error", err)
			if !quiet {
				utils.PrintWarning(fmt.Sprintf("Audit not saved to history: %s", err))
			}
		} else if !quiet {
			utils.PrintSuccess("Saved as " + run.ID)
		}
	}

	return renderIssues(c.App.Writer, format, "Lighthouse issues for "+target, issues)
}

// defaultReportPath names a report after the audited host and the run time
func defaultReportPath(dir, target string, now time.Time) string {
	host := "report"
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = utils.SanitizeDirectoryName(u.Host)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", host, now.Format("20060102-150405")))
}
