package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/gcloud"
	"github.com/tildaslashalef/auditnest/internal/scaffold"
	"github.com/tildaslashalef/auditnest/internal/tui"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// CreateCommand returns the command that scaffolds an agent project
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create an agent project from the built-in templates",
		ArgsUsage: "[project-name]",
		Description: "Checks gcloud credentials, the uv tool and the Vertex AI connection, " +
			"then renders the chosen agent template into a new directory. " +
			"A memorable name is generated when none is given.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Agent name or number (prompts when omitted)"},
			&cli.StringFlag{Name: "deployment-target", Aliases: []string{"d"}, Usage: "agent_engine or cloud_run (default: the agent's first target)"},
			&cli.BoolFlag{Name: "include-data-ingestion", Aliases: []string{"i"}, Usage: "Include the data ingestion pipeline"},
			&cli.StringFlag{Name: "gcp-account", Usage: "Account to activate with gcloud"},
			&cli.StringFlag{Name: "gcp-project", Usage: "Project to activate with gcloud"},
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Parent directory of the project (default: current directory)"},
			&cli.StringFlag{Name: "region", Usage: "Region written into the project (default: AUDITNEST_SCAFFOLD_REGION)"},
			&cli.BoolFlag{Name: "auto-approve", Usage: "Skip confirmation prompts"},
			&cli.BoolFlag{Name: "skip-checks", Usage: "Skip the gcloud, uv and Vertex AI checks"},
			&cli.BoolFlag{Name: "no-git", Usage: "Do not initialise a git repository"},
		},
		Action: createAction,
	}
}

func createAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	ctx := c.Context
	ask := newPrompter(c)
	autoApprove := c.Bool("auto-approve")
	target := c.String("deployment-target")

	utils.PrintHeading("=== auditnest agent scaffolding ===")

	agent, err := chooseAgent(application.Scaffold.Catalog(), c.String("agent"), target)
	if err != nil {
		if errors.Is(err, tui.ErrCancelled) {
			utils.PrintWarning("No agent selected")
		}
		return err
	}
	if target == "" {
		target = agent.DefaultTarget()
	}

	region := c.String("region")
	if region == "" {
		region = application.Config.Scaffold.DefaultRegion
		if !autoApprove {
			utils.PrintInfo(fmt.Sprintf("Default region is %s", color.YellowString(region)))
			if region, err = ask.Ask("Region (leave blank for default):", region); err != nil {
				return err
			}
		}
	}

	project := application.Config.GCP.Project
	if account, gcpProject := c.String("gcp-account"), c.String("gcp-project"); account != "" && gcpProject != "" {
		if err := application.Gcloud.Configure(ctx, account, gcpProject); err != nil {
			utils.PrintError(fmt.Sprintf("Failed to set gcloud credentials: %s", err))
			return err
		}
		project = gcpProject
	}

	if !c.Bool("skip-checks") {
		creds, err := checkCredentials(c, application.Gcloud, ask, autoApprove)
		if err != nil {
			return err
		}
		if creds.Project != "" {
			project = creds.Project
		}

		if err := ensureUV(c, application.Gcloud, ask, autoApprove); err != nil {
			return err
		}

		utils.PrintInfo("Testing the Vertex AI connection...")
		application.Config.GCP.Project = project
		application.Config.GCP.Region = region
		client, err := application.Vertex(ctx)
		if err == nil {
			err = client.Ping(ctx)
		}
		if err != nil {
			utils.PrintError(fmt.Sprintf("Failed to connect to Vertex AI: %s", err))
			return err
		}
		utils.PrintSuccess("Connected to Vertex AI in project " + project)
	} else {
		utils.PrintWarning("Skipping verification checks")
	}

	outputDir := c.String("output-dir")
	if outputDir == "" {
		outputDir = application.Config.Scaffold.OutputDir
	}

	dest, err := application.Scaffold.Create(ctx, scaffold.Options{
		ProjectName:          c.Args().First(),
		Agent:                agent.Name,
		DeploymentTarget:     target,
		IncludeDataIngestion: c.Bool("include-data-ingestion"),
		Region:               region,
		OutputDir:            outputDir,
		InitGit:              application.Config.Scaffold.InitGit && !c.Bool("no-git"),
	})
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to create project: %s", err))
		return err
	}

	fmt.Fprintln(c.App.Writer, utils.TreeList(filepath.Base(dest), topLevelEntries(dest)))
	utils.PrintSuccess("Done. Get started with:")
	cdPath := filepath.Base(dest)
	if c.String("output-dir") != "" {
		cdPath = dest
	}
	fmt.Fprintln(c.App.Writer, color.HiGreenString("cd %s && make install && make playground", cdPath))
	return nil
}

const uvInstallDocs = "https://docs.astral.sh/uv/getting-started/installation"

// chooseAgent resolves the --agent flag or falls back to the interactive picker
func chooseAgent(catalog *scaffold.Catalog, flag, target string) (scaffold.Agent, error) {
	if flag != "" {
		agent, err := catalog.Resolve(flag)
		if err != nil {
			return scaffold.Agent{}, err
		}
		if target != "" && !agent.Supports(target) {
			return scaffold.Agent{}, fmt.Errorf("%w: %s cannot deploy to %s", scaffold.ErrUnsupportedTarget, agent.Name, target)
		}
		return agent, nil
	}

	available, err := catalog.ForTarget(target)
	if err != nil {
		return scaffold.Agent{}, err
	}
	return tui.SelectAgent(available.Agents())
}

// ensureUV checks for uv and offers to run its installer when it is missing
func ensureUV(c *cli.Context, svc *gcloud.Service, ask *prompter, autoApprove bool) error {
	utils.PrintInfo("Checking for uv...")
	version, err := svc.CheckTool(c.Context, "uv")
	if err == nil {
		utils.PrintSuccess(version)
		return nil
	}

	utils.PrintWarning("uv is required by the generated project")
	fmt.Fprintf(c.App.Writer, "Install it now with %q, or manually from %s\n", gcloud.UVInstallScript, uvInstallDocs)

	install := autoApprove
	if !install {
		answer, err := ask.Ask("Install uv automatically now? [Y/n]", "y")
		if err != nil {
			return err
		}
		answer = strings.ToLower(answer)
		install = answer == "y" || answer == "yes"
	}
	if !install {
		utils.PrintWarning("Install uv manually and try again")
		return fmt.Errorf("%w: uv", gcloud.ErrToolNotFound)
	}

	utils.PrintInfo("Installing uv...")
	if err := svc.InstallUV(c.Context); err != nil {
		utils.PrintError(fmt.Sprintf("Failed to install uv: %s", err))
		return err
	}
	utils.PrintSuccess("uv installed")
	return nil
}

// checkCredentials shows the active gcloud identity and lets the user switch it
func checkCredentials(c *cli.Context, svc *gcloud.Service, ask *prompter, autoApprove bool) (*gcloud.Credentials, error) {
	ctx := c.Context

	creds, err := svc.VerifyCredentials(ctx)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Could not verify gcloud credentials: %s", err))
		return nil, err
	}

	if autoApprove {
		utils.PrintInfo(fmt.Sprintf("Using account %s with project %s",
			color.YellowString(creds.Account), color.YellowString(creds.Project)))
		return creds, nil
	}

	change, err := ask.Confirm(fmt.Sprintf("Logged in as %s using project %s. Change this?", creds.Account, creds.Project))
	if err != nil || !change {
		return creds, err
	}

	utils.PrintInfo("Starting a new gcloud login...")
	if err := svc.Login(ctx); err != nil {
		utils.PrintError(err.Error())
		return nil, err
	}
	if creds, err = svc.VerifyCredentials(ctx); err != nil {
		return nil, err
	}

	change, err = ask.Confirm(fmt.Sprintf("Logged in as %s. Current project is %s. Change the project?", creds.Account, creds.Project))
	if err != nil || !change {
		return creds, err
	}

	project, err := ask.Ask("New project ID:", "")
	if err != nil {
		return nil, err
	}
	if project == "" {
		return creds, nil
	}
	if err := svc.SetProject(ctx, project); err != nil {
		return nil, fmt.Errorf("setting project: %w", err)
	}
	if err := svc.SetQuotaProject(ctx, project); err != nil {
		return nil, fmt.Errorf("setting quota project: %w", err)
	}
	creds.Project = project
	utils.PrintSuccess("Switched to project " + project)
	return creds, nil
}

func topLevelEntries(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
