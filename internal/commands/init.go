package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/tildaslashalef/auditnest/internal/config"
	"github.com/tildaslashalef/auditnest/internal/database"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// InitCommand returns the CLI command for initializing auditnest
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize or update the auditnest environment",
		Description: "Sets up ~/.auditnest with a sample configuration and the audit database. " +
			"Run it once before first use and again after upgrading to apply new migrations.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Replace an existing .env with the sample (the old file is backed up)",
			},
			&cli.BoolFlag{
				Name:  "print-config",
				Usage: "Print the sample configuration and exit",
			},
		},
		Action: initAction,
	}
}

func initAction(c *cli.Context) error {
	if c.Bool("print-config") {
		return config.WriteSample(c.App.Writer)
	}

	utils.PrintHeading("Initializing auditnest")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to get user home directory: %s", err))
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".auditnest")
	utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

	if err := os.MkdirAll(configDir, 0755); err != nil {
		utils.PrintError(fmt.Sprintf("Failed to create config directory: %s", err))
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	utils.PrintInfo("Extracting default configuration file")
	configFilePath := filepath.Join(configDir, ".env")
	if err := config.SetupConfigDirectory(configDir, c.Bool("force")); err != nil {
		// not fatal, defaults still apply
		utils.PrintWarning(fmt.Sprintf("Failed to set up configuration files: %s", err))
	}

	cfg, err := config.LoadFromEnv(configDir, configFilePath)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to load configuration: %s", err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	utils.PrintInfo("Initializing database...")
	if err := database.InitDB(cfg); err != nil {
		utils.PrintError(fmt.Sprintf("Failed to initialize database: %s", err))
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.CloseDB()

	utils.PrintInfo("Applying database migrations...")
	applied, err := database.RunMigrations()
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	utils.PrintSuccess("auditnest initialized successfully!")
	if applied > 0 {
		utils.PrintSuccess(fmt.Sprintf("Applied %d new migration(s)", applied))
	} else {
		utils.PrintInfo("Database schema is already up-to-date")
	}

	utils.PrintInfo("Configuration file: " + color.YellowString("%s", configFilePath))
	utils.PrintInfo("Database location: " + color.YellowString("%s", cfg.Database.Path))
	utils.PrintInfo("Log file location: " + color.YellowString("%s", cfg.Logging.Output))
	fmt.Println()
	utils.PrintInfo("Run " + color.CyanString("auditnest audit <url>") + " to audit a page, or " +
		color.CyanString("auditnest create") + " to scaffold an agent project.")
	return nil
}
