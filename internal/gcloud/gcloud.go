// Package gcloud drives the gcloud command line to inspect and switch the
// active Google Cloud account and project
package gcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tildaslashalef/auditnest/internal/execx"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

var (
	// ErrNoActiveAccount is returned when gcloud has no credentialed account
	ErrNoActiveAccount = errors.New("no active gcloud account")

	// ErrToolNotFound is returned when a required executable is missing
	ErrToolNotFound = errors.New("required tool not found")
)

// Credentials is the active account and project
type Credentials struct {
	Account string
	Project string
}

// Config configures the service
type Config struct {
	Binary  string        // defaults to gcloud
	Timeout time.Duration // per command, zero disables
}

// Service runs gcloud commands
type Service struct {
	binary  string
	timeout time.Duration
	exec    execx.Runner
	logger  *loggy.Logger
}

// NewService creates a gcloud service. A nil exec uses the operating system.
func NewService(cfg Config, exec execx.Runner, logger *loggy.Logger) *Service {
	if cfg.Binary == "" {
		cfg.Binary = "gcloud"
	}
	if exec == nil {
		exec = execx.OSRunner{}
	}
	return &Service{binary: cfg.Binary, timeout: cfg.Timeout, exec: exec, logger: logger}
}

// VerifyCredentials reports the active account and project
func (s *Service) VerifyCredentials(ctx context.Context) (*Credentials, error) {
	out, err := s.run(ctx, "config", "list", "--format=json")
	if err != nil {
		return nil, err
	}

	var cfg struct {
		Core struct {
			Account string `json:"account"`
			Project string `json:"project"`
		} `json:"core"`
	}
	if err := json.Unmarshal(out, &cfg); err != nil {
		return nil, fmt.Errorf("decoding gcloud config: %w", err)
	}

	if cfg.Core.Account == "" {
		return nil, ErrNoActiveAccount
	}
	return &Credentials{Account: cfg.Core.Account, Project: cfg.Core.Project}, nil
}

// SetAccount makes account the active one
func (s *Service) SetAccount(ctx context.Context, account string) error {
	_, err := s.run(ctx, "config", "set", "account", account)
	return err
}

// SetProject makes project the active one
func (s *Service) SetProject(ctx context.Context, project string) error {
	_, err := s.run(ctx, "config", "set", "project", project)
	return err
}

// SetQuotaProject bills Application Default Credentials usage to project
func (s *Service) SetQuotaProject(ctx context.Context, project string) error {
	_, err := s.run(ctx, "auth", "application-default", "set-quota-project", project)
	return err
}

// Configure switches account and project and aligns the ADC quota project.
// It stops at the first failing step.
func (s *Service) Configure(ctx context.Context, account, project string) error {
	if account == "" || project == "" {
		return fmt.Errorf("account and project are both required")
	}
	if err := s.SetAccount(ctx, account); err != nil {
		return fmt.Errorf("setting account: %w", err)
	}
	if err := s.SetProject(ctx, project); err != nil {
		return fmt.Errorf("setting project: %w", err)
	}
	if err := s.SetQuotaProject(ctx, project); err != nil {
		return fmt.Errorf("setting quota project: %w", err)
	}
	s.logger.Info("Configured gcloud", "account", account, "project", project)
	return nil
}

// Login runs the interactive browser login and refreshes ADC
func (s *Service) Login(ctx context.Context) error {
	// Waiting on the user, so no timeout
	_, err := s.exec.Run(ctx, execx.Command{
		Name:        s.binary,
		Args:        []string{"auth", "login", "--update-adc"},
		Interactive: true,
	})
	if err != nil {
		return fmt.Errorf("gcloud login: %w", err)
	}
	return nil
}

// CheckTool verifies that name is installed and returns its version line
func (s *Service) CheckTool(ctx context.Context, name string) (string, error) {
	path, err := s.exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.exec.Run(ctx, execx.Command{Name: path, Args: []string{"--version"}})
	if err != nil {
		return "", fmt.Errorf("%w: %s --version: %v", ErrToolNotFound, name, err)
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return version, nil
}

// UVInstallScript is the official uv installer piped through sh
const UVInstallScript = "curl -LsSf https://astral.sh/uv/install.sh | sh"

const installTimeout = 60 * time.Second

// InstallUV runs the uv installer attached to the terminal
func (s *Service) InstallUV(ctx context.Context) error {
	if _, err := s.exec.LookPath("sh"); err != nil {
		return fmt.Errorf("%w: sh", ErrToolNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	_, err := s.exec.Run(ctx, execx.Command{
		Name:        "sh",
		Args:        []string{"-c", UVInstallScript},
		Interactive: true,
	})
	if err != nil {
		return fmt.Errorf("installing uv: %w", err)
	}
	s.logger.Info("Installed uv")
	return nil
}

func (s *Service) run(ctx context.Context, args ...string) ([]byte, error) {
	if _, err := s.exec.LookPath(s.binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, s.binary)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cmd := execx.Command{Name: s.binary, Args: args}
	s.logger.Debug("Running gcloud", "command", cmd.String())

	out, err := s.exec.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
