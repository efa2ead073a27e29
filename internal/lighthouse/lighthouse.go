// Package lighthouse runs the Lighthouse CLI against a URL and decodes its
// JSON report
package lighthouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/execx"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

var (
	// ErrNoOutput is returned when Lighthouse exits cleanly without a report
	ErrNoOutput = errors.New("no output from lighthouse")

	// ErrInvalidURL is returned for targets that are not absolute http(s) URLs
	ErrInvalidURL = errors.New("invalid audit url")
)

// DefaultChromeFlags keep Chrome usable inside containers
var DefaultChromeFlags = []string{
	"--headless",
	"--no-sandbox",
	"--disable-gpu",
	"--disable-dev-shm-usage",
	"--disable-software-rasterizer",
}

// Config configures the runner
type Config struct {
	BinaryPath     string
	ChromePath     string
	ChromeFlags    []string
	OnlyCategories []string
	CPUSlowdown    float64 // zero leaves Lighthouse's own throttling alone
	Timeout        time.Duration
	MaxRetries     int
}

// DefaultConfig resolves the lighthouse binary installed under the working directory
func DefaultConfig() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Config{
		BinaryPath:  filepath.Join(wd, "node_modules", ".bin", "lighthouse"),
		ChromePath:  "/usr/bin/google-chrome",
		ChromeFlags: DefaultChromeFlags,
		Timeout:     3 * time.Minute,
		MaxRetries:  1,
	}
}

// Runner executes Lighthouse audits
type Runner struct {
	cfg        Config
	exec       execx.Runner
	logger     *loggy.Logger
	newBackOff func() backoff.BackOff
}

// NewRunner creates a runner. A nil exec uses the operating system.
func NewRunner(cfg Config, exec execx.Runner, logger *loggy.Logger) *Runner {
	if exec == nil {
		exec = execx.OSRunner{}
	}
	if len(cfg.ChromeFlags) == 0 {
		cfg.ChromeFlags = DefaultChromeFlags
	}
	return &Runner{
		cfg:        cfg,
		exec:       exec,
		logger:     logger,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run audits target and returns the decoded report. When outputPath is set
// Lighthouse writes the report there and it is read back from disk.
func (r *Runner) Run(ctx context.Context, target, outputPath string) (*audit.Report, error) {
	raw, err := r.Fetch(ctx, target, outputPath)
	if err != nil {
		return nil, err
	}
	return audit.ParseReport(raw)
}

// Fetch audits target and returns the raw JSON report
func (r *Runner) Fetch(ctx context.Context, target, outputPath string) ([]byte, error) {
	if err := validateURL(target); err != nil {
		return nil, err
	}

	if outputPath != "" {
		normalized, err := NormalizeOutputPath(outputPath)
		if err != nil {
			return nil, err
		}
		outputPath = normalized
	}

	cmd := execx.Command{
		Name: r.cfg.BinaryPath,
		Args: r.args(target, outputPath),
	}
	if r.cfg.ChromePath != "" {
		cmd.Env = []string{"CHROME_PATH=" + r.cfg.ChromePath}
	}

	var output []byte
	attempt := 0
	operation := func() error {
		attempt++
		r.logger.Debug("Running lighthouse", "command", cmd.String(), "attempt", attempt)

		runCtx := ctx
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
		}

		stdout, err := r.exec.Run(runCtx, cmd)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			r.logger.Warn("Lighthouse run failed", "url", target, "attempt", attempt, "error", err)
			return fmt.Errorf("lighthouse audit failed: %w", err)
		}

		if outputPath != "" {
			data, err := os.ReadFile(outputPath)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("%w: reading %s: %v", ErrNoOutput, outputPath, err))
			}
			stdout = data
		}

		if len(strings.TrimSpace(string(stdout))) == 0 {
			return fmt.Errorf("%w for %s", ErrNoOutput, target)
		}

		output = stdout
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(max(r.cfg.MaxRetries, 0))), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}

	r.logger.Info("Lighthouse audit complete", "url", target, "bytes", len(output), "attempts", attempt)
	return output, nil
}

func (r *Runner) args(target, outputPath string) []string {
	dest := "stdout"
	if outputPath != "" {
		dest = outputPath
	}

	args := []string{
		target,
		"--output=json",
		"--output-path=" + dest,
		"--chrome-flags=" + strings.Join(r.cfg.ChromeFlags, " "),
		"--quiet",
	}
	if len(r.cfg.OnlyCategories) > 0 {
		args = append(args, "--only-categories="+strings.Join(r.cfg.OnlyCategories, ","))
	}
	if r.cfg.CPUSlowdown > 0 {
		args = append(args, "--throttling.cpuSlowdownMultiplier="+strconv.FormatFloat(r.cfg.CPUSlowdown, 'f', -1, 64))
	}
	return args
}

// NormalizeOutputPath turns a possibly Windows-style path into a forward-slash
// path without a drive prefix and creates its parent directory
func NormalizeOutputPath(path string) (string, error) {
	path = strings.ReplaceAll(path, `\`, "/")
	if _, rest, found := strings.Cut(path, ":"); found {
		path = rest
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}
	return path, nil
}

// Version reads lighthouseVersion from a raw report, empty when absent
func Version(raw []byte) string {
	var head struct {
		LighthouseVersion string `json:"lighthouseVersion"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.LighthouseVersion
}

func validateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http or https url", ErrInvalidURL, target)
	}
	return nil
}
