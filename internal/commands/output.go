package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/report"
	"github.com/tildaslashalef/auditnest/internal/tui"
	"github.com/urfave/cli/v2"
)

// Output formats accepted by --format
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatPretty   = "pretty"
	FormatJSON     = "json"
	FormatTUI      = "tui"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: table, markdown, pretty, json or tui",
	Value:   FormatTable,
}

// readInput reads the file named by arg, or stdin when arg is empty or "-"
func readInput(c *cli.Context, arg string) ([]byte, error) {
	if arg == "" || arg == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", arg, err)
	}
	return data, nil
}

// renderIssues writes issues in the requested format
func renderIssues(w io.Writer, format, title string, issues []audit.Issue) error {
	switch format {
	case FormatTable, "":
		report.Table(w, title, issues)
	case FormatMarkdown:
		_, err := io.WriteString(w, report.Markdown(title, issues))
		return err
	case FormatPretty:
		_, err := io.WriteString(w, report.Terminal(report.Markdown(title, issues), report.DefaultWidth))
		return err
	case FormatJSON:
		return report.JSON(w, issues)
	case FormatTUI:
		return tui.BrowseIssues(title, issues)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// prompter asks questions on the command's reader and writer
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func newPrompter(c *cli.Context) *prompter {
	return &prompter{r: bufio.NewReader(c.App.Reader), w: c.App.Writer}
}

// Ask returns the typed answer, or def for an empty line
func (p *prompter) Ask(question, def string) (string, error) {
	fmt.Fprintf(p.w, "%s ", question)
	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	if answer := strings.TrimSpace(line); answer != "" {
		return answer, nil
	}
	return def, nil
}

// Confirm asks a yes/no question defaulting to no
func (p *prompter) Confirm(question string) (bool, error) {
	answer, err := p.Ask(question+" [y/N]", "n")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
