package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/execx"
	"github.com/tildaslashalef/auditnest/internal/gcloud"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/parser"
	"github.com/tildaslashalef/auditnest/internal/scaffold"
	"github.com/urfave/cli/v2"
)

const sampleReport = `{
	"lighthouseVersion": "12.0.0",
	"metadata": {"url": "https://example.com"},
	"audits": {
		"uses-webp-images": {"score": 0.3, "title": "Serve images in modern formats", "weight": 5, "description": "Use WebP."},
		"viewport": {"score": 1, "title": "Has a viewport"},
		"color-contrast": {"score": 0.7, "title": "Contrast"}
	}
}`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cliApp := &cli.App{
		Name:      "auditnest",
		Reader:    strings.NewReader(stdin),
		Writer:    &out,
		ErrWriter: &out,
		Commands:  []*cli.Command{ExtractCommand(), ChunkCommand()},
	}
	err := cliApp.Run(append([]string{"auditnest"}, args...))
	return out.String(), err
}

func TestExtractFromStdinAsJSON(t *testing.T) {
	out, err := runCLI(t, sampleReport, "extract", "--format", "json", "-")
	require.NoError(t, err)

	var issues []audit.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 2)
	assert.Equal(t, "uses-webp-images", issues[0].AuditID)
	assert.Equal(t, audit.ImpactHigh, issues[0].Impact)
	assert.Equal(t, "color-contrast", issues[1].AuditID)
}

func TestExtractFromFileAsMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleReport), 0644))

	out, err := runCLI(t, "", "extract", "-f", "markdown", path)

	require.NoError(t, err)
	assert.Contains(t, out, "# Lighthouse issues in report.json")
	assert.Contains(t, out, "## Serve images in modern formats")
}

func TestExtractRejectsMalformedReport(t *testing.T) {
	_, err := runCLI(t, `{"audits": [`, "extract", "-")

	assert.ErrorIs(t, err, audit.ErrInvalidReportFormat)
}

func TestExtractUnknownFormat(t *testing.T) {
	_, err := runCLI(t, sampleReport, "extract", "-f", "yaml", "-")

	assert.ErrorContains(t, err, `unknown format "yaml"`)
}

func TestChunkToStdout(t *testing.T) {
	out, err := runCLI(t, sampleReport, "chunk", "--max-size", "60", "-")
	require.NoError(t, err)

	var chunks []struct {
		Metadata map[string]any            `json:"metadata"`
		Audits   map[string]map[string]any `json:"audits"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, c := range chunks {
		assert.Equal(t, "https://example.com", c.Metadata["url"])
		total += len(c.Audits)
	}
	assert.Equal(t, 3, total)
}

func TestChunkToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chunks")

	out, err := runCLI(t, sampleReport, "chunk", "--out-dir", dir, "-")

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "chunk-001.json"))
	assert.NoFileExists(t, filepath.Join(dir, "chunk-002.json"))
	assert.Contains(t, out, "1 chunks (budget 8000 bytes)")
}

func TestChunkRejectsInvalidSize(t *testing.T) {
	_, err := runCLI(t, sampleReport, "chunk", "--max-size", "-5", "-")

	assert.ErrorIs(t, err, audit.ErrInvalidChunkSize)
}

func TestDefaultReportPath(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	assert.Equal(t, filepath.Join("reports", "example-com-8080-20261019-083000.json"),
		defaultReportPath("reports", "https://example.com:8080/page", now))
	assert.Equal(t, filepath.Join("reports", "report-20261019-083000.json"),
		defaultReportPath("reports", "::bad", now))
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := &prompter{r: bufio.NewReader(strings.NewReader("europe-west1\n\ny\n")), w: &out}

	region, err := p.Ask("Region:", "us-central1")
	require.NoError(t, err)
	assert.Equal(t, "europe-west1", region)

	region, err = p.Ask("Region:", "us-central1")
	require.NoError(t, err)
	assert.Equal(t, "us-central1", region)

	ok, err := p.Confirm("Change?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok, "end of input answers no")
	assert.Contains(t, out.String(), "Change? [y/N]")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", excerpt("a\n  b\tc", 10))
	assert.Equal(t, "abcd…", excerpt("abcdefgh", 5))
}

func TestDocumentsFromChunks(t *testing.T) {
	docs := documentsFromChunks([]parser.Chunk{{Path: "docs/a.md", Language: "Markdown", Index: 2, StartLine: 10, EndLine: 14, Content: "text"}})

	require.Len(t, docs, 1)
	assert.Equal(t, "docs/a.md", docs[0].Source)
	assert.Equal(t, "text", docs[0].Content)
	assert.Equal(t, 2, docs[0].Metadata["chunk"])
	assert.Equal(t, 10, docs[0].Metadata["start_line"])
}

func TestChooseAgentByFlag(t *testing.T) {
	s, err := scaffold.New(loggy.NewNoopLogger())
	require.NoError(t, err)
	first := s.Catalog().Agents()[0]

	agent, err := chooseAgent(s.Catalog(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, first.Name, agent.Name)

	_, err = chooseAgent(s.Catalog(), "no-such-agent", "")
	assert.ErrorIs(t, err, scaffold.ErrUnknownAgent)

	_, err = chooseAgent(s.Catalog(), first.Name, "mainframe")
	assert.ErrorIs(t, err, scaffold.ErrUnsupportedTarget)
}

func TestReadInputMissingFile(t *testing.T) {
	c := cli.NewContext(&cli.App{Reader: strings.NewReader("")}, flag.NewFlagSet("t", flag.ContinueOnError), nil)

	_, err := readInput(c, filepath.Join(t.TempDir(), "missing.json"))

	assert.Error(t, err)
}

// toolExec reports the tools in missing as absent and records every run
type toolExec struct {
	missing map[string]bool
	calls   []execx.Command
}

func (e *toolExec) Run(_ context.Context, cmd execx.Command) ([]byte, error) {
	e.calls = append(e.calls, cmd)
	return []byte("uv 0.6.9"), nil
}

func (e *toolExec) LookPath(file string) (string, error) {
	if e.missing[file] {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + file, nil
}

func TestEnsureUV(t *testing.T) {
	tests := []struct {
		name        string
		missing     bool
		answer      string
		autoApprove bool
		wantInstall bool
		wantErr     error
	}{
		{name: "already installed"},
		{name: "missing and accepted by default", missing: true, answer: "\n", wantInstall: true},
		{name: "missing and auto approved", missing: true, autoApprove: true, wantInstall: true},
		{name: "missing and declined", missing: true, answer: "n\n", wantErr: gcloud.ErrToolNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &toolExec{missing: map[string]bool{"uv": tt.missing}}
			svc := gcloud.NewService(gcloud.Config{}, exec, loggy.NewNoopLogger())
			var out bytes.Buffer
			c := cli.NewContext(&cli.App{Writer: &out}, flag.NewFlagSet("create", flag.ContinueOnError), nil)
			ask := &prompter{r: bufio.NewReader(strings.NewReader(tt.answer)), w: &out}

			err := ensureUV(c, svc, ask, tt.autoApprove)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			installed := false
			for _, call := range exec.calls {
				if call.Name == "sh" {
					installed = true
					assert.Equal(t, []string{"-c", gcloud.UVInstallScript}, call.Args)
				}
			}
			assert.Equal(t, tt.wantInstall, installed)
		})
	}
}
