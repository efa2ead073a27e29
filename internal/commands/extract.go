package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/report"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// ExtractCommand returns the command that extracts issues from a saved report
func ExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract issues from a Lighthouse JSON report",
		ArgsUsage: "<report.json|->",
		Flags:     []cli.Flag{formatFlag},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			data, err := readInput(c, path)
			if err != nil {
				return err
			}

			issues, err := audit.ExtractIssuesJSON(data)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Could not read the report: %s", err))
				return err
			}

			title := "Lighthouse issues"
			if path != "" && path != "-" {
				title += " in " + filepath.Base(path)
			}
			return renderIssues(c.App.Writer, c.String("format"), title, issues)
		},
	}
}

// ChunkCommand returns the command that splits a report into bounded chunks
func ChunkCommand() *cli.Command {
	return &cli.Command{
		Name:      "chunk",
		Usage:     "Split a Lighthouse JSON report into size-bounded chunks",
		ArgsUsage: "<report.json|->",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-size",
				Aliases: []string{"m"},
				Usage:   "Serialized-size budget per chunk in bytes (default: AUDITNEST_CHUNK_MAX_SIZE)",
			},
			&cli.StringFlag{
				Name:    "out-dir",
				Aliases: []string{"o"},
				Usage:   "Write each chunk to <out-dir>/chunk-NNN.json instead of printing a JSON array",
			},
		},
		Action: chunkAction,
	}
}

func chunkAction(c *cli.Context) error {
	maxSize := c.Int("max-size")
	if maxSize == 0 {
		maxSize = audit.DefaultMaxChunkSize
		if application, err := app.FromContext(c); err == nil && application.Config.Chunking.MaxSize > 0 {
			maxSize = application.Config.Chunking.MaxSize
		}
	}

	data, err := readInput(c, c.Args().First())
	if err != nil {
		return err
	}

	parsed, err := audit.ParseReport(data)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Could not read the report: %s", err))
		return err
	}

	chunks, err := audit.ChunkReport(parsed, maxSize)
	if err != nil {
		return err
	}

	outDir := c.String("out-dir")
	if outDir == "" {
		return report.JSON(c.App.Writer, chunks)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	rows := make([][]string, 0, len(chunks))
	for i, chunk := range chunks {
		encoded, err := chunk.MarshalJSON()
		if err != nil {
			return err
		}
		name := filepath.Join(outDir, fmt.Sprintf("chunk-%03d.json", i+1))
		if err := os.WriteFile(name, encoded, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}

		size := 0
		for _, a := range chunk.Audits {
			n, _ := audit.SerializedSize(a)
			size += n
		}
		rows = append(rows, []string{name, strconv.Itoa(len(chunk.Audits)), strconv.Itoa(size)})
	}

	utils.PrintTable(c.App.Writer, []string{"File", "Audits", "Audit bytes"}, rows, utils.TableOptions{
		Title: fmt.Sprintf("%d chunks (budget %d bytes)", len(chunks), maxSize),
		Style: utils.DefaultTableOptions().Style,
	})
	return nil
}
