package commands

import (
	"fmt"
	"strings"

	"github.com/tildaslashalef/auditnest/internal/app"
	"github.com/tildaslashalef/auditnest/internal/parser"
	"github.com/tildaslashalef/auditnest/internal/report"
	"github.com/tildaslashalef/auditnest/internal/retrieval"
	"github.com/tildaslashalef/auditnest/internal/utils"
	"github.com/urfave/cli/v2"
)

const defaultIndexChunkSize = 1500

// IndexCommand returns the command that loads files into the document store
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Embed files and add them to the configured vector store",
		ArgsUsage: "<file or directory>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Maximum bytes per indexed chunk",
				Value: defaultIndexChunkSize,
			},
			&cli.IntFlag{
				Name:  "batch",
				Usage: "Chunks embedded per request",
				Value: 25,
			},
		},
		Action: indexAction,
	}
}

func indexAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}

	chunks, err := application.Parser.Load(c.Context, paths, c.Int("chunk-size"))
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to read files: %s", err))
		return err
	}
	if len(chunks) == 0 {
		utils.PrintWarning("Nothing to index")
		return nil
	}

	store, err := application.Retriever(c.Context)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to open the vector store: %s", err))
		return err
	}

	docs := documentsFromChunks(chunks)
	batch := max(c.Int("batch"), 1)

	pw := utils.CreateProgressWriter(c.App.ErrWriter, 1)
	tracker := utils.CreateProgressTracker(fmt.Sprintf("Indexing %d chunks", len(docs)), int64(len(docs)))
	pw.AppendTracker(tracker)
	go pw.Render()

	for start := 0; start < len(docs); start += batch {
		end := min(start+batch, len(docs))
		if _, err := store.Add(c.Context, docs[start:end]); err != nil {
			tracker.MarkAsErrored()
			pw.Stop()
			utils.PrintError(fmt.Sprintf("Failed to index documents: %s", err))
			return err
		}
		tracker.Increment(int64(end - start))
	}
	tracker.MarkAsDone()
	pw.Stop()

	utils.PrintSuccess(fmt.Sprintf("Indexed %d chunks from %d path(s) into the %s store", len(docs), len(paths), storeName(application)))
	return nil
}

func documentsFromChunks(chunks []parser.Chunk) []retrieval.Document {
	docs := make([]retrieval.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, retrieval.Document{
			Source:  ch.Path,
			Content: ch.Content,
			Metadata: map[string]any{
				"language":   ch.Language,
				"chunk":      ch.Index,
				"start_line": ch.StartLine,
				"end_line":   ch.EndLine,
			},
		})
	}
	return docs
}

func storeName(application *app.App) string {
	if application.Config.VectorSearch.Backend == "" {
		return retrieval.BackendLocal
	}
	return application.Config.VectorSearch.Backend
}

// SearchCommand returns the command that queries the document store
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Retrieve indexed documents relevant to a query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rerank",
				Usage: "Re-rank the retrieved documents with the ranking API",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table or json",
				Value:   FormatTable,
			},
		},
		Action: searchAction,
	}
}

func searchAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	store, err := application.Retriever(c.Context)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to open the vector store: %s", err))
		return err
	}

	var compressor retrieval.Compressor
	if c.Bool("rerank") {
		compressor, err = application.Compressor(c.Context)
		if err != nil {
			return err
		}
	}

	docs, err := retrieval.Search(c.Context, store, compressor, query)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Search failed: %s", err))
		return err
	}

	if c.String("format") == FormatJSON {
		return report.JSON(c.App.Writer, docs)
	}
	printDocuments(c, query, docs)
	return nil
}

func printDocuments(c *cli.Context, query string, docs []retrieval.Document) {
	if len(docs) == 0 {
		utils.PrintInfo("No documents matched")
		return
	}

	rows := make([][]string, 0, len(docs))
	for i, d := range docs {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			d.Source,
			fmt.Sprintf("%.3f", d.Score),
			excerpt(d.Content, 80),
		})
	}
	utils.PrintTable(c.App.Writer, []string{"#", "Source", "Score", "Excerpt"}, rows,
		utils.TableOptions{Title: "Results for " + query, Style: utils.DefaultTableOptions().Style})
}

// excerpt flattens content onto one line and cuts it at n runes
func excerpt(content string, n int) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n-1]) + "…"
}
