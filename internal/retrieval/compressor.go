package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tildaslashalef/auditnest/internal/vertex"
)

// Ranker is the part of the Vertex client the compressor needs
type Ranker interface {
	Rank(ctx context.Context, req vertex.RankRequest) (*vertex.RankResponse, error)
}

// CompressorConfig configures the ranking compressor
type CompressorConfig struct {
	Location      string
	RankingConfig string
	TitleField    string
	Model         string
	TopN          int
}

// DefaultCompressorConfig matches the managed ranking defaults
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Location:      "global",
		RankingConfig: "default_ranking_config",
		TitleField:    "id",
		TopN:          5,
	}
}

// RankingCompressor re-ranks documents with the Vertex AI ranking API and
// keeps the top N
type RankingCompressor struct {
	cfg    CompressorConfig
	ranker Ranker
}

// NewCompressor fills unset fields from DefaultCompressorConfig
func NewCompressor(cfg CompressorConfig, ranker Ranker) (*RankingCompressor, error) {
	if ranker == nil {
		return nil, invalidConfig("a ranker is required")
	}
	if cfg.TopN < 0 {
		return nil, invalidConfig("top n must not be negative, got %d", cfg.TopN)
	}

	defaults := DefaultCompressorConfig()
	if cfg.Location == "" {
		cfg.Location = defaults.Location
	}
	if cfg.RankingConfig == "" {
		cfg.RankingConfig = defaults.RankingConfig
	}
	if cfg.TitleField == "" {
		cfg.TitleField = defaults.TitleField
	}
	if cfg.TopN == 0 {
		cfg.TopN = defaults.TopN
	}

	return &RankingCompressor{cfg: cfg, ranker: ranker}, nil
}

// Config returns the effective configuration
func (c *RankingCompressor) Config() CompressorConfig {
	return c.cfg
}

// Compress returns at most TopN documents, most relevant first, with Score set
func (c *RankingCompressor) Compress(ctx context.Context, docs []Document, query string) ([]Document, error) {
	if len(docs) == 0 {
		return []Document{}, nil
	}

	// records are keyed by position so shared or empty document IDs stay distinct
	records := make([]vertex.RankRecord, len(docs))
	for i, d := range docs {
		records[i] = vertex.RankRecord{ID: strconv.Itoa(i), Title: c.title(d), Content: d.Content}
	}

	resp, err := c.ranker.Rank(ctx, vertex.RankRequest{
		Location:      c.cfg.Location,
		RankingConfig: c.cfg.RankingConfig,
		Model:         c.cfg.Model,
		Query:         query,
		Records:       records,
		TopN:          c.cfg.TopN,
	})
	if err != nil {
		return nil, fmt.Errorf("re-ranking documents: %w", err)
	}

	ranked := make([]Document, 0, len(resp.Records))
	used := make([]bool, len(docs))
	for _, r := range resp.Records {
		i, err := strconv.Atoi(r.ID)
		if err != nil || i < 0 || i >= len(docs) || used[i] {
			continue
		}
		used[i] = true
		doc := docs[i]
		doc.Score = r.Score
		ranked = append(ranked, doc)
		if len(ranked) == c.cfg.TopN {
			break
		}
	}
	return ranked, nil
}

// title reads the configured metadata field; "id" falls back to the document ID
func (c *RankingCompressor) title(d Document) string {
	if v, ok := d.Metadata[c.cfg.TitleField]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	if c.cfg.TitleField == "id" {
		return d.ID
	}
	return ""
}
