package parser

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tildaslashalef/auditnest/internal/loggy"
)

// DefaultMaxFileSize bounds the files Load will read
const DefaultMaxFileSize = 1 << 20

// Service turns files and directories into text chunks
type Service struct {
	logger           *loggy.Logger
	languageDetector *LanguageDetector
	maxFileSize      int64
}

// NewService creates a new parser service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		logger:           logger,
		languageDetector: NewLanguageDetector(logger),
		maxFileSize:      DefaultMaxFileSize,
	}
}

// GetLanguageDetector returns the language detector
func (s *Service) GetLanguageDetector() *LanguageDetector {
	return s.languageDetector
}

// Load reads every text file under paths and splits it into chunks of at
// most chunkSize bytes. Directories are walked recursively; vendored,
// binary, oversized and .gitignore'd files are skipped.
func (s *Service) Load(ctx context.Context, paths []string, chunkSize int) ([]Chunk, error) {
	var chunks []Chunk
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("accessing %s: %w", root, err)
		}

		if !info.IsDir() {
			fileChunks, err := s.LoadFile(root, chunkSize)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, fileChunks...)
			continue
		}

		ignored, err := s.languageDetector.ReadIgnorePatterns(root)
		if err != nil {
			return nil, err
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, _ := filepath.Rel(root, path)
			if rel != "." && (s.languageDetector.IsVendorFile(rel) || matchesAny(ignored, d.Name())) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			fileChunks, err := s.LoadFile(path, chunkSize)
			if err != nil {
				return err
			}
			chunks = append(chunks, fileChunks...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	return chunks, nil
}

// LoadFile chunks a single file. Binary and oversized files yield no chunks.
func (s *Service) LoadFile(path string, chunkSize int) ([]Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing file: %w", err)
	}
	if info.Size() > s.maxFileSize {
		s.logger.Debug("Skipping large file", "path", path, "size", info.Size())
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	language := s.languageDetector.DetectContent(path, data)
	if language == LanguageBinary {
		s.logger.Debug("Skipping binary file", "path", path)
		return nil, nil
	}

	chunks := SplitText(string(data), chunkSize)
	for i := range chunks {
		chunks[i].Path = path
		chunks[i].Language = language
	}
	return chunks, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
