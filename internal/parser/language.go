// Package parser detects file languages and splits text files into chunks
// for the document index
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

// Language names returned when enry has no better answer
const (
	LanguageText   = "Text"
	LanguageBinary = "Binary"
)

// snippetCandidates are the languages Lighthouse snippets are written in
var snippetCandidates = []string{"HTML", "CSS", "JavaScript"}

// LanguageDetector detects the language of a file
type LanguageDetector struct {
	logger *loggy.Logger
}

// NewLanguageDetector creates a new language detector
func NewLanguageDetector(logger *loggy.Logger) *LanguageDetector {
	return &LanguageDetector{
		logger: logger,
	}
}

// DetectLanguage determines the language of the file at filePath
func (d *LanguageDetector) DetectLanguage(filePath string) (string, error) {
	data, err := readFileSample(filePath, 8*1024)
	if err != nil {
		d.logger.Debug("Error reading file sample", "path", filePath, "error", err)
		return "", err
	}
	return d.DetectContent(filePath, data), nil
}

// DetectContent determines the language of data named filePath
func (d *LanguageDetector) DetectContent(filePath string, data []byte) string {
	fileName := filepath.Base(filePath)

	if enry.IsBinary(data) {
		return LanguageBinary
	}

	if language := enry.GetLanguage(fileName, data); language != "" {
		d.logger.Debug("Detected file with language", "path", filePath, "language", language)
		return language
	}

	if language, _ := enry.GetLanguageByExtension(fileName); language != "" {
		return language
	}
	if language, _ := enry.GetLanguageByFilename(fileName); language != "" {
		return language
	}

	return LanguageText
}

// IsVendorFile checks if the file is in a vendor or VCS directory
func (d *LanguageDetector) IsVendorFile(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, dir := range []string{".git", "node_modules", "vendor", ".venv", "__pycache__"} {
		if strings.Contains("/"+slashed+"/", "/"+dir+"/") {
			return true
		}
	}
	return enry.IsVendor(slashed)
}

// IsDocumentationFile checks if a file is a documentation file
func (d *LanguageDetector) IsDocumentationFile(filePath string) bool {
	return enry.IsDocumentation(filePath)
}

// ReadIgnorePatterns returns the patterns listed in dir/.gitignore
func (d *LanguageDetector) ReadIgnorePatterns(dir string) ([]string, error) {
	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return patterns, nil
}

// SnippetLanguage guesses a code fence tag for a snippet with no file name
func SnippetLanguage(snippet string) string {
	trimmed := bytes.TrimSpace([]byte(snippet))
	if len(trimmed) == 0 {
		return ""
	}
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return "json"
	}

	language, _ := enry.GetLanguageByClassifier(trimmed, snippetCandidates)
	return strings.ToLower(language)
}

// readFileSample reads up to maxSize bytes from the start of a file
func readFileSample(filePath string, maxSize int64) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	sample, err := io.ReadAll(io.LimitReader(file, maxSize))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return sample, nil
}
