package config

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/auditnest/internal/loggy"
)

//go:embed env.sample
var configFS embed.FS

const sampleFile = "env.sample"

// SetupConfigDirectory creates the config directory with its reports folder
// and writes the sample .env file into it
func SetupConfigDirectory(configDir string, backupExisting bool) error {
	for _, dir := range []string{configDir, filepath.Join(configDir, "reports")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := ExtractEmbeddedFile(sampleFile, filepath.Join(configDir, ".env"), backupExisting); err != nil {
		// Not fatal, every setting has a default
		loggy.Warn("Failed to extract sample env file", "error", err)
	}

	return nil
}

// ExtractEmbeddedFile writes an embedded file to targetPath. An existing
// target is left alone unless backupExisting is set, in which case it is
// copied to a dated .bak file first.
func ExtractEmbeddedFile(embeddedPath, targetPath string, backupExisting bool) error {
	if _, err := os.Stat(targetPath); err == nil {
		if !backupExisting {
			return nil
		}

		backupPath := fmt.Sprintf("%s.%s.bak", targetPath, time.Now().Format("2006-01-02"))
		existing, err := os.ReadFile(targetPath)
		if err != nil {
			return fmt.Errorf("failed to read existing file for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, existing, 0644); err != nil {
			return fmt.Errorf("failed to write backup file: %w", err)
		}
		loggy.Info("Created backup of existing file", "original", targetPath, "backup", backupPath)
	}

	data, err := configFS.ReadFile(embeddedPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return err
	}

	loggy.Info("Extracted embedded file", "source", embeddedPath, "target", targetPath)
	return nil
}

// WriteSample copies the sample configuration to w
func WriteSample(w io.Writer) error {
	data, err := configFS.ReadFile(sampleFile)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
