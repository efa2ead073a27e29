package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	regionFileExts = []string{".md", ".py", ".tfvars", ".yaml", ".tf", ".yml"}
	regionSkipDirs = []string{".git", "__pycache__", "venv", ".venv", "node_modules"}
)

// DataStoreRegion maps a compute region to a Vertex AI Search data store location
func DataStoreRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "us"):
		return "us"
	case strings.HasPrefix(region, "europe"):
		return "eu"
	default:
		return "global"
	}
}

// ReplaceRegion rewrites DefaultRegion to region in the text files under root,
// along with the data store region settings. It returns the number of files changed.
func ReplaceRegion(root, region string) (int, error) {
	dataStore := DataStoreRegion(region)
	storeReplacements := [][2]string{
		{`data_store_region = "us"`, fmt.Sprintf(`data_store_region = "%s"`, dataStore)},
		{`data_store_region="us"`, fmt.Sprintf(`data_store_region="%s"`, dataStore)},
		{"_DATA_STORE_REGION: us", "_DATA_STORE_REGION: " + dataStore},
	}

	changed := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && slices.Contains(regionSkipDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(regionFileExts, filepath.Ext(p)) {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		if !utf8.Valid(data) {
			return nil
		}

		content := string(data)
		if strings.Contains(content, DefaultRegion) {
			content = strings.ReplaceAll(content, DefaultRegion, region)
		}
		// Only the first matching data store form is rewritten
		for _, r := range storeReplacements {
			if strings.Contains(content, r[0]) {
				content = strings.ReplaceAll(content, r[0], r[1])
				break
			}
		}

		if bytes.Equal(data, []byte(content)) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), info.Mode().Perm()); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
		changed++
		return nil
	})
	if err != nil {
		return changed, fmt.Errorf("replacing region: %w", err)
	}

	return changed, nil
}
