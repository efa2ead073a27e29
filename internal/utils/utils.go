// Package utils holds CLI output helpers and project naming
package utils

import (
	"strings"
	"time"

	"github.com/goombaio/namegenerator"
)

// GenerateProjectName creates a random, memorable project name using namegenerator
func GenerateProjectName() string {
	seed := time.Now().UTC().UnixNano()
	nameGenerator := namegenerator.NewNameGenerator(seed)

	// names look like "wispy-dust"; some carry underscores
	return strings.ReplaceAll(nameGenerator.Generate(), "_", "-")
}

// SanitizeDirectoryName cleans up a name for use as a project directory
func SanitizeDirectoryName(dirName string) string {
	name := strings.ToLower(strings.TrimSpace(dirName))

	replacer := strings.NewReplacer(
		" ", "-",
		"_", "-",
		".", "-",
		",", "-",
		";", "-",
		":", "-",
		"/", "-",
		"\\", "-",
	)
	name = replacer.Replace(name)

	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	return strings.Trim(name, "-")
}
