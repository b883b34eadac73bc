package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/quest-engine/internal/loader"
	"github.com/jwebster45206/quest-engine/pkg/condition"
)

var filenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <content.yaml> [more files...]\n", os.Args[0])
		os.Exit(1)
	}

	registry := condition.NewRegistry()
	if err := condition.RegisterBuiltins(registry); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register leaf kinds: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		if err := validateFile(registry, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(registry *condition.Registry, filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !loader.IsContentFile(baseName) {
		return fmt.Errorf("content file must have a .yaml or .yml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !filenamePattern.MatchString(nameWithoutExt) {
		return fmt.Errorf("content filename %q must be lowercase snake_case (e.g. main_quests.yaml)", baseName)
	}

	content, err := loader.LoadFile(registry, filename)
	if err != nil {
		return err
	}

	fmt.Printf("  %d objective(s), %d condition(s)\n", len(content.Objectives), len(content.Conditions))
	return nil
}
