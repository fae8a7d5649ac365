//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for pubmed-markdown developer tooling.
package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// dataDir is the data directory the pipeline targets operate on.
var dataDir = envOr("PUBMED_MARKDOWN_DATA_DIR", "data")

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{"html", "markdown", "metadata", "cache"}

// Init creates the data directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		path := filepath.Join(dataDir, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		fmt.Println("  ", path)
	}
	fmt.Println("Data directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "pubmed-markdown"
	cmdPkg  = "./cmd/pubmed-markdown"
)

// binPath is the compiled CLI.
var binPath = filepath.Join(binDir, binName)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	if err := sh.RunV("go", "build", "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes the compiled binary.
func Clean() error {
	return sh.Rm(binDir)
}

// Convert converts every downloaded article in the data directory.
func Convert() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "convert", "--batch", "--data-dir", dataDir)
}

// Download fetches and converts the identifiers listed in ids.txt.
func Download() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "download", "--file", envOr("PUBMED_MARKDOWN_IDS", "ids.txt"), "--data-dir", dataDir)
}

// Supplements appends supplementary materials to converted articles.
func Supplements() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "supplements", "--data-dir", dataDir)
}

// Records syncs the processing-records ledger and exports it to CSV and YAML.
func Records() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "records", "--csv", "--yaml", "--data-dir", dataDir)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Stats prints Go production/test line counts and the size of the
// converted corpus.
func Stats() error {
	prod, test, err := countGoLines(".")
	if err != nil {
		return err
	}
	articles, words, err := countMarkdown(filepath.Join(dataDir, "markdown"))
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", test)
	fmt.Printf("Converted articles:             %d (%d words)\n", articles, words)
	return nil
}

// countGoLines counts non-blank lines in Go files, split into production
// and _test.go files. The _examples tree is skipped.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, test, err
}

// countMarkdown counts the .md files in dir and their words. A missing
// directory counts as empty.
func countMarkdown(dir string) (files, words int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return files, words, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		files++
		words += len(bytes.Fields(data))
	}
	return files, words, nil
}
