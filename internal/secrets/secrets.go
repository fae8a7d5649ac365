// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads NCBI credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key name and the
// trimmed file contents are the value.
//
// Recognised key files: ncbi-email, ncbi-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Key file names.
const (
	KeyNCBIEmail  = "ncbi-email"
	KeyNCBIAPIKey = "ncbi-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// ApplyNCBI fills the empty fields of cfg from loaded secrets. Values that
// are already set (from flags, environment, or config file) win.
func ApplyNCBI(cfg *types.NCBIConfig, secrets map[string]string) {
	if cfg.Email == "" {
		cfg.Email = secrets[KeyNCBIEmail]
	}
	if cfg.APIKey == "" {
		cfg.APIKey = secrets[KeyNCBIAPIKey]
	}
}
