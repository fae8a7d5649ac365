// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubmed-markdown/internal/httputil"
	"github.com/pdiddy/pubmed-markdown/internal/secrets"
	"github.com/pdiddy/pubmed-markdown/internal/store"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const (
	defaultBaseURL = "https://pmc.ncbi.nlm.nih.gov"
	defaultDelay   = 1 * time.Second
)

// bindFlag binds a flag to a config key so file and environment values
// apply when the flag is not given.
func bindFlag(key string, f *pflag.Flag) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", f.Name, err))
	}
}

// logger returns the diagnostics logger for this invocation.
func logger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func dataDir() string {
	if d := viper.GetString("data_dir"); d != "" {
		return d
	}
	return "data"
}

func conversionConfig() types.ConversionConfig {
	cfg := types.ConversionConfig{
		DataDir:     dataDir(),
		BaseURL:     viper.GetString("conversion.base_url"),
		ImagePolicy: types.ImagePolicy(viper.GetString("conversion.image_policy")),
		Overwrite:   viper.GetBool("conversion.overwrite"),
		Supplements: viper.GetBool("conversion.supplements"),
		Workers:     viper.GetInt("conversion.workers"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ImagePolicy == "" {
		cfg.ImagePolicy = types.ImageRemote
	}
	return cfg
}

func downloadConfig() types.DownloadConfig {
	cfg := types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:           viper.GetDuration("download.timeout"),
			UserAgent:         viper.GetString("download.user_agent"),
			RequestsPerSecond: viper.GetFloat64("download.requests_per_second"),
			MaxRetries:        viper.GetInt("download.max_retries"),
		},
		NCBIConfig: types.NCBIConfig{
			Email:  viper.GetString("download.email"),
			APIKey: viper.GetString("download.api_key"),
			Tool:   viper.GetString("download.tool"),
		},
		DataDir:   dataDir(),
		Delay:     viper.GetDuration("download.delay"),
		Overwrite: viper.GetBool("download.overwrite"),
		CacheTTL:  viper.GetDuration("download.cache_ttl"),
	}
	if cfg.Delay == 0 {
		cfg.Delay = defaultDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	secrets.ApplyNCBI(&cfg.NCBIConfig, loadedSecrets)
	return cfg
}

func validateImagePolicy(p types.ImagePolicy) error {
	switch p {
	case types.ImageRemote, types.ImageOriginal, types.ImageNone:
		return nil
	}
	return fmt.Errorf("unsupported image policy %q: use remote, original, or none", p)
}

// newClient builds the shared rate-limited NCBI client.
func newClient(cfg types.DownloadConfig, log *slog.Logger) *httputil.Client {
	rps := httputil.RateFor(cfg.HTTPConfig, cfg.APIKey)
	return httputil.NewClient(cfg.HTTPConfig, rps, httputil.WithLogger(log))
}

func openStore() (*store.Store, error) {
	s, err := store.NewStore(dataDir())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return s, nil
}
