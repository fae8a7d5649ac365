// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// RequestsPerSecond caps the request rate against NCBI services
	// (default 3; NCBI allows 10 with an API key).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// NCBIConfig identifies the caller to NCBI E-utilities and idconv.
type NCBIConfig struct {
	// Email is sent as the email parameter NCBI asks tools to provide.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// APIKey raises the NCBI rate limit when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Tool is sent as the tool parameter (default "pubmed-markdown").
	Tool string `json:"tool" yaml:"tool"`
}

// ImagePolicy selects how figure image references are emitted.
type ImagePolicy string

const (
	// ImageRemote rewrites image sources to absolute URLs against the base URL.
	ImageRemote ImagePolicy = "remote"

	// ImageOriginal keeps image sources exactly as they appear in the HTML.
	ImageOriginal ImagePolicy = "original"

	// ImageNone drops image references and keeps captions only.
	ImageNone ImagePolicy = "none"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// DataDir is the base directory (contains html/, markdown/, metadata/, cache/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// BaseURL resolves relative image and link targets
	// (default "https://pmc.ncbi.nlm.nih.gov").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// ImagePolicy selects how figure images are referenced (default remote).
	ImagePolicy ImagePolicy `json:"image_policy" yaml:"image_policy"`

	// Overwrite regenerates markdown that already exists.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// Supplements appends BioC supplementary materials to each document.
	Supplements bool `json:"supplements" yaml:"supplements"`

	// Workers bounds parallel conversions in batch mode (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// DownloadConfig holds settings for the download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`
	NCBIConfig `yaml:",inline"`

	// DataDir is the base directory shared with conversion.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Delay is the pause between consecutive article downloads (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Overwrite re-downloads HTML that already exists.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// CacheTTL is how long identifier conversions stay cached (default 30 days).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// RecordsConfig holds settings for the processing-records ledger.
type RecordsConfig struct {
	// DataDir is the base directory shared with conversion.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// PipelineConfig is the top-level configuration combining every stage.
type PipelineConfig struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Download   DownloadConfig   `json:"download" yaml:"download"`
	Records    RecordsConfig    `json:"records" yaml:"records"`
}
