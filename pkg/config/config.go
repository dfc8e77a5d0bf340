// Package config defines the server's configuration structure and a JSON
// loader. The loader's sophistication is out of scope per spec.md §1 (it
// is treated as an external collaborator); the struct shape and a working
// loader are not, since the rest of the server consumes these fields
// directly.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/corehttp/httpd/pkg/errors"
)

// Config is populated from JSON and handed to pkg/server.New.
type Config struct {
	// Network
	Host        string `json:"host"`
	Port        int    `json:"port"`
	EnableHTTPS bool   `json:"enable_https"`
	HTTPSPort   int    `json:"https_port"`

	// TLS
	SSLCertificateFile string `json:"ssl_certificate_file"`
	SSLPrivateKeyFile  string `json:"ssl_private_key_file"`
	SSLCAFile          string `json:"ssl_ca_file"`
	SSLDHFile          string `json:"ssl_dh_file"`
	SSLVerifyClient    bool   `json:"ssl_verify_client"`
	SSLCipherList       string `json:"ssl_cipher_list"`

	// Limits
	MaxConnections   int `json:"max_connections"`
	KeepAliveTimeout int `json:"keep_alive_timeout_seconds"`
	MaxRequestSize   int64 `json:"max_request_size"`

	// Static files
	DocumentRoot     string            `json:"document_root"`
	ServeStaticFiles bool              `json:"serve_static_files"`
	IndexFiles       []string          `json:"index_files"`
	MimeTypes        map[string]string `json:"mime_types"`

	// Compression
	EnableCompression  bool     `json:"enable_compression"`
	CompressionMinSize int      `json:"compression_min_size"`
	CompressionLevel   int      `json:"compression_level"`
	CompressibleTypes  []string `json:"compressible_types"`

	// Rate limiter
	RateLimiter RateLimiterConfig `json:"rate_limiter"`

	// Supplemented ambient fields (SPEC_FULL.md §6): these widen the
	// buildable surface of the out-of-scope loader, not the functional
	// scope of the spec.
	LogLevel       string `json:"log_level"`
	WorkerPoolSize int    `json:"worker_pool_size"`
}

// RateLimiterConfig mirrors spec.md §6's rate-limiter field set plus the
// supplemented cleanup overrides.
type RateLimiterConfig struct {
	Enabled              bool   `json:"enabled"`
	Strategy             string `json:"strategy"` // token_bucket | fixed_window | sliding_window
	MaxRequests          int    `json:"max_requests"`
	WindowDurationSeconds int   `json:"window_duration_seconds"`
	BurstCapacity        int    `json:"burst_capacity"`
	KeyStrategy          string `json:"key_strategy"`

	CleanupIntervalSeconds int `json:"cleanup_interval_seconds"`
	IdleTTLSeconds         int `json:"idle_ttl_seconds"`
}

// Default returns a Config with the spec's literal defaults.
func Default() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		MaxConnections:   1024,
		KeepAliveTimeout: 30,
		MaxRequestSize:   10 * 1024 * 1024,
		ServeStaticFiles: false,
		IndexFiles:       []string{"index.html"},
		MimeTypes:        defaultMimeTypes(),
		CompressionMinSize: 1024,
		CompressionLevel:   6,
		CompressibleTypes:  []string{"text/", "application/json", "application/javascript", "application/xml"},
		LogLevel:           "info",
		WorkerPoolSize:     4,
		RateLimiter: RateLimiterConfig{
			Enabled:                false,
			Strategy:               "token_bucket",
			CleanupIntervalSeconds: 300,
			IdleTTLSeconds:         3600,
		},
	}
}

// Load reads and parses a JSON configuration file over Default(): a field
// absent from the file keeps its default, while a field present in the
// file overrides it, even with a zero value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewValidationError("reading config file: " + err.Error())
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewValidationError("parsing config file: " + err.Error())
	}
	if cfg.RateLimiter.Enabled {
		if err := cfg.RateLimiter.validate(); err != nil {
			return nil, err
		}
	}
	if cfg.SSLVerifyClient && cfg.SSLCAFile == "" {
		// spec.md §9 Open Question: ssl_verify_client without ssl_ca_file
		// is treated as an illegal configuration.
		return nil, errors.NewValidationError("ssl_verify_client requires ssl_ca_file")
	}
	return cfg, nil
}

func (r RateLimiterConfig) validate() error {
	switch r.Strategy {
	case "token_bucket", "fixed_window", "sliding_window":
	default:
		return errors.NewValidationError("unknown rate limiter strategy: " + r.Strategy)
	}
	if r.MaxRequests <= 0 {
		return errors.NewValidationError("rate limiter max_requests must be positive")
	}
	if r.WindowDurationSeconds <= 0 {
		return errors.NewValidationError("rate limiter window_duration_seconds must be positive")
	}
	return nil
}

// WindowDuration returns the configured window as a time.Duration.
func (r RateLimiterConfig) WindowDuration() time.Duration {
	return time.Duration(r.WindowDurationSeconds) * time.Second
}

// CleanupInterval returns the configured cleanup interval, defaulting to
// 5 minutes per spec.md §4.5.
func (r RateLimiterConfig) CleanupInterval() time.Duration {
	if r.CleanupIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.CleanupIntervalSeconds) * time.Second
}

// IdleTTL returns the configured idle TTL, defaulting to 1 hour per
// spec.md §4.5.
func (r RateLimiterConfig) IdleTTL() time.Duration {
	if r.IdleTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(r.IdleTTLSeconds) * time.Second
}

func defaultMimeTypes() map[string]string {
	return map[string]string{
		".html": "text/html",
		".htm":  "text/html",
		".css":  "text/css",
		".js":   "application/javascript",
		".json": "application/json",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".svg":  "image/svg+xml",
		".txt":  "text/plain",
		".xml":  "application/xml",
		".pdf":  "application/pdf",
		".ico":  "image/x-icon",
		".wasm": "application/wasm",
	}
}
