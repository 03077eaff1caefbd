// Package config holds the server's top-level configuration. All fields have
// safe defaults so callers can start with Default() and override only what
// they need.
package config

import (
	"errors"
	"time"
)

// StorageBackend selects which storage.Adapter backs image lookups.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level configuration struct for the IIIF image server.
type Config struct {
	// HTTP listener.
	BindAddr  string // e.g. ":8182"
	URLPrefix string // stripped from incoming request paths; default "/"

	// DefaultFormat is reserved for future content-negotiation use; level 0
	// always honors the URL-embedded format extension.
	DefaultFormat string

	// Storage.
	Storage StorageBackend
	Local   LocalConfig
	S3      S3Config

	// Transcoding pipeline.
	DecoderThreads      int // size of the blocking pool for decode/encode; default runtime.NumCPU()
	DecoderMemoryLimitB int64
	QueueDepth          int // bounded-queue depth per request; default 4 (spec §5)
	ChunkSize           int // encoder flush threshold in bytes; default 4 KiB

	// RequestTimeout bounds a single request's wall time (spec §5 "Timeouts").
	RequestTimeout time.Duration

	// MaxOutputDimension caps both axes of a requested size (spec §5's
	// size-limit guard); 0 means unbounded.
	MaxOutputDimension int

	// DefaultRightsURI is emitted as info.json's "rights" property for every
	// image (omitted when empty); decoders report no rights of their own
	// (see SPEC_FULL.md §4, ported from laya's RIGHTS_URI).
	DefaultRightsURI string

	// Telemetry.
	TelemetryEnabled  bool
	TelemetryEndpoint string // OTLP/HTTP collector endpoint

	// Logging.
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "json" or "text"
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir string
}

// S3Config configures the AWS S3 storage adapter.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // optional custom endpoint (MinIO, etc.)
	UsePathStyle bool
}

// MaxDimension returns the configured output size cap, or 0 if unbounded.
func (c Config) MaxDimension() int { return c.MaxOutputDimension }

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		BindAddr:       ":8182",
		URLPrefix:      "/",
		Storage:        StorageLocal,
		Local:          LocalConfig{RootDir: "."},
		DecoderThreads: 0, // resolved at runtime to NumCPU
		QueueDepth:     4,
		ChunkSize:      4 * 1024,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.BindAddr == "" {
		return errors.New("config: BindAddr must not be empty")
	}
	if c.URLPrefix == "" {
		return errors.New("config: URLPrefix must not be empty")
	}
	if c.QueueDepth <= 0 {
		return errors.New("config: QueueDepth must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: RequestTimeout must be positive")
	}
	if c.Storage == StorageLocal && c.Local.RootDir == "" {
		return errors.New("config: Local.RootDir must be set when Storage is \"local\"")
	}
	if c.Storage == StorageS3 && c.S3.Region == "" {
		return errors.New("config: S3.Region must be set when Storage is \"s3\"")
	}
	return nil
}
