// Command iiifd serves IIIF Image API 3.0 level 0 requests. Wiring order:
// config, then observability (logger, metrics), then telemetry, then
// storage, the codec registry and the encoder backend, then the service,
// and finally the listener.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apperrors "github.com/deepzoom/iiifd/apperrors"
	"github.com/deepzoom/iiifd/codec"
	"github.com/deepzoom/iiifd/codec/jp2"
	"github.com/deepzoom/iiifd/codec/jpegenc"
	"github.com/deepzoom/iiifd/codec/stdimage"
	"github.com/deepzoom/iiifd/config"
	"github.com/deepzoom/iiifd/httpapi"
	"github.com/deepzoom/iiifd/observability"
	"github.com/deepzoom/iiifd/service"
	"github.com/deepzoom/iiifd/storage"
	"github.com/deepzoom/iiifd/telemetry"
	"github.com/deepzoom/iiifd/transcode"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "listen address, e.g. :8182")
	flag.StringVar(&cfg.URLPrefix, "url-prefix", cfg.URLPrefix, "path prefix stripped from incoming requests and prepended to info.json id values")
	storageBackend := flag.String("storage", string(cfg.Storage), "storage backend: local or s3")
	flag.StringVar(&cfg.Local.RootDir, "local-root", cfg.Local.RootDir, "root directory for the local storage adapter")
	flag.StringVar(&cfg.S3.Bucket, "s3-bucket", cfg.S3.Bucket, "S3 bucket name")
	flag.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")
	flag.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "optional S3-compatible endpoint override")
	flag.BoolVar(&cfg.S3.UsePathStyle, "s3-path-style", cfg.S3.UsePathStyle, "use path-style S3 addressing")
	flag.IntVar(&cfg.DecoderThreads, "decoder-threads", cfg.DecoderThreads, "decode/encode worker pool size (0 = NumCPU)")
	flag.IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "bounded queue depth per streamed response")
	flag.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "response chunk size in bytes")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "per-request wall-clock timeout")
	flag.IntVar(&cfg.MaxOutputDimension, "max-output-dimension", cfg.MaxOutputDimension, "cap on requested width/height (0 = unbounded)")
	flag.StringVar(&cfg.DefaultRightsURI, "rights-uri", cfg.DefaultRightsURI, "default rights statement URI for info.json")
	flag.BoolVar(&cfg.TelemetryEnabled, "telemetry", cfg.TelemetryEnabled, "enable OTLP/HTTP tracing")
	flag.StringVar(&cfg.TelemetryEndpoint, "telemetry-endpoint", cfg.TelemetryEndpoint, "OTLP/HTTP collector endpoint")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text")
	flag.Parse()

	cfg.Storage = config.StorageBackend(*storageBackend)

	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewSlogLogger(slog.New(newLogHandler(cfg)))
	metrics := observability.NewInMemoryMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTelemetry, err := telemetry.Init(ctx, cfg)
	if err != nil {
		logger.Error("telemetry.init_failed", "error", err.Error())
		os.Exit(1)
	}

	storageAdapter, err := buildStorage(ctx, cfg)
	if err != nil {
		logger.Error("storage.init_failed", "error", err.Error())
		os.Exit(1)
	}

	registry := codec.NewRegistry()
	registry.Register("jp2", jp2.New())
	registry.Register("jpf", jp2.New())
	registry.Register("jpg", stdimage.New(stdimage.JPEG))
	registry.Register("jpeg", stdimage.New(stdimage.JPEG))
	registry.Register("png", stdimage.New(stdimage.PNG))
	registry.Register("webp", stdimage.New(stdimage.WebP))

	encoderThreads := cfg.DecoderThreads
	backend := jpegenc.NewBackend(jpegenc.BackendConfig{
		DefaultQuality: 85,
		MaxWorkers:     encoderThreads,
	})
	defer backend.Shutdown()

	pipeline := transcode.New(backend, transcode.Config{
		QueueDepth: cfg.QueueDepth,
		ChunkSize:  cfg.ChunkSize,
	})

	svc := &service.Service{
		Storage:  storageAdapter,
		Decoders: registry,
		Pipeline: pipeline,
		Logger:   logger,
		Metrics:  metrics,
		Config:   cfg,
	}

	router := httpapi.NewRouter(svc, logger, cfg.RequestTimeout)
	h2s := &http2.Server{}

	srv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: h2c.NewHandler(http.StripPrefix(strings.TrimSuffix(cfg.URLPrefix, "/"), router), h2s),
	}

	go func() {
		logger.Info("iiifd.listening", "addr", cfg.BindAddr, "storage", string(cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("iiifd.listen_failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("iiifd.shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("iiifd.shutdown_error", "error", err.Error())
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry.shutdown_error", "error", err.Error())
	}
}

func buildStorage(ctx context.Context, cfg config.Config) (storage.Adapter, error) {
	switch cfg.Storage {
	case config.StorageLocal:
		return storage.NewLocal(cfg.Local.RootDir)
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, cfg.S3.Bucket), nil
	default:
		return nil, apperrors.New(apperrors.CategoryParse, "main.build_storage", errors.New("unknown storage backend: "+string(cfg.Storage)))
	}
}

func newLogHandler(cfg config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.LogFormat == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
