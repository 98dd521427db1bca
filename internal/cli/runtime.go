package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martian17/parquet-generator/internal/config"
	"github.com/martian17/parquet-generator/internal/logging"
	"github.com/martian17/parquet-generator/internal/manifest"
	"github.com/martian17/parquet-generator/internal/observability"
	"github.com/martian17/parquet-generator/internal/publish"
	"github.com/martian17/parquet-generator/internal/storage"
	"github.com/martian17/parquet-generator/internal/writer"
)

// writerFlags are the writer tunables exposed on write commands.
type writerFlags struct {
	outputDir    string
	label        string
	maxChunkRows int
	maxFileRows  int
	compression  string
	strict       bool
}

func (f *writerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.outputDir, "out", "o", "", "output directory (must exist)")
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "label embedded in file names")
	cmd.Flags().IntVar(&f.maxChunkRows, "chunk-rows", 0, "rows buffered per row group")
	cmd.Flags().IntVar(&f.maxFileRows, "file-rows", 0, "target rows per file")
	cmd.Flags().StringVar(&f.compression, "compression", "", "codec: none, snappy, gzip, zstd, lz4")
	cmd.Flags().BoolVar(&f.strict, "strict-rotation", false, "rotate when a file reaches its chunk budget")
}

// apply overrides cfg with the flags the user set explicitly.
func (f *writerFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Writer.OutputDir = f.outputDir
	}
	if flags.Changed("label") {
		cfg.Writer.Label = f.label
	}
	if flags.Changed("chunk-rows") {
		cfg.Writer.MaxChunkRows = f.maxChunkRows
	}
	if flags.Changed("file-rows") {
		cfg.Writer.MaxFileRows = f.maxFileRows
	}
	if flags.Changed("compression") {
		cfg.Writer.Compression = f.compression
	}
	if flags.Changed("strict-rotation") {
		cfg.Writer.StrictRotation = f.strict
	}
}

// runtime holds what a command needs once configuration is resolved.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.WriterMetrics
	closers  []func() error
}

// loadConfig resolves file, environment, and global flag configuration.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logJSON {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

// newRuntime builds the logger and metrics for a validated configuration
// and starts the metrics endpoint when one is configured.
func newRuntime(cfg *config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  observability.NewWriterMetrics(registry),
	}
	rt.closers = append(rt.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if cfg.Metrics.Addr != "" {
		rt.serveMetrics(cfg.Metrics.Addr)
	}
	return rt, nil
}

func (rt *runtime) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(rt.registry))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		rt.logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Registered first so it is shut down last.
	rt.closers = append([]func() error{func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}}, rt.closers...)
}

// publisher wires the configured storage and manifest into a file observer.
func (rt *runtime) publisher(ctx context.Context) (*publish.Publisher, error) {
	opts := []publish.Option{publish.WithLogger(rt.logger)}

	switch rt.cfg.Storage.Type {
	case "local":
		s, err := storage.NewLocalStorage(rt.cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, publish.WithStorage(s, rt.cfg.Storage.Prefix))
	case "s3":
		s3cfg := storage.DefaultS3Config()
		if rt.cfg.Storage.S3.Region != "" {
			s3cfg.Region = rt.cfg.Storage.S3.Region
		}
		s3cfg.Endpoint = rt.cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = rt.cfg.Storage.S3.UsePathStyle
		s, err := storage.NewS3Storage(ctx, rt.cfg.Storage.S3.Bucket, s3cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, publish.WithStorage(s, rt.cfg.Storage.Prefix))
	}

	if rt.cfg.Manifest.Path != "" {
		catalog, err := manifest.NewCatalog(rt.cfg.Manifest.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, catalog.Close)
		opts = append(opts, publish.WithCatalog(catalog))
	}

	return publish.New(opts...), nil
}

// newWriter creates a writer with the runtime's logger, metrics, and publisher.
func (rt *runtime) newWriter(ctx context.Context) (*writer.Writer, error) {
	opts := []writer.Option{
		writer.WithLogger(rt.logger),
		writer.WithMetrics(rt.metrics),
	}

	p, err := rt.publisher(ctx)
	if err != nil {
		return nil, err
	}
	if p.Enabled() {
		opts = append(opts, writer.WithObserver(p))
	}
	return writer.New(rt.cfg.WriterConfig(), opts...)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// printResult reports the files of a finished run.
func printResult(cmd *cobra.Command, result *writer.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d rows in %d files\n", result.RunID, result.Rows, len(result.Files))
	for _, f := range result.Files {
		fmt.Fprintf(out, "  %s  rows=%d row_groups=%d bytes=%d\n", f.Path, f.Stats.RowCount, f.RowGroups, f.SizeBytes)
	}
}
