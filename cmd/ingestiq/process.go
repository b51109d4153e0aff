package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundledger/stream-ingest-iq/internal/config"
	"github.com/soundledger/stream-ingest-iq/internal/detect"
	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
	"github.com/soundledger/stream-ingest-iq/internal/process"
	"github.com/soundledger/stream-ingest-iq/internal/repository"
	"github.com/soundledger/stream-ingest-iq/internal/validate"
)

func newProcessCmd() *cobra.Command {
	var (
		pattern string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "process [path]",
		Short: "Ingest a report file or every report in a directory",
		Long: `process runs the ingest pipeline over a single report file, or over
every matching file in a directory. Without an argument it processes the
configured report directory. The run summary is printed as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runProcess(cmd.Context(), path, pattern, force)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "glob pattern for files within a directory")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess files even when already ingested")

	return cmd
}

func runProcess(ctx context.Context, path, pattern string, force bool) error {
	cfg := config.Load()
	if path == "" {
		path = cfg.Ingest.ReportDir
	}
	if pattern == "" {
		pattern = cfg.Ingest.FilePattern
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path not found: %s", path)
	}

	registry, err := platform.NewRegistry()
	if err != nil {
		return fmt.Errorf("load platform catalog: %w", err)
	}

	pool, err := bootstrap(ctx, cfg, registry)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)
	detector := detect.NewDetector(registry, cfg.Ingest.SampleBytes)
	parser := parse.NewParser(registry, detector, parse.NewDateNormalizer())
	engine := validate.NewEngine(validate.Thresholds{
		NullWarnRatio:       cfg.Validation.NullWarnRatio,
		NullErrorRatio:      cfg.Validation.NullErrorRatio,
		MixedTypeLowRatio:   cfg.Validation.MixedTypeLowRatio,
		MixedTypeHighRatio:  cfg.Validation.MixedTypeHighRatio,
		DateSampleSize:      cfg.Validation.DateSampleSize,
		DateCriticalRatio:   cfg.Validation.DateCriticalRatio,
		DuplicateErrorRatio: cfg.Validation.DuplicateErrorRatio,
	})
	processor := process.NewProcessor(store, registry, parser, engine, nil)

	var result interface{}
	if info.IsDir() {
		result, err = processor.ProcessDirectory(ctx, path, pattern, force)
	} else {
		result, err = processor.ProcessFile(ctx, path, force)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
