package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martian17/parquet-generator/internal/simulate"
	"github.com/martian17/parquet-generator/internal/source"
)

// pipeCapacity bounds the events in flight between producer and writer.
const pipeCapacity = 4096

func buildGenerateCommand(opts *globalOptions) *cobra.Command {
	var (
		wf         writerFlags
		seed       uint64
		pairs      int
		streamPath string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Simulate a two-detector measurement and write it as parquet files",
		Example: `  parquet-generator generate --out ./data --label simulation-1
  parquet-generator generate --pairs 1000 --stream events.tts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			wf.apply(cmd, cfg)
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed = seed
			}
			if cmd.Flags().Changed("pairs") {
				cfg.Simulation.Pairs = pairs
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if streamPath != "" {
				return writeStream(cmd, cfg.Simulation, streamPath)
			}

			w, err := rt.newWriter(cmd.Context())
			if err != nil {
				return err
			}

			rt.logger.Info("generating measurement",
				zap.Uint64("seed", cfg.Simulation.Seed),
				zap.Int("pairs", cfg.Simulation.Pairs),
			)
			src := source.NewPipe(cmd.Context(), pipeCapacity, simulate.Produce(cfg.Simulation))
			defer src.Close()

			result, err := w.Write(cmd.Context(), src)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	wf.register(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&pairs, "pairs", 0, "number of emission attempts")
	cmd.Flags().StringVar(&streamPath, "stream", "", "write a binary event stream to this file instead of parquet")

	return cmd
}

// writeStream saves a simulated measurement in the binary stream format read
// by convert.
func writeStream(cmd *cobra.Command, cfg simulate.Config, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create stream file: %w", err)
	}

	sw := source.NewStreamWriter(f)
	for _, e := range simulate.Generate(cfg) {
		if err := sw.Write(e); err != nil {
			f.Close()
			return err
		}
	}
	if err := sw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close stream file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", sw.Count(), path)
	return nil
}
