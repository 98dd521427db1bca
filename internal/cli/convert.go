package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martian17/parquet-generator/internal/source"
	"github.com/martian17/parquet-generator/pkg/types"
)

func buildConvertCommand(opts *globalOptions) *cobra.Command {
	var wf writerFlags

	cmd := &cobra.Command{
		Use:   "convert STREAM...",
		Short: "Convert binary event streams into one run of parquet files",
		Long: `Convert reads one or more event streams written by "generate --stream"
and writes their events, in argument order, as a single run. Use "-" to read
from standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			wf.apply(cmd, cfg)

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			w, err := rt.newWriter(cmd.Context())
			if err != nil {
				return err
			}

			src := &multiStream{paths: args, stdin: cmd.InOrStdin(), logger: rt.logger}
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
	return cmd
}

// multiStream concatenates stream files into one source.
type multiStream struct {
	paths  []string
	stdin  io.Reader
	logger *zap.Logger

	current *source.StreamReader
	file    io.Closer
}

func (m *multiStream) Next(ctx context.Context) (types.Event, error) {
	for {
		if m.current == nil {
			if len(m.paths) == 0 {
				return types.Event{}, io.EOF
			}
			if err := m.open(m.paths[0]); err != nil {
				return types.Event{}, err
			}
			m.paths = m.paths[1:]
		}

		e, err := m.current.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			m.Close()
			continue
		}
		return e, err
	}
}

func (m *multiStream) open(path string) error {
	m.logger.Debug("reading stream", zap.String("path", path))
	if path == "-" {
		m.current = source.NewStreamReader(m.stdin)
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	m.file = f
	m.current = source.NewStreamReader(f)
	return nil
}

// Close releases the file being read.
func (m *multiStream) Close() error {
	m.current = nil
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
