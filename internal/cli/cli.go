// Package cli implements the parquet-generator command line.
//
// Command structure:
//
//	parquet-generator
//	├── generate   simulate a measurement and write it as parquet files
//	├── convert    turn binary event streams into parquet files
//	├── inspect    print row groups and footer metadata, optionally verify
//	└── catalog    query the manifest of closed files
//	    ├── runs
//	    └── find
//
// Every command reads the optional YAML/JSON config given with --config,
// then PQGEN_* environment overrides, then explicit flags.
package cli

import (
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	logLevel   string
	logJSON    bool
}

// BuildCLI returns the root command.
func BuildCLI(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "parquet-generator",
		Short: "Write time-tag event streams as rotating parquet files",
		Long: `parquet-generator persists ordered (channel, time tag) events as a
sequence of parquet files. Rows are buffered up to a chunk threshold and
flushed as one row group; files rotate once they hold enough chunks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(buildGenerateCommand(opts))
	rootCmd.AddCommand(buildConvertCommand(opts))
	rootCmd.AddCommand(buildInspectCommand(opts))
	rootCmd.AddCommand(buildCatalogCommand(opts))

	return rootCmd
}
