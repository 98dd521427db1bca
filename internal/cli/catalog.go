package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/martian17/parquet-generator/internal/manifest"
)

func buildCatalogCommand(opts *globalOptions) *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the manifest of closed files",
	}
	cmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "manifest database (defaults to manifest.path)")

	openCatalog := func() (*manifest.SQLiteCatalog, error) {
		path := manifestPath
		if path == "" {
			cfg, err := loadConfig(opts)
			if err != nil {
				return nil, err
			}
			path = cfg.Manifest.Path
		}
		if path == "" {
			return nil, fmt.Errorf("no manifest configured; set --manifest or manifest.path")
		}
		return manifest.NewCatalog(path)
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := openCatalog()
			if err != nil {
				return err
			}
			defer catalog.Close()

			runs, err := catalog.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tLABEL\tTIMESTAMP\tFILES\tROWS\tBYTES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.RunID, r.Label, r.RunTimestamp, r.Files, r.Rows, r.SizeBytes)
			}
			return tw.Flush()
		},
	}

	var from, to uint64
	findCmd := &cobra.Command{
		Use:   "find",
		Short: "List files holding time tags within [--from, --to]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := openCatalog()
			if err != nil {
				return err
			}
			defer catalog.Close()

			records, err := catalog.FindOverlapping(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tRUN\tROWS\tMIN (ps)\tMAX (ps)\tOBJECT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Path, r.RunID, r.RowCount, *r.MinTimeTagPS, *r.MaxTimeTagPS, r.ObjectPath)
			}
			return tw.Flush()
		},
	}
	findCmd.Flags().Uint64Var(&from, "from", 0, "lower time tag bound in picoseconds")
	findCmd.Flags().Uint64Var(&to, "to", ^uint64(0), "upper time tag bound in picoseconds")

	cmd.AddCommand(runsCmd, findCmd)
	return cmd
}
