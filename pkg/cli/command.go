package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tarjama",
		Short: "English/Arabic translation store",
		Long: `tarjama keeps English/Arabic translation pairs tagged with labels and
serves them over HTTP.

Examples:
  tarjama serve --addr :8080                     # Start the HTTP API
  tarjama import --english en.json --arabic ar.json --tags web
  tarjama import --sheet strings.xlsx            # Merge a spreadsheet
  tarjama export --format yaml -o snapshot.yaml  # Dump the store`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, flags)
	rootCmd.AddCommand(
		newServeCommand(flags),
		newImportCommand(flags),
		newExportCommand(flags),
	)
	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.tarjama.yaml)")
	pf.StringVar(&flags.StorePath, "store", flags.StorePath, "Snapshot path (.json or .yaml for the file backend, database file for sqlite)")
	pf.StringVar(&flags.Backend, "backend", flags.Backend, "Store backend: file or sqlite")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: json or text")

	viper.BindPFlag("store.path", pf.Lookup("store"))
	viper.BindPFlag("store.backend", pf.Lookup("backend"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func newServeCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the translation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	cmd.Flags().StringVar(&flags.Addr, "addr", flags.Addr, "Listen address")
	cmd.Flags().StringVar(&flags.BodyLimit, "body-limit", flags.BodyLimit, "Maximum request body size (e.g. 32M)")

	viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.body_limit", cmd.Flags().Lookup("body-limit"))
	return cmd
}

func newImportCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge translation files into the store",
		Long: `Merge either a pair of JSON key/text files (--english and --arabic) or a
spreadsheet (--sheet, .xlsx or .csv with key, english and arabic columns)
into the store, using the same rules as the upload endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.EnglishFile, "english", "", "English JSON file")
	cmd.Flags().StringVar(&flags.ArabicFile, "arabic", "", "Arabic JSON file")
	cmd.Flags().StringVar(&flags.SheetFile, "sheet", "", "Spreadsheet (.xlsx) or CSV file")
	cmd.Flags().StringVar(&flags.Tags, "tags", "", "Comma separated tags added to merged records")
	return cmd
}

func newExportCommand(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the store snapshot as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "", "json or yaml (default from the output extension, else json)")
	return cmd
}
