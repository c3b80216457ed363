package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/japaniel/tarjama/pkg/db"
	"github.com/japaniel/tarjama/pkg/ingest"
	"github.com/japaniel/tarjama/pkg/merge"
	"github.com/japaniel/tarjama/pkg/server"
	"github.com/japaniel/tarjama/pkg/store"
)

// OpenStore opens the configured backend and loads the store from it. The
// returned close function releases the backend.
func OpenStore(cfg Config, logger *slog.Logger) (*store.Store, func() error, error) {
	var (
		persister store.Persister
		closer    = func() error { return nil }
		stored    func() (int, error)
	)
	switch cfg.Backend {
	case BackendSQLite:
		conn, err := db.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		persister = db.NewSnapshot(conn)
		closer = conn.Close
		stored = func() (int, error) { return db.CountRecords(conn) }
	default:
		fs := store.NewFileSnapshot(cfg.StorePath)
		logger.Debug("using snapshot file", slog.String("path", fs.Path()))
		persister = fs
	}

	st, err := store.Open(persister, store.WithLogger(logger))
	if err != nil {
		closer()
		return nil, nil, err
	}
	if stored != nil {
		n, err := stored()
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("count stored records: %w", err)
		}
		if n != st.Len() {
			logger.Warn("some stored records were not loaded",
				slog.Int("stored", n),
				slog.Int("loaded", st.Len()))
		}
	}
	logger.Info("store loaded",
		slog.String("backend", cfg.Backend),
		slog.String("path", cfg.StorePath),
		slog.Int("records", st.Len()))
	return st, closer, nil
}

func setup(cmd *cobra.Command) (Config, *slog.Logger, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Config{}, nil, err
	}
	logger := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ts := server.NewTranslationServer(st, merge.NewEngine(st, logger), logger)
	return server.Run(ctx, server.New(ts, cfg.BodyLimit), cfg.Addr, logger)
}

func runImport(cmd *cobra.Command, flags *Flags) error {
	hasPair := flags.EnglishFile != "" || flags.ArabicFile != ""
	switch {
	case hasPair && flags.SheetFile != "":
		return errors.New("use either --english/--arabic or --sheet, not both")
	case !hasPair && flags.SheetFile == "":
		return errors.New("provide --english and --arabic, or --sheet")
	case hasPair && (flags.EnglishFile == "" || flags.ArabicFile == ""):
		return errors.New("--english and --arabic must be given together")
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := merge.NewEngine(st, logger)
	tags := ingest.ParseTags(flags.Tags)

	var res merge.Result
	if flags.SheetFile != "" {
		rows, err := ingest.LoadRowsFile(flags.SheetFile)
		if err != nil {
			return err
		}
		res, err = engine.MergeRows(rows, tags)
		if err != nil {
			return err
		}
	} else {
		english, err := ingest.LoadMappingFile(flags.EnglishFile)
		if err != nil {
			return err
		}
		arabic, err := ingest.LoadMappingFile(flags.ArabicFile)
		if err != nil {
			return err
		}
		res, err = engine.MergeMappings(english, arabic, tags)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %d new translations, updated %d duplicates.\n", len(res.NewRecords), len(res.Duplicates))
	for _, r := range res.Duplicates {
		fmt.Fprintf(out, "  duplicate: %s (%s)\n", r.Key, r.English)
	}
	return nil
}

func runExport(cmd *cobra.Command, flags *Flags) error {
	format, err := exportFormat(flags.Format, flags.Output)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	data, err := store.EncodeSnapshot(st.All(), format)
	if err != nil {
		return err
	}
	if flags.Output == "" {
		return writeAll(cmd.OutOrStdout(), data)
	}
	if err := os.WriteFile(flags.Output, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", st.Len(), flags.Output)
	return nil
}

func exportFormat(format, output string) (store.Format, error) {
	switch strings.ToLower(format) {
	case "":
		if output != "" {
			return store.FormatForPath(output), nil
		}
		return store.FormatJSON, nil
	case "json":
		return store.FormatJSON, nil
	case "yaml", "yml":
		return store.FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

func writeAll(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	flags := NewFlags()
	rootCmd := CreateRootCommand(flags)
	cobra.OnInitialize(func() {
		InitConfig(flags.CfgFile)
	})
	return rootCmd.ExecuteContext(ctx)
}
