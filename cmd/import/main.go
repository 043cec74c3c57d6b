package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ThiagoRGoveia/club-power/internal/config"
	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/ingestion"
	"github.com/ThiagoRGoveia/club-power/internal/logging"
	"github.com/ThiagoRGoveia/club-power/internal/parser"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOptions struct {
	path      string
	delimiter rune
	policy    string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file> [delimiter]",
		Short: "Load a progress feed (.csv, .xlsx) into club_power_avance",
		Long: "Load a progress feed into club_power_avance. Totals are recomputed and every row\n" +
			"is stamped with yesterday's date. The optional delimiter applies to CSV files.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.path = args[0]
			var arg string
			if len(args) == 2 {
				arg = args[1]
			}
			delimiter, err := parser.ParseDelimiter(arg)
			if err != nil {
				return withCode(exitUsage, err)
			}
			opts.delimiter = delimiter
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.policy, "policy", "", "Write policy: merge or replace (default: WRITE_POLICY or merge)")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts importOptions) error {
	cfg, err := config.New()
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("failed to load config: %w", err))
	}

	policyName := opts.policy
	if policyName == "" {
		policyName = cfg.WritePolicy
	}
	policy, err := database.ParseWritePolicy(policyName)
	if err != nil {
		return withCode(exitUsage, err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()

	payload, err := os.ReadFile(opts.path)
	if err != nil {
		return withCode(exitRead, fmt.Errorf("failed to read %s: %w", opts.path, err))
	}

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL, database.PoolConfig{
		MinConns:          1,
		MaxConns:          cfg.MaxConns(),
		MaxConnLifetime:   cfg.PoolRecycle,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
		TimeZone:          cfg.Location.String(),
	})
	if err != nil {
		return withCode(exitWrite, err)
	}
	defer dbpool.Close()

	service := ingestion.NewIngestionService(database.NewPostgresDBManager(dbpool), logger, ingestion.Options{
		Policy:    policy,
		ChunkSize: cfg.ChunkSize,
		Location:  cfg.Location,
		Progress: func(written, total int) {
			fmt.Fprintf(out, "→ %d/%d rows processed...\n", written, total)
		},
	})

	fmt.Fprintf(out, "Importing %s (policy: %s)\n", filepath.Base(opts.path), policy)
	started := time.Now()

	result, err := service.Execute(ctx, ingestion.Upload{
		FileName:  filepath.Base(opts.path),
		Delimiter: opts.delimiter,
		Payload:   payload,
	})
	if err != nil {
		code := exitCodeFor(err)
		if code == exitOK {
			logger.Warn("Nothing to import", zap.String("file", opts.path), zap.Error(err))
			fmt.Fprintf(out, "No valid rows in %s; nothing was written.\n", opts.path)
			return nil
		}
		return withCode(code, err)
	}

	fmt.Fprintf(out, "Done: %d rows loaded for %s (%d read, %d rejected, %d duplicates) in %s\n",
		result.RowsLoaded, result.SnapshotDate, result.RowsRead, result.RowsRejected, result.RowsDuplicated,
		time.Since(started).Round(time.Millisecond))
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	if err := newImportCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeOf(err))
	}
}
