// Command aggload previews single-query aggregate loading for a configured
// schema: it prints the generated statements per aggregate, reports which
// aggregates qualify for single-query loading on the chosen dialect, and can
// optionally EXPLAIN the unfiltered statement against a live MySQL server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"aggload/dialect"
	"aggload/internal/config"
	"aggload/loader"
	"aggload/logging"
	"aggload/mapping"
	"aggload/sqlgen"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("aggload error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "Path to the configuration file")
	dialectName := pflag.String("dialect", "", "Override the configured dialect")
	dsn := pflag.String("dsn", "", "Override the configured database DSN")
	explain := pflag.Bool("explain", false, "EXPLAIN the unfiltered statement against MySQL (requires a DSN)")
	showVersion := pflag.Bool("version", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("aggload %s\n", Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *dialectName != "" {
		cfg.Dialect = *dialectName
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Log).WithFields(slog.String("run_id", uuid.NewString()))
	ctx := logging.WithLogger(context.Background(), logger)

	d, _ := dialect.ByName(cfg.Dialect)
	schema, err := cfg.BuildSchema()
	if err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}

	for _, entity := range schema.Entities() {
		eligible := d.SupportsSingleQueryLoading() && loader.QualifiesForSingleQuery(entity)
		printEntity(ctx, d, entity, eligible)

		if eligible && *explain && cfg.Database.DSN != "" {
			if err := explainFindAll(ctx, d, cfg.Database.DSN, entity); err != nil {
				return err
			}
		}
	}
	return nil
}

func printEntity(ctx context.Context, d dialect.Dialect, entity *mapping.Entity, eligible bool) {
	logging.FromContext(ctx).Info("aggregate",
		slog.String("entity", entity.Name),
		slog.String("table", entity.Table),
		slog.Bool("single_query_eligible", eligible),
	)

	fmt.Printf("== %s (table %s)\n", entity.Name, entity.Table)
	if !eligible {
		fmt.Println("   single-query loading not applicable, the per-relation fallback would be used")
		fmt.Println()
		return
	}

	g := sqlgen.NewSingleQueryGenerator(entity, d)
	fmt.Printf("-- findAll\n%s\n\n", g.FindAll())
	fmt.Printf("-- findById\n%s\n\n", g.FindByID())
	fmt.Printf("-- findAllById\n%s\n\n", g.FindAllByID())
}

// explainFindAll runs EXPLAIN over the unfiltered statement, which carries
// no placeholders and needs no bound values.
func explainFindAll(ctx context.Context, d dialect.Dialect, dsn string, entity *mapping.Entity) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	g := sqlgen.NewSingleQueryGenerator(entity, d)
	rows, err := db.QueryContext(ctx, "EXPLAIN "+g.FindAll())
	if err != nil {
		return fmt.Errorf("EXPLAIN failed for %s: %w", entity.Name, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("statement explained",
		slog.String("entity", entity.Name),
		slog.Int("plan_rows", count),
	)
	return nil
}
