// Command repair deduplicates the vector index of one tenant. Historic runs
// wrote a fresh random document id per build, so rebuilding a collection
// could leave several vector rows per node; this tool keeps one row per node
// and deletes the rest. Run with -dry-run first to see what would go.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/lexgraph/lexgraph/internal/db"
	"github.com/lexgraph/lexgraph/internal/util"
	"github.com/lexgraph/lexgraph/pkg/logger"
	"github.com/lexgraph/lexgraph/pkg/logger/console"
	"github.com/lexgraph/lexgraph/pkg/model"
	"github.com/lexgraph/lexgraph/pkg/repair"
	pgstore "github.com/lexgraph/lexgraph/pkg/store/pgx"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant id to repair (empty for the default tenant)")
	dryRun := flag.Bool("dry-run", false, "report duplicates without deleting")
	flag.Parse()

	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	tenant, err := model.NewTenantID(*tenantFlag)
	if err != nil {
		logger.Fatal("Invalid tenant", "err", err)
	}

	ctx := context.Background()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	st, pool, err := pgstore.NewStore(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	repairer, err := repair.NewRepairer(repair.NewRepairerParams{
		Graph:   st,
		Vectors: st,
		DryRun:  *dryRun,
	})
	if err != nil {
		logger.Fatal("Failed to create repairer", "err", err)
	}

	counts, err := repairer.Run(ctx, tenant)
	if err != nil {
		logger.Fatal("Repair failed", "tenant", tenant.String(), "err", err)
	}

	logger.Info("Repair finished", "tenant", tenant.String(), "dry_run", *dryRun)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(counts); err != nil {
		logger.Fatal("Failed to encode counts", "err", err)
	}
}
