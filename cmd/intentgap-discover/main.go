// Command intentgap-discover runs one full discovery pass over a corpus
// file: embed, cluster, evaluate, synthesize proposals through the oracle,
// and merge accepted intents into the taxonomy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/internal/corpus"
	"github.com/scrypster/intentgap/internal/engine"
	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/internal/report"
	"github.com/scrypster/intentgap/internal/storage"
	storagepostgres "github.com/scrypster/intentgap/internal/storage/postgres"
	storagesqlite "github.com/scrypster/intentgap/internal/storage/sqlite"
	"github.com/scrypster/intentgap/pkg/types"
)

var (
	inputPath = flag.String("input", "", "Path to the corpus JSON file (required)")
	outDir    = flag.String("out", ".", "Directory for report, audit CSV, and updated intent map")
	dryRun    = flag.Bool("dry-run", false, "Run the pipeline without persisting anything")
	strategy  = flag.String("strategy", "", "Clustering strategy override: agglomerative or density")
	clusterK  = flag.Int("k", 0, "Target cluster count override for agglomerative clustering")
)

func main() {
	flag.Parse()
	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *strategy != "" {
		cfg.Clustering.Strategy = *strategy
	}
	if *clusterK > 0 {
		cfg.Clustering.TargetK = *clusterK
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	messages, taxonomy, err := corpus.Load(*inputPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	oracle, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create oracle client: %v", err)
	}
	embeddings, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	store := openStore(cfg, *dryRun)
	if store != nil {
		defer store.Close()
		// The stored taxonomy supersedes the one in the input file once a
		// run has been persisted.
		if saved, err := store.Load(context.Background()); err == nil {
			log.Printf("Using stored taxonomy version %d (%d intents)", saved.Version, len(saved.Entries))
			taxonomy = saved
		}
	}

	discovery, err := engine.NewDiscovery(cfg, oracle, embeddings, store)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := discovery.Run(ctx, messages, taxonomy)
	if err != nil {
		log.Fatalf("Discovery run failed: %v", err)
	}

	if err := writeArtifacts(*outDir, result); err != nil {
		log.Fatalf("Failed to write run artifacts: %v", err)
	}

	accepted := 0
	for _, p := range result.Proposals {
		if p.Accepted() {
			accepted++
		}
	}
	fmt.Printf("Run %s complete: %d clusters, %d proposals accepted, taxonomy at version %d\n",
		result.RunID, len(result.Clusters), accepted, result.Taxonomy.Version)
}

func openStore(cfg *config.Config, dryRun bool) storage.Store {
	if dryRun {
		return nil
	}
	switch cfg.Storage.Engine {
	case "sqlite":
		store, err := storagesqlite.Open(cfg.Storage.DataPath)
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
		return store
	case "postgres":
		store, err := storagepostgres.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to open postgres store: %v", err)
		}
		return store
	case "none":
		return nil
	default:
		log.Fatalf("Unknown storage engine %q", cfg.Storage.Engine)
		return nil
	}
}

// writeArtifacts writes the markdown report, the audit CSV, and the updated
// intent map into dir.
func writeArtifacts(dir string, result *types.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	md, err := os.Create(filepath.Join(dir, "discovery_report.md"))
	if err != nil {
		return err
	}
	defer md.Close()
	if err := report.WriteMarkdown(md, result); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, "audit_report.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()
	if err := report.WriteCSV(csvFile, result); err != nil {
		return err
	}

	intentMap, err := corpus.ExportIntentMap(result.Taxonomy)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "updated_intent_map.json"), intentMap, 0o644)
}
