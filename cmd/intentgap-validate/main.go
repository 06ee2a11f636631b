// Command intentgap-validate runs the needle-in-a-haystack sensitivity test:
// it injects messages of a known-novel intent into a baseline corpus,
// reclusters, and checks that the pipeline both isolates them and proposes
// them as a new intent. Exit status 0 means PASS.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/internal/corpus"
	"github.com/scrypster/intentgap/internal/engine"
	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/internal/report"
)

var (
	inputPath = flag.String("input", "", "Path to the baseline corpus JSON file (required)")
	setPath   = flag.String("injection-set", "", "YAML injection set (built-in B2B set when empty)")
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

	baseline, taxonomy, err := corpus.Load(*inputPath)
	if err != nil {
		log.Fatalf("Failed to load baseline corpus: %v", err)
	}

	setFile := cfg.Validation.InjectionFile
	if *setPath != "" {
		setFile = *setPath
	}
	set, err := corpus.LoadInjectionSet(setFile)
	if err != nil {
		log.Fatalf("Failed to load injection set: %v", err)
	}

	oracle, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create oracle client: %v", err)
	}
	embeddings, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	harness, err := engine.NewHarness(cfg, oracle, embeddings)
	if err != nil {
		log.Fatalf("Failed to build harness: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := harness.Run(ctx, baseline, taxonomy, set)
	if err != nil {
		log.Fatalf("Validation run failed: %v", err)
	}

	if err := report.WriteValidationMarkdown(os.Stdout, result.IntentName,
		result.Passed, result.Verdict, result.Recall, result.Precision,
		result.Cohesion, result.ProposedIntent); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	if !result.Passed {
		os.Exit(1)
	}
}
