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

	"github.com/expovision/marketpulse/internal/analyze"
	"github.com/expovision/marketpulse/internal/config"
	"github.com/expovision/marketpulse/internal/dataset"
	"github.com/expovision/marketpulse/internal/render"
	"github.com/expovision/marketpulse/internal/reportstore"
	"github.com/expovision/marketpulse/internal/telemetry"
	"github.com/expovision/marketpulse/internal/tokens"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Config file path")
	input := flag.String("input", "", "Dataset JSON file to analyze")
	fileID := flag.String("file-id", "", "Source file ID the report is stored under (defaults to the input basename)")
	kindFlag := flag.String("kind", "metrics", "Analysis kind: trends, competitors, or metrics")
	marketplace := flag.String("marketplace", "", "Marketplace name used in prompts")
	flag.Parse()

	if *input == "" {
		log.Fatal("missing required -input flag")
	}
	kind := analyze.Kind(*kindFlag)
	if !kind.Valid() {
		log.Fatalf("invalid -kind %q: must be trends, competitors, or metrics", *kindFlag)
	}
	id := *fileID
	if id == "" {
		id = filepath.Base(*input)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, "marketpulse-worker", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal(err)
	}
	defer shutdown(context.Background())

	caller, err := analyze.NewOpenAICaller(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatal(err)
	}
	counter := tokens.NewCounter(cfg.CheapModel)
	service := analyze.NewService(caller, counter, analyze.Config{
		CheapModel:          cfg.CheapModel,
		ExpensiveModel:      cfg.ExpensiveModel,
		MaxBatches:          cfg.MaxBatches,
		ConsolidationBudget: cfg.ConsolidationBudget,
		BatchCallCeiling:    cfg.BatchCallCeiling,
		SynthesisCeiling:    cfg.SynthesisCeiling,
		Temperature:         cfg.Temperature,
	})

	ds, err := dataset.LoadFile(*input)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("analyzing %s (kind=%s, rows=%d, marketplace=%s)", id, kind, ds.RowCount(), *marketplace)
	result, meta := service.Analyze(ctx, ds, *marketplace, kind)
	if meta.Mode == analyze.RunModeDegraded {
		log.Printf("analysis degraded: %v", meta.Notes)
	}

	store, err := reportstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	if err := store.Save(ctx, id, *marketplace, kind, result, meta); err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		log.Fatal(err)
	}
	outPath := filepath.Join(cfg.ReportDir, fmt.Sprintf("%s-%s.md", id, kind))
	if err := os.WriteFile(outPath, []byte(render.BuildMarkdown(result, meta)), 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("report saved (db=%s, markdown=%s, mode=%s)", cfg.DBPath, outPath, meta.Mode)
}
