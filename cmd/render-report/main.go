package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/expovision/marketpulse/internal/analyze"
	"github.com/expovision/marketpulse/internal/config"
	"github.com/expovision/marketpulse/internal/render"
	"github.com/expovision/marketpulse/internal/reportstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Config file path")
	fileID := flag.String("file-id", "", "Source file ID the report was stored under")
	kindFlag := flag.String("kind", "metrics", "Analysis kind: trends, competitors, or metrics")
	format := flag.String("format", "markdown", "Output format: markdown, html, or pdf")
	out := flag.String("out", "", "Output path (defaults to <report_dir>/<file-id>-<kind>.<ext>)")
	flag.Parse()

	if *fileID == "" {
		log.Fatal("missing required -file-id flag")
	}
	kind := analyze.Kind(*kindFlag)
	if !kind.Valid() {
		log.Fatalf("invalid -kind %q: must be trends, competitors, or metrics", *kindFlag)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := reportstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	row, err := store.GetReport(ctx, *fileID, kind)
	if err != nil {
		log.Fatal(err)
	}
	var result analyze.AnalysisResult
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		log.Fatalf("decode stored report: %v", err)
	}
	meta := analyze.RunMetadata{
		Kind:       kind,
		Mode:       analyze.RunMode(row.RunMode),
		FinishedAt: row.CreatedAt,
	}
	markdown := render.BuildMarkdown(result, meta)

	var body []byte
	var ext string
	switch *format {
	case "markdown":
		body, ext = []byte(markdown), "md"
	case "html":
		doc, err := render.HTML(result.Title, markdown)
		if err != nil {
			log.Fatal(err)
		}
		body, ext = []byte(doc), "html"
	case "pdf":
		pdf, err := render.NewChromiumPDFRenderer(cfg.ChromePath).Render(ctx, result.Title, markdown)
		if err != nil {
			log.Fatal(err)
		}
		body, ext = pdf, "pdf"
	default:
		log.Fatalf("invalid -format %q: must be markdown, html, or pdf", *format)
	}

	outPath := *out
	if outPath == "" {
		if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
			log.Fatal(err)
		}
		outPath = filepath.Join(cfg.ReportDir, fmt.Sprintf("%s-%s.%s", *fileID, kind, ext))
	}
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("rendered %s report to %s", *format, outPath)
}
