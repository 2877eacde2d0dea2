package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThomasVuNguyen/pico-train/internal/discover"
	"github.com/ThomasVuNguyen/pico-train/internal/merge"
	"github.com/ThomasVuNguyen/pico-train/internal/model"
	"github.com/ThomasVuNguyen/pico-train/internal/server"
	"github.com/ThomasVuNguyen/pico-train/internal/snapshot"
)

func main() {
	// Command-line flags
	runsDir := flag.String("runs", "runs", "Directory containing one subdirectory per training run")
	outPath := flag.String("out", "plots/data.json", "Output snapshot path (.zst for a compressed document)")
	serve := flag.Bool("serve", false, "Serve the generated snapshot over HTTP after writing it")
	port := flag.Int("port", 8090, "HTTP port to listen on with -serve")
	webDir := flag.String("web", "", "Directory of static dashboard files to serve at /")
	flag.Parse()

	// 1. Discover and parse every log file
	raw, stats, err := discover.Scan(*runsDir)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	log.Printf("Scanned %s: %d runs, %d skipped, %d log files",
		*runsDir, stats.RunsScanned, stats.RunsSkipped, stats.FilesParsed)

	// 2. Merge continuation files into logical runs
	merged := merge.Merge(raw)

	// A run whose logs never produced a training sample has nothing to chart.
	runs := make([]*model.Run, 0, len(merged))
	for _, r := range merged {
		if len(r.TrainingSamples) == 0 {
			log.Printf("Run %s: no training metrics found, skipping", r.Name)
			continue
		}
		log.Printf("Run %s: %d training samples, %d evaluation samples (%d files)",
			r.Name, len(r.TrainingSamples), len(r.EvaluationSamples), len(r.SourceFiles))
		runs = append(runs, r)
	}

	// 3. Build and persist the snapshot. No runs is not a failure: the
	// dashboard still gets a valid, empty document.
	snap := snapshot.Build(runs)
	if err := snapshot.Write(*outPath, snap); err != nil {
		log.Fatalf("Write snapshot failed: %v", err)
	}
	if len(runs) == 0 {
		log.Printf("No runs found in %s, wrote empty snapshot to %s", *runsDir, *outPath)
	} else {
		log.Printf("Generated %s with %d runs", *outPath, len(runs))
	}

	if !*serve {
		return
	}

	// 4. Reload the persisted document and serve it
	loaded, err := snapshot.Load(*outPath)
	if err != nil {
		log.Fatalf("Reload snapshot failed: %v", err)
	}

	srv := server.New(loaded, *webDir)
	addr := fmt.Sprintf(":%d", *port)

	go func() {
		log.Printf("Listening on %s", addr)
		log.Printf("Dashboard available at http://localhost%s", addr)
		if err := srv.Start(addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful shutdown hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal: %v. Shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
