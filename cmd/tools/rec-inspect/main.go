// Command rec-inspect lists cataloged recordings and summarizes a .sllog
// recording, optionally rendering previews of its point clouds and images.
//
// Usage:
//
//	go run ./cmd/tools/rec-inspect -catalog recordings/catalog.db [-app ID]
//	go run ./cmd/tools/rec-inspect -log recordings/app_id.sllog [-out previews] [-from-ns N]
//
// Flags:
//
//	-catalog  Catalog database to list
//	-app      Only list recordings of this application
//	-log      Recording directory to summarize
//	-from-ns  Start the summary at this timestamp (default: start of recording)
//	-out      Write PNG/HTML previews of the latest clouds and images here
//	-max      Maximum points per preview (default: 20000)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/sensorlog/internal/catalog"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/report"
)

func main() {
	catalogPath := flag.String("catalog", "", "Catalog database to list")
	appID := flag.String("app", "", "Only list recordings of this application")
	logPath := flag.String("log", "", "Recording directory to summarize")
	fromNs := flag.Int64("from-ns", 0, "Start the summary at this timestamp")
	outDir := flag.String("out", "", "Write previews to this directory")
	maxPoints := flag.Int("max", report.DefaultOptions().MaxPoints, "Maximum points per preview")
	flag.Parse()

	if *catalogPath == "" && *logPath == "" {
		log.Fatal("Error: one of -catalog or -log is required")
	}

	if *catalogPath != "" {
		if err := listCatalog(*catalogPath, *appID); err != nil {
			log.Fatalf("Failed to list catalog: %v", err)
		}
	}

	if *logPath != "" {
		opt := report.DefaultOptions()
		opt.MaxPoints = *maxPoints
		if err := inspectLog(os.Stdout, *logPath, *fromNs, *outDir, opt); err != nil {
			log.Fatalf("Failed to inspect %s: %v", *logPath, err)
		}
	}
}

func listCatalog(path, appID string) error {
	store, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	recordings, err := store.ListRecordings(ctx, appID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDING\tAPP\tMESSAGES\tBYTES\tDURATION\tPATH")
	for _, r := range recordings {
		dur := time.Duration(r.EndNs - r.StartNs)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.ID, r.AppID, r.Messages, r.Bytes, dur, r.Path)

		entities, err := store.ListEntities(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, e := range entities {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%d\t\t\n", e.Path, e.Archetype, e.Messages, e.Bytes)
		}
	}
	return w.Flush()
}

func inspectLog(out io.Writer, path string, fromNs int64, outDir string, opt report.Options) error {
	r, err := rec.NewReplayer(path, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	if fromNs > 0 {
		if err := r.SeekToTimestamp(fromNs); err != nil {
			return err
		}
	}

	s, err := report.Summarize(r)
	if err != nil {
		return err
	}

	h := s.Header
	fmt.Fprintf(out, "Recording %s from app %q (format %s, writer %s, compression %s)\n",
		h.RecordingID, h.AppID, h.Version, h.WriterVersion, h.Compression)
	fmt.Fprintf(out, "Recording holds %d messages over %.2f seconds\n", h.TotalMessages, float64(h.EndNs-h.StartNs)/1e9)
	if fromNs > 0 {
		fmt.Fprintf(out, "Summarized %d messages from %d ns\n", s.Messages, fromNs)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tARCHETYPE\tMESSAGES\tBYTES")
	for _, e := range s.Entities {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", e.Path, e.Archetype, e.Messages, e.Bytes)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if outDir == "" {
		return nil
	}
	written, err := report.WritePreviews(nil, outDir, s, opt)
	for _, p := range written {
		log.Printf("Wrote %s", p)
	}
	return err
}
